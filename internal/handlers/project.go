package handlers

import (
	"ReqKeeper/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProjectHandler обслуживает проекты, доступ, колонки и присутствие.
type ProjectHandler struct {
	Projects *service.ProjectService
	Presence *service.PresenceService
	Logger   *zap.SugaredLogger
}

type projectRequest struct {
	Name string `json:"name"`
}

type shareRequest struct {
	Email string `json:"email"`
}

type columnRequest struct {
	Name string `json:"name"`
}

type columnsResponse struct {
	Columns []string `json:"custom_columns"`
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Projects.ListProjects(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.Logger, "ListProjects", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decodeJSON(w, r, h.Logger, "CreateProject", &req) {
		return
	}
	p, err := h.Projects.CreateProject(r.Context(), userID(r), req.Name)
	if err != nil {
		writeError(w, h.Logger, "CreateProject", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	p, err := h.Projects.GetProject(r.Context(), projectID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "GetProject", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.Projects.DeleteProject(r.Context(), projectID, userID(r)); err != nil {
		writeError(w, h.Logger, "DeleteProject", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share открывает проект пользователю по email
func (h *ProjectHandler) Share(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var req shareRequest
	if !decodeJSON(w, r, h.Logger, "Share", &req) {
		return
	}
	u, err := h.Projects.Share(r.Context(), projectID, userID(r), req.Email)
	if err != nil {
		writeError(w, h.Logger, "Share", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *ProjectHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	target, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.Projects.Unshare(r.Context(), projectID, userID(r), target); err != nil {
		writeError(w, h.Logger, "Unshare", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var req columnRequest
	if !decodeJSON(w, r, h.Logger, "AddColumn", &req) {
		return
	}
	cols, err := h.Projects.AddColumn(r.Context(), projectID, userID(r), req.Name)
	if err != nil {
		writeError(w, h.Logger, "AddColumn", err)
		return
	}
	writeJSON(w, http.StatusOK, columnsResponse{Columns: cols})
}

func (h *ProjectHandler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	cols, err := h.Projects.RemoveColumn(r.Context(), projectID, userID(r), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, h.Logger, "RemoveColumn", err)
		return
	}
	writeJSON(w, http.StatusOK, columnsResponse{Columns: cols})
}

// Heartbeat отмечает, что пользователь смотрит проект
func (h *ProjectHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.Presence.Heartbeat(r.Context(), projectID, userID(r)); err != nil {
		writeError(w, h.Logger, "Heartbeat", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) ActiveUsers(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	users, err := h.Presence.ActiveUsers(r.Context(), projectID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "ActiveUsers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}
