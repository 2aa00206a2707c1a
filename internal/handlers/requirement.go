package handlers

import (
	"ReqKeeper/internal/ingest"
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/service"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// максимальный размер тела пакетной загрузки
const maxIngestBody = 8 << 20

// RequirementHandler обслуживает требования проекта и корзину.
type RequirementHandler struct {
	Requirements *service.RequirementService
	History      *service.HistoryService
	Logger       *zap.SugaredLogger
}

type versionFieldsRequest struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Status      string            `json:"status"`
	Custom      map[string]string `json:"custom_data"`
}

// fields переводит запрос в поля версии; синонимы статуса разбираются здесь,
// неизвестное значение отклонит сервис.
func (f versionFieldsRequest) fields() service.VersionFields {
	st := model.Status(f.Status)
	if parsed, err := model.ParseStatus(f.Status); err == nil {
		st = parsed
	}
	return service.VersionFields{
		Title:       f.Title,
		Description: f.Description,
		Category:    f.Category,
		Status:      st,
		Custom:      f.Custom,
	}
}

type candidateRequest struct {
	versionFieldsRequest
	ID     *int64 `json:"id,omitempty"`
	Source string `json:"source"`
	RunID  string `json:"run_id"`
}

type resolutionResponse struct {
	Requirement *model.Requirement        `json:"requirement"`
	Version     *model.RequirementVersion `json:"version"`
	Created     bool                      `json:"created"`
	Restored    bool                      `json:"restored"`
}

func (h *RequirementHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	list, err := h.Requirements.ListRequirements(r.Context(), projectID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "ListRequirements", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RequirementHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var req versionFieldsRequest
	if !decodeJSON(w, r, h.Logger, "CreateRequirement", &req) {
		return
	}
	created, err := h.Requirements.CreateRequirement(r.Context(), projectID, userID(r), req.fields())
	if err != nil {
		writeError(w, h.Logger, "CreateRequirement", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Match ищет требование по id (в этом проекте) или по заголовку, ничего не создавая
func (h *RequirementHandler) Match(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var candidateID *int64
	if raw := r.URL.Query().Get("id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			candidateID = &id
		}
	}
	found, err := h.Requirements.Resolve(r.Context(), projectID, userID(r), candidateID, r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, h.Logger, "Resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// ResolveOrCreate для одного кандидата: новая версия найденного требования или новое требование
func (h *RequirementHandler) ResolveOrCreate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var req candidateRequest
	if !decodeJSON(w, r, h.Logger, "ResolveOrCreate", &req) {
		return
	}
	res, err := h.Requirements.ResolveOrCreate(r.Context(), projectID, userID(r),
		service.Candidate{ID: req.ID, Fields: req.fields()},
		service.Origin{Source: req.Source, RunID: req.RunID},
	)
	if err != nil {
		writeError(w, h.Logger, "ResolveOrCreate", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resolutionResponse{
		Requirement: res.Requirement,
		Version:     res.Version,
		Created:     res.Created,
		Restored:    res.Restored,
	})
}

// Ingest принимает YAML/JSON со списком наборов полей (формат как у команды ingest)
func (h *RequirementHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}
	batch, err := ingest.Parse(data)
	if err != nil {
		h.Logger.Warnw("Ingest: invalid payload", "error", err)
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	opts := service.IngestOptions{Source: batch.Source, AddUnknownColumns: queryBool(r, "add_columns")}
	if src := r.URL.Query().Get("source"); src != "" {
		opts.Source = src
	}
	report, err := h.Requirements.Ingest(r.Context(), projectID, userID(r), batch.Rows, opts)
	if err != nil {
		writeError(w, h.Logger, "Ingest", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *RequirementHandler) StatusBoard(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	board, err := h.Requirements.StatusBoard(r.Context(), projectID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "StatusBoard", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *RequirementHandler) Kanban(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	cols, err := h.Requirements.Kanban(r.Context(), projectID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "Kanban", err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *RequirementHandler) Trash(w http.ResponseWriter, r *http.Request) {
	list, err := h.Requirements.ListTrash(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.Logger, "ListTrash", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RequirementHandler) Versions(w http.ResponseWriter, r *http.Request) {
	reqID, ok := pathID(w, r, "requirementID")
	if !ok {
		return
	}
	list, err := h.Requirements.ListVersions(r.Context(), reqID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "ListVersions", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RequirementHandler) AppendVersion(w http.ResponseWriter, r *http.Request) {
	reqID, ok := pathID(w, r, "requirementID")
	if !ok {
		return
	}
	var req versionFieldsRequest
	if !decodeJSON(w, r, h.Logger, "AppendVersion", &req) {
		return
	}
	v, err := h.Requirements.AppendVersion(r.Context(), reqID, userID(r), req.fields())
	if err != nil {
		writeError(w, h.Logger, "AppendVersion", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *RequirementHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	reqID, ok := pathID(w, r, "requirementID")
	if !ok {
		return
	}
	entries, err := h.History.Timeline(r.Context(), reqID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "Timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *RequirementHandler) SoftDelete(w http.ResponseWriter, r *http.Request) {
	reqID, ok := pathID(w, r, "requirementID")
	if !ok {
		return
	}
	if err := h.Requirements.SoftDelete(r.Context(), reqID, userID(r)); err != nil {
		writeError(w, h.Logger, "SoftDelete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RequirementHandler) Restore(w http.ResponseWriter, r *http.Request) {
	reqID, ok := pathID(w, r, "requirementID")
	if !ok {
		return
	}
	if err := h.Requirements.Restore(r.Context(), reqID, userID(r)); err != nil {
		writeError(w, h.Logger, "Restore", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RequirementHandler) PermanentlyDelete(w http.ResponseWriter, r *http.Request) {
	reqID, ok := pathID(w, r, "requirementID")
	if !ok {
		return
	}
	if err := h.Requirements.PermanentlyDelete(r.Context(), reqID, userID(r)); err != nil {
		writeError(w, h.Logger, "PermanentlyDelete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
