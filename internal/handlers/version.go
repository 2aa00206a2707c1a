package handlers

import (
	"ReqKeeper/internal/model"
	"ReqKeeper/internal/service"
	"net/http"

	"go.uber.org/zap"
)

// VersionHandler отвечает за правку, блокировку и историю версии.
type VersionHandler struct {
	Requirements *service.RequirementService
	Blocking     *service.BlockingService
	History      *service.HistoryService
	Logger       *zap.SugaredLogger
}

type versionUpdateRequest struct {
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Status       string            `json:"status"`
	SaveType     string            `json:"save_type"`
	Custom       map[string]string `json:"custom_data"`
	Quantifiable *bool             `json:"is_quantifiable,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type customValueRequest struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

type updateResponse struct {
	Version  *model.RequirementVersion `json:"version"`
	Changes  map[string]string         `json:"changes"`
	Appended bool                      `json:"appended"`
	Policy   service.EditPolicy        `json:"policy"`
}

func (h *VersionHandler) writeUpdate(w http.ResponseWriter, res *service.UpdateResult) {
	changes := res.Changes
	if changes == nil {
		changes = map[string]string{}
	}
	writeJSON(w, http.StatusOK, updateResponse{
		Version:  res.Version,
		Changes:  changes,
		Appended: res.Appended,
		Policy:   h.Requirements.Policy(),
	})
}

// Update сохраняет форму редактирования (intermediate/final)
func (h *VersionHandler) Update(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	var req versionUpdateRequest
	if !decodeJSON(w, r, h.Logger, "UpdateVersion", &req) {
		return
	}
	res, err := h.Requirements.UpdateVersion(r.Context(), versionID, userID(r), service.VersionUpdate{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Status:       req.Status,
		SaveType:     service.SaveType(req.SaveType),
		Custom:       req.Custom,
		Quantifiable: req.Quantifiable,
	})
	if err != nil {
		writeError(w, h.Logger, "UpdateVersion", err)
		return
	}
	h.writeUpdate(w, res)
}

func (h *VersionHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, h.Logger, "SetStatus", &req) {
		return
	}
	res, err := h.Requirements.SetStatus(r.Context(), versionID, userID(r), req.Status)
	if err != nil {
		writeError(w, h.Logger, "SetStatus", err)
		return
	}
	h.writeUpdate(w, res)
}

func (h *VersionHandler) SetCustomValue(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	var req customValueRequest
	if !decodeJSON(w, r, h.Logger, "SetCustomValue", &req) {
		return
	}
	res, err := h.Requirements.SetCustomValue(r.Context(), versionID, userID(r), req.Column, req.Value)
	if err != nil {
		writeError(w, h.Logger, "SetCustomValue", err)
		return
	}
	h.writeUpdate(w, res)
}

func (h *VersionHandler) ToggleQuantifiable(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	res, err := h.Requirements.ToggleQuantifiable(r.Context(), versionID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "ToggleQuantifiable", err)
		return
	}
	h.writeUpdate(w, res)
}

// Delete удаляет версию; последняя версия уводит требование в корзину
func (h *VersionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	softDeleted, err := h.Requirements.DeleteVersion(r.Context(), versionID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "DeleteVersion", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"requirement_deleted": softDeleted})
}

func (h *VersionHandler) Block(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	v, err := h.Blocking.Block(r.Context(), versionID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "Block", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VersionHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	v, err := h.Blocking.Unblock(r.Context(), versionID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "Unblock", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VersionHandler) CanEdit(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	can, err := h.Blocking.CanEdit(r.Context(), versionID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "CanEdit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"can_edit": can})
}

func (h *VersionHandler) VersionHistory(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	entries, err := h.History.VersionHistory(r.Context(), versionID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "VersionHistory", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
