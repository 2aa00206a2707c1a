package handlers

import (
	"ReqKeeper/internal/service"
	"net/http"

	"go.uber.org/zap"
)

// CommentHandler обслуживает обсуждение версий.
type CommentHandler struct {
	Comments *service.CommentService
	Logger   *zap.SugaredLogger
}

type commentRequest struct {
	Text     string `json:"text"`
	ParentID *int64 `json:"parent_comment_id,omitempty"`
}

func (h *CommentHandler) Thread(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	thread, err := h.Comments.ListThread(r.Context(), versionID, userID(r))
	if err != nil {
		writeError(w, h.Logger, "ListThread", err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	versionID, ok := pathID(w, r, "versionID")
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, h.Logger, "AddComment", &req) {
		return
	}
	c, err := h.Comments.Add(r.Context(), versionID, userID(r), req.Text, req.ParentID)
	if err != nil {
		writeError(w, h.Logger, "AddComment", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CommentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, h.Logger, "EditComment", &req) {
		return
	}
	c, err := h.Comments.Edit(r.Context(), commentID, userID(r), req.Text)
	if err != nil {
		writeError(w, h.Logger, "EditComment", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	if err := h.Comments.SoftDelete(r.Context(), commentID, userID(r)); err != nil {
		writeError(w, h.Logger, "DeleteComment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MentionSuggestions отдаёт участников проекта для автодополнения (?q=)
func (h *CommentHandler) MentionSuggestions(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	list, err := h.Comments.MentionSuggestions(r.Context(), projectID, userID(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.Logger, "MentionSuggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
