package handlers

import (
	"ReqKeeper/internal/service"
	"net/http"

	"go.uber.org/zap"
)

type NotificationHandler struct {
	Notifications *service.NotificationService
	Logger        *zap.SugaredLogger
}

// List отдаёт страницу уведомлений (?page=&per_page=&unread=1)
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.Notifications.List(r.Context(), userID(r),
		queryInt(r, "page", 1), queryInt(r, "per_page", 20), queryBool(r, "unread"))
	if err != nil {
		writeError(w, h.Logger, "ListNotifications", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notifications.UnreadCount(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.Logger, "UnreadCount", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "notificationID")
	if !ok {
		return
	}
	if err := h.Notifications.MarkRead(r.Context(), id, userID(r)); err != nil {
		writeError(w, h.Logger, "MarkRead", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notifications.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.Logger, "MarkAllRead", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}
