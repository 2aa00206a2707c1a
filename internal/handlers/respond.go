package handlers

import (
	"ReqKeeper/internal/middleware"
	"ReqKeeper/internal/service"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// тело ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeError переводит ошибку сервиса в HTTP-статус. Неизвестные ошибки отдаются как 500 и пишутся в лог.
func writeError(w http.ResponseWriter, logger *zap.SugaredLogger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEditForbidden):
		writeErrorCode(w, http.StatusForbidden, "edit_forbidden", err.Error())
	case errors.Is(err, service.ErrAccessDenied):
		writeErrorCode(w, http.StatusForbidden, "access_denied", err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrValidation):
		writeErrorCode(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, service.ErrConcurrentVersionConflict):
		writeErrorCode(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		writeErrorCode(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeErrorCode(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	default:
		logger.Errorw(op+": service error", "error", err)
		writeErrorCode(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decodeJSON читает тело запроса; при ошибке сам отвечает 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger, op string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warnw(op+": invalid request body", "error", err)
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

// pathID разбирает числовой параметр маршрута; при ошибке отвечает 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeErrorCode(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return 0, false
	}
	return id, true
}

// userID из контекста; маршруты за RequireAuth всегда его имеют.
func userID(r *http.Request) int64 {
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	return uid
}

func queryInt(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil {
		return v
	}
	return def
}

func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
