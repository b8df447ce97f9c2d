package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cafe-order-service/internal/domain"
	"cafe-order-service/internal/middleware"
	"cafe-order-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

var errMissingParam = errors.New("missing param")

// pathID reads an integer path param and answers 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := readPathInt64(r, key)
	if err != nil || id <= 0 {
		response.Error(w, http.StatusBadRequest, string(domain.ErrValidation), "Invalid "+key)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Error(w, http.StatusBadRequest, string(domain.ErrValidation), "Invalid request body")
		return false
	}
	return true
}

func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetSessionID(r.Context())
	if !ok {
		response.Error(w, http.StatusBadRequest, string(domain.ErrValidation), "Session cookie required")
		return "", false
	}
	return id, true
}

// writeError answers domain errors with their own status and code; anything
// else is logged and reported as INTERNAL_ERROR.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := domain.AsError(err); ok {
		response.ErrorWithDetails(w, de.StatusCode, string(de.Code), de.Message, de.Details)
		return
	}
	h.Logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("requestId", r.Header.Get("X-Request-Id")),
		zap.Error(err),
	)
	response.Error(w, http.StatusInternalServerError, string(domain.ErrInternal), "Internal server error")
}
