package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jobmate/backend/internal/apperr"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondAppError 按错误类型映射状态码并发送错误响应
func RespondAppError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	RespondJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(apperr.KindOf(err)),
	})
}

// StatusFor 返回错误类型对应的 HTTP 状态码
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.InvalidRequest, apperr.InvalidTarget:
		return http.StatusBadRequest
	case apperr.NoReadableText:
		return http.StatusUnprocessableEntity
	case apperr.MalformedOutput:
		return http.StatusBadGateway
	case apperr.ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
