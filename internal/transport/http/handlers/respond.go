package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vedran77/spark/pkg/apperr"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// writeAppError answers with the status and code carried by err. Errors
// without a code are logged and hidden behind a generic message.
func writeAppError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.CodeUnknown || code == apperr.CodeInternal {
		logger.Error(op+" failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, string(apperr.CodeInternal), "Something went wrong")
		return
	}
	if code == apperr.CodeUnavailable {
		logger.Warn(op+" unavailable", zap.Error(err))
	}
	writeJSON(w, apperr.HTTPStatus(code), map[string]any{
		"error": map[string]string{
			"code":    string(code),
			"message": apperr.MessageOf(err),
		},
	})
}
