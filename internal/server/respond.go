package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err the same way the CLI does and answers with the
// CLI error shape
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqCtx := &types.RequestContext{TraceID: logging.TraceIDFromContext(r.Context())}
	appErr := errors.Classify(err, reqCtx, s.logger)
	writeJSON(w, statusFor(appErr.CLIError), map[string]interface{}{
		"error": appErr.CLIError,
	})
}

// statusFor maps a CLI error code to an HTTP status
func statusFor(e types.CLIError) int {
	switch e.Code {
	case utils.ErrCodeInvalidArgument, utils.ErrCodeInvalidFilter, utils.ErrCodeInvalidPath, utils.ErrCodeNoTasks:
		return http.StatusBadRequest
	case utils.ErrCodeAuthRequired, utils.ErrCodeAuthExpired:
		return http.StatusUnauthorized
	case utils.ErrCodePermissionDenied:
		return http.StatusForbidden
	case utils.ErrCodeFileNotFound:
		return http.StatusNotFound
	case utils.ErrCodeConflict:
		return http.StatusConflict
	case utils.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case utils.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case utils.ErrCodeAllItemsFailed, utils.ErrCodeNetworkError:
		return http.StatusBadGateway
	case utils.ErrCodeCancelled:
		// client closed request
		return 499
	}
	return http.StatusInternalServerError
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
