package errors

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

// Classify converts engine and remote errors to CLI errors. Errors that are
// already *utils.AppError pass through unchanged.
func Classify(err error, reqCtx *types.RequestContext, logger logging.Logger) *utils.AppError {
	if err == nil {
		return nil
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if reqCtx == nil {
		reqCtx = &types.RequestContext{}
	}

	var appErr *utils.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, context.Canceled):
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeCancelled, "operation cancelled").
			WithContext("traceId", reqCtx.TraceID).
			Build(), err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeTimeout, "operation timed out").
			WithRetryable(true).
			WithContext("traceId", reqCtx.TraceID).
			Build(), err)
	case stderrors.Is(err, ErrNoTasks):
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeNoTasks, err.Error()).
			WithContext("suggestedAction", "select at least one file to download").
			Build(), err)
	}

	var allFailed *AllItemsFailedError
	if stderrors.As(err, &allFailed) {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAllItemsFailed, err.Error()).
			WithContext("failed", allFailed.Failed).
			WithContext("total", allFailed.Total).
			WithContext("suggestedAction", "check connectivity and that the files still exist").
			Build(), err)
	}

	var invalid *InvalidFilterError
	if stderrors.As(err, &invalid) {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidFilter, err.Error()).
			WithContext("field", invalid.Field).
			Build(), err)
	}

	rf, ok := AsRemoteFetch(err)
	if !ok {
		logger.Error("Unclassified error",
			logging.F("error", err.Error()),
			logging.F("traceId", reqCtx.TraceID),
		)
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeUnknown, err.Error()).
			WithContext("traceId", reqCtx.TraceID).
			Build(), err)
	}

	return classifyRemote(rf, reqCtx, logger)
}

func classifyRemote(rf *RemoteFetchError, reqCtx *types.RequestContext, logger logging.Logger) *utils.AppError {
	var code string
	var retryable bool

	switch rf.StatusCode {
	case 0:
		code = utils.ErrCodeNetworkError
		retryable = true
	case 400:
		code = utils.ErrCodeInvalidArgument
	case 401:
		code = utils.ErrCodeAuthExpired
	case 403:
		code = utils.ErrCodePermissionDenied
		if strings.Contains(strings.ToLower(rf.Message), "rate limit") {
			code = utils.ErrCodeRateLimited
			retryable = true
		}
	case 404:
		code = utils.ErrCodeFileNotFound
	case 409, 422:
		code = utils.ErrCodeConflict
	case 429:
		code = utils.ErrCodeRateLimited
		retryable = true
	case 500, 502, 503, 504:
		code = utils.ErrCodeNetworkError
		retryable = true
	default:
		code = utils.ErrCodeUnknown
		retryable = rf.StatusCode >= 500
	}

	logger.Error("Remote error classified",
		logging.F("httpStatus", rf.StatusCode),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("path", rf.Path),
		logging.F("traceId", reqCtx.TraceID),
		logging.F("backend", reqCtx.Backend),
	)

	message := rf.Message
	if message == "" {
		message = rf.Error()
	}

	builder := utils.NewCLIError(code, message).
		WithHTTPStatus(rf.StatusCode).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType))
	if rf.Path != "" {
		builder.WithContext("path", rf.Path)
	}

	switch code {
	case utils.ErrCodeAuthExpired:
		builder.WithContext("suggestedAction", "run 'ghimg auth set-token' with a valid token")
	case utils.ErrCodePermissionDenied:
		builder.WithContext("suggestedAction", "check the token has read access to the repository")
	case utils.ErrCodeFileNotFound:
		builder.WithContext("suggestedAction", "verify owner, repository and path are correct")
	case utils.ErrCodeRateLimited:
		builder.WithContext("suggestedAction", "rate limit exceeded, wait before retrying")
	case utils.ErrCodeNetworkError:
		builder.WithContext("suggestedAction", "temporary failure, retry later")
	}

	return utils.WrapAppError(builder.Build(), rf)
}
