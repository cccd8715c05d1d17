package minio

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/dl-alexandre/ghimg/internal/errors"
	miniogo "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errors.RemoteFetchError so
// the engines treat both backends alike.
func mapError(err error, path, msg string) *errors.RemoteFetchError {
	if err == nil {
		return nil
	}
	return errors.NewRemoteFetchError(path, statusOf(err), msg, err)
}

// statusOf derives an HTTP-like status for err; 0 means no response
func statusOf(err error) int {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return 0
	}

	var resp miniogo.ErrorResponse
	if stderrors.As(err, &resp) {
		if resp.StatusCode >= 300 {
			return resp.StatusCode
		}

		// S3 error codes that may arrive with 200-range status
		switch resp.Code {
		case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
			return http.StatusNotFound
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return http.StatusForbidden
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
			return http.StatusBadRequest
		case "SlowDown":
			return http.StatusServiceUnavailable
		case "RequestTimeout":
			return http.StatusRequestTimeout
		}
	}

	return 0
}
