package logging

import (
	"net/http"
	"time"
)

// DebugTransport logs method, URL, status and latency of each request
type DebugTransport struct {
	Base   http.RoundTripper
	Logger Logger
}

// NewDebugTransport wraps base. A nil base uses http.DefaultTransport.
func NewDebugTransport(base http.RoundTripper, logger Logger) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{Base: base, Logger: logger}
}

// RoundTrip implements http.RoundTripper
func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := t.Logger.WithContext(req.Context())
	start := time.Now()

	logger.Debug("HTTP request",
		F("method", req.Method),
		F("url", redactSensitiveData(req.URL.String())),
	)

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		logger.Debug("HTTP request failed",
			F("method", req.Method),
			F("url", redactSensitiveData(req.URL.String())),
			F("duration_ms", duration.Milliseconds()),
			F("error", err),
		)
		return nil, err
	}

	fields := []Field{
		F("method", req.Method),
		F("status", resp.StatusCode),
		F("duration_ms", duration.Milliseconds()),
	}
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining != "" {
		fields = append(fields, F("rate_limit_remaining", remaining))
	}
	logger.Debug("HTTP response", fields...)

	return resp, nil
}
