package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDebugTransport_LogsRequestAndResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := NewConsoleLogger(ConsoleLoggerConfig{Writer: &buf, Level: DEBUG})
	client := &http.Client{Transport: NewDebugTransport(nil, logger)}

	resp, err := client.Get(srv.URL + "/repos/o/r/contents/img?access_token=shh")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	out := buf.String()
	if !strings.Contains(out, "HTTP request") || !strings.Contains(out, "HTTP response") {
		t.Errorf("expected request and response lines, got %q", out)
	}
	if !strings.Contains(out, "4999") {
		t.Errorf("expected rate limit remaining in output, got %q", out)
	}
	if strings.Contains(out, "shh") {
		t.Errorf("query token leaked: %q", out)
	}
}
