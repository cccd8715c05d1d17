package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dl-alexandre/ghimg/internal/cache"
	"github.com/dl-alexandre/ghimg/internal/transfer"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ cache.Observer    = Observer{}
	_ transfer.Observer = Observer{}
)

func TestObserver_Requests(t *testing.T) {
	before := testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("github", "200"))
	beforeErr := testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("github", "error"))

	Observer{}.ObserveRequest("github", 200, 20*time.Millisecond)
	Observer{}.ObserveRequest("github", 0, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("github", "200")))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(remoteRequestsTotal.WithLabelValues("github", "error")))
}

func TestObserver_Cache(t *testing.T) {
	c := cache.New[int](4, time.Minute, cache.WithName("metrics-test"), cache.WithObserver(Observer{}))

	c.Set("a", 1)
	c.Get("a")
	c.Get("b")

	assert.Equal(t, 1.0, testutil.ToFloat64(cacheHitsTotal.WithLabelValues("metrics-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cacheMissesTotal.WithLabelValues("metrics-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cacheEntries.WithLabelValues("metrics-test")))
}

func TestObserver_Transfer(t *testing.T) {
	before := testutil.ToFloat64(transferBytesTotal)
	failedBefore := testutil.ToFloat64(transferItemsTotal.WithLabelValues(string(types.TaskFailed)))

	Observer{}.ObserveTask(types.TaskSucceeded, 100)
	Observer{}.ObserveTask(types.TaskFailed, 0)

	assert.Equal(t, before+100, testutil.ToFloat64(transferBytesTotal))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(transferItemsTotal.WithLabelValues(string(types.TaskFailed))))
}

func TestHandler(t *testing.T) {
	RecordHTTPRequest("GET", "/api/v1/search", 200, time.Millisecond)
	RecordSearch(time.Millisecond, 3)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "ghimg_http_requests_total")
	assert.Contains(t, string(body), "ghimg_search_duration_seconds")
}
