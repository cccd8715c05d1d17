package api

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// BackendName identifies this client in logs and metrics
const BackendName = "github"

// Options configures a Client
type Options struct {
	BaseURL    string
	Owner      string
	Repository string
	Ref        string
	// Token is optional; anonymous access is limited to public repositories
	Token string
	// Transport is the base round tripper (debug transport, tests)
	Transport         http.RoundTripper
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	Logger            logging.Logger
	Observer          types.RequestObserver
}

// Client reads a GitHub repository through the contents API with retry logic
// and client-side rate limiting
type Client struct {
	http       *http.Client
	baseURL    string
	owner      string
	repo       string
	ref        string
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     logging.Logger
	observer   types.RequestObserver
}

// NewClient creates a new GitHub contents client
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = utils.GitHubAPIBase
	}
	if !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = utils.DefaultRequestTimeout
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Duration(utils.DefaultRetryDelayMs) * time.Millisecond
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var transport http.RoundTripper = base
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   base,
		}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(math.Ceil(opts.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		http:       &http.Client{Transport: transport, Timeout: opts.Timeout},
		baseURL:    opts.BaseURL,
		owner:      opts.Owner,
		repo:       opts.Repository,
		ref:        opts.Ref,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		limiter:    limiter,
		logger:     opts.Logger,
		observer:   opts.Observer,
	}
}

// NewRequestContext creates a new request context with trace ID
func NewRequestContext(backend, owner, repo, path string, requestType types.RequestType) *types.RequestContext {
	return &types.RequestContext{
		Backend:     backend,
		Owner:       owner,
		Repository:  repo,
		Path:        path,
		RequestType: requestType,
		TraceID:     uuid.New().String(),
	}
}

// ExecuteWithRetry executes a remote call with retry logic. The error
// returned after the last attempt is the call's own error, so callers keep
// access to the RemoteFetchError.
func ExecuteWithRetry[T any](ctx context.Context, client *Client, reqCtx *types.RequestContext, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	logger := client.logger.WithTraceID(reqCtx.TraceID)
	logger.Debug("API operation starting",
		logging.F("requestType", reqCtx.RequestType),
		logging.F("path", reqCtx.Path),
		logging.F("repository", reqCtx.Owner+"/"+reqCtx.Repository),
	)

	start := time.Now()

	for attempt := 0; attempt <= client.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying API operation",
				logging.F("attempt", attempt),
				logging.F("maxRetries", client.maxRetries),
			)
		}

		if client.limiter != nil {
			if err := client.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return result, ctxErr
				}
				return result, err
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			logger.Debug("API operation completed",
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("attempts", attempt+1),
			)
			return result, nil
		}

		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if !isRetryable(lastErr) {
			logger.Debug("API operation failed (non-retryable)",
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("error", lastErr.Error()),
				logging.F("attempts", attempt+1),
			)
			return result, lastErr
		}

		if attempt < client.maxRetries {
			delay := calculateBackoff(client.retryDelay, attempt, lastErr)
			logger.Warn("API operation failed (retryable)",
				logging.F("attempt", attempt+1),
				logging.F("delay_ms", delay.Milliseconds()),
				logging.F("error", lastErr.Error()),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			case <-timer.C:
			}
		}
	}

	logger.Error("API operation failed after max retries",
		logging.F("duration_ms", time.Since(start).Milliseconds()),
		logging.F("attempts", client.maxRetries+1),
		logging.F("error", lastErr.Error()),
	)

	return result, lastErr
}

// isRetryable checks if an error is retryable
func isRetryable(err error) bool {
	if rf, ok := errors.AsRemoteFetch(err); ok {
		return rf.IsRetryable()
	}
	return false
}

// calculateBackoff calculates the retry delay with exponential backoff
func calculateBackoff(baseDelay time.Duration, attempt int, err error) time.Duration {
	maxDelay := time.Duration(utils.MaxRetryDelayMs) * time.Millisecond

	if rf, ok := errors.AsRemoteFetch(err); ok && rf.RetryAfter > 0 {
		if rf.RetryAfter > maxDelay {
			return maxDelay
		}
		return rf.RetryAfter
	}

	// Exponential backoff: base * 2^attempt
	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxDelay {
		delay = maxDelay
	}

	// Add jitter (±25% of delay)
	jitterRange := delay / 4
	if jitterRange > 0 {
		jitter := time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
		delay += jitter
	}

	if delay < 0 {
		delay = baseDelay
	}

	return delay
}
