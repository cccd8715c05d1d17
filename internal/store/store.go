// Package store defines the remote tree contract consumed by the search,
// folder, file and transfer engines, and builds the configured backend.
package store

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dl-alexandre/ghimg/internal/api"
	"github.com/dl-alexandre/ghimg/internal/config"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/store/minio"
	"github.com/dl-alexandre/ghimg/internal/types"
)

// TreeClient fetches directory listings and raw object bytes from a remote
// tree. Failures are *errors.RemoteFetchError.
type TreeClient interface {
	ListDirectory(ctx context.Context, path string) ([]*types.Entry, error)
	FetchBytes(ctx context.Context, ref string) ([]byte, error)
}

// Options carries what a backend needs beyond the config file
type Options struct {
	Token     string
	Transport http.RoundTripper
	Logger    logging.Logger
	Observer  types.RequestObserver
}

// New builds the backend selected by cfg.Backend
func New(ctx context.Context, cfg *config.Config, opts Options) (TreeClient, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}

	switch cfg.Backend {
	case config.BackendGitHub, "":
		if cfg.Owner == "" || cfg.Repository == "" {
			return nil, fmt.Errorf("github backend requires owner and repository (set --owner/--repo or GHIMG_OWNER/GHIMG_REPOSITORY)")
		}
		return api.NewClient(api.Options{
			BaseURL:           cfg.APIBaseURL,
			Owner:             cfg.Owner,
			Repository:        cfg.Repository,
			Ref:               cfg.Ref,
			Token:             opts.Token,
			Transport:         opts.Transport,
			Timeout:           cfg.GetRequestTimeout(),
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.GetRetryBaseDelay(),
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            opts.Logger,
			Observer:          opts.Observer,
		}), nil
	case config.BackendMinio:
		drv, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
			UseSSL:    cfg.Minio.UseSSL,
		}, opts.Logger, opts.Observer)
		if err != nil {
			return nil, err
		}
		return drv, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}
