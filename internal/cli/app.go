package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dl-alexandre/ghimg/internal/cache"
	"github.com/dl-alexandre/ghimg/internal/config"
	"github.com/dl-alexandre/ghimg/internal/errors"
	"github.com/dl-alexandre/ghimg/internal/exclude"
	"github.com/dl-alexandre/ghimg/internal/files"
	"github.com/dl-alexandre/ghimg/internal/folders"
	"github.com/dl-alexandre/ghimg/internal/history"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/metrics"
	"github.com/dl-alexandre/ghimg/internal/search"
	"github.com/dl-alexandre/ghimg/internal/store"
	"github.com/dl-alexandre/ghimg/internal/transfer"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
)

// app is the set of engines one command works with
type app struct {
	cfg      *config.Config
	reqCtx   *types.RequestContext
	client   store.TreeClient
	caches   *cache.Set
	search   *search.Engine
	folders  *folders.Manager
	files    *files.Manager
	transfer *transfer.Engine
}

// newTreeClient builds the remote backend. Tests replace it.
var newTreeClient = func(ctx context.Context, cfg *config.Config, flags types.GlobalFlags, logger logging.Logger) (store.TreeClient, error) {
	var transport http.RoundTripper
	if httpDebug != nil {
		transport = httpDebug
	}

	token := ""
	if cfg.Backend == config.BackendGitHub {
		var source string
		token, source = newAuthManager().ResolveToken(flags.Profile, flags.Token)
		logger.Debug("Resolved GitHub token", logging.F("source", source))
	}

	return store.New(ctx, cfg, store.Options{
		Token:     token,
		Transport: transport,
		Logger:    logger,
		Observer:  metrics.Observer{},
	})
}

// loadConfig reads the config file and applies the global flag overrides
func loadConfig(flags types.GlobalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
	}
	if flags.Owner != "" {
		cfg.Owner = flags.Owner
	}
	if flags.Repository != "" {
		cfg.Repository = flags.Repository
	}
	if flags.Ref != "" {
		cfg.Ref = flags.Ref
	}
	if flags.Backend != "" {
		cfg.Backend = flags.Backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
	}
	return cfg, nil
}

// newApp loads configuration and wires the remote client, caches and engines
func newApp(ctx context.Context, out *OutputWriter) (*app, error) {
	flags := GetGlobalFlags()
	log := GetLogger().WithTraceID(out.TraceID())

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	client, err := newTreeClient(ctx, cfg, flags, log)
	if err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).
			WithContext("backend", cfg.Backend).
			Build(), err)
	}

	caches := cache.NewSet(cache.SetConfig{
		Search:        cache.Settings(cfg.SearchCache()),
		Objects:       cache.Settings(cfg.ObjectCache()),
		Listings:      cache.Settings(cfg.ListingCache()),
		SweepInterval: cfg.GetCleanupInterval(),
	}, log, cache.WithObserver(metrics.Observer{}))

	a := &app{
		cfg:    cfg,
		client: client,
		caches: caches,
		reqCtx: &types.RequestContext{
			Backend:    cfg.Backend,
			Owner:      cfg.Owner,
			Repository: cfg.Repository,
			TraceID:    out.TraceID(),
		},
	}

	skip := search.WithExclude(exclude.New(cfg.ExcludePatterns))
	var objects *cache.Cache[[]byte]
	if flags.NoCache {
		a.search = search.NewEngine(client, nil, log, skip)
	} else {
		a.search = search.NewEngineFromSet(client, caches, log, skip)
		objects = caches.Objects
	}
	a.folders = folders.NewManager(a.search, log)
	a.files = files.NewManager(client, a.search, objects, log)
	a.transfer = transfer.New(client, transfer.Options{
		Concurrency:      cfg.TransferConcurrency,
		CompressionLevel: cfg.CompressionLevel,
		Logger:           log,
		Observer:         metrics.Observer{},
	})
	return a, nil
}

// openHistory opens the search history database named by cfg
func openHistory(ctx context.Context, cfg *config.Config) (*history.Store, func() error, error) {
	path, err := cfg.GetHistoryPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := history.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return history.NewStore(db), db.Close, nil
}

// handleError writes err as a structured CLI error and returns the exit
// status for it.
func handleError(out *OutputWriter, command string, reqCtx *types.RequestContext, err error) error {
	appErr := errors.Classify(err, reqCtx, GetLogger())
	if werr := out.WriteError(command, appErr.CLIError); werr != nil {
		return werr
	}
	return &exitError{code: utils.GetExitCode(appErr.CLIError.Code), err: appErr}
}

func getConfigDir() string {
	dir, err := config.GetConfigDir()
	if err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, config.ConfigDirName)
}
