package cli

import (
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search, browsing and downloads over HTTP",
	Long: `Serve starts an HTTP API in front of the configured repository.
Caches live for the lifetime of the server and are swept periodically.
Prometheus metrics are exposed on /metrics.`,
	RunE: runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := newOutput(cmd)

	a, err := newApp(ctx, out)
	if err != nil {
		return handleError(out, "serve", nil, err)
	}

	a.caches.Start(ctx)
	defer func() { _ = a.caches.Close() }()

	deps := server.Deps{
		Search:   a.search,
		Folders:  a.folders,
		Files:    a.files,
		Transfer: a.transfer,
		Caches:   a.caches,
		Logger:   GetLogger(),
	}

	hist, closeDB, err := openHistory(ctx, a.cfg)
	if err != nil {
		GetLogger().Warn("Search history disabled", logging.F("error", err.Error()))
	} else {
		defer func() { _ = closeDB() }()
		deps.History = hist
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.ServerAddr
	}
	out.Log("Serving %s/%s on http://%s", a.cfg.Owner, a.cfg.Repository, addr)

	if err := server.New(deps).ListenAndServe(ctx, addr); err != nil {
		return handleError(out, "serve", a.reqCtx, err)
	}
	return nil
}
