package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dl-alexandre/ghimg/internal/config"
	"github.com/dl-alexandre/ghimg/internal/logging"
	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/dl-alexandre/ghimg/internal/utils"
	"github.com/dl-alexandre/ghimg/pkg/version"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	globalFlags types.GlobalFlags
	logger      logging.Logger = logging.NewNoOpLogger()
	// httpDebug is set when --debug asks for request tracing
	httpDebug *logging.DebugTransport
)

var rootCmd = &cobra.Command{
	Use:   "ghimg",
	Short: "Search and download images stored in a GitHub repository",
	Long: `ghimg browses a GitHub repository (or an S3-compatible bucket) as an
image library. It searches by name, extension, size and date, shows folder
trees, downloads single files and packages many files into one zip archive.

All commands support JSON output for automation and scripting.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("output") && !globalFlags.JSON {
			if cfg, err := config.Load(globalFlags.Config); err == nil {
				globalFlags.OutputFormat = cfg.DefaultOutputFormat
			}
		}

		if err := validateGlobalFlags(); err != nil {
			return err
		}

		// Initialize logging
		logConfig := logging.LogConfig{
			Level:           logging.INFO,
			OutputFile:      globalFlags.LogFile,
			EnableConsole:   !globalFlags.Quiet,
			EnableDebug:     globalFlags.Debug,
			RedactSensitive: true,
			EnableColor:     true,
			EnableTimestamp: true,
			ConsoleWriter:   cmd.ErrOrStderr(),
		}
		if globalFlags.Verbose || globalFlags.Debug {
			logConfig.Level = logging.DEBUG
		}
		if globalFlags.OutputFormat == types.OutputFormatJSON && !globalFlags.Verbose && !globalFlags.Debug {
			logConfig.EnableConsole = false
		}

		var err error
		logger, httpDebug, err = logging.NewDebugLoggerWithTransport(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// One trace ID per invocation ties log lines, HTTP debug output and
		// the response envelope together
		cmd.SetContext(logging.ContextWithTraceID(cmd.Root().Context(), uuid.New().String()))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "Print the version number of ghimg",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := newOutput(cmd)
		if globalFlags.OutputFormat == types.OutputFormatJSON {
			return out.WriteSuccess("version", version.Get())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Owner, "owner", "", "Repository owner (overrides config)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Repository, "repo", "", "Repository name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Ref, "ref", "", "Branch, tag or commit to browse")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Backend, "backend", "", "Remote backend (github, minio)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Profile, "profile", "default", "Token profile to use")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Token, "token", "", "GitHub token (overrides stored credentials)")
	rootCmd.PersistentFlags().StringVar((*string)(&globalFlags.OutputFormat), "output", "json", "Output format (json, table)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "Log every remote request")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.NoCache, "no-cache", false, "Bypass listing and object caches")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format (alias for --output json)")

	rootCmd.AddCommand(versionCmd)
}

func validateGlobalFlags() error {
	// Handle --json flag as alias for --output json
	if globalFlags.JSON {
		globalFlags.OutputFormat = types.OutputFormatJSON
	}

	if globalFlags.OutputFormat != types.OutputFormatJSON && globalFlags.OutputFormat != types.OutputFormatTable {
		return fmt.Errorf("invalid output format: %s", globalFlags.OutputFormat)
	}
	return nil
}

// exitError carries the process exit code of a command whose error has
// already been written to the output.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// Execute runs the root command and returns the process exit code.
// SIGINT and SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return exitCode(rootCmd.ExecuteContext(ctx), rootCmd)
}

func exitCode(err error, cmd *cobra.Command) int {
	if err == nil {
		return utils.ExitSuccess
	}
	var ee *exitError
	if stderrors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return utils.ExitInvalidArgument
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() types.GlobalFlags {
	return globalFlags
}

// GetLogger returns the global logger
func GetLogger() logging.Logger {
	return logger
}

func newOutput(cmd *cobra.Command) *OutputWriter {
	w := NewOutputWriter(cmd.OutOrStdout(), cmd.ErrOrStderr(), globalFlags.OutputFormat, globalFlags.Quiet, globalFlags.Verbose)
	if traceID := logging.TraceIDFromContext(cmd.Context()); traceID != "" {
		w.traceID = traceID
	}
	return w
}
