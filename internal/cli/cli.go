package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/opencall-events/internal/config"
	"github.com/pfrederiksen/opencall-events/internal/event"
	"github.com/pfrederiksen/opencall-events/internal/logger"
	"github.com/pfrederiksen/opencall-events/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitInvalid reports input rejected by validation.
	ExitInvalid = 2
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	format     string
	verbose    bool

	cfg     *config.Config
	log     *logger.Logger
	metrics *logger.Metrics
	stderr  io.Writer
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	cmd := &cobra.Command{
		Use:   "opencall",
		Short: "Collect and analyse art open-call events",
		Long: `A CLI tool to fetch open-call pages, reduce them to the relevant text,
and keep the resulting events, fee tiers and prizes in a local database.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.writeMetrics()
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&a.format, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		a.newFetchCmd(),
		a.newLinksCmd(),
		a.newEventsCmd(),
		a.newFeesCmd(),
		a.newPrizesCmd(),
		a.newReportCmd(),
		a.newStatsCmd(),
		a.newSchemaCmd(),
		a.newMaintainCmd(),
	)

	return cmd
}

// setup validates global flags, loads configuration and installs the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(a.format))
	if format != FormatText && format != FormatJSON {
		return &event.ValidationError{Op: "flags", Err: fmt.Errorf("invalid format: %s (must be 'text' or 'json')", a.format)}
	}
	a.format = string(format)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := logger.ParseLevel(cfg.LogLevel)
	if a.verbose {
		level = logger.LevelDebug
	}
	a.log = logger.New(level, a.stderr)
	logger.SetDefault(a.log)

	a.metrics = logger.NewMetrics()
	logger.SetDefaultMetrics(a.metrics)

	a.log.Debug("configuration loaded", logger.Fields{
		"command":  cmd.CommandPath(),
		"database": cfg.Database.Driver,
	})
	return nil
}

func (a *app) writeMetrics() error {
	if a.verbose && a.metrics != nil {
		a.log.Debug("run metrics", logger.Fields{"metrics": a.metrics.GetSnapshot()})
	}
	if a.cfg == nil || a.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(*storage.Store) error) error {
	store, err := storage.Open(ctx, a.cfg.Database, storage.WithLogger(a.log), storage.WithMetrics(a.metrics))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Warn("closing store", logger.Fields{"error": err.Error()})
		}
	}()
	return fn(store)
}

// output renders v as JSON, or with text when the format is text.
func (a *app) output(cmd *cobra.Command, v interface{}, text func(io.Writer) error) error {
	if err := WriteOutput(cmd.OutOrStdout(), OutputFormat(a.format), v, text); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// ExitCode maps an error returned by a command to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, event.ErrValidation):
		return ExitInvalid
	default:
		return ExitError
	}
}

// Execute runs the CLI
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}
