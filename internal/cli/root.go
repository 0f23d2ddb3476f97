// Package cli implements the clicktrail command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/config"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/metrics"
	"github.com/alexanderramin/clicktrail/internal/service"
	"github.com/alexanderramin/clicktrail/internal/store"
	"github.com/spf13/cobra"
)

// Runtime is everything a command needs once the configuration is known.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Reports service.ReportService
	Metrics *metrics.Metrics

	// Analysis builds an analysis service for the given LLM settings. Flags
	// may override the configured provider and model, so it is built per
	// command.
	Analysis func(cfg llm.Config) (service.AnalysisService, error)
	// Capture returns the desktop adapters used while monitoring.
	Capture func() (capture.ScreenshotSource, capture.ContextProvider)

	Close func() error
}

// App holds the process streams and the runtime factory.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// IsInteractive reports whether stdin is a terminal; prompts are only
	// shown when it is.
	IsInteractive func() bool

	// Setup builds the runtime from the config file at path.
	Setup func(ctx context.Context, path string) (*Runtime, error)

	rt *Runtime
}

func (a *App) runtime() *Runtime {
	return a.rt
}

// Close releases the runtime if one was built.
func (a *App) Close() error {
	if a.rt == nil || a.rt.Close == nil {
		return nil
	}
	err := a.rt.Close()
	a.rt = nil
	return err
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

// NewRootCmd creates the top-level command. The runtime is built once, before
// the first subcommand runs; callers release it with App.Close.
func NewRootCmd(app *App) *cobra.Command {
	if app.In == nil {
		app.In = os.Stdin
	}
	if app.Out == nil {
		app.Out = os.Stdout
	}
	if app.Err == nil {
		app.Err = os.Stderr
	}

	var cfgPath string
	root := &cobra.Command{
		Use:           "clicktrail",
		Short:         "Record click sessions and attribute time per application",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.rt != nil {
				return nil
			}
			if cfgPath == "" {
				cfgPath = config.DefaultPath()
			}
			rt, err := app.Setup(cmd.Context(), cfgPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			app.rt = rt
			return nil
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $CLICKTRAIL_CONFIG or ~/.clicktrail/config.yaml)")

	root.AddCommand(
		newMonitorCmd(app),
		newSessionsCmd(app),
		newAnalyzeCmd(app),
		newReportsCmd(app),
	)
	return root
}
