package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexanderramin/clicktrail/internal/annotate"
	"github.com/alexanderramin/clicktrail/internal/capture"
	"github.com/alexanderramin/clicktrail/internal/cli/formatter"
	"github.com/alexanderramin/clicktrail/internal/platform"
	"github.com/spf13/cobra"
)

func newMonitorCmd(app *App) *cobra.Command {
	var metricsAddr string
	var annotateFlag bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Record a session from JSON-line clicks on stdin",
		Long: `Start a monitoring session and record one event per click.

Clicks are read from stdin, one JSON object per line:
  {"x": 120, "y": 48, "modifiers": ["cmd"]}

Monitoring stops at end of input or on interrupt; events still waiting for
the screen to settle are dropped and the session is sealed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := app.runtime()
			cfg := rt.Config

			if cmd.Flags().Changed("annotate") {
				cfg.Capture.Annotate = annotateFlag
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}

			stability, err := cfg.Stability()
			if err != nil {
				return err
			}
			detector, err := capture.NewDetector(stability)
			if err != nil {
				return err
			}
			marker := annotate.NewMarker(cfg.Capture.Annotate)
			marker.Scale = cfg.Capture.AnnotateScale

			screens, provider := rt.Capture()
			recorder, err := capture.NewRecorder(capture.RecorderOptions{
				Screens:   screens,
				Context:   provider,
				Detector:  detector,
				Sink:      rt.Store,
				Annotator: marker,
				Observer:  rt.Metrics,
				Logger:    rt.Logger,
			})
			if err != nil {
				return err
			}
			controller := capture.NewController(rt.Store, recorder, rt.Logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.MetricsAddr != "" {
				go func() {
					if err := rt.Metrics.Serve(ctx, cfg.MetricsAddr, rt.Logger); err != nil {
						rt.Logger.Error("metrics server stopped", "error", err)
					}
				}()
			}

			session, err := controller.Start(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Err, "%s %s\n", formatter.StyleGreen.Render("● recording"), session.ID)

			clicks := platform.NewLineClickSource(app.In, rt.Logger)
			readErr := clicks.Run(ctx, func(c capture.Click) {
				if !controller.HandleClick(c) {
					rt.Logger.Debug("click ignored", "state", controller.State())
				}
			})

			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			sealed, stopErr := controller.Stop(stopCtx)
			if err := errors.Join(readErr, stopErr); err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "%s session %s: %d event(s) in %s\n",
				formatter.StyleDim.Render("✔ sealed"), sealed.ID, sealed.EventCount, formatter.Span(sealed.StartedAt, sealed.EndedAt))
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while monitoring")
	cmd.Flags().BoolVar(&annotateFlag, "annotate", true, "draw a click marker on before images")
	return cmd
}
