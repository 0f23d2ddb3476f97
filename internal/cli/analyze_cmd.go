package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/alexanderramin/clicktrail/internal/analysis"
	"github.com/alexanderramin/clicktrail/internal/cli/formatter"
	"github.com/alexanderramin/clicktrail/internal/domain"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/alexanderramin/clicktrail/internal/service"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// providerFlag rejects unknown providers at parse time.
type providerFlag struct {
	value llm.Provider
}

var _ pflag.Value = (*providerFlag)(nil)

func (f *providerFlag) String() string { return string(f.value) }
func (f *providerFlag) Type() string   { return "provider" }

func (f *providerFlag) Set(s string) error {
	p, err := llm.ParseProvider(s)
	if err != nil {
		return err
	}
	f.value = p
	return nil
}

type analyzeFlags struct {
	provider     providerFlag
	model        string
	endpoint     string
	chunkSize    int
	includeAfter bool
	tui          bool
	verbose      bool
}

func newAnalyzeCmd(app *App) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze SESSION",
		Short: "Attribute a session's time to applications with a vision LLM",
		Long: `Send a session's events and screenshots to a vision-capable LLM, chunk by
chunk, and store the aggregated per-application usage as a report.

SESSION may be a full id, a unique prefix, or "latest". The API key is read
from CLICKTRAIL_LLM_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := app.runtime()
			sessionID, err := resolveSessionID(cmd.Context(), rt.Store, args[0])
			if err != nil {
				return err
			}

			llmCfg, err := resolveLLMConfig(app, rt.Config.LLM, f)
			if err != nil {
				return err
			}
			svc, err := rt.Analysis(llmCfg)
			if err != nil {
				return err
			}

			opts := analysis.Options{
				ChunkSize:    rt.Config.Analysis.ChunkSize,
				IncludeAfter: rt.Config.Analysis.IncludeAfter,
			}
			if cmd.Flags().Changed("chunk-size") {
				opts.ChunkSize = f.chunkSize
			}
			if cmd.Flags().Changed("include-after") {
				opts.IncludeAfter = f.includeAfter
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var report *domain.UsageReport
			if f.tui {
				report, err = runAnalyzeTUI(ctx, app, svc, sessionID, llmCfg.Model, opts)
			} else {
				report, err = runAnalyzePlain(ctx, app.Err, svc, sessionID, opts, f.verbose)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(app.Out, formatter.FormatReport(report))
			return nil
		},
	}

	cmd.Flags().Var(&f.provider, "provider", "LLM provider: openai or hf-router")
	cmd.Flags().StringVar(&f.model, "model", "", "vision-capable model name")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "override the provider's chat-completions base URL")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", analysis.DefaultChunkSize, "events per LLM request")
	cmd.Flags().BoolVar(&f.includeAfter, "include-after", false, "also send each event's after image")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show an interactive progress view")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "print prompts, responses and per-chunk results")
	return cmd
}

// resolveLLMConfig applies flag overrides and, on a terminal, prompts for a
// missing provider or model before validating.
func resolveLLMConfig(app *App, base llm.Config, f analyzeFlags) (llm.Config, error) {
	cfg := base
	if f.provider.value != "" {
		cfg.Provider = f.provider.value
	}
	if f.model != "" {
		cfg.Model = f.model
	}
	if f.endpoint != "" {
		cfg.Endpoint = f.endpoint
	}

	if app.interactive() {
		if form := modelSelectionForm(&cfg); form != nil {
			if err := form.Run(); err != nil {
				return cfg, fmt.Errorf("selecting model: %w", err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runAnalyzePlain reports progress on a spinner line. Verbose mode prints the
// diagnostics log instead, since the two would interleave.
func runAnalyzePlain(ctx context.Context, w io.Writer, svc service.AnalysisService, sessionID string, opts analysis.Options, verbose bool) (*domain.UsageReport, error) {
	var spin *formatter.Spinner
	if !verbose {
		spin = formatter.NewSpinner(w, "analyzing "+sessionID)
		spin.Start()
		defer spin.Stop()
	}

	var phase analysis.Phase
	return svc.AnalyzeSession(ctx, sessionID, opts, func(ev analysis.Event) {
		switch ev.Kind {
		case analysis.EventPhase:
			phase = ev.Phase
		case analysis.EventProgress:
			if spin != nil {
				spin.SetMessage(fmt.Sprintf("%s %3.0f%%", phase, ev.Progress*100))
			}
		case analysis.EventLog:
			if verbose {
				fmt.Fprintln(w, formatter.Dim(ev.Log))
			}
		case analysis.EventCancelled:
			if spin != nil {
				spin.Stop()
			}
			fmt.Fprintln(w, formatter.StyleYellow.Render("analysis cancelled"))
		case analysis.EventFailed:
			if spin != nil {
				spin.Stop()
			}
			fmt.Fprintln(w, formatter.StyleRed.Render("analysis failed"))
		}
	})
}

func runAnalyzeTUI(ctx context.Context, app *App, svc service.AnalysisService, sessionID, model string, opts analysis.Options) (*domain.UsageReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newAnalyzeModel(sessionID, model, cancel),
		tea.WithInput(app.In), tea.WithOutput(app.Err))

	go func() {
		report, err := svc.AnalyzeSession(ctx, sessionID, opts, func(ev analysis.Event) {
			p.Send(analysisEventMsg{ev: ev})
		})
		p.Send(analysisFinishedMsg{report: report, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("running progress view: %w", err)
	}
	m, ok := final.(analyzeModel)
	if !ok || !m.finished {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New("progress view exited before the analysis finished")
	}
	return m.report, m.err
}
