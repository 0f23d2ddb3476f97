package cli

import (
	"errors"
	"strings"

	"github.com/alexanderramin/clicktrail/internal/cli/formatter"
	"github.com/alexanderramin/clicktrail/internal/llm"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

func clicktrailHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	return t
}

// modelPlaceholder suggests a vision-capable model for each provider.
func modelPlaceholder(p llm.Provider) string {
	if p == llm.ProviderHFRouter {
		return "Qwen/Qwen2.5-VL-7B-Instruct"
	}
	return "gpt-4o-mini"
}

func validateModelName(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a model name is required")
	}
	return nil
}

// modelSelectionForm asks for whichever of provider and model is missing.
// It returns nil when both are already set.
func modelSelectionForm(cfg *llm.Config) *huh.Form {
	var fields []huh.Field
	if cfg.Provider == "" {
		opts := make([]huh.Option[llm.Provider], 0, len(llm.Providers()))
		for _, p := range llm.Providers() {
			opts = append(opts, huh.NewOption(string(p), p))
		}
		fields = append(fields, huh.NewSelect[llm.Provider]().
			Title("Provider").
			Options(opts...).
			Value(&cfg.Provider))
	}
	if strings.TrimSpace(cfg.Model) == "" {
		fields = append(fields, huh.NewInput().
			Title("Model").
			Description("A vision-capable chat model").
			Placeholder(modelPlaceholder(cfg.Provider)).
			Value(&cfg.Model).
			Validate(validateModelName))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(clicktrailHuhTheme()).WithShowHelp(false)
}
