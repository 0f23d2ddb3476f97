package cli

import (
	"fmt"

	"github.com/alexanderramin/clicktrail/internal/cli/formatter"
	"github.com/spf13/cobra"
)

func newReportsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Browse stored usage reports",
	}
	cmd.AddCommand(
		newReportsListCmd(app),
		newReportsShowCmd(app),
		newReportsDeleteCmd(app),
	)
	return cmd
}

func newReportsListCmd(app *App) *cobra.Command {
	var sessionRef string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := app.runtime()
			sessionID := ""
			if sessionRef != "" {
				id, err := resolveSessionID(cmd.Context(), rt.Store, sessionRef)
				if err != nil {
					return err
				}
				sessionID = id
			}
			reports, err := rt.Reports.List(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			fmt.Fprint(app.Out, formatter.FormatReportList(reports))
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionRef, "session", "", "only reports for this session")
	return cmd
}

func newReportsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show REPORT",
		Short: "Show a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := app.runtime()
			id, err := resolveReportID(cmd.Context(), rt.Reports, args[0])
			if err != nil {
				return err
			}
			report, err := rt.Reports.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprint(app.Out, formatter.FormatReport(report))
			return nil
		},
	}
}

func newReportsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete REPORT",
		Short: "Delete a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := app.runtime()
			id, err := resolveReportID(cmd.Context(), rt.Reports, args[0])
			if err != nil {
				return err
			}
			if err := rt.Reports.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted report %s\n", id)
			return nil
		},
	}
}
