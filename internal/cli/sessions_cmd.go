package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/alexanderramin/clicktrail/internal/cli/formatter"
	"github.com/alexanderramin/clicktrail/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect recorded sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(app),
		newSessionsShowCmd(app),
		newSessionsVerifyCmd(app),
		newSessionsWatchCmd(app),
	)
	return cmd
}

func newSessionsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := app.runtime().Store.EnumerateSessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.Out, formatter.FormatSessionList(sessions))
			return nil
		},
	}
}

func newSessionsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show SESSION",
		Short: "Show a session and its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := app.runtime().Store
			id, err := resolveSessionID(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			session, err := st.Session(cmd.Context(), id)
			if err != nil {
				return err
			}
			events, err := st.ListEvents(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprint(app.Out, formatter.FormatSessionDetail(session, events))
			return nil
		},
	}
}

func newSessionsVerifyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify SESSION",
		Short: "Check that every event has its metadata and images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := app.runtime().Store
			id, err := resolveSessionID(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			verr := st.Verify(cmd.Context(), id)
			fmt.Fprint(app.Out, formatter.FormatVerify(id, verr))
			return verr
		},
	}
}

func newSessionsWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch SESSION",
		Short: "Print events as they are written to a live session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := app.runtime().Store
			id, err := resolveSessionID(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			records, err := st.Watch(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Err, "%s %s\n", formatter.Dim("watching"), id)
			for rec := range records {
				fmt.Fprintln(app.Out, watchLine(rec))
			}
			return nil
		},
	}
}

func watchLine(rec store.EventRecord) string {
	ev := rec.Event
	return fmt.Sprintf("%s  %-24s  (%.0f,%.0f)",
		ev.Timestamp.Local().Format("15:04:05.000"), ev.ActiveApp.Name, ev.Position.X, ev.Position.Y)
}
