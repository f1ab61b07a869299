package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run <cadence>",
		Short: "Sync every active setting scheduled at a cadence",
		Long: `Sync every active setting scheduled at a cadence, one after the other.

The cadence is a display name ("Every 5 Minutes") or a slug ("every_5_minutes").
A failing setting does not stop the others; the command exits non-zero when any failed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cadence, err := model.ParseCadence(args[0])
			if err != nil {
				return err
			}
			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			commandLogger(cmd).Info("Running cadence", zap.String("cadence", string(cadence)))
			reports, runErr := b.Runs.RunCadence(cmd.Context(), cadence)
			if err := printJSON(cmd, reports); err != nil {
				return err
			}
			return runErr
		},
	}
}

func newSyncCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <setting>",
		Short: "Sync a single setting regardless of its cadence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			report, runErr := b.Runs.RunSetting(cmd.Context(), args[0])
			if report != nil {
				if err := printJSON(cmd, report); err != nil {
					return err
				}
			}
			return runErr
		},
	}
}

func newCadencesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cadences",
		Short: "List the supported cadences with their slugs and cron schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := newTable(cmd.OutOrStdout())
			w.row("CADENCE", "SLUG", "CRON", "SUBJECT")
			for _, c := range model.Cadences() {
				w.row(string(c), c.Slug(), c.CronSpec(), model.V1SyncRun.Subject(c.Slug()))
			}
			return w.flush()
		},
	}
}
