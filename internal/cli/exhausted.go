package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

func newExhaustedCmd(e *env) *cobra.Command {
	exhausted := &cobra.Command{
		Use:   "exhausted",
		Short: "Inspect and replay triggers that ran out of deliveries",
	}

	var listLimit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List unresolved exhausted triggers, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			triggers, err := b.Exhausted.ListUnresolved(cmd.Context(), listLimit)
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			w.row("ID", "CREATED", "SUBJECT", "TYPE", "DELIVERIES", "ERROR")
			for _, t := range triggers {
				w.row(strconv.FormatUint(uint64(t.ID), 10),
					utils.FormatISO8601(t.CreatedAt),
					t.SourceSubject,
					t.ErrorType,
					strconv.Itoa(t.DeliveryCount),
					utils.Truncate(t.LastError, 80))
			}
			return w.flush()
		},
	}
	list.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of triggers to list")

	var notes string
	resolve := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark an exhausted trigger resolved without replaying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid trigger id %q: %w", args[0], err)
			}
			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Exhausted.Resolve(cmd.Context(), uint(id), notes); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "resolved %d\n", id)
			return err
		},
	}
	resolve.Flags().StringVar(&notes, "notes", "resolved manually", "Resolution notes")

	var replayLimit int
	replay := &cobra.Command{
		Use:   "replay",
		Short: "Republish unresolved exhausted triggers to their subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backend(cmd.Context(), Needs{Store: true, NATS: true})
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := b.Exhausted.Replay(cmd.Context(), replayLimit)
			if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "replayed %d\n", n); werr != nil {
				return werr
			}
			return err
		},
	}
	replay.Flags().IntVar(&replayLimit, "limit", 100, "Maximum number of triggers to replay")

	exhausted.AddCommand(list, resolve, replay)
	return exhausted
}
