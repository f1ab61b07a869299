package cli

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/validator"
)

func newPublishCmd(e *env) *cobra.Command {
	var msgID string
	cmd := &cobra.Command{
		Use:   "publish <subject> [json-payload]",
		Short: "Publish a trigger to the worker over NATS",
		Long: `Publish a trigger to the worker over NATS.

Examples:
  # queue the hourly cadence
  synctl publish v1.sync.run.hourly

  # queue one setting
  synctl publish v1.sync.setting '{"setting":"Spring campaign"}'

  # refresh forms and mappings
  synctl publish v1.forms.refresh '{"setting":"Spring campaign","force_fetch":true,"rebuild_mappings":true}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := args[0]
			if _, ok := model.MapToBaseEventType(subject); !ok {
				return fmt.Errorf("unknown trigger subject %q", subject)
			}
			payload := []byte("{}")
			if len(args) == 2 {
				payload = []byte(args[1])
				if !json.Valid(payload) {
					return fmt.Errorf("payload is not valid JSON")
				}
			}

			b, err := e.backend(cmd.Context(), Needs{NATS: true})
			if err != nil {
				return err
			}
			defer b.Close()

			headers := map[string]string{}
			if msgID != "" {
				headers[nats.MsgIdHdr] = msgID
			}
			if err := b.Publisher.Publish(cmd.Context(), subject, payload, headers); err != nil {
				return err
			}
			commandLogger(cmd).Info("Trigger published", zap.String("subject", subject), zap.Int("payload_size", len(payload)))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", subject)
			return err
		},
	}
	cmd.Flags().StringVar(&msgID, "msg-id", "", "Nats-Msg-Id header for stream de-duplication")
	return cmd
}

func newStatusCmd(e *env) *cobra.Command {
	var (
		change   model.StatusChange
		previous string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Evaluate a record status change and send its pixel event",
		Long: `Evaluate a record status change the way the record save hook does.

The event is sent only for an existing record with a meta lead id whose
status differs from --previous.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if previous != "" || !change.IsNew {
				change.Previous = &model.RecordSnapshot{
					MetaLeadID: change.Record.MetaLeadID,
					Status:     previous,
					PageID:     change.Record.PageID,
				}
			}
			if err := validator.Validate(change); err != nil {
				return err
			}

			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			outcome, err := b.Status.Handle(cmd.Context(), change)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), outcome)
			return err
		},
	}
	cmd.Flags().StringVar(&change.RecordType, "record-type", "Lead", "Record type (Lead or CRM Lead)")
	cmd.Flags().StringVar(&change.Record.MetaLeadID, "meta-lead-id", "", "Meta lead id of the record")
	cmd.Flags().StringVar(&change.Record.Status, "to", "", "New status")
	cmd.Flags().StringVar(&previous, "from", "", "Status before the save")
	cmd.Flags().StringVar(&change.Record.PageID, "page-id", "", "Facebook page id, looked up from the stored record when empty")
	cmd.Flags().BoolVar(&change.IsNew, "new", false, "Treat the record as newly created")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
