package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/usecase"
)

func newFormsCmd(e *env) *cobra.Command {
	forms := &cobra.Command{
		Use:   "forms",
		Short: "Manage the lead forms of a sync setting",
	}

	var opts usecase.RefreshOptions
	refresh := &cobra.Command{
		Use:   "refresh <setting>",
		Short: "Discover the leadgen forms of a setting's page",
		Long: `Discover the leadgen forms of a setting's page.

Without --force, forms are only filled in when the setting has none.
Mappings are derived again with --mappings or when the setting has none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			setting, err := b.Settings.RefreshForms(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printSetting(cmd, setting)
		},
	}
	refresh.Flags().BoolVar(&opts.ForceFetch, "force", false, "Replace the stored forms with the ones on the page")
	refresh.Flags().BoolVar(&opts.RebuildMappings, "mappings", false, "Derive the field mappings again")

	forms.AddCommand(refresh)
	return forms
}

func newSettingsCmd(e *env) *cobra.Command {
	settings := &cobra.Command{
		Use:   "settings",
		Short: "Activate or deactivate sync settings",
	}

	activate := &cobra.Command{
		Use:   "activate <setting>",
		Short: "Validate a setting and schedule it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			setting, err := b.Settings.Activate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printSetting(cmd, setting)
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate <setting>",
		Short: "Stop scheduling a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := e.backend(cmd.Context(), Needs{Store: true})
			if err != nil {
				return err
			}
			defer b.Close()

			setting, err := b.Settings.Deactivate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printSetting(cmd, setting)
		},
	}

	settings.AddCommand(activate, deactivate)
	return settings
}

func printSetting(cmd *cobra.Command, s *model.SyncSetting) error {
	w := newTable(cmd.OutOrStdout())
	w.row("NAME", s.Name)
	w.row("STATUS", s.Status)
	w.row("PAGE", s.PageID)
	w.row("CADENCE", string(s.EventFrequency))
	w.row("FORMS", fmt.Sprint(len(s.Forms)))
	for _, m := range s.Mappings {
		w.row("MAPPING", m.FormField+" -> "+m.LeadField)
	}
	return w.flush()
}
