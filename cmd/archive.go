package cmd

import (
	"github.com/spf13/cobra"
)

// archiveCmd prints a provider payload archived by a bootstrap or a pull.
var archiveCmd = &cobra.Command{
	Use:   "archive <object-key>",
	Short: "Print an archived provider payload",
	Long: `Loads a raw provider payload from object storage and prints it. Keys look like
hotels/<hotel-id>/<operation>/<date>/<trace-id>-<name>.json; the trace id matches
the audit records of the run. Requires STORAGE_ENABLED.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		var payload any
		if err := a.archive.Load(cmd.Context(), args[0], &payload); err != nil {
			return err
		}
		return printJSON(payload)
	},
}

func init() {
	syncCmd.AddCommand(archiveCmd)
}
