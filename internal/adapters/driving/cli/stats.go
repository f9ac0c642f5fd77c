package cli

import (
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show query and cache statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := ParseFormat(output)
		if err != nil {
			return err
		}

		stats, err := NewClient(serverURL).Stats(cmd.Context())
		if err != nil {
			return err
		}
		return NewRenderer(cmd.OutOrStdout(), format).Stats(stats)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
