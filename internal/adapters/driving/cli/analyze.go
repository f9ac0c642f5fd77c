package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <text>",
	Short: "Show how smart mode would route a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := ParseFormat(output)
		if err != nil {
			return err
		}

		resp, err := NewClient(serverURL).Analyze(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		return NewRenderer(cmd.OutOrStdout(), format).Analysis(resp)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
