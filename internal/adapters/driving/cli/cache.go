package cli

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := ParseFormat(output)
		if err != nil {
			return err
		}

		if err := NewClient(serverURL).ClearCache(cmd.Context()); err != nil {
			return err
		}
		NewRenderer(cmd.OutOrStdout(), format).Message("cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
