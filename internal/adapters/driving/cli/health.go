package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrUnhealthy is returned by health when no source is healthy, so the
// command exits non-zero.
var ErrUnhealthy = errors.New("service unhealthy")

var healthCached bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the memory systems",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := ParseFormat(output)
		if err != nil {
			return err
		}

		report, err := NewClient(serverURL).Health(cmd.Context(), healthCached)
		if err != nil {
			return err
		}
		if err := NewRenderer(cmd.OutOrStdout(), format).Health(report); err != nil {
			return err
		}
		if !report.IsHealthy() {
			return ErrUnhealthy
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthCached, "cached", false, "use the last scheduled probe instead of probing now")
	rootCmd.AddCommand(healthCmd)
}
