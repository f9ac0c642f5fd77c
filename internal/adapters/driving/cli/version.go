package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

// buildInfo is what the version command reports.
type buildInfo struct {
	Version  string `json:"version"`
	Go       string `json:"go"`
	Platform string `json:"platform"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:  version,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := ParseFormat(output)
		if err != nil {
			return err
		}
		info := currentBuild()
		if format == FormatJSON {
			return NewRenderer(cmd.OutOrStdout(), format).JSON(info)
		}
		cmd.Printf("memquery %s (%s, %s)\n", info.Version, info.Go, info.Platform)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
