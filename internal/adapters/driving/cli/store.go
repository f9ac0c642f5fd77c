package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

var storeMetadata map[string]string

var storeCmd = &cobra.Command{
	Use:   "store <source> [content]",
	Short: "Store a memory in one source",
	Long: `Store saves content into the named memory source. Content is read from
stdin when it is omitted or given as "-".`,
	Example: `  memquery store memento "the api deploys from main every friday"
  memquery store local --meta tag=ops - < notes.txt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := ParseFormat(output)
		if err != nil {
			return err
		}

		source := args[0]
		content := ""
		if len(args) == 2 && args[1] != "-" {
			content = args[1]
		} else {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read content: %w", err)
			}
			content = string(data)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return fmt.Errorf("%w: content is empty", domain.ErrInvalidInput)
		}

		metadata := make(map[string]any, len(storeMetadata))
		for k, v := range storeMetadata {
			metadata[k] = v
		}

		resp, err := NewClient(serverURL).Store(cmd.Context(), source, content, metadata)
		if err != nil {
			return err
		}
		if format == FormatJSON {
			return NewRenderer(cmd.OutOrStdout(), format).JSON(resp)
		}
		NewRenderer(cmd.OutOrStdout(), format).Message("stored %s in %s", resp.ID, resp.Source)
		return nil
	},
}

func init() {
	storeCmd.Flags().StringToStringVar(&storeMetadata, "meta", nil, "metadata as key=value")
	rootCmd.AddCommand(storeCmd)
}
