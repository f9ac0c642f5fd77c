package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

var (
	queryMode        string
	querySources     []string
	queryMaxResults  int
	queryRanking     string
	queryNoDedup     bool
	queryBoostRecent bool
	queryUserID      string
	queryFilters     map[string]string
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Query the configured memory systems",
	Long: `Query fans the text out to the memory systems on the running server and
prints the merged results.

Modes:
  unified     query every source concurrently and rank the merged results
  sequential  query sources one by one, carrying context forward
  parallel    query every source concurrently, results grouped by source
  smart       analyse the query and pick sources and mode (default)`,
	Example: `  memquery query "deployment checklist"
  memquery query --mode parallel --sources cognee,memento "release notes"
  memquery query --ranking recency --max-results 5 -o json "latest incidents"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryMode, "mode", "m", string(domain.QueryModeSmart), "query mode: unified, sequential, parallel or smart")
	queryCmd.Flags().StringSliceVarP(&querySources, "sources", "s", nil, "restrict the query to these sources")
	queryCmd.Flags().IntVarP(&queryMaxResults, "max-results", "n", domain.DefaultMaxResults, "maximum number of results")
	queryCmd.Flags().StringVar(&queryRanking, "ranking", string(domain.RankingHybrid), "ranking strategy: relevance, recency or hybrid")
	queryCmd.Flags().BoolVar(&queryNoDedup, "no-dedup", false, "keep duplicate results")
	queryCmd.Flags().BoolVar(&queryBoostRecent, "boost-recent", false, "favour newer results under relevance ranking")
	queryCmd.Flags().StringVar(&queryUserID, "user", "", "user id for user-aware sources")
	queryCmd.Flags().StringToStringVar(&queryFilters, "filter", nil, "source filters as key=value")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, err := ParseFormat(output)
	if err != nil {
		return err
	}

	mode := domain.QueryMode(strings.ToLower(queryMode))
	if !mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidInput, queryMode)
	}

	req := domain.QueryRequest{
		Query:   strings.Join(args, " "),
		Mode:    mode,
		Sources: querySources,
		Options: &domain.QueryOptions{
			MaxResults:      queryMaxResults,
			RankingStrategy: domain.RankingStrategy(strings.ToLower(queryRanking)),
			Filters:         queryFilters,
			Deduplicate:     !queryNoDedup,
			BoostRecent:     queryBoostRecent,
			IncludeMetadata: true,
			UserID:          queryUserID,
		},
	}
	if err := req.Validate(); err != nil {
		return err
	}

	resp, err := NewClient(serverURL).Query(cmd.Context(), req)
	if err != nil {
		return err
	}
	return NewRenderer(cmd.OutOrStdout(), format).QueryResponse(resp)
}
