package services

import (
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/memquery/internal/core/domain"
)

// Sequential context limits.
const (
	contextResultWindow = 5
	contextTermsKept    = 10
	contextTermsUsed    = 5
)

// Metadata keys read when carrying context between sequential steps.
const (
	metaKeywords = "keywords"
	metaEntities = "entities"
)

// queryContext accumulates keywords and entities across sequential steps.
type queryContext struct {
	keywords []string
	entities []string
}

// update folds the top results' keywords and entities into the context,
// keeping the first ten unique values of each.
func (c *queryContext) update(results []domain.QueryResult) {
	for i, r := range results {
		if i == contextResultWindow {
			break
		}
		c.keywords = appendUnique(c.keywords, stringsOf(r.Metadata[metaKeywords]), contextTermsKept)
		c.entities = appendUnique(c.entities, stringsOf(r.Metadata[metaEntities]), contextTermsKept)
	}
}

// enhance appends the carried context to the query:
// "<query> (Related to: k1, k2; Involving: e1, e2)".
func (c *queryContext) enhance(query string) string {
	var parts []string
	if len(c.keywords) > 0 {
		parts = append(parts, "Related to: "+strings.Join(head(c.keywords, contextTermsUsed), ", "))
	}
	if len(c.entities) > 0 {
		parts = append(parts, "Involving: "+strings.Join(head(c.entities, contextTermsUsed), ", "))
	}
	if len(parts) == 0 {
		return query
	}
	return fmt.Sprintf("%s (%s)", query, strings.Join(parts, "; "))
}

func appendUnique(dst, src []string, limit int) []string {
	for _, s := range src {
		if len(dst) >= limit {
			break
		}
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(dst, s) {
			continue
		}
		dst = append(dst, s)
	}
	return dst
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// stringsOf reads a metadata value that is a string, a []string or a
// decoded JSON array.
func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case map[string]any:
				if name, ok := s["name"].(string); ok {
					out = append(out, name)
				}
			}
		}
		return out
	default:
		return nil
	}
}
