package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/custodia-labs/memquery/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/memquery/internal/core/domain"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatJSON     Format = "json"
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates an --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatMarkdown:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown output format %q (want json, table or markdown)", domain.ErrInvalidInput, s)
	}
}

const contentPreview = 120

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6C7086")
	colorSuccess = lipgloss.Color("#A6E3A1")
	colorWarning = lipgloss.Color("#F9E2AF")
	colorError   = lipgloss.Color("#F38BA8")
	colorBorder  = lipgloss.Color("#45475A")
)

// Renderer writes command results in the selected format.
type Renderer struct {
	w      io.Writer
	format Format

	title   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	border  lipgloss.Style
	header  lipgloss.Style
}

// NewRenderer creates a renderer. Colours are used only when w is a
// terminal.
func NewRenderer(w io.Writer, format Format) *Renderer {
	r := &Renderer{
		w:       w,
		format:  format,
		title:   lipgloss.NewStyle(),
		muted:   lipgloss.NewStyle(),
		success: lipgloss.NewStyle(),
		warning: lipgloss.NewStyle(),
		failure: lipgloss.NewStyle(),
		border:  lipgloss.NewStyle(),
		header:  lipgloss.NewStyle().Bold(true),
	}
	if isTerminal(w) {
		r.title = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
		r.muted = lipgloss.NewStyle().Foreground(colorMuted)
		r.success = lipgloss.NewStyle().Foreground(colorSuccess)
		r.warning = lipgloss.NewStyle().Foreground(colorWarning)
		r.failure = lipgloss.NewStyle().Foreground(colorError)
		r.border = lipgloss.NewStyle().Foreground(colorBorder)
		r.header = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	}
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// QueryResponse renders a query response.
func (r *Renderer) QueryResponse(resp *domain.QueryResponse) error {
	if r.format == FormatJSON {
		return r.JSON(resp)
	}

	if r.format == FormatMarkdown {
		r.printf("# %s\n\n", resp.Query)
		r.printf("mode: `%s` | results: %d | time: %.3fs | cache hit: %t\n\n",
			resp.Mode, resp.TotalResults, resp.ProcessingTime, resp.Metadata.CacheHit)
	} else {
		r.printf("%s\n", r.title.Render(resp.Query))
		r.printf("%s\n\n", r.muted.Render(fmt.Sprintf("mode %s · %d results · %.3fs · cache hit %t · sources %s",
			resp.Mode, resp.TotalResults, resp.ProcessingTime, resp.Metadata.CacheHit, strings.Join(resp.SourcesQueried, ","))))
	}

	if len(resp.Metadata.FailedSources) > 0 {
		r.printf("%s\n\n", r.warning.Render("failed sources: "+strings.Join(resp.Metadata.FailedSources, ", ")))
	}

	if resp.Grouped != nil {
		names := make([]string, 0, len(resp.Grouped))
		for name := range resp.Grouped {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if r.format == FormatMarkdown {
				r.printf("## %s\n\n", name)
			} else {
				r.printf("%s\n", r.header.Render(name))
			}
			r.results(resp.Grouped[name])
		}
		return nil
	}

	if len(resp.Results) == 0 {
		r.printf("No results.\n")
		return nil
	}
	r.results(resp.Results)
	return nil
}

func (r *Renderer) results(results []domain.QueryResult) {
	rows := make([][]string, 0, len(results))
	for i, res := range results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.3f", res.Score),
			res.Source,
			preview(res.Content),
		})
	}
	r.table([]string{"#", "SCORE", "SOURCE", "CONTENT"}, rows)
}

// Analysis renders a query analysis.
func (r *Renderer) Analysis(resp *httpapi.AnalyzeResponse) error {
	if r.format == FormatJSON {
		return r.JSON(resp)
	}

	a := resp.Analysis
	rows := [][]string{
		{"query type", string(a.QueryType)},
		{"complexity", string(a.Complexity)},
		{"requires context", fmt.Sprintf("%t", a.RequiresContext)},
		{"broad search", fmt.Sprintf("%t", a.BroadSearch)},
		{"features needed", strings.Join(a.FeaturesNeeded, ", ")},
		{"recommended mode", string(resp.RecommendedMode)},
		{"recommended sources", strings.Join(resp.RecommendedSources, ", ")},
	}
	r.heading(resp.Query)
	r.table([]string{"FIELD", "VALUE"}, rows)
	return nil
}

// Health renders a health report.
func (r *Renderer) Health(report *domain.HealthReport) error {
	if r.format == FormatJSON {
		return r.JSON(report)
	}

	r.heading(fmt.Sprintf("%s %s: %s (%d/%d healthy, up %.0fs)",
		report.Service, report.Version, r.status(report.Status),
		report.HealthySystems, report.TotalSystems, report.Uptime))

	rows := make([][]string, 0, len(report.Systems))
	for _, s := range report.Systems {
		rows = append(rows, []string{s.Name, r.status(s.Status), fmt.Sprintf("%.3fs", s.Latency), s.Error})
	}
	r.table([]string{"SOURCE", "STATUS", "LATENCY", "ERROR"}, rows)
	return nil
}

// Stats renders query and cache counters.
func (r *Renderer) Stats(resp *httpapi.StatsResponse) error {
	if r.format == FormatJSON {
		return r.JSON(resp)
	}

	q, c := resp.QueryStats, resp.CacheStats
	rows := [][]string{
		{"total queries", fmt.Sprintf("%d", q.TotalQueries)},
		{"failed queries", fmt.Sprintf("%d", q.FailedQueries)},
		{"error rate", fmt.Sprintf("%.2f%%", q.ErrorRate*100)},
		{"average latency", fmt.Sprintf("%.3fs", q.AverageLatency)},
		{"cache backend", c.Backend},
		{"cache size", fmt.Sprintf("%d", c.Size)},
		{"cache hits / misses", fmt.Sprintf("%d / %d", c.Hits, c.Misses)},
		{"cache hit rate", fmt.Sprintf("%.2f%%", c.HitRate*100)},
	}
	for _, mode := range sortedKeys(q.QueriesByMode) {
		rows = append(rows, []string{"mode " + mode, fmt.Sprintf("%d", q.QueriesByMode[mode])})
	}
	for _, source := range sortedKeys(q.QueriesBySource) {
		rows = append(rows, []string{"source " + source, fmt.Sprintf("%d", q.QueriesBySource[source])})
	}
	r.table([]string{"METRIC", "VALUE"}, rows)
	return nil
}

// Sources renders source configurations. Callers redact secrets first.
func (r *Renderer) Sources(sources []domain.SourceConfig, weights domain.RankingWeights) error {
	if r.format == FormatJSON {
		return r.JSON(map[string]any{"sources": sources, "ranking_weights": weights})
	}

	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		enabled := r.failure.Render("disabled")
		if s.Enabled {
			enabled = r.success.Render("enabled")
		}
		rows = append(rows, []string{
			s.Name, string(s.Kind), enabled, s.URL,
			fmt.Sprintf("%.2f", s.Weight), strings.Join(s.Features, ","),
		})
	}
	r.table([]string{"NAME", "KIND", "STATE", "URL", "WEIGHT", "FEATURES"}, rows)
	r.printf("\n%s\n", r.muted.Render(fmt.Sprintf("ranking weights: relevance %.2f · recency %.2f · source trust %.2f · user preference %.2f",
		weights.Relevance, weights.Recency, weights.SourceTrust, weights.UserPreference)))
	return nil
}

// Message writes a single status line.
func (r *Renderer) Message(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.format == FormatJSON {
		_ = r.JSON(map[string]string{"status": msg})
		return
	}
	r.printf("%s\n", r.success.Render(msg))
}

func (r *Renderer) heading(s string) {
	if r.format == FormatMarkdown {
		r.printf("## %s\n\n", s)
		return
	}
	r.printf("%s\n", r.title.Render(s))
}

func (r *Renderer) status(s domain.HealthStatus) string {
	switch s {
	case domain.HealthHealthy:
		return r.success.Render(string(s))
	case domain.HealthUnhealthy:
		return r.warning.Render(string(s))
	default:
		return r.failure.Render(string(s))
	}
}

func (r *Renderer) table(headers []string, rows [][]string) {
	if r.format == FormatMarkdown {
		r.markdownTable(headers, rows)
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	r.printf("%s\n", t.Render())
}

func (r *Renderer) markdownTable(headers []string, rows [][]string) {
	r.printf("| %s |\n", strings.Join(headers, " | "))
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	r.printf("| %s |\n", strings.Join(seps, " | "))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		r.printf("| %s |\n", strings.Join(cells, " | "))
	}
	r.printf("\n")
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= contentPreview {
		return content
	}
	return string(runes[:contentPreview-3]) + "..."
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
