package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"wisdom-backend/infrastructure/telemetry"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	slowStyle   = cellStyle.Foreground(lipgloss.Color("196"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const avgColumn = 3

func render(w io.Writer, stats []telemetry.Stat, output, groupBy string) error {
	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	if len(stats) == 0 {
		fmt.Fprintln(w, "No matching queries found.")
		return nil
	}

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Top %d slowest groups by %s", len(stats), groupLabel(groupBy))))
	fmt.Fprintln(w, statsTable(stats).Render())

	if len(stats[0].Examples) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Slowest example"))
		fmt.Fprint(w, describeExample(stats[0].Examples[0]))
	}
	return nil
}

func statsTable(stats []telemetry.Stat) *table.Table {
	rows := make([][]string, 0, len(stats))
	for i, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.Name,
			strconv.Itoa(s.Count),
			ms(s.AvgElapsedMs),
			ms(s.MaxElapsedMs),
			ms(s.MinElapsedMs),
			lastSeen(s),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "Name", "Count", "Avg", "Max", "Min", "Last Seen").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row == 0 && col == avgColumn {
				return slowStyle
			}
			return cellStyle
		})
}

func describeExample(rec telemetry.QueryRecord) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label+":"), value)
		}
	}

	line("Query", rec.Name)
	line("Elapsed", ms(rec.ElapsedMs))
	line("Outcome", rec.Outcome)
	line("Attempts", strconv.Itoa(rec.Attempts))
	if rec.RequestPath != "" {
		line("Endpoint", strings.TrimSpace(rec.RequestMethod+" "+rec.RequestPath))
	}
	line("Request ID", rec.RequestID)
	line("Params", formatParams(rec.Params))
	line("Statement", strings.TrimSpace(rec.Statement))
	line("Error", rec.Error)
	return b.String()
}

// formatParams renders params with sorted keys. Values were redacted before
// they were written.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, " ")
}

func ms(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "ms"
}

func lastSeen(s telemetry.Stat) string {
	if s.LastSeen.IsZero() {
		return "-"
	}
	return s.LastSeen.Local().Format("2006-01-02 15:04:05")
}

func groupLabel(groupBy string) string {
	if groupBy == "" {
		return telemetry.GroupByQueryName
	}
	return groupBy
}
