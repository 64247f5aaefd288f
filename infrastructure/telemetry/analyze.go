package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Grouping keys understood by AnalyzeLog.
const (
	GroupByQueryName   = "query_name"
	GroupByRequestPath = "request_path"
	GroupByRequestID   = "request_id"
)

// AnalyzeOptions filters and shapes a log analysis.
type AnalyzeOptions struct {
	MinElapsedMs float64
	GroupBy      string
	TopN         int
	Examples     int
}

type logLine struct {
	Context *QueryRecord `json:"context"`
}

// GroupKey returns the function extracting the grouping key for groupBy.
func GroupKey(groupBy string) (func(QueryRecord) string, error) {
	switch strings.ToLower(strings.TrimSpace(groupBy)) {
	case "", GroupByQueryName, "name":
		return func(r QueryRecord) string { return r.Name }, nil
	case GroupByRequestPath, "path":
		return func(r QueryRecord) string { return r.RequestPath }, nil
	case GroupByRequestID:
		return func(r QueryRecord) string { return r.RequestID }, nil
	default:
		return nil, fmt.Errorf("unsupported group-by %q (want %s, %s or %s)",
			groupBy, GroupByQueryName, GroupByRequestPath, GroupByRequestID)
	}
}

// AnalyzeLog reads lines written by FileSink and ranks groups by average
// elapsed time. Malformed lines are skipped.
func AnalyzeLog(r io.Reader, opts AnalyzeOptions) ([]Stat, error) {
	key, err := GroupKey(opts.GroupBy)
	if err != nil {
		return nil, err
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.Examples <= 0 {
		opts.Examples = 3
	}

	var records []QueryRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var parsed logLine
		if err := json.Unmarshal(line, &parsed); err != nil || parsed.Context == nil {
			continue
		}
		records = append(records, *parsed.Context)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read slow query log: %w", err)
	}

	return Aggregate(records, key, opts.MinElapsedMs, opts.TopN, opts.Examples), nil
}

// AnalyzeFile runs AnalyzeLog over path. A missing file yields no stats.
func AnalyzeFile(path string, opts AnalyzeOptions) ([]Stat, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Stat{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return AnalyzeLog(f, opts)
}
