package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"wisdom-backend/infrastructure/telemetry"
)

type analyzeOptions struct {
	logFile string
	minTime float64
	groupBy string
	top     int
	output  string
}

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Rank queries recorded in the slow query log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(opts.output); err != nil {
				return err
			}
			if _, err := os.Stat(opts.logFile); os.IsNotExist(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "Log file not found: %s\n", opts.logFile)
				return nil
			}

			stats, err := telemetry.AnalyzeFile(opts.logFile, telemetry.AnalyzeOptions{
				MinElapsedMs: opts.minTime,
				GroupBy:      opts.groupBy,
				TopN:         opts.top,
				Examples:     3,
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), stats, opts.output, opts.groupBy)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.logFile, "log-file", defaultLogFile(), "slow query log to analyze")
	flags.Float64Var(&opts.minTime, "min-time", 0, "ignore queries faster than this many milliseconds")
	flags.StringVar(&opts.groupBy, "group-by", telemetry.GroupByQueryName, "group by query_name, request_path or request_id")
	flags.IntVarP(&opts.top, "top", "n", 10, "number of groups to show")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	return cmd
}

func defaultLogFile() string {
	if path := os.Getenv("SLOW_QUERY_LOG_FILE"); path != "" {
		return path
	}
	return filepath.Join("logs", telemetry.DefaultLogFile)
}

func validateOutput(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output %q (want table or json)", output)
	}
	return nil
}
