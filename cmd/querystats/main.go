// Command querystats ranks slow graph queries, either from the slow query
// log written by the API or from a running server's admin endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "querystats",
	Short: "Analyze slow graph queries",
	Long: `Ranks graph queries by average elapsed time.

Examples:
  querystats analyze --log-file logs/graph_slow_queries.log --min-time 200
  querystats analyze --group-by request_path --top 5 --output json
  querystats live --url http://localhost:8080 --top 20`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newLiveCmd())
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
