package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wisdom-backend/infrastructure/telemetry"
)

type liveOptions struct {
	baseURL string
	top     int
	output  string
	timeout time.Duration
}

type slowQueryResponse struct {
	Results []telemetry.Stat `json:"results"`
}

func newLiveCmd() *cobra.Command {
	opts := &liveOptions{}

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Rank queries held in a running server's memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(opts.output); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			stats, err := fetchSlowQueries(ctx, http.DefaultClient, opts.baseURL, opts.top)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), stats, opts.output, telemetry.GroupByQueryName)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the API server")
	flags.IntVarP(&opts.top, "top", "n", 10, "number of queries to show")
	flags.StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func fetchSlowQueries(ctx context.Context, client *http.Client, baseURL string, top int) ([]telemetry.Stat, error) {
	endpoint, err := url.Parse(strings.TrimRight(baseURL, "/") + "/api/v1/admin/slow-queries")
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	endpoint.RawQuery = url.Values{"top": {strconv.Itoa(top)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch slow queries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch slow queries: %s", resp.Status)
	}

	var body slowQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode slow queries: %w", err)
	}
	return body.Results, nil
}
