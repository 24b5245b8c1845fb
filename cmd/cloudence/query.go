package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafique586/cloudence/internal/collector/host"
	"github.com/rafique586/cloudence/internal/logging"
	"github.com/rafique586/cloudence/internal/models"
	"github.com/rafique586/cloudence/internal/query"
)

var queryFlags struct {
	filter   string
	lookback time.Duration
	period   time.Duration
	aligner  string
	reducer  string
	groupBy  []string
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a one-off query against the host collector and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context())
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryFlags.filter, "filter", "", "metric name filter (empty matches all)")
	queryCmd.Flags().DurationVar(&queryFlags.lookback, "lookback", 5*time.Minute, "query window ending now")
	queryCmd.Flags().DurationVar(&queryFlags.period, "period", time.Minute, "alignment bucket width")
	queryCmd.Flags().StringVar(&queryFlags.aligner, "aligner", "mean", "per-series aligner (mean, max, min, sum, count)")
	queryCmd.Flags().StringVar(&queryFlags.reducer, "reducer", "", "cross-series reducer (mean, max, min, sum; empty skips reduction)")
	queryCmd.Flags().StringSliceVar(&queryFlags.groupBy, "group-by", nil, "label fields to group by before reduction")
}

func runQuery(ctx context.Context) error {
	logging.Init(logging.Config{Format: "auto", Level: "warn", Component: "cloudence"})

	now := time.Now()
	spec := models.QuerySpec{
		Filter:          queryFlags.filter,
		Start:           now.Add(-queryFlags.lookback),
		End:             now,
		AlignmentPeriod: queryFlags.period,
		Aligner:         models.AlignerKind(queryFlags.aligner),
		Reducer:         models.ReducerKind(queryFlags.reducer),
		GroupByFields:   queryFlags.groupBy,
	}

	engine := query.New(host.New(hostnameOrDefault()))
	series, err := engine.Execute(ctx, spec)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(series)
}
