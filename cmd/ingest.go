package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/config"
	"github.com/sells-group/fredqa/internal/fetcher"
	"github.com/sells-group/fredqa/internal/fred"
	"github.com/sells-group/fredqa/internal/metrics"
	"github.com/sells-group/fredqa/internal/resilience"
)

var (
	ingestSeries []string
	ingestStart  string
	ingestEnd    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Download FRED series metadata and observations into the store",
	Long:  "Fetches every catalog series (or --series) from the FRED API and upserts metadata and observations. Missing values (\".\") are stored as nulls.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.FRED.APIKey == "" {
			return eris.New("ingest: fred.api_key is required (FREDQA_FRED_API_KEY)")
		}

		ids := ingestSeries
		if len(ids) == 0 {
			catalog, err := config.LoadCatalog(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			ids = catalog.IDs()
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client := fred.NewClient(newFetcher(cfg.FRED), cfg.FRED.APIKey, fred.WithBaseURL(cfg.FRED.BaseURL))
		syncer := fred.NewSyncer(client, st, metrics.New())

		opts := fred.SyncOptions{
			Start:       cfg.FRED.Start,
			End:         cfg.FRED.End,
			Concurrency: cfg.FRED.Concurrency,
		}
		if ingestStart != "" {
			opts.Start = ingestStart
		}
		if ingestEnd != "" {
			opts.End = ingestEnd
		}

		res, err := syncer.Sync(ctx, ids, opts)
		if err != nil {
			return err
		}
		if err := writeSyncTable(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		notify(ctx, ingestSnapshot(res))

		if failed := res.Failed(); len(failed) > 0 {
			return eris.Errorf("ingest: %d of %d series failed", len(failed), len(res.Series))
		}
		zap.L().Info("ingest complete",
			zap.Int("series", len(res.Series)),
			zap.Int64("rows", res.Rows()),
		)
		return nil
	},
}

// newFetcher builds the rate-limited FRED fetcher from config.
func newFetcher(c config.FREDConfig) *fetcher.HTTPFetcher {
	retry := resilience.NewRetryConfig(
		c.MaxRetries,
		time.Duration(c.InitialBackoff)*time.Millisecond,
		30*time.Second,
	)
	retry.OnRetry = resilience.RetryLogger("fred", "download")
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: c.UserAgent,
		Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		Retry:     retry,
	})
}

func writeSyncTable(w io.Writer, res *fred.SyncResult) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Series", "Observations", "Missing", "Upserted", "Elapsed", "Error"})
	rows := make([][]string, 0, len(res.Series))
	for _, s := range res.Series {
		errText := ""
		if s.Err != nil {
			errText = fmt.Sprintf("%s: %v", resilience.Classify(s.Err), s.Err)
		}
		rows = append(rows, []string{
			s.SeriesID,
			strconv.Itoa(s.Observations),
			strconv.Itoa(s.Missing),
			strconv.FormatInt(s.Upserted, 10),
			s.Elapsed.Round(time.Millisecond).String(),
			errText,
		})
	}
	if err := table.Bulk(rows); err != nil {
		return eris.Wrap(err, "ingest: table rows")
	}
	return eris.Wrap(table.Render(), "ingest: render table")
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestSeries, "series", nil, "series ids (default: catalog)")
	ingestCmd.Flags().StringVar(&ingestStart, "start", "", "observation start YYYY-MM-DD (default fred.start)")
	ingestCmd.Flags().StringVar(&ingestEnd, "end", "", "observation end YYYY-MM-DD (default fred.end)")
	rootCmd.AddCommand(ingestCmd)
}
