package main

import (
	"context"

	"github.com/sells-group/fredqa/internal/eval"
	"github.com/sells-group/fredqa/internal/fred"
	"github.com/sells-group/fredqa/internal/monitoring"
)

func evalSnapshot(r *eval.Report, threshold float64) *monitoring.Snapshot {
	return &monitoring.Snapshot{
		RunID:            r.RunID,
		EvalTotal:        r.Summary.Total,
		EvalFailed:       r.Summary.NumFailed,
		EvalPassRate:     r.Summary.PassRate,
		CriticalFailures: r.Summary.CriticalFailureCount,
		PassThreshold:    threshold,
	}
}

func ingestSnapshot(res *fred.SyncResult) *monitoring.Snapshot {
	snap := &monitoring.Snapshot{IngestTotal: len(res.Series)}
	for _, s := range res.Failed() {
		snap.IngestFailed = append(snap.IngestFailed, s.SeriesID)
	}
	return snap
}

// notify sends alerts for snap when a webhook is configured.
func notify(ctx context.Context, snap *monitoring.Snapshot) {
	if cfg == nil || cfg.Monitoring.WebhookURL == "" {
		return
	}
	monitoring.NewAlerter(cfg.Monitoring).Notify(ctx, snap)
}
