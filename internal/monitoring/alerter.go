// Package monitoring evaluates run outcomes against alert thresholds and
// delivers breaches to a webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertEvalPassRate         AlertType = "eval_pass_rate"
	AlertEvalCriticalFailures AlertType = "eval_critical_failures"
	AlertIngestFailure        AlertType = "ingest_failure"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Snapshot is the outcome of one eval or ingest run. Zero-valued sections
// are skipped.
type Snapshot struct {
	RunID            string
	EvalTotal        int
	EvalFailed       int
	EvalPassRate     float64
	CriticalFailures int
	PassThreshold    float64

	IngestTotal  int
	IngestFailed []string
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := a.now().UTC()

	// Small runs are too noisy for a rate alert.
	if snap.EvalTotal >= a.cfg.MinCases && snap.EvalTotal > 0 && snap.EvalPassRate < snap.PassThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertEvalPassRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Eval pass rate %.1f%% below threshold %.1f%% (%d failed / %d cases, run %s)",
				snap.EvalPassRate*100, snap.PassThreshold*100,
				snap.EvalFailed, snap.EvalTotal, snap.RunID,
			),
			Details: map[string]any{
				"pass_rate": snap.EvalPassRate,
				"threshold": snap.PassThreshold,
				"failed":    snap.EvalFailed,
				"total":     snap.EvalTotal,
				"run_id":    snap.RunID,
			},
			Timestamp: now,
		})
	}

	if snap.CriticalFailures > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertEvalCriticalFailures,
			Severity: "critical",
			Message: fmt.Sprintf(
				"%d critical verifier failure(s) in run %s",
				snap.CriticalFailures, snap.RunID,
			),
			Details: map[string]any{
				"critical_failures": snap.CriticalFailures,
				"run_id":            snap.RunID,
			},
			Timestamp: now,
		})
	}

	if len(snap.IngestFailed) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertIngestFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d of %d series failed to ingest",
				len(snap.IngestFailed), snap.IngestTotal,
			),
			Details: map[string]any{
				"failed_series": snap.IngestFailed,
				"total_series":  snap.IngestTotal,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// Notify evaluates snap and sends whatever it breaches.
func (a *Alerter) Notify(ctx context.Context, snap *Snapshot) int {
	return a.SendAlerts(ctx, a.Evaluate(snap))
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
