package reconcile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// writeMetrics exports the report as Prometheus gauges in the text format read
// by node_exporter's textfile collector.
func writeMetrics(path string, report Report) error {
	registry := prometheus.NewRegistry()

	items := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cardsync",
		Subsystem: "reconcile",
		Name:      "items",
		Help:      "Catalog items by outcome in the last reconciliation run.",
	}, []string{"outcome"})
	strategies := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cardsync",
		Subsystem: "reconcile",
		Name:      "strategy_matches",
		Help:      "Matches per strategy in the last reconciliation run.",
	}, []string{"strategy"})
	status := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cardsync",
		Subsystem: "reconcile",
		Name:      "status",
		Help:      "Outcome of the last reconciliation run (1 for the reported status).",
	}, []string{"status"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cardsync",
		Subsystem: "reconcile",
		Name:      "duration_seconds",
		Help:      "Wall time of the last reconciliation run.",
	})
	written := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cardsync",
		Subsystem: "reconcile",
		Name:      "records_written",
		Help:      "Records written by the last reconciliation run.",
	})
	registry.MustRegister(items, strategies, status, duration, written)

	for outcome, value := range map[string]int{
		"matched":     report.Matched,
		"unmatched":   report.Unmatched,
		"provisional": report.Provisional,
		"skipped":     report.Skipped,
		"failed":      report.Failed,
	} {
		items.WithLabelValues(outcome).Set(float64(value))
	}
	for name, count := range report.ByStrategy {
		strategies.WithLabelValues(name).Set(float64(count))
	}
	status.WithLabelValues(string(report.Status)).Set(1)
	duration.Set(report.Duration().Seconds())
	written.Set(float64(report.Written))

	if report.Succeeded() {
		lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cardsync",
			Subsystem: "reconcile",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last successful reconciliation run finished.",
		})
		registry.MustRegister(lastSuccess)
		lastSuccess.Set(float64(report.Finished.Unix()))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
