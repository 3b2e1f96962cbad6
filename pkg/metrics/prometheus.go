package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scanCycles    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	anomalies     prometheus.Counter
	alertsSent    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	instruments   prometheus.Gauge
	wsClients     prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		scanCycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heatpulse_scan_cycles_total",
				Help: "Total number of completed scan cycles by status",
			},
			[]string{"status"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "heatpulse_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		anomalies: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "heatpulse_anomalies_detected_total",
				Help: "Total number of anomalies detected",
			},
		),
		alertsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heatpulse_alerts_total",
				Help: "Total number of alerts by delivery channel",
			},
			[]string{"channel"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heatpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		instruments: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "heatpulse_instruments_scanned",
				Help: "Number of instruments scored in the latest cycle",
			},
		),
		wsClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "heatpulse_ws_clients",
				Help: "Currently connected websocket subscribers",
			},
		),
	}
}

// RecordScan records a finished scan cycle.
func (r *Recorder) RecordScan(status string) {
	r.scanCycles.WithLabelValues(status).Inc()
}

// RecordStage records a pipeline stage duration in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordAnomalies records detected anomalies.
func (r *Recorder) RecordAnomalies(n int) {
	r.anomalies.Add(float64(n))
}

// RecordAlerts records alerts sent through a channel.
func (r *Recorder) RecordAlerts(channel string, n int) {
	r.alertsSent.WithLabelValues(channel).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordInstruments records the size of the latest scored batch.
func (r *Recorder) RecordInstruments(n int) {
	r.instruments.Set(float64(n))
}

// RecordWSClients records the current subscriber count.
func (r *Recorder) RecordWSClients(n int) {
	r.wsClients.Set(float64(n))
}
