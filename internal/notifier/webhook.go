package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"HeatPulse/internal/domain/models"
	domrepo "HeatPulse/internal/domain/repository"
	xhttp "HeatPulse/pkg/http"
	applogger "HeatPulse/pkg/logger"
)

// digestLimit caps the number of instruments listed in one webhook message.
const digestLimit = 10

// Config selects the webhook channel. An empty URL disables delivery;
// dedup and persistence still run.
type Config struct {
	WebhookType string // "feishu" or "dingtalk"
	WebhookURL  string
	DedupWindow time.Duration
}

// Notifier filters anomalies through the dedup window, persists the
// survivors as alerts and delivers one digest message per scan cycle.
type Notifier struct {
	cfg     Config
	store   domrepo.AlertStore
	bus     domrepo.AlertPublisher
	client  *xhttp.Client
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func New(cfg Config, store domrepo.AlertStore, bus domrepo.AlertPublisher, client *xhttp.Client, metrics domrepo.Metrics, l *applogger.Logger) *Notifier {
	return &Notifier{cfg: cfg, store: store, bus: bus, client: client, metrics: metrics, l: l}
}

// Notify runs the full alert path for one batch of anomalies. Webhook
// and bus failures are logged, not returned: the alerts are already
// persisted by then and the scan must not fail over delivery.
func (n *Notifier) Notify(ctx context.Context, anomalies []models.Anomaly, now time.Time) ([]models.Alert, error) {
	if len(anomalies) == 0 {
		return nil, nil
	}

	since := now.Add(-n.cfg.DedupWindow)
	alerts := make([]models.Alert, 0, len(anomalies))
	for _, a := range anomalies {
		dup, err := n.store.HasRecent(ctx, a.Code, since)
		if err != nil {
			return nil, fmt.Errorf("dedup check %s: %w", a.Code, err)
		}
		if dup {
			continue
		}
		alerts = append(alerts, models.Alert{
			Code:        a.Code,
			Name:        a.Name,
			TotalHeat:   a.TotalHeat,
			ZScore:      a.ZScore,
			ChangePct:   a.ChangePct,
			VolumeRatio: a.VolumeRatio,
			Ts:          now,
		})
	}
	if len(alerts) == 0 {
		n.l.Info("all anomalies deduped, skipping")
		return nil, nil
	}

	if err := n.store.InsertAlerts(ctx, alerts); err != nil {
		return nil, fmt.Errorf("store alerts: %w", err)
	}
	n.l.Info("stored alerts", applogger.Int("count", len(alerts)))

	if n.cfg.WebhookURL != "" {
		if err := n.send(ctx, alerts); err != nil {
			n.metrics.RecordError("webhook")
			n.l.Error("webhook send failed", applogger.Error(err))
		} else {
			n.metrics.RecordAlerts(n.cfg.WebhookType, len(alerts))
			n.l.Info("sent webhook",
				applogger.String("channel", n.cfg.WebhookType),
				applogger.Int("count", len(alerts)),
			)
		}
	}

	if err := n.bus.PublishAlerts(ctx, alerts); err != nil {
		n.metrics.RecordError("alert_bus")
		n.l.Error("alert bus publish failed", applogger.Error(err))
	}
	return alerts, nil
}

// FormatDigest renders the alert digest sent to the webhook channel.
func FormatDigest(alerts []models.Alert) string {
	var b strings.Builder
	b.WriteString("🔥 A股热度异常告警\n")
	for i, a := range alerts {
		if i == digestLimit {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s(%s) 热度:%.3f Z:%.1f 涨跌:%.2f%% 量比:%.2f",
			i+1, a.Name, a.Code, a.TotalHeat, a.ZScore, a.ChangePct, a.VolumeRatio)
	}
	return b.String()
}

func (n *Notifier) send(ctx context.Context, alerts []models.Alert) error {
	text := FormatDigest(alerts)

	var body interface{}
	switch n.cfg.WebhookType {
	case "feishu":
		body = map[string]interface{}{
			"msg_type": "text",
			"content":  map[string]string{"text": text},
		}
	default: // dingtalk
		body = map[string]interface{}{
			"msgtype": "text",
			"text":    map[string]string{"content": text},
		}
	}

	resp, err := n.client.SendRequest(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    n.cfg.WebhookURL,
		Body:   body,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
