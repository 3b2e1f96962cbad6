package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `environment: test
clickhouse:
  host: localhost
  database: heatpulse
heat_weights:
  volume_ratio: 0.4
  turnover_rate: 0.35
  amount: 0.25
  trade: 0.6
  sentiment: 0.4
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Scanner.IntervalMinutes != 5 {
		t.Fatalf("scanner interval default: got %d", c.Scanner.IntervalMinutes)
	}
	if c.Detection.ZScoreThreshold != 2.5 {
		t.Fatalf("zscore threshold default: got %v", c.Detection.ZScoreThreshold)
	}
	if c.Alert.DedupMinutes != 30 {
		t.Fatalf("dedup default: got %d", c.Alert.DedupMinutes)
	}
	if c.Data.CleanupCron != "0 3 * * *" {
		t.Fatalf("cleanup cron default: got %q", c.Data.CleanupCron)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing environment",
			yaml: strings.Replace(validYAML, "environment: test\n", "", 1),
			want: "environment is required",
		},
		{
			name: "missing clickhouse host",
			yaml: strings.Replace(validYAML, "  host: localhost\n", "", 1),
			want: "clickhouse.host is required",
		},
		{
			name: "kafka enabled without brokers",
			yaml: validYAML + "kafka:\n  enabled: true\n",
			want: "kafka.brokers",
		},
		{
			name: "unknown webhook type",
			yaml: validYAML + "alert:\n  webhook_type: slack\n",
			want: "webhook_type",
		},
		{
			name: "zero trade component weights",
			yaml: strings.NewReplacer(
				"volume_ratio: 0.4", "volume_ratio: 0",
				"turnover_rate: 0.35", "turnover_rate: 0",
				"amount: 0.25", "amount: 0",
			).Replace(validYAML),
			want: "trade component weights",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("AUTH_PASSWORD", "s3cret")

	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ClickHouse.Host != "ch.internal" {
		t.Fatalf("clickhouse host override: got %q", c.ClickHouse.Host)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("kafka brokers override: got %v", c.Kafka.Brokers)
	}
	if c.Auth.Password != "s3cret" {
		t.Fatalf("auth password override: got %q", c.Auth.Password)
	}
}
