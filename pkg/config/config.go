package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Auth struct {
		Password string `yaml:"password"`
	} `yaml:"auth"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		AlertTopic   string   `yaml:"alert_topic"`
		LogTopic     string   `yaml:"log_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Scanner struct {
		IntervalMinutes   int `yaml:"interval_minutes"`
		TopNForSentiment  int `yaml:"top_n_for_sentiment"`
		RankingSize       int `yaml:"ranking_size"`
		BroadcastTopAnoms int `yaml:"broadcast_top_anomalies"`
	} `yaml:"scanner"`
	HeatWeights struct {
		VolumeRatio  float64 `yaml:"volume_ratio"`
		TurnoverRate float64 `yaml:"turnover_rate"`
		Amount       float64 `yaml:"amount"`
		Trade        float64 `yaml:"trade"`
		Sentiment    float64 `yaml:"sentiment"`
		Guba         float64 `yaml:"guba"`
		HotList      float64 `yaml:"hot_list"`
	} `yaml:"heat_weights"`
	Detection struct {
		ZScoreThreshold float64       `yaml:"zscore_threshold"`
		WindowSize      int           `yaml:"window_size"`
		MinDataPoints   int           `yaml:"min_data_points"`
		BoxCVMax        float64       `yaml:"box_cv_max"`
		BreakoutMin     float64       `yaml:"breakout_min"`
		HeatLiftMin     float64       `yaml:"heat_lift_min"`
		HeatLiftWarm    float64       `yaml:"heat_lift_warm"`
		WarmMean        float64       `yaml:"warm_mean"`
		MinTradeHeat    float64       `yaml:"min_trade_heat"`
		SentimentWindow time.Duration `yaml:"sentiment_window"`
	} `yaml:"detection"`
	Alert struct {
		DedupMinutes int    `yaml:"dedup_minutes"`
		WebhookType  string `yaml:"webhook_type"`
		WebhookURL   string `yaml:"webhook_url"`
	} `yaml:"alert"`
	Sources struct {
		QuoteURL    string        `yaml:"quote_url"`
		GubaURL     string        `yaml:"guba_url"`
		HotListURL  string        `yaml:"hot_list_url"`
		Timeout     time.Duration `yaml:"timeout"`
		GubaRPS     float64       `yaml:"guba_rps"`
		QuotePageSz int           `yaml:"quote_page_size"`
	} `yaml:"sources"`
	Data struct {
		RetentionDays int    `yaml:"retention_days"`
		CleanupCron   string `yaml:"cleanup_cron"`
	} `yaml:"data"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alert.WebhookURL = v
	}
	if v := os.Getenv("AUTH_PASSWORD"); v != "" {
		c.Auth.Password = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Scanner.IntervalMinutes <= 0 {
		c.Scanner.IntervalMinutes = 5
	}
	if c.Scanner.TopNForSentiment <= 0 {
		c.Scanner.TopNForSentiment = 50
	}
	if c.Scanner.RankingSize <= 0 {
		c.Scanner.RankingSize = 50
	}
	if c.Scanner.BroadcastTopAnoms <= 0 {
		c.Scanner.BroadcastTopAnoms = 10
	}
	if c.Detection.ZScoreThreshold == 0 {
		c.Detection.ZScoreThreshold = 2.5
	}
	if c.Detection.WindowSize <= 0 {
		c.Detection.WindowSize = 20
	}
	if c.Detection.MinDataPoints <= 0 {
		c.Detection.MinDataPoints = 5
	}
	if c.Detection.BoxCVMax == 0 {
		c.Detection.BoxCVMax = 0.3
	}
	if c.Detection.BreakoutMin == 0 {
		c.Detection.BreakoutMin = 3.0
	}
	if c.Detection.HeatLiftMin == 0 {
		c.Detection.HeatLiftMin = 1.0
	}
	if c.Detection.HeatLiftWarm == 0 {
		c.Detection.HeatLiftWarm = 2.0
	}
	if c.Detection.WarmMean == 0 {
		c.Detection.WarmMean = 0.05
	}
	if c.Detection.MinTradeHeat == 0 {
		c.Detection.MinTradeHeat = 0.08
	}
	if c.Detection.SentimentWindow <= 0 {
		c.Detection.SentimentWindow = 10 * time.Minute
	}
	if c.Alert.DedupMinutes <= 0 {
		c.Alert.DedupMinutes = 30
	}
	if c.Sources.Timeout <= 0 {
		c.Sources.Timeout = 15 * time.Second
	}
	if c.Sources.GubaRPS <= 0 {
		c.Sources.GubaRPS = 5
	}
	if c.Sources.QuotePageSz <= 0 {
		c.Sources.QuotePageSz = 200
	}
	if c.Data.RetentionDays <= 0 {
		c.Data.RetentionDays = 90
	}
	if c.Data.CleanupCron == "" {
		c.Data.CleanupCron = "0 3 * * *"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if t := c.Alert.WebhookType; t != "" && t != "feishu" && t != "dingtalk" {
		return fmt.Errorf("alert.webhook_type must be 'feishu' or 'dingtalk', got '%s'", t)
	}
	w := c.HeatWeights
	if w.VolumeRatio+w.TurnoverRate+w.Amount <= 0 {
		return fmt.Errorf("heat_weights: trade component weights must sum above zero")
	}
	if w.Trade+w.Sentiment <= 0 {
		return fmt.Errorf("heat_weights: trade and sentiment weights must sum above zero")
	}
	return nil
}
