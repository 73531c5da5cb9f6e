// Package config loads scanner configuration from defaults, an optional
// YAML file, a .env file and ARBSCAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hetulpatel/arbscan/internal/collectors"
	"github.com/hetulpatel/arbscan/internal/fees"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `mapstructure:"log_level"`
	VenueB     string           `mapstructure:"venue_b"`
	Scan       Scan             `mapstructure:"scan"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Opinion    OpinionConfig    `mapstructure:"opinion"`
	Kalshi     KalshiConfig     `mapstructure:"kalshi"`
	Report     ReportConfig     `mapstructure:"report"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// Scan is threaded through the whole scan pipeline.
type Scan struct {
	ArbThresholdPct       float64           `mapstructure:"arb_threshold_pct"`
	FuzzyMatchThreshold   int               `mapstructure:"fuzzy_match_threshold"`
	OutcomeMatchThreshold int               `mapstructure:"outcome_match_threshold"`
	MaxDepthUSDC          float64           `mapstructure:"max_depth_usdc"`
	FeeNotionalUSD        float64           `mapstructure:"fee_notional_usd"`
	BookLevels            int               `mapstructure:"book_levels"`
	Workers               int               `mapstructure:"workers"`
	Timeout               time.Duration     `mapstructure:"timeout"`
	Interval              time.Duration     `mapstructure:"interval"`
	FeeModelPerVenue      map[string]string `mapstructure:"fee_model_per_venue"`
}

// FeeModels parses the per-venue fee model strings.
func (s Scan) FeeModels() (map[collectors.Venue]fees.Model, error) {
	out := make(map[collectors.Venue]fees.Model, len(s.FeeModelPerVenue))
	for venue, spec := range s.FeeModelPerVenue {
		m, err := fees.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("scan.fee_model_per_venue.%s: %w", venue, err)
		}
		out[collectors.Venue(strings.ToLower(venue))] = m
	}
	return out, nil
}

// HTTPConfig is shared by every venue client.
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	MinBackoff   time.Duration `mapstructure:"min_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
}

type PolymarketConfig struct {
	BaseURL  string     `mapstructure:"base_url"`
	BookURL  string     `mapstructure:"book_url"`
	PageSize int        `mapstructure:"page_size"`
	MaxPages int        `mapstructure:"max_pages"`
	HTTP     HTTPConfig `mapstructure:"http"`
}

type OpinionConfig struct {
	BaseURL  string     `mapstructure:"base_url"`
	APIKey   string     `mapstructure:"api_key"`
	PageSize int        `mapstructure:"page_size"`
	MaxPages int        `mapstructure:"max_pages"`
	HTTP     HTTPConfig `mapstructure:"http"`
}

type KalshiConfig struct {
	BaseURL  string     `mapstructure:"base_url"`
	PageSize int        `mapstructure:"page_size"`
	MaxPages int        `mapstructure:"max_pages"`
	HTTP     HTTPConfig `mapstructure:"http"`
}

type ReportConfig struct {
	CSVPath      string `mapstructure:"csv_path"`
	MatchLog     string `mapstructure:"match_log"`
	MatchLogFile string `mapstructure:"match_log_file"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Addr              string        `mapstructure:"addr"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	Prefix            string        `mapstructure:"prefix"`
	TTL               time.Duration `mapstructure:"ttl"`
	MinImprovementPct float64       `mapstructure:"min_improvement_pct"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration. A missing .env or config file is not an error;
// an explicitly named config file that cannot be read is.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("arbscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ARBSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("log_level", "ARBSCAN_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("opinion.api_key", "ARBSCAN_OPINION_API_KEY", "OPINION_API_KEY")
	v.BindEnv("sqlite.path", "ARBSCAN_SQLITE_PATH", "SQLITE_PATH")
	v.BindEnv("redis.addr", "ARBSCAN_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "ARBSCAN_REDIS_PASSWORD", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "ARBSCAN_KAFKA_BROKERS", "KAFKA_BROKERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("venue_b", string(collectors.VenueOpinion))

	v.SetDefault("scan.arb_threshold_pct", 1.0)
	v.SetDefault("scan.fuzzy_match_threshold", 85)
	v.SetDefault("scan.outcome_match_threshold", 70)
	v.SetDefault("scan.max_depth_usdc", 1000.0)
	v.SetDefault("scan.fee_notional_usd", 100.0)
	v.SetDefault("scan.book_levels", 20)
	v.SetDefault("scan.workers", 16)
	v.SetDefault("scan.timeout", "5m")
	v.SetDefault("scan.interval", "5m")
	v.SetDefault("scan.fee_model_per_venue.polymarket", "zero")
	v.SetDefault("scan.fee_model_per_venue.opinion", "topic:0.08:0.5")
	v.SetDefault("scan.fee_model_per_venue.kalshi", "kalshi:0.07")

	for _, venue := range []string{"polymarket", "opinion", "kalshi"} {
		v.SetDefault(venue+".http.timeout", "20s")
		v.SetDefault(venue+".http.max_attempts", 3)
		v.SetDefault(venue+".http.min_backoff", "2s")
		v.SetDefault(venue+".http.max_backoff", "10s")
	}
	v.SetDefault("polymarket.base_url", "https://gamma-api.polymarket.com/events")
	v.SetDefault("polymarket.book_url", "https://clob.polymarket.com/book")
	v.SetDefault("polymarket.page_size", 500)
	v.SetDefault("polymarket.max_pages", 40)
	v.SetDefault("opinion.base_url", "https://proxy.opinion.trade:8443/openapi")
	v.SetDefault("opinion.page_size", 20)
	v.SetDefault("opinion.max_pages", 200)
	v.SetDefault("opinion.http.request_delay", "70ms")
	v.SetDefault("kalshi.base_url", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("kalshi.page_size", 200)
	v.SetDefault("kalshi.max_pages", 50)

	v.SetDefault("report.csv_path", "arb_opportunities.csv")
	v.SetDefault("report.match_log", "quiet")
	v.SetDefault("redis.prefix", "arbscan_seen")
	v.SetDefault("redis.ttl", "6h")
	v.SetDefault("redis.min_improvement_pct", 0.5)
	v.SetDefault("kafka.topic", "arb-opportunities")
}

// Validate rejects values the scanner cannot work with.
func (c *Config) Validate() error {
	s := c.Scan
	switch {
	case s.ArbThresholdPct < 0:
		return fmt.Errorf("scan.arb_threshold_pct must be >= 0, got %v", s.ArbThresholdPct)
	case s.FuzzyMatchThreshold < 1 || s.FuzzyMatchThreshold > 100:
		return fmt.Errorf("scan.fuzzy_match_threshold must be in 1..100, got %d", s.FuzzyMatchThreshold)
	case s.OutcomeMatchThreshold < 1 || s.OutcomeMatchThreshold > 100:
		return fmt.Errorf("scan.outcome_match_threshold must be in 1..100, got %d", s.OutcomeMatchThreshold)
	case s.MaxDepthUSDC <= 0:
		return fmt.Errorf("scan.max_depth_usdc must be > 0")
	case s.FeeNotionalUSD <= 0:
		return fmt.Errorf("scan.fee_notional_usd must be > 0")
	case s.BookLevels <= 0:
		return fmt.Errorf("scan.book_levels must be > 0")
	case s.Workers <= 0:
		return fmt.Errorf("scan.workers must be > 0")
	}
	if _, err := s.FeeModels(); err != nil {
		return err
	}

	switch collectors.Venue(c.VenueB) {
	case collectors.VenueOpinion:
		if c.Opinion.APIKey == "" {
			return fmt.Errorf("opinion.api_key is required when venue_b is opinion (set OPINION_API_KEY)")
		}
	case collectors.VenueKalshi:
	default:
		return fmt.Errorf("venue_b must be opinion or kalshi, got %q", c.VenueB)
	}
	return nil
}
