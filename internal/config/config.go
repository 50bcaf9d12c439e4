package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	F13    F13Config    `yaml:"f13" mapstructure:"f13"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the REST server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// F13Config configures the SEC 13F ingestion pipeline.
type F13Config struct {
	UserAgent          string  `yaml:"user_agent" mapstructure:"user_agent"`
	ArchiveRoot        string  `yaml:"archive_root" mapstructure:"archive_root"`
	FeedURL            string  `yaml:"feed_url" mapstructure:"feed_url"`
	TargetQuarter      string  `yaml:"target_quarter" mapstructure:"target_quarter"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries         int     `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs     int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	PostSuccessDelayMs int     `yaml:"post_success_delay_ms" mapstructure:"post_success_delay_ms"`
	RateLimit          float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests/sec per host, 0 = off
	ProgressEvery      int     `yaml:"progress_every" mapstructure:"progress_every"`
	TickersFile        string  `yaml:"tickers_file" mapstructure:"tickers_file"`
	TickersSource      string  `yaml:"tickers_source" mapstructure:"tickers_source"` // file or db
	Schedule           string  `yaml:"schedule" mapstructure:"schedule"`
	ScheduleEnabled    bool    `yaml:"schedule_enabled" mapstructure:"schedule_enabled"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HOLDINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("f13.user_agent", "Sells Advisors blake@sellsadvisors.com")
	v.SetDefault("f13.archive_root", "https://www.sec.gov/Archives")
	v.SetDefault("f13.feed_url", "https://www.sec.gov/cgi-bin/browse-edgar?action=getcurrent&CIK=&type=13F-HR&output=atom")
	v.SetDefault("f13.target_quarter", "")
	v.SetDefault("f13.timeout_secs", 60)
	v.SetDefault("f13.max_retries", 3)
	v.SetDefault("f13.retry_backoff_ms", 1000)
	v.SetDefault("f13.post_success_delay_ms", 100)
	v.SetDefault("f13.rate_limit", 0)
	v.SetDefault("f13.progress_every", 200)
	v.SetDefault("f13.tickers_file", "13FTickers.csv")
	v.SetDefault("f13.tickers_source", "file")
	v.SetDefault("f13.schedule", "0 0 6 * * *")
	v.SetDefault("f13.schedule_enabled", false)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store.driver %q (valid: postgres, sqlite)", c.Store.Driver)
	}
	switch c.F13.TickersSource {
	case "file", "db":
	default:
		return eris.Errorf("config: unknown f13.tickers_source %q (valid: file, db)", c.F13.TickersSource)
	}
	if strings.TrimSpace(c.F13.UserAgent) == "" {
		return eris.New("config: f13.user_agent must not be empty (SEC requires a descriptive User-Agent)")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
