package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Edgar    EdgarConfig    `yaml:"edgar" mapstructure:"edgar"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Manifest ManifestConfig `yaml:"manifest" mapstructure:"manifest"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// EdgarConfig holds settings for the remote EDGAR endpoints. UserAgent is
// required by the SEC's fair access policy and must identify the caller;
// sessions refuse to start without it.
type EdgarConfig struct {
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// FetchConfig configures download behavior.
type FetchConfig struct {
	Dest        string `yaml:"dest" mapstructure:"dest"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Parallel    int    `yaml:"parallel" mapstructure:"parallel"`
	FailFast    bool   `yaml:"fail_fast" mapstructure:"fail_fast"`
}

// ManifestConfig configures the local download manifest database.
type ManifestConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FILINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. The SEC asks clients to stay at or under 10 req/s; the
	// batch size matches the browse-edgar default page size.
	v.SetDefault("edgar.user_agent", "")
	v.SetDefault("edgar.base_url", "https://www.sec.gov/")
	v.SetDefault("edgar.rate_limit", 10)
	v.SetDefault("edgar.burst", 10)
	v.SetDefault("fetch.dest", "filings")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.batch_size", 10)
	v.SetDefault("fetch.parallel", 1)
	v.SetDefault("manifest.path", "filings.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
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
