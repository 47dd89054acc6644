// Package config loads fredqa settings, the series catalog and the global
// logger.
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	FRED       FREDConfig       `yaml:"fred" mapstructure:"fred"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Cards      CardsConfig      `yaml:"cards" mapstructure:"cards"`
	Answer     AnswerConfig     `yaml:"answer" mapstructure:"answer"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Eval       EvalConfig       `yaml:"eval" mapstructure:"eval"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig selects the observation store. Driver is "sqlite" or
// "postgres"; for sqlite DatabaseURL is a file path.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FREDConfig configures ingestion from the FRED API.
type FREDConfig struct {
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Start          string `yaml:"start" mapstructure:"start"`
	End            string `yaml:"end" mapstructure:"end"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoff int    `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// CatalogConfig points at the series catalog. An empty path uses the
// built-in catalog.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// CardsConfig configures series cards.
type CardsConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Recent int    `yaml:"recent" mapstructure:"recent"`
}

// AnswerConfig tunes the answering flow.
type AnswerConfig struct {
	RetrievalK        int     `yaml:"retrieval_k" mapstructure:"retrieval_k"`
	MinRetrievalScore float64 `yaml:"min_retrieval_score" mapstructure:"min_retrieval_score"`
	SnippetChars      int     `yaml:"snippet_chars" mapstructure:"snippet_chars"`
	Hints             bool    `yaml:"hints" mapstructure:"hints"`
}

// AnthropicConfig holds Anthropic API settings for slot hinting.
type AnthropicConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxTokens     int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// EvalConfig configures evaluation runs.
type EvalConfig struct {
	Golden          string  `yaml:"golden" mapstructure:"golden"`
	Refusals        string  `yaml:"refusals" mapstructure:"refusals"`
	ReportDir       string  `yaml:"report_dir" mapstructure:"report_dir"`
	VerifierMap     string  `yaml:"verifier_map" mapstructure:"verifier_map"`
	Workers         int     `yaml:"workers" mapstructure:"workers"`
	CaseTimeoutSecs int     `yaml:"case_timeout_secs" mapstructure:"case_timeout_secs"`
	PassThreshold   float64 `yaml:"pass_threshold" mapstructure:"pass_threshold"`
	XLSX            bool    `yaml:"xlsx" mapstructure:"xlsx"`
	Seed            uint64  `yaml:"seed" mapstructure:"seed"`
}

// ServerConfig configures `fredqa serve`.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run alerts. An empty WebhookURL disables
// delivery.
type MonitoringConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	MinCases   int    `yaml:"min_cases" mapstructure:"min_cases"`
}

// Load reads config.yaml from the working directory (optional) and FREDQA_*
// environment variables over built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FREDQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/fredqa.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.min_conns", 0)
	v.SetDefault("fred.api_key", "")
	v.SetDefault("fred.end", "")
	v.SetDefault("catalog.path", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("eval.verifier_map", "")
	v.SetDefault("eval.xlsx", false)
	v.SetDefault("fred.base_url", "https://api.stlouisfed.org/fred")
	v.SetDefault("fred.start", "1990-01-01")
	v.SetDefault("fred.concurrency", 2)
	v.SetDefault("fred.timeout_secs", 30)
	v.SetDefault("fred.max_retries", 3)
	v.SetDefault("fred.initial_backoff_ms", 1000)
	v.SetDefault("fred.user_agent", "fredqa/1.0")
	v.SetDefault("cards.dir", "data/cards")
	v.SetDefault("cards.recent", 12)
	v.SetDefault("answer.retrieval_k", 3)
	v.SetDefault("answer.min_retrieval_score", 0.25)
	v.SetDefault("answer.snippet_chars", 200)
	v.SetDefault("answer.hints", false)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 256)
	v.SetDefault("anthropic.min_confidence", 0.5)
	v.SetDefault("anthropic.timeout_secs", 20)
	v.SetDefault("anthropic.max_retries", 2)
	v.SetDefault("eval.golden", "eval/golden.jsonl")
	v.SetDefault("eval.refusals", "eval/refusals.jsonl")
	v.SetDefault("eval.report_dir", "eval/reports")
	v.SetDefault("eval.workers", 4)
	v.SetDefault("eval.case_timeout_secs", 60)
	v.SetDefault("eval.pass_threshold", 0.9)
	v.SetDefault("eval.seed", 42)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.min_cases", 10)

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

// Validate rejects settings no command could run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Eval.PassThreshold < 0 || c.Eval.PassThreshold > 1 {
		return eris.Errorf("config: eval.pass_threshold %v outside [0, 1]", c.Eval.PassThreshold)
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
