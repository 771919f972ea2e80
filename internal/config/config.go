package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port           string   `env:"PORT" envDefault:"2000"`
	DBPath         string   `env:"AQUA_RISK_DB_PATH" envDefault:"data/aqua_risk.db"`
	FinancialModel string   `env:"AQUA_RISK_FINANCIAL_MODEL" envDefault:"ml_models/financial_model.json"`
	TechnicalModel string   `env:"AQUA_RISK_TECHNICAL_MODEL" envDefault:"ml_models/technical_model.json"`
	AllowedOrigins []string `env:"AQUA_RISK_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:2000,http://127.0.0.1:2000"`
	SilentDB       bool     `env:"AQUA_RISK_SILENT_DB" envDefault:"true"`
	Sequential     bool     `env:"AQUA_RISK_SEQUENTIAL_SCORING"`
	KafkaBrokers   []string `env:"AQUA_RISK_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"AQUA_RISK_KAFKA_TOPIC" envDefault:"aqua-risk.assessments"`
	LogLevel       string   `env:"AQUA_RISK_LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"AQUA_RISK_LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AllowedOrigins = compact(cfg.AllowedOrigins)
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, errors.New("PORT is empty"))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("AQUA_RISK_DB_PATH is empty"))
	}
	if strings.TrimSpace(c.FinancialModel) == "" || strings.TrimSpace(c.TechnicalModel) == "" {
		errs = append(errs, errors.New("both model paths are required"))
	}
	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("AQUA_RISK_KAFKA_TOPIC is empty"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// EventsEnabled reports whether a Kafka sink is configured.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ConfigureLogging applies the level and formatter to the standard logger.
func (c Config) ConfigureLogging() {
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if strings.EqualFold(c.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func compact(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
