package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProtocolDef describes one protocol whose trials should be analyzed.
type ProtocolDef struct {
	Name string `yaml:"name"`
	// Definition is the trial definition file, relative to AnalyzerConfig.LogRoot.
	Definition string `yaml:"definition"`
	// Conditions labels the condition groups of a legacy (array-of-arrays) definition, by position.
	Conditions []string `yaml:"conditions"`
	// BandwidthConditions selects the conditions whose runs feed the bandwidth series.
	// Empty means all conditions.
	BandwidthConditions []string `yaml:"bandwidth_conditions"`
}

// TextConfig holds the settings for the plain text writer.
type TextConfig struct {
	RootPath string `yaml:"root_path"`
}

// GobConfig holds the settings for the gob snapshot writer.
type GobConfig struct {
	RootPath string `yaml:"root_path"`
}

// ChartConfig holds the settings for the PNG chart writer.
type ChartConfig struct {
	RootPath string `yaml:"root_path"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

// SQLiteConfig holds the settings for the SQLite writer.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NATSConfig holds the settings for the NATS report publisher.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// WriterDef defines a single result writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	Text       TextConfig       `yaml:"text"`
	Gob        GobConfig        `yaml:"gob"`
	Chart      ChartConfig      `yaml:"chart"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	NATS       NATSConfig       `yaml:"nats"`
}

// AnalyzerConfig holds the configuration for the trial analyzer.
type AnalyzerConfig struct {
	LogRoot   string        `yaml:"log_root"`
	Protocols []ProtocolDef `yaml:"protocols"`
	Writers   []WriterDef   `yaml:"writers"`
}

// AlerterRule defines a single threshold rule over condition summaries.
type AlerterRule struct {
	// Protocol and Condition restrict the rule; empty matches any.
	Protocol  string  `yaml:"protocol"`
	Condition string  `yaml:"condition"`
	Metric    string  `yaml:"metric"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the configuration for the alerter.
type AlerterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Rules   []AlerterRule `yaml:"rules"`
}

// SMTPConfig holds the settings for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// APIConfig holds the listen addresses of the query API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	GRPCAddr   string `yaml:"grpc_addr"`
	// FollowNATS makes the API serve reports received from the nats writer's subjects
	// instead of analyzing the logs itself.
	FollowNATS bool `yaml:"follow_nats"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Alerter  AlerterConfig  `yaml:"alerter"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	API      APIConfig      `yaml:"api"`
}

// Environment variables that override values from the YAML file.
const (
	EnvClickHousePassword = "TS_CLICKHOUSE_PASSWORD"
	EnvSMTPPassword       = "TS_SMTP_PASSWORD"
	EnvNATSURL            = "TS_NATS_URL"
	EnvLogLevel           = "TS_LOG_LEVEL"
)

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// A .env file next to the config is loaded first, if present.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(filePath), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	// A relative log root is relative to the config file.
	if cfg.Analyzer.LogRoot != "" && !filepath.IsAbs(cfg.Analyzer.LogRoot) {
		cfg.Analyzer.LogRoot = filepath.Join(filepath.Dir(filePath), cfg.Analyzer.LogRoot)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.SMTP.Password = v
	}
	for i := range c.Analyzer.Writers {
		w := &c.Analyzer.Writers[i]
		if v := os.Getenv(EnvClickHousePassword); v != "" {
			w.ClickHouse.Password = v
		}
		if v := os.Getenv(EnvNATSURL); v != "" {
			w.NATS.URL = v
		}
	}
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	if len(c.Analyzer.Protocols) == 0 {
		return fmt.Errorf("config: no protocols defined")
	}
	seen := make(map[string]bool)
	for _, p := range c.Analyzer.Protocols {
		if p.Name == "" {
			return fmt.Errorf("config: protocol without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: protocol '%s' defined twice", p.Name)
		}
		seen[p.Name] = true
		if p.Definition == "" {
			return fmt.Errorf("config: protocol '%s' has no definition file", p.Name)
		}
	}

	for i := range c.Analyzer.Writers {
		w := &c.Analyzer.Writers[i]
		if w.Type == "" {
			return fmt.Errorf("config: writer %d has no type", i)
		}
		if w.Chart.Width <= 0 {
			w.Chart.Width = 1000
		}
		if w.Chart.Height <= 0 {
			w.Chart.Height = 400
		}
		if w.ClickHouse.Port == 0 {
			w.ClickHouse.Port = 9000
		}
		if w.NATS.SubjectPrefix == "" {
			w.NATS.SubjectPrefix = "trialstats.reports"
		}
	}

	for _, r := range c.Alerter.Rules {
		if r.Metric != "loss" && r.Metric != "overhead" {
			return fmt.Errorf("config: alerter rule metric must be 'loss' or 'overhead', got '%s'", r.Metric)
		}
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.GRPCAddr == "" {
		c.API.GRPCAddr = ":9090"
	}
	return nil
}

// Writer returns the first enabled writer of the given type.
func (c *Config) Writer(writerType string) (WriterDef, bool) {
	for _, w := range c.Analyzer.Writers {
		if w.Enabled && w.Type == writerType {
			return w, true
		}
	}
	return WriterDef{}, false
}

// DefinitionPath returns the absolute-or-root-relative path of a protocol's definition.
func (c *Config) DefinitionPath(p ProtocolDef) string {
	if filepath.IsAbs(p.Definition) {
		return p.Definition
	}
	return filepath.Join(c.Analyzer.LogRoot, p.Definition)
}
