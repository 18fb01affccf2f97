// Package config loads Prism's project configuration from .prism.toml and
// PRISM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rHedBull/prism/internal/ingestion"
)

// FileName is the project configuration file looked up at the analyzed root.
const FileName = ".prism.toml"

// Config is the merged project configuration.
type Config struct {
	OutputDir   string `toml:"output_dir"`   // Default .callgraph
	SnapshotDir string `toml:"snapshot_dir"` // Default .callgraph/snapshots
	Workers     int    `toml:"workers"`      // 0 means GOMAXPROCS
	LogLevel    string `toml:"log_level"`

	// SkipDirs are pruned in addition to the built-in skip list.
	SkipDirs []string `toml:"skip_dirs"`

	// AbstractionLevels overrides keyword levels of the built-in lexicon.
	AbstractionLevels map[string]int `toml:"abstraction_levels"`

	Neo4j Neo4jConfig `toml:"neo4j"`
	S3    S3Config    `toml:"s3"`
}

// Neo4jConfig configures graph export.
type Neo4jConfig struct {
	URI       string `toml:"uri"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	BatchSize int    `toml:"batch_size"`
}

// S3Config configures artifact publishing to an S3-compatible store.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir:         ".callgraph",
		SnapshotDir:       filepath.Join(".callgraph", "snapshots"),
		LogLevel:          "warn",
		SkipDirs:          []string{},
		AbstractionLevels: ingestion.DefaultLevels().Keywords(),
		Neo4j: Neo4jConfig{
			URI:       "neo4j://localhost:7687",
			Username:  "neo4j",
			Database:  "neo4j",
			BatchSize: 500,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
	}
}

// Load reads root/.prism.toml on top of the defaults. A missing file is
// not an error.
func Load(root string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PRISM_* variables. getenv is usually
// os.Getenv; empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	str("PRISM_OUTPUT_DIR", &c.OutputDir)
	str("PRISM_SNAPSHOT_DIR", &c.SnapshotDir)
	str("PRISM_LOG_LEVEL", &c.LogLevel)
	str("PRISM_NEO4J_URI", &c.Neo4j.URI)
	str("PRISM_NEO4J_USERNAME", &c.Neo4j.Username)
	str("PRISM_NEO4J_PASSWORD", &c.Neo4j.Password)
	str("PRISM_NEO4J_DATABASE", &c.Neo4j.Database)
	str("PRISM_S3_ENDPOINT", &c.S3.Endpoint)
	str("PRISM_S3_BUCKET", &c.S3.Bucket)
	str("PRISM_S3_REGION", &c.S3.Region)
	str("PRISM_S3_ACCESS_KEY", &c.S3.AccessKey)
	str("PRISM_S3_SECRET_KEY", &c.S3.SecretKey)

	if v := getenv("PRISM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRISM_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := getenv("PRISM_SKIP_DIRS"); v != "" {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				c.SkipDirs = append(c.SkipDirs, d)
			}
		}
	}
	if v := getenv("PRISM_S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PRISM_S3_USE_SSL: %w", err)
		}
		c.S3.UseSSL = b
	}
	return c.Validate()
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	for keyword, level := range c.AbstractionLevels {
		if level < 0 {
			return fmt.Errorf("abstraction_levels.%s must not be negative", keyword)
		}
	}
	if c.Neo4j.BatchSize < 0 {
		return fmt.Errorf("neo4j.batch_size must not be negative")
	}
	return nil
}

// BuildOptions returns graph builder options for this configuration.
func (c *Config) BuildOptions(logger *slog.Logger) ingestion.Options {
	return ingestion.Options{
		Workers:  c.Workers,
		Levels:   ingestion.NewLevels(c.AbstractionLevels),
		SkipDirs: c.SkipDirs,
		Logger:   logger,
	}
}
