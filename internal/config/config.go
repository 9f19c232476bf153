package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"fedigraph/internal/logging"

	"github.com/joho/godotenv"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const DefaultURL = "https://www.kaggle.com/api/v1/datasets/download/marcdamie/fediverse-graph-dataset"

type Config struct {
	Dataset struct {
		Root     string        `yaml:"root"`
		URL      string        `yaml:"url"`
		Username string        `yaml:"username"` // Kaggle user name
		Key      string        `yaml:"key"`      // Kaggle API key
		Timeout  time.Duration `yaml:"timeout"`
		Retries  int           `yaml:"retries"` // retries after the first attempt
		// leading archive path components to drop on extraction
		StripComponents int `yaml:"strip_components"`
	} `yaml:"dataset"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Dataset.Root = defaultRoot()
	cfg.Dataset.URL = DefaultURL
	cfg.Dataset.Timeout = 30 * time.Minute
	cfg.Dataset.Retries = 3
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Store.Path = "fedigraph.db"
	return &cfg
}

func defaultRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", "fedigraph-data")
	}
	return filepath.Join(dir, "fedigraph")
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error. Environment variables (optionally from .env) override both.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := validateDocument(file); err != nil {
				return nil, fmt.Errorf("invalid %s: %w", path, err)
			}
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("FEDIGRAPH_DATA_DIR"); v != "" {
		cfg.Dataset.Root = v
	}
	if v := os.Getenv("FEDIGRAPH_DATASET_URL"); v != "" {
		cfg.Dataset.URL = v
	}
	if v := os.Getenv("KAGGLE_USERNAME"); v != "" {
		cfg.Dataset.Username = v
	}
	if v := os.Getenv("KAGGLE_KEY"); v != "" {
		cfg.Dataset.Key = v
	}
	if v := os.Getenv("FEDIGRAPH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FEDIGRAPH_RETRIES: %w", err)
		}
		cfg.Dataset.Retries = n
	}
	if v := os.Getenv("FEDIGRAPH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Attempts is the total number of download attempts.
func (c *Config) Attempts() int {
	return c.Dataset.Retries + 1
}

func (c *Config) Validate() error {
	if c.Dataset.Root == "" {
		return errors.New("dataset.root must not be empty")
	}
	if c.Dataset.URL == "" {
		return errors.New("dataset.url must not be empty")
	}
	if c.Dataset.Retries < 0 {
		return errors.New("dataset.retries must not be negative")
	}
	if c.Dataset.StripComponents < 0 {
		return errors.New("dataset.strip_components must not be negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !logging.ValidFormat(c.Log.Format) {
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

//go:embed config.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadCompiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.schema.json")
	})
	return compiledSchema, schemaErr
}

// validateDocument checks a raw YAML config file against the embedded
// schema, so misspelled keys fail loudly instead of being ignored.
func validateDocument(file []byte) error {
	var doc any
	if err := yaml.Unmarshal(file, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	schema, err := loadCompiledSchema()
	if err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	// normalize YAML scalars to their JSON forms
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
