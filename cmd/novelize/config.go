package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/team-of-2/novelize/notes"
	"github.com/team-of-2/novelize/notes/fileutils"
	"github.com/team-of-2/novelize/notes/provider"
	"gopkg.in/yaml.v3"
)

const (
	providerBedrock = "bedrock"
	providerOpenAI  = "openai"

	storeFile = "file"
	storeS3   = "s3"
)

type Config struct {
	Provider    string `yaml:"provider" env:"NOVELIZE_PROVIDER"`
	Region      string `yaml:"region" env:"NOVELIZE_REGION"`
	ModelID     string `yaml:"model_id" env:"NOVELIZE_MODEL_ID"`
	OpenAIModel string `yaml:"openai_model" env:"NOVELIZE_OPENAI_MODEL"`
	APIKey      string `yaml:"-" env:"OPENAI_API_KEY"`

	WordBudget int `yaml:"word_budget" env:"NOVELIZE_WORD_BUDGET"`
	MaxChars   int `yaml:"max_chars" env:"NOVELIZE_MAX_CHARS"`
	MaxTokens  int `yaml:"max_tokens" env:"NOVELIZE_MAX_TOKENS"`

	SummaryType   string `yaml:"summary_type" env:"NOVELIZE_SUMMARY_TYPE"`
	SummaryFormat string `yaml:"summary_format" env:"NOVELIZE_SUMMARY_FORMAT"`
	SummaryLength string `yaml:"summary_length" env:"NOVELIZE_SUMMARY_LENGTH"`

	Store    string `yaml:"store" env:"NOVELIZE_STORE"`
	StoreDir string `yaml:"store_dir" env:"NOVELIZE_STORE_DIR"`
	S3Bucket string `yaml:"s3_bucket" env:"NOVELIZE_S3_BUCKET"`
	S3Prefix string `yaml:"s3_prefix" env:"NOVELIZE_S3_PREFIX"`

	Addr string `yaml:"addr" env:"NOVELIZE_ADDR"`

	OTelEndpoint string `yaml:"otel_endpoint" env:"NOVELIZE_OTEL_ENDPOINT"`
	OTelDisabled bool   `yaml:"otel_disabled" env:"NOVELIZE_OTEL_DISABLED"`

	Verbose bool `yaml:"verbose" env:"NOVELIZE_VERBOSE"`
}

func (c Config) Validate() error {
	switch c.Provider {
	case providerBedrock:
		if c.ModelID == "" {
			return errors.New("missing --model-id")
		}
	case providerOpenAI:
		if c.OpenAIModel == "" {
			return errors.New("missing --openai-model")
		}
	default:
		return fmt.Errorf("provider must be %q or %q, got %q", providerBedrock, providerOpenAI, c.Provider)
	}
	if c.WordBudget <= 0 {
		return errors.New("word-budget must be > 0")
	}
	if c.MaxChars <= 0 {
		return errors.New("max-chars must be > 0")
	}
	if c.MaxTokens <= 0 {
		return errors.New("max-tokens must be > 0")
	}
	if err := c.SummaryOptions().Validate(); err != nil {
		return err
	}
	switch c.Store {
	case storeFile:
		if c.StoreDir == "" {
			return errors.New("missing --store-dir")
		}
	case storeS3:
		if c.S3Bucket == "" {
			return errors.New("missing --s3-bucket")
		}
	default:
		return fmt.Errorf("store must be %q or %q, got %q", storeFile, storeS3, c.Store)
	}
	return nil
}

func (c Config) SummaryOptions() notes.SummaryOptions {
	return notes.SummaryOptions{Type: c.SummaryType, Format: c.SummaryFormat, Length: c.SummaryLength}
}

func defaultConfig() Config {
	d := notes.DefaultSummaryOptions()
	return Config{
		Provider:      providerBedrock,
		Region:        provider.DefaultBedrockRegion,
		ModelID:       provider.DefaultBedrockModelID,
		OpenAIModel:   provider.DefaultOpenAIModel,
		WordBudget:    notes.DefaultWordBudget,
		MaxChars:      notes.DefaultMaxParagraphChars,
		MaxTokens:     provider.DefaultMaxTokens,
		SummaryType:   d.Type,
		SummaryFormat: d.Format,
		SummaryLength: d.Length,
		Store:         storeFile,
		StoreDir:      filepath.FromSlash(".novelize/sessions"),
		Addr:          "127.0.0.1:8080",
	}
}

// bindFlags registers the persistent flags onto fs, writing into dst.
func bindFlags(fs *pflag.FlagSet, dst *Config, configPath *string) {
	def := defaultConfig()
	fs.StringVar(configPath, "config", "", "YAML config file")
	fs.StringVar(&dst.Provider, "provider", def.Provider, "model provider: bedrock or openai")
	fs.StringVar(&dst.Region, "region", def.Region, "Bedrock AWS region")
	fs.StringVar(&dst.ModelID, "model-id", def.ModelID, "Bedrock model id")
	fs.StringVar(&dst.OpenAIModel, "openai-model", def.OpenAIModel, "OpenAI model")
	fs.StringVar(&dst.APIKey, "api-key", "", "OpenAI API key (defaults to OPENAI_API_KEY)")
	fs.IntVar(&dst.WordBudget, "word-budget", def.WordBudget, "max words per character summary")
	fs.IntVar(&dst.MaxChars, "max-chars", def.MaxChars, "max characters per paragraph")
	fs.IntVar(&dst.MaxTokens, "max-tokens", def.MaxTokens, "max tokens per model response")
	fs.StringVar(&dst.SummaryType, "type", def.SummaryType, "summary type: characters, key-points, tl;dr, teaser, headline")
	fs.StringVar(&dst.SummaryFormat, "format", def.SummaryFormat, "summary format: markdown or plain-text")
	fs.StringVar(&dst.SummaryLength, "length", def.SummaryLength, "summary length: short, medium, long")
	fs.StringVar(&dst.Store, "store", def.Store, "session store: file or s3")
	fs.StringVar(&dst.StoreDir, "store-dir", def.StoreDir, "directory for the file store")
	fs.StringVar(&dst.S3Bucket, "s3-bucket", def.S3Bucket, "bucket for the s3 store")
	fs.StringVar(&dst.S3Prefix, "s3-prefix", def.S3Prefix, "key prefix for the s3 store")
	fs.StringVar(&dst.Addr, "addr", def.Addr, "listen address for serve")
	fs.StringVar(&dst.OTelEndpoint, "otel-endpoint", def.OTelEndpoint, "OTLP/HTTP endpoint; empty disables tracing")
	fs.BoolVarP(&dst.Verbose, "verbose", "v", def.Verbose, "debug logging")
}

// flagSetters copies one flag's value from the flag-bound config onto the resolved one.
var flagSetters = map[string]func(dst, src *Config){
	"provider":      func(d, s *Config) { d.Provider = s.Provider },
	"region":        func(d, s *Config) { d.Region = s.Region },
	"model-id":      func(d, s *Config) { d.ModelID = s.ModelID },
	"openai-model":  func(d, s *Config) { d.OpenAIModel = s.OpenAIModel },
	"api-key":       func(d, s *Config) { d.APIKey = s.APIKey },
	"word-budget":   func(d, s *Config) { d.WordBudget = s.WordBudget },
	"max-chars":     func(d, s *Config) { d.MaxChars = s.MaxChars },
	"max-tokens":    func(d, s *Config) { d.MaxTokens = s.MaxTokens },
	"type":          func(d, s *Config) { d.SummaryType = s.SummaryType },
	"format":        func(d, s *Config) { d.SummaryFormat = s.SummaryFormat },
	"length":        func(d, s *Config) { d.SummaryLength = s.SummaryLength },
	"store":         func(d, s *Config) { d.Store = s.Store },
	"store-dir":     func(d, s *Config) { d.StoreDir = s.StoreDir },
	"s3-bucket":     func(d, s *Config) { d.S3Bucket = s.S3Bucket },
	"s3-prefix":     func(d, s *Config) { d.S3Prefix = s.S3Prefix },
	"addr":          func(d, s *Config) { d.Addr = s.Addr },
	"otel-endpoint": func(d, s *Config) { d.OTelEndpoint = s.OTelEndpoint },
	"verbose":       func(d, s *Config) { d.Verbose = s.Verbose },
}

// resolveConfig layers defaults, the YAML file, the environment and explicitly set flags, in that order.
func resolveConfig(fsys afero.Fs, fs *pflag.FlagSet, flagged Config, configPath string, environ []string) (Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		b, ok, err := fileutils.ReadFileIfExists(fsys, configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read --config: %w", err)
		}
		if !ok {
			return Config{}, fmt.Errorf("read --config: %s does not exist", configPath)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse --config %s: %w", configPath, err)
		}
	}

	if err := parseEnv(&cfg, environ); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *pflag.Flag) {
		if set, ok := flagSetters[f.Name]; ok {
			set(&cfg, &flagged)
		}
	})
	return cfg, nil
}

func parseEnv(target *Config, environ []string) error {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			m[k] = v
		}
	}
	if err := env.ParseWithOptions(target, env.Options{Environment: m}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
