// Package config loads pipeline settings from an optional YAML file with
// environment overrides on top. Invalid settings are fatal before any
// processing starts; a run on a half-valid config would silently misclassify
// the whole corpus.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "REVIEW_REFINERY_CONFIG"
	datasetPathEnv    = "REVIEW_DATASET"
	databasePathEnv   = "REVIEW_DB"
	catalogBaseURLEnv = "CATALOG_BASE_URL"
	apiAddrEnv        = "REVIEW_API_ADDR"
)

type Config struct {
	Dataset   string          `yaml:"dataset"`
	Database  string          `yaml:"database"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Enrich    EnrichConfig    `yaml:"enrich"`
	Summary   SummaryConfig   `yaml:"summary"`
	API       APIConfig       `yaml:"api"`
}

type DedupConfig struct {
	Threshold      float64 `yaml:"threshold"`
	MaxFeatures    int     `yaml:"maxFeatures"`
	SampleFraction float64 `yaml:"sampleFraction"`
}

type SentimentConfig struct {
	PositiveThreshold float64 `yaml:"positiveThreshold"`
	NegativeThreshold float64 `yaml:"negativeThreshold"`
	HighBand          float64 `yaml:"highBand"`
	MediumBand        float64 `yaml:"mediumBand"`
}

type ScoringConfig struct {
	RiskHigh   float64 `yaml:"riskHigh"`
	RiskMedium float64 `yaml:"riskMedium"`
}

type CatalogConfig struct {
	BaseURL         string  `yaml:"baseUrl"`
	RateLimitPerSec int     `yaml:"rateLimitPerSec"`
	MatchThreshold  float64 `yaml:"matchThreshold"`
}

type EnrichConfig struct {
	Workers               int `yaml:"workers"`
	MaxRetries            int `yaml:"maxRetries"`
	RequestTimeoutSeconds int `yaml:"requestTimeoutSeconds"`
	GlobalDeadlineSeconds int `yaml:"globalDeadlineSeconds"`
}

// RequestTimeout converts the configured seconds to a duration.
func (e EnrichConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSeconds) * time.Second
}

// GlobalDeadline converts the configured seconds to a duration; zero means
// no run-wide deadline.
func (e EnrichConfig) GlobalDeadline() time.Duration {
	return time.Duration(e.GlobalDeadlineSeconds) * time.Second
}

type SummaryConfig struct {
	MaxSamples     int `yaml:"maxSamples"`
	MaxSampleChars int `yaml:"maxSampleChars"`
	Workers        int `yaml:"workers"`
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

func Default() Config {
	return Config{
		Database: "refinery.db",
		Dedup: DedupConfig{
			Threshold:      0.85,
			MaxFeatures:    1000,
			SampleFraction: 1.0,
		},
		Sentiment: SentimentConfig{
			PositiveThreshold: 0.05,
			NegativeThreshold: -0.05,
			HighBand:          0.3,
			MediumBand:        0.1,
		},
		Scoring: ScoringConfig{
			RiskHigh:   60,
			RiskMedium: 30,
		},
		Catalog: CatalogConfig{
			BaseURL:         "https://openlibrary.org/search.json",
			RateLimitPerSec: 10,
			MatchThreshold:  0.6,
		},
		Enrich: EnrichConfig{
			Workers:               40,
			MaxRetries:            2,
			RequestTimeoutSeconds: 10,
		},
		Summary: SummaryConfig{
			MaxSamples:     8,
			MaxSampleChars: 200,
			Workers:        4,
		},
		API: APIConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file named by REVIEW_REFINERY_CONFIG (when set),
// applies environment overrides and validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(datasetPathEnv); v != "" {
		c.Dataset = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database = v
	}
	if v := os.Getenv(catalogBaseURLEnv); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv(apiAddrEnv); v != "" {
		c.API.Addr = v
	}
}

// Validate rejects settings that would make a run meaningless. Everything
// here is configuration-class: the pipeline refuses to start rather than
// degrade.
func (c Config) Validate() error {
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup.threshold %v out of range (0, 1]", c.Dedup.Threshold)
	}
	if c.Dedup.MaxFeatures <= 0 {
		return fmt.Errorf("dedup.maxFeatures %d must be positive", c.Dedup.MaxFeatures)
	}
	if c.Dedup.SampleFraction < 0 || c.Dedup.SampleFraction > 1 {
		return fmt.Errorf("dedup.sampleFraction %v out of range [0, 1]", c.Dedup.SampleFraction)
	}
	if c.Sentiment.PositiveThreshold <= c.Sentiment.NegativeThreshold {
		return fmt.Errorf("sentiment.positiveThreshold %v must exceed negativeThreshold %v",
			c.Sentiment.PositiveThreshold, c.Sentiment.NegativeThreshold)
	}
	if c.Sentiment.MediumBand <= 0 || c.Sentiment.HighBand <= c.Sentiment.MediumBand {
		return fmt.Errorf("sentiment bands high=%v medium=%v must satisfy high > medium > 0",
			c.Sentiment.HighBand, c.Sentiment.MediumBand)
	}
	if c.Scoring.RiskMedium <= 0 || c.Scoring.RiskHigh <= c.Scoring.RiskMedium {
		return fmt.Errorf("scoring buckets high=%v medium=%v must satisfy high > medium > 0",
			c.Scoring.RiskHigh, c.Scoring.RiskMedium)
	}
	if c.Catalog.MatchThreshold <= 0 || c.Catalog.MatchThreshold > 1 {
		return fmt.Errorf("catalog.matchThreshold %v out of range (0, 1]", c.Catalog.MatchThreshold)
	}
	if c.Enrich.Workers <= 0 {
		return fmt.Errorf("enrich.workers %d must be positive", c.Enrich.Workers)
	}
	if c.Enrich.MaxRetries < 0 {
		return fmt.Errorf("enrich.maxRetries %d must not be negative", c.Enrich.MaxRetries)
	}
	if c.Summary.MaxSamples <= 0 || c.Summary.MaxSampleChars <= 0 {
		return fmt.Errorf("summary caps samples=%d chars=%d must be positive",
			c.Summary.MaxSamples, c.Summary.MaxSampleChars)
	}
	return nil
}
