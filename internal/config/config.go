// Package config loads the copilot's runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/datadesk/retail-copilot/internal/domain"
)

// ConfidenceWeights are the hand-tuned terms of the confidence
// heuristic. These are integrator-supplied constants; the engine never
// derives them.
type ConfidenceWeights struct {
	Base     float64 `json:"base"`
	HasRows  float64 `json:"has_rows"`
	CleanRun float64 `json:"clean_run"`
	NoRepair float64 `json:"no_repair"`
	Max      float64 `json:"max"`
}

// Config holds the copilot's runtime configuration.
type Config struct {
	DBPath    string `json:"db_path"`
	DocsDir   string `json:"docs_dir"`
	VocabPath string `json:"vocab_path"`

	TraceDir    string `json:"trace_dir"`
	TraceDBPath string `json:"trace_db_path"`

	RetrievalK   int `json:"retrieval_k"`
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`

	MaxRepairs int     `json:"max_repairs"`
	TopN       int     `json:"top_n"`
	CostRatio  float64 `json:"cost_ratio"`
	Workers    int     `json:"workers"`

	Confidence ConfidenceWeights `json:"confidence"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a config with every default applied. DBPath and
// DocsDir must still be set by the caller.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.RetrievalK == 0 {
		c.RetrievalK = 5
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 160
	}
	if c.MaxRepairs == 0 {
		c.MaxRepairs = 2
	}
	if c.TopN == 0 {
		c.TopN = 3
	}
	if c.CostRatio == 0 {
		// Documented approximation: unit cost is 70% of unit price when
		// the schema carries no cost column.
		c.CostRatio = 0.7
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Confidence == (ConfidenceWeights{}) {
		c.Confidence = ConfidenceWeights{
			Base:     0.30,
			HasRows:  0.40,
			CleanRun: 0.20,
			NoRepair: 0.10,
			Max:      0.99,
		}
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.DocsDir == "" {
		problems = append(problems, "docs_dir is required")
	}
	if c.RetrievalK < 1 {
		problems = append(problems, "retrieval_k must be positive")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "chunk_overlap must be smaller than chunk_size")
	}
	if c.MaxRepairs < 0 || c.MaxRepairs > 2 {
		problems = append(problems, "max_repairs must be between 0 and 2")
	}
	if c.CostRatio <= 0 || c.CostRatio >= 1 {
		problems = append(problems, "cost_ratio must be in (0, 1)")
	}
	if c.Workers < 1 {
		problems = append(problems, "workers must be positive")
	}
	if c.Confidence.Base < 0 || c.Confidence.Max > 1 || c.Confidence.Base > c.Confidence.Max {
		problems = append(problems, "confidence weights out of range")
	}

	if len(problems) > 0 {
		return &domain.CopilotError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
