package cmd

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/seclog-dev/seclog/gen/cloudtrail"
	"github.com/seclog-dev/seclog/gen/config"
	"github.com/seclog-dev/seclog/gen/entra"
	"github.com/seclog-dev/seclog/gen/population"
)

// FileConfig is the top-level YAML document handed to generate and actors.
type FileConfig struct {
	Seed       int64             `yaml:"seed"`
	Population population.Config `yaml:"population"`
	Traffic    config.Traffic    `yaml:"traffic"`
	Output     config.Output     `yaml:"output"`
	Sources    SourcesConfig     `yaml:"sources"`
}

// SourcesConfig enables log sources by presence: a nil block stays off.
type SourcesConfig struct {
	CloudTrail *CloudTrailSource `yaml:"cloudtrail"`
	EntraID    *EntraSource      `yaml:"entra_id"`
}

// CloudTrailSource is the cloudtrail block: an output format plus the
// source's own settings inlined.
type CloudTrailSource struct {
	Format   config.Format     `yaml:"format"`
	Settings cloudtrail.Config `yaml:",inline"`
}

// EntraSource is the entra_id block.
type EntraSource struct {
	Format   config.Format `yaml:"format"`
	Settings entra.Config  `yaml:",inline"`
}

// LoadConfig reads and strictly parses a YAML config. Unknown keys are
// rejected so typos fail fast instead of silently using defaults.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &FileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, config.Errorf("config", "parse %s: %v", path, err)
	}

	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "out"
	}
	if src := cfg.Sources.CloudTrail; src != nil && src.Format.Type == "" {
		src.Format.Type = "jsonl"
	}
	if src := cfg.Sources.EntraID; src != nil && src.Format.Type == "" {
		src.Format.Type = "jsonl"
	}
	return cfg, nil
}

// selectorFor finds the selector config for a source ID, or nil when the
// whole population participates.
func selectorFor(cfg *FileConfig, sourceID string) *population.SelectorConfig {
	for i := range cfg.Population.Selectors {
		if cfg.Population.Selectors[i].SourceID == sourceID {
			return &cfg.Population.Selectors[i]
		}
	}
	return nil
}

// subPopulation applies the source's selector, if any.
func subPopulation(cfg *FileConfig, pop *population.Population, sourceID string) (*population.Population, error) {
	sel := selectorFor(cfg, sourceID)
	if sel == nil {
		return pop, nil
	}
	s, err := population.NewSelector(*sel, cfg.Seed)
	if err != nil {
		return nil, err
	}
	return population.NewPopulation(s.Select(pop)), nil
}
