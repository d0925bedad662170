// Package config loads quorum configuration from .quorum/config.yaml with
// environment overrides. Everything has a working default; only an API key
// is genuinely required.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"quorum/internal/council"
)

// AgentSettings configures one pipeline stage.
type AgentSettings struct {
	Model             string  `yaml:"model"`
	SystemInstruction string  `yaml:"system_instruction"`
	Temperature       float64 `yaml:"temperature"`
	SearchEnabled     bool    `yaml:"search_enabled"`
	ThinkingBudget    int     `yaml:"thinking_budget"`
}

// StagesConfig holds the three stage configurations.
type StagesConfig struct {
	Initial    AgentSettings `yaml:"initial"`
	Refinement AgentSettings `yaml:"refinement"`
	Synthesis  AgentSettings `yaml:"synthesis"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	File    string `yaml:"file"`
}

// Config holds all quorum configuration.
type Config struct {
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	Agents             int           `yaml:"agents"`
	MaxAttachmentBytes int           `yaml:"max_attachment_bytes"`
	Stages             StagesConfig  `yaml:"stages"`
	Logging            LoggingConfig `yaml:"logging"`
}

const defaultModel = "gemini-2.5-flash"

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Agents:             4,
		MaxAttachmentBytes: 4 << 20,
		Stages: StagesConfig{
			Initial: AgentSettings{
				Model:             defaultModel,
				SystemInstruction: council.DefaultInitialInstruction,
				Temperature:       1.0,
				SearchEnabled:     true,
			},
			Refinement: AgentSettings{
				Model:             defaultModel,
				SystemInstruction: council.DefaultRefineInstruction,
				Temperature:       0.7,
				SearchEnabled:     true,
			},
			Synthesis: AgentSettings{
				Model:             defaultModel,
				SystemInstruction: council.DefaultSynthesisInstruction,
				Temperature:       0.5,
				SearchEnabled:     true,
				ThinkingBudget:    2048,
			},
		},
	}
}

// DefaultPath returns the conventional config location under the given
// working directory.
func DefaultPath(dir string) string {
	return filepath.Join(dir, ".quorum", "config.yaml")
}

// Load reads the config file at path, falling back to defaults when it does
// not exist, then applies environment overrides. QUORUM_API_KEY always wins;
// GEMINI_API_KEY fills the key only when the file left it empty.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if key := os.Getenv("QUORUM_API_KEY"); key != "" {
		cfg.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" && cfg.APIKey == "" {
		cfg.APIKey = key
	}

	if cfg.Agents < 2 {
		cfg.Agents = Default().Agents
	}
	if cfg.MaxAttachmentBytes <= 0 {
		cfg.MaxAttachmentBytes = Default().MaxAttachmentBytes
	}
	fillStageDefaults(&cfg.Stages.Initial, Default().Stages.Initial)
	fillStageDefaults(&cfg.Stages.Refinement, Default().Stages.Refinement)
	fillStageDefaults(&cfg.Stages.Synthesis, Default().Stages.Synthesis)

	return cfg, nil
}

func fillStageDefaults(s *AgentSettings, def AgentSettings) {
	if s.Model == "" {
		s.Model = def.Model
	}
	if s.SystemInstruction == "" {
		s.SystemInstruction = def.SystemInstruction
	}
}

// StageConfigs converts the YAML settings into the pipeline's stage
// configuration literals.
func (c Config) StageConfigs() council.StageConfigs {
	return council.StageConfigs{
		Initial:    c.Stages.Initial.agentConfig(),
		Refinement: c.Stages.Refinement.agentConfig(),
		Synthesis:  c.Stages.Synthesis.agentConfig(),
	}
}

func (s AgentSettings) agentConfig() council.AgentConfig {
	return council.AgentConfig{
		Model:             s.Model,
		SystemInstruction: s.SystemInstruction,
		Temperature:       s.Temperature,
		SearchEnabled:     s.SearchEnabled,
		ThinkingBudget:    s.ThinkingBudget,
	}
}
