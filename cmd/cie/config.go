// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	cieerrors "github.com/kraklabs/cie-engine/internal/errors"
)

// GlobalFlags carries the output-shaping flags shared across commands.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Quiet   bool
	Verbose int
}

// IndexingConfig controls what gets indexed and how.
type IndexingConfig struct {
	// ParserMode selects "treesitter", "simplified", or "auto".
	ParserMode string `yaml:"parser_mode,omitempty"`

	// Include are glob patterns of files to index; empty means every
	// supported source file under the root.
	Include []string `yaml:"include,omitempty"`

	// Exclude are glob patterns skipped during indexing, merged with
	// the built-in defaults (vendor, node_modules, generated code).
	Exclude []string `yaml:"exclude,omitempty"`

	// BatchTarget is the approximate number of mutations per write
	// batch sent to the store.
	BatchTarget int `yaml:"batch_target,omitempty"`

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`
}

// EmbeddingConfig selects the embedding backend used at index and
// query time. The model must stay fixed for the lifetime of a store:
// vector dimensionality is set at index creation.
type EmbeddingConfig struct {
	Provider string `yaml:"provider,omitempty"` // ollama, nomic, openai, mock
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// APIKeys holds per-provider API keys. Environment variables
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, GOOGLE_API_KEY) take precedence
// over values stored in the file.
type APIKeys struct {
	OpenAI    string `yaml:"openai,omitempty"`
	Anthropic string `yaml:"anthropic,omitempty"`
	Google    string `yaml:"google,omitempty"`
}

// LLMConfig configures the completion provider used by the justify pass
// and by narrative generation in analysis tools.
type LLMConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Provider selects "local" (preset-based, OpenAI-compatible base
	// URL), "openai", "anthropic", or "google".
	Provider string `yaml:"provider,omitempty"`

	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKey    string `yaml:"api_key,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`

	// SkipLLM forces every justification through the heuristic path,
	// equivalent to passing --skip-llm on every justify run.
	SkipLLM bool `yaml:"skip_llm,omitempty"`
}

// Config is the persisted per-project configuration, stored at
// <root>/.cie/project.yaml.
type Config struct {
	ProjectID string `yaml:"project_id"`
	Root      string `yaml:"root,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Version   string `yaml:"version,omitempty"`

	Languages []string `yaml:"languages,omitempty"`
	Framework string   `yaml:"framework,omitempty"`

	Indexing  IndexingConfig  `yaml:"indexing,omitempty"`
	Embedding EmbeddingConfig `yaml:"embedding,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	APIKeys   APIKeys         `yaml:"api_keys,omitempty"`
}

// ConfigDir returns the .cie directory for a project root.
func ConfigDir(root string) string {
	return filepath.Join(root, ".cie")
}

// ConfigPath returns the project.yaml path for a project root.
func ConfigPath(root string) string {
	return filepath.Join(ConfigDir(root), "project.yaml")
}

// DefaultConfig returns a Config seeded for root with the project ID
// defaulting to the directory name.
func DefaultConfig(root string) *Config {
	return &Config{
		ProjectID: filepath.Base(root),
		Root:      root,
		Name:      filepath.Base(root),
		Indexing: IndexingConfig{
			ParserMode:  "auto",
			BatchTarget: 2000,
			MaxFileSize: 1024 * 1024,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		LLM: LLMConfig{
			Provider:  "local",
			MaxTokens: 2000,
		},
	}
}

// LoadConfig reads and validates the project configuration. An empty
// path resolves to ./.cie/project.yaml. A missing file is a config
// error (exit code per internal/errors.ExitConfig): every command
// except init requires an initialized project.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cieerrors.NewConfigError(
				"CIE is not initialized for this project",
				fmt.Sprintf("no configuration found at %s", path),
				"Run 'cie init' from the project root to create one",
				err,
			)
		}
		return nil, cieerrors.NewConfigError(
			"Cannot read CIE configuration",
			err.Error(),
			"Check file permissions on "+path,
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cieerrors.NewConfigError(
			"CIE configuration is invalid",
			fmt.Sprintf("%s does not parse as YAML: %v", path, err),
			"Fix the file or re-run 'cie init --force' to regenerate it",
			err,
		)
	}

	if err := cfg.validate(path); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// validate checks the invariants every loaded config must satisfy.
func (c *Config) validate(path string) error {
	if c.ProjectID == "" {
		return cieerrors.NewConfigError(
			"CIE configuration is invalid",
			fmt.Sprintf("%s has no project_id", path),
			"Re-run 'cie init --force' to regenerate the configuration",
			nil,
		)
	}
	switch c.LLM.Provider {
	case "", "local", "openai", "anthropic", "google":
	default:
		return cieerrors.NewConfigError(
			"CIE configuration is invalid",
			fmt.Sprintf("unknown llm provider %q (expected local, openai, anthropic, or google)", c.LLM.Provider),
			"Fix the llm.provider field in "+path,
			nil,
		)
	}
	return nil
}

// applyEnvOverrides overlays provider API keys from the environment,
// so keys never have to live in the checked-in config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKeys.OpenAI = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.APIKeys.Anthropic = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.APIKeys.Google = v
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = c.APIKeys.OpenAI
		case "anthropic":
			c.LLM.APIKey = c.APIKeys.Anthropic
		case "google":
			c.LLM.APIKey = c.APIKeys.Google
		}
	}
}

// SaveConfig writes cfg to path, creating the .cie directory if needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := "# CIE project configuration. Generated by 'cie init'.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0644)
}
