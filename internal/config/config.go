// Package config reads the repository-level splinter.toml.
package config

import (
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Model        string   `toml:"model"`
	BaseURL      string   `toml:"base_url"`
	APIKeyEnv    string   `toml:"api_key_env"`
	MaxCommits   int      `toml:"max_commits"`
	Ignore       []string `toml:"ignore"`
	Strict       bool     `toml:"strict"`
	ContextLines int      `toml:"context_lines"`
	BranchPrefix string   `toml:"branch_prefix"`
}

// ReadConfig loads splinter.toml from the repo root, falling back to
// defaults when the file is missing. A present-but-broken file also returns
// the defaults alongside the error so callers can warn and continue.
func ReadConfig(path string) (*Config, error) {
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	defaultConfig := &Config{
		Model:        "gpt-4o",
		BaseURL:      "https://api.openai.com/v1",
		APIKeyEnv:    "OPENAI_API_KEY",
		MaxCommits:   0,
		Ignore:       []string{},
		Strict:       false,
		ContextLines: 3,
		BranchPrefix: "splinter/",
	}

	fileName := path + "splinter.toml"
	if _, err := os.Stat(fileName); errors.Is(err, os.ErrNotExist) {
		return defaultConfig, nil
	}
	file, err := os.ReadFile(fileName)
	if err != nil {
		return defaultConfig, err
	}
	config := defaultConfig
	err = toml.Unmarshal(file, &config)
	if err != nil {
		return defaultConfig, err
	}
	return config, nil
}
