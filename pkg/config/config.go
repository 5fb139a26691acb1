// Package config loads the integration catalog that drives request
// classification, tool binding and planner/executor prompt hints.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed integrations.yaml
var defaultCatalog []byte

// ServerSpec describes how to reach the MCP server backing an
// integration. Transport is either "stdio" or "sse".
type ServerSpec struct {
	Transport string            `yaml:"transport" validate:"required,oneof=stdio sse"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	TokenEnv  string            `yaml:"token_env,omitempty"`
}

// Integration is one entry of the catalog. Keywords, Phrases and
// RequestPatterns feed the instant classifier; IdentityKeywords mark a
// request as explicitly naming the integration. ToolNames restricts
// which of the server's tools get bound, an empty list binds all of
// them.
type Integration struct {
	Name             string      `yaml:"-"`
	DisplayName      string      `yaml:"display_name" validate:"required"`
	Icon             string      `yaml:"icon,omitempty"`
	Description      string      `yaml:"description" validate:"required"`
	RequiresAuth     bool        `yaml:"requires_auth"`
	Keywords         []string    `yaml:"keywords"`
	Phrases          []string    `yaml:"phrases"`
	RequestPatterns  []string    `yaml:"request_patterns"`
	IdentityKeywords []string    `yaml:"identity_keywords"`
	ToolNames        []string    `yaml:"tool_names"`
	PlannerHints     string      `yaml:"planner_hints,omitempty"`
	ExecutorHints    string      `yaml:"executor_hints,omitempty"`
	Server           *ServerSpec `yaml:"server,omitempty"`
}

type Config struct {
	Integrations map[string]*Integration `yaml:"integrations" validate:"required,min=1,dive"`
}

// Names returns the catalog keys in no particular order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Integrations))
	for name := range c.Integrations {
		names = append(names, name)
	}

	return names
}

func (c *Config) Integration(name string) (*Integration, bool) {
	integration, ok := c.Integrations[name]

	return integration, ok
}

// Default returns the catalog embedded in the binary.
func Default() (*Config, error) {
	return parse(defaultCatalog)
}

// Load reads a catalog from path, falling back to the embedded default
// when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read integration catalog: %w", err)
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	config := &Config{}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse integration catalog: %w", err)
	}

	for name, integration := range config.Integrations {
		integration.Name = name
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid integration catalog: %w", err)
	}

	return config, nil
}
