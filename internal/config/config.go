package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dealplan/internal/domain"
)

// Config models dealplan.yml.
type Config struct {
	Store struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Risks struct {
		Custom []CustomRisk `yaml:"custom"`
	} `yaml:"risks"`
	Export struct {
		Dir string `yaml:"dir"`
	} `yaml:"export"`
}

// CustomRisk is an operator-defined detection rule; When is a CEL expression
// over the intake.
type CustomRisk struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Severity    string   `yaml:"severity"`
	When        string   `yaml:"when"`
	Description string   `yaml:"description"`
	Mitigation  string   `yaml:"mitigation"`
	Affected    []string `yaml:"affected"`
}

var knownCategories = map[domain.RiskCategory]bool{
	domain.RiskRegulatoryDelay:       true,
	domain.RiskTaxStructureLeakage:   true,
	domain.RiskTSADependency:         true,
	domain.RiskDataPrivacyBreach:     true,
	domain.RiskCulturalIntegration:   true,
	domain.RiskFinancialReportingGap: true,
	domain.RiskStrandedCosts:         true,
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("config.store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config.store.driver must be 'sqlite' or 'postgres', got %q", c.Store.Driver)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level %q unknown", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.log.format must be 'text' or 'json'")
	}
	seen := map[string]bool{}
	for i, r := range c.Risks.Custom {
		if r.Name == "" {
			return fmt.Errorf("config.risks.custom[%d].name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("custom risk %s defined twice", r.Name)
		}
		seen[r.Name] = true
		if !knownCategories[domain.RiskCategory(r.Category)] {
			return fmt.Errorf("custom risk %s has unknown category %s", r.Name, r.Category)
		}
		if !domain.Severity(r.Severity).Valid() {
			return fmt.Errorf("custom risk %s has unknown severity %s", r.Name, r.Severity)
		}
		if strings.TrimSpace(r.When) == "" {
			return fmt.Errorf("custom risk %s has empty when expression", r.Name)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dealplan.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dp config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Unset fields take
// their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `store:
  driver: sqlite
  dsn: ""

server:
  addr: 127.0.0.1:8080
  base_path: /v0

log:
  level: info
  format: text

export:
  dir: .

risks:
  # Extra detection rules evaluated after the built-in ones. Example:
  #
  # custom:
  #   - name: first-time-acquirer
  #     category: cultural_integration
  #     severity: medium
  #     when: 'intake.buyerMaturity == "first" && intake.targetEntities > 3'
  #     description: First acquisition with a multi-entity target.
  #     mitigation: Stand up an integration playbook before Day 1.
  #     affected: [Integration Budget & PMO]
  custom: []
`
