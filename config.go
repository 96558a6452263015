package permit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is a declarative rule snapshot plus engine tuning, the format the
// CLI and deployment tooling exchange. Applying a config goes through the
// trusted bulk-import path, matching how a durable store seeds the engine at
// startup.
type Config struct {
	Version     uint16        `json:"version" yaml:"version"`
	Policies    []*Policy     `json:"policies" yaml:"policies"`
	Permissions []*Permission `json:"permissions" yaml:"permissions"`
	Engine      EngineConfig  `json:"engine" yaml:"engine"`
}

type EngineConfig struct {
	DecisionCacheTTL    int64 `json:"decision_cache_ttl_ms" yaml:"decision_cache_ttl_ms"`
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
}

// Snapshot returns the config's rules in bulk-import form.
func (c *Config) Snapshot() Snapshot {
	return Snapshot{Policies: c.Policies, Permissions: c.Permissions}
}

// Apply loads the config's rules into the store via BulkImport.
func (c *Config) Apply(store *RuleStore) {
	store.BulkImport(c.Snapshot())
}

// Validate runs the create-time structural checks over every rule, reporting
// the first failure. Useful for linting configs that will later be imported
// through the unvalidated path.
func (c *Config) Validate() error {
	for i, p := range c.Policies {
		probe := clonePolicy(p)
		if err := probe.validateAndCompile(); err != nil {
			return fmt.Errorf("policy %d (%s): %w", i, p.ID, err)
		}
	}
	for i, p := range c.Permissions {
		probe := clonePermission(p)
		if probe.Effect == "" {
			probe.Effect = EffectAllow
		}
		if err := probe.validateAndCompile(); err != nil {
			return fmt.Errorf("permission %d (%s): %w", i, p.ID, err)
		}
	}
	return nil
}

// ConfigLoader reads and writes configs in YAML and JSON.
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader { return &ConfigLoader{} }

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return cfg, nil
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return cfg, nil
}

// LoadFile picks the format from the file extension (.yaml/.yml/.json).
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return l.LoadYAML(data)
	case strings.HasSuffix(path, ".json"):
		return l.LoadJSON(data)
	}
	return nil, fmt.Errorf("unsupported config format: %s", path)
}

func (l *ConfigLoader) ExportYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(cfg)
}

func (l *ConfigLoader) ExportJSON(w io.Writer, cfg *Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
