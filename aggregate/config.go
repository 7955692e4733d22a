package aggregate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModuleConfig holds the per-feed knobs. Zero values mean "use default".
type ModuleConfig struct {
	// MinimumItems is the floor every non-failed response must meet.
	MinimumItems int `yaml:"minimum_items"`
	// CacheTTL bounds fresh cache reads.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// WarmSeedTTL bounds warm-seed reads.
	WarmSeedTTL time.Duration `yaml:"warm_seed_ttl"`
	// WarmSeedCapacity caps how many validated live items the warm seed
	// retains.
	WarmSeedCapacity int `yaml:"warm_seed_capacity"`
	// FetchTimeout is the hard deadline for each live fetch state.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// UnmarshalYAML accepts Go duration strings ("30s", "10m", "168h") for
// the TTL and timeout fields.
func (c *ModuleConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		MinimumItems     int    `yaml:"minimum_items"`
		CacheTTL         string `yaml:"cache_ttl"`
		WarmSeedTTL      string `yaml:"warm_seed_ttl"`
		WarmSeedCapacity int    `yaml:"warm_seed_capacity"`
		FetchTimeout     string `yaml:"fetch_timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.MinimumItems = raw.MinimumItems
	c.WarmSeedCapacity = raw.WarmSeedCapacity

	for _, f := range []struct {
		value string
		dst   *time.Duration
	}{
		{raw.CacheTTL, &c.CacheTTL},
		{raw.WarmSeedTTL, &c.WarmSeedTTL},
		{raw.FetchTimeout, &c.FetchTimeout},
	} {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", f.value, err)
		}
		*f.dst = d
	}
	return nil
}

func (c *ModuleConfig) defaults() {
	if c.MinimumItems <= 0 {
		c.MinimumItems = 3
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.WarmSeedTTL <= 0 {
		c.WarmSeedTTL = 7 * 24 * time.Hour
	}
	if c.WarmSeedCapacity <= 0 {
		c.WarmSeedCapacity = 20
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 8 * time.Second
	}
}

// Config configures the Service.
type Config struct {
	// Defaults apply to every module without an explicit entry.
	Defaults ModuleConfig `yaml:"defaults"`
	// Modules overrides per feed name.
	Modules map[string]ModuleConfig `yaml:"modules"`
}

// LoadConfig reads a YAML config file. A missing file is not an error:
// the zero Config with defaults applied is fully functional.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// moduleConfig resolves the effective config for one module: explicit
// entry, then service defaults, then built-in defaults.
func (c *Config) moduleConfig(module string) ModuleConfig {
	mc := c.Defaults
	if c.Modules != nil {
		if override, ok := c.Modules[module]; ok {
			if override.MinimumItems > 0 {
				mc.MinimumItems = override.MinimumItems
			}
			if override.CacheTTL > 0 {
				mc.CacheTTL = override.CacheTTL
			}
			if override.WarmSeedTTL > 0 {
				mc.WarmSeedTTL = override.WarmSeedTTL
			}
			if override.WarmSeedCapacity > 0 {
				mc.WarmSeedCapacity = override.WarmSeedCapacity
			}
			if override.FetchTimeout > 0 {
				mc.FetchTimeout = override.FetchTimeout
			}
		}
	}
	mc.defaults()
	return mc
}
