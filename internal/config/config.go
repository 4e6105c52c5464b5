// Package config loads the knowledge base configuration from a YAML file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/coalesce"
	"chain-addresses/internal/importer"
	"chain-addresses/internal/importer/sources"
	"chain-addresses/internal/logging"
)

// Source kinds accepted in the sources list.
const (
	SourceHardcoded        = "hardcoded"
	SourceTokenCorrections = "token_corrections"
	SourceCSV              = "csv"
	SourceYAML             = "yaml"
)

// Config is the full application configuration.
type Config struct {
	Database struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
		UseMemory     bool   `yaml:"use_memory"`
	} `yaml:"database"`

	// Priority lists data sources from most to least trusted.
	Priority []string `yaml:"priority"`

	SourceErrorPolicy         string `yaml:"source_error_policy"` // skip or abort
	SuppressCollisionWarnings bool   `yaml:"suppress_collision_warnings"`
	SkipLoad                  bool   `yaml:"skip_load"`

	Sources []SourceConfig `yaml:"sources"`

	Chains struct {
		DefaultHex string            `yaml:"default_hex"`
		Aliases    map[string]string `yaml:"aliases"`
		Overrides  []ChainOverride   `yaml:"overrides"`
	} `yaml:"chains"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// SourceConfig declares one importer.
type SourceConfig struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ChainOverride changes or adds a chain descriptor. Unset fields keep the
// built-in values.
type ChainOverride struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	ShortName       string   `yaml:"short_name"`
	Prefixes        []string `yaml:"prefixes"`
	ExactLength     *int     `yaml:"exact_length"`
	DefaultDecimals *int     `yaml:"default_decimals"`
	CaseSensitive   *bool    `yaml:"case_sensitive"`
	EVMChainID      int64    `yaml:"evm_chain_id"`
	ScannerURL      string   `yaml:"scanner_url"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Priority = []string{sources.TokenCorrections, sources.Hardcoded, sources.HandCollated}
	cfg.SourceErrorPolicy = string(importer.PolicySkip)
	cfg.Sources = []SourceConfig{
		{Kind: SourceTokenCorrections},
		{Kind: SourceHardcoded},
	}
	cfg.Chains.DefaultHex = chains.Ethereum
	cfg.Logging.Level = "info"
	cfg.Logging.Format = logging.FormatJSON
	cfg.Server.Addr = ":8080"
	return cfg
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. POSTGRES_DSN and
// CLICKHOUSE_DSN are shared with other tools; the rest use the
// CHAINADDRS_ prefix.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("POSTGRES_DSN", &c.Database.PostgresDSN)
	str("CLICKHOUSE_DSN", &c.Database.ClickhouseDSN)
	str("CHAINADDRS_SOURCE_ERROR_POLICY", &c.SourceErrorPolicy)
	str("CHAINADDRS_LOG_LEVEL", &c.Logging.Level)
	str("CHAINADDRS_LOG_FORMAT", &c.Logging.Format)
	str("CHAINADDRS_SERVER_ADDR", &c.Server.Addr)
	str("CHAINADDRS_DEFAULT_HEX_CHAIN", &c.Chains.DefaultHex)

	if v, ok := lookup("CHAINADDRS_PRIORITY"); ok && v != "" {
		c.Priority = splitList(v)
	}

	return errors.Join(
		boolean("CHAINADDRS_USE_MEMORY", &c.Database.UseMemory),
		boolean("CHAINADDRS_SKIP_LOAD", &c.SkipLoad),
		boolean("CHAINADDRS_SUPPRESS_COLLISION_WARNINGS", &c.SuppressCollisionWarnings),
	)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []error

	if !c.Database.UseMemory && c.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgres_dsn (or POSTGRES_DSN) is required unless use_memory is set"))
	}
	if _, err := importer.ParsePolicy(c.SourceErrorPolicy); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool, len(c.Priority))
	for _, name := range c.Priority {
		if name == "" {
			errs = append(errs, errors.New("priority contains an empty source name"))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("priority lists %q twice", name))
		}
		seen[name] = true
	}

	for i, s := range c.Sources {
		switch s.Kind {
		case SourceHardcoded, SourceTokenCorrections:
		case SourceCSV, SourceYAML:
			if s.Path == "" {
				errs = append(errs, fmt.Errorf("sources[%d]: %s source needs a path", i, s.Kind))
			}
		default:
			errs = append(errs, fmt.Errorf("sources[%d]: unknown kind %q", i, s.Kind))
		}
	}

	for i, o := range c.Chains.Overrides {
		if o.ID == "" && o.Name == "" {
			errs = append(errs, fmt.Errorf("chains.overrides[%d]: id or name is required", i))
		}
	}

	switch c.Logging.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("logging.format must be %q or %q", logging.FormatJSON, logging.FormatConsole))
	}

	if _, err := c.Registry(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SourcePriority returns the declared priority.
func (c *Config) SourcePriority() coalesce.Priority {
	return coalesce.Priority(c.Priority)
}

// Policy returns the parsed source error policy.
func (c *Config) Policy() importer.SourceErrorPolicy {
	p, err := importer.ParsePolicy(c.SourceErrorPolicy)
	if err != nil {
		return importer.PolicySkip
	}
	return p
}

// Registry builds a chain registry from the built-in chains, the configured
// overrides and aliases.
func (c *Config) Registry() (*chains.Registry, error) {
	reg := chains.Default()
	for _, o := range c.Chains.Overrides {
		base := chains.Descriptor{Name: o.Name, ID: o.ID}
		if existing, ok := reg.Get(base.ChainString()); ok {
			base = *existing
			base.Prefixes = append([]string(nil), existing.Prefixes...)
		}
		reg.Replace(o.apply(base))
	}

	if c.Chains.DefaultHex != "" {
		if err := reg.SetDefaultHex(c.Chains.DefaultHex); err != nil {
			return nil, fmt.Errorf("chains.default_hex: %w", err)
		}
	}

	for tag, id := range c.Chains.Aliases {
		reg.Alias(tag, id)
	}
	return reg, nil
}

func (o ChainOverride) apply(d chains.Descriptor) chains.Descriptor {
	if o.Name != "" {
		d.Name = o.Name
	}
	if o.ShortName != "" {
		d.ShortName = o.ShortName
	}
	if len(o.Prefixes) > 0 {
		d.Prefixes = o.Prefixes
	}
	if o.ExactLength != nil {
		d.ExactLength = *o.ExactLength
	}
	if o.DefaultDecimals != nil {
		d.DefaultDecimals = *o.DefaultDecimals
	}
	if o.CaseSensitive != nil {
		d.CaseSensitive = *o.CaseSensitive
	}
	if o.EVMChainID != 0 {
		d.EVMChainID = o.EVMChainID
	}
	if o.ScannerURL != "" {
		d.ScannerURL = o.ScannerURL
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Importers builds the configured importers in declaration order.
func (c *Config) Importers() []importer.Importer {
	out := make([]importer.Importer, 0, len(c.Sources))
	for _, s := range c.Sources {
		switch s.Kind {
		case SourceHardcoded:
			out = append(out, sources.NewHardcoded())
		case SourceTokenCorrections:
			out = append(out, sources.NewTokenCorrections())
		case SourceCSV:
			out = append(out, sources.NewCSV(s.Name, s.Path))
		case SourceYAML:
			out = append(out, sources.NewYAML(s.Name, s.Path))
		}
	}
	return out
}
