// Package config reads rbisynth.yaml, the project-level defaults for the
// dsl and gems commands. Command-line flags override every value here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rbisynth/internal/ir"
)

const (
	// DefaultFile is read when no --config path is given and it exists.
	DefaultFile = "rbisynth.yaml"

	DefaultDSLOutdir  = "sorbet/rbi/dsl"
	DefaultGemsOutdir = "sorbet/rbi/gems"
)

// Config models rbisynth.yaml.
type Config struct {
	// Snapshot is the runtime snapshot both commands read.
	Snapshot string `yaml:"snapshot"`

	// Store is an optional manifest database recording every run.
	Store string `yaml:"store,omitempty"`

	DSL  DSLConfig  `yaml:"dsl"`
	Gems GemsConfig `yaml:"gems"`
}

type DSLConfig struct {
	Outdir     string   `yaml:"outdir"`
	Generators []string `yaml:"generators,omitempty"`

	// Definitions are declarative generator files, registered after the
	// built-in generators in the order listed.
	Definitions []string `yaml:"definitions,omitempty"`
}

type GemsConfig struct {
	Outdir  string   `yaml:"outdir"`
	Exclude []string `yaml:"exclude,omitempty"`

	// TypedOverrides maps a gem name to the sigil of its stub file.
	TypedOverrides map[string]string `yaml:"typed_overrides,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path. An empty path reads DefaultFile when it exists and
// falls back to Default otherwise; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML, rejecting unknown keys, then validates and fills
// defaults.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.DSL.Outdir == "" {
		c.DSL.Outdir = DefaultDSLOutdir
	}
	if c.Gems.Outdir == "" {
		c.Gems.Outdir = DefaultGemsOutdir
	}
}

// Validate checks every typed override names a known sigil.
func (c *Config) Validate() error {
	for gem, level := range c.Gems.TypedOverrides {
		if strings.TrimSpace(gem) == "" {
			return fmt.Errorf("gems.typed_overrides: empty gem name")
		}
		if _, err := ir.ParseSigil(level); err != nil {
			return fmt.Errorf("gems.typed_overrides.%s: %w", gem, err)
		}
	}
	return nil
}

// Sigil returns the stub strictness for gem: its override, or def.
func (g GemsConfig) Sigil(gem string, def ir.Sigil) ir.Sigil {
	if level, ok := g.TypedOverrides[gem]; ok {
		return ir.Sigil(level)
	}
	return def
}

// ParseTypedOverrides reads "gem:level" pairs as given on the command line.
func ParseTypedOverrides(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		gem, level, ok := strings.Cut(p, ":")
		gem = strings.TrimSpace(gem)
		if !ok || gem == "" {
			return nil, fmt.Errorf("invalid typed override %q: want gem:level", p)
		}
		sigil, err := ir.ParseSigil(strings.TrimSpace(level))
		if err != nil {
			return nil, fmt.Errorf("typed override %s: %w", gem, err)
		}
		out[gem] = string(sigil)
	}
	return out, nil
}

// MergeTypedOverrides returns base with every entry of over applied.
func MergeTypedOverrides(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// OverriddenGems lists gems with a typed override, sorted.
func (g GemsConfig) OverriddenGems() []string {
	out := make([]string, 0, len(g.TypedOverrides))
	for k := range g.TypedOverrides {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
