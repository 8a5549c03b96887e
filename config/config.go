// Package config loads the signature table and runtime settings.
//
// The built-in table targets the current Borderlands 3 build. A file given
// to Load only needs the keys it changes; a file with its own signatures
// replaces the whole table.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/k2io/oakhook/sigscan"
)

//go:embed signatures.yaml
var builtin []byte

var (
	// ErrInvalid means the configuration is well formed but unusable
	ErrInvalid = errors.New("invalid config")
)

type Config struct {
	Log   Log   `yaml:"log"`
	Debug bool  `yaml:"debug"`
	Focus Focus `yaml:"focus"`
	// Signatures are resolved in order; yaml keys are the lower cased
	// field names of sigscan.Signature.
	Signatures []sigscan.Signature `yaml:"signatures"`
}

type Log struct {
	Level string   `yaml:"level"`
	Paths []string `yaml:"paths"`
}

// Focus configures how keybinds tell whether the player is in a menu.
type Focus struct {
	// MenuExecutable is the only executable whose IsInMenu is trusted.
	MenuExecutable string `yaml:"menu_executable"`
	// IsInMenu names the signature of the native IsInMenu, if any.
	IsInMenu string `yaml:"is_in_menu"`
	// CursorMask is the bit of bShowMouseCursor in its byte.
	CursorMask uint8 `yaml:"cursor_mask"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("built-in config: %v", err))
	}
	return c
}

// Load reads the file at path over the built-in configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	sigs := c.Signatures
	c.Signatures = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if c.Signatures == nil {
		c.Signatures = sigs
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a complete configuration.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks what can be checked without an image: names are unique,
// every pattern parses and every base exists.
func (c *Config) Validate() error {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Focus.CursorMask == 0 {
		c.Focus.CursorMask = 1
	}

	names := make(map[string]bool, len(c.Signatures))
	for _, s := range c.Signatures {
		if s.Name == "" {
			return fmt.Errorf("%w: signature without a name", ErrInvalid)
		}
		if names[s.Name] {
			return fmt.Errorf("%w: duplicate signature %q", ErrInvalid, s.Name)
		}
		names[s.Name] = true
	}
	for _, s := range c.Signatures {
		if err := check(s, names); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, s.Name, err)
		}
	}
	if c.Focus.IsInMenu != "" && !names[c.Focus.IsInMenu] {
		return fmt.Errorf("%w: focus: unknown signature %q", ErrInvalid, c.Focus.IsInMenu)
	}
	return nil
}

func check(s sigscan.Signature, names map[string]bool) error {
	switch {
	case s.Pattern != "" && s.Base != "":
		return errors.New("both pattern and base")
	case s.Base != "":
		if !names[s.Base] {
			return fmt.Errorf("unknown base %q", s.Base)
		}
		if s.Fallback != "" {
			return errors.New("fallback needs a pattern")
		}
	case s.Pattern == "":
		return errors.New("no pattern or base")
	}
	for _, p := range []string{s.Pattern, s.Fallback} {
		if p == "" {
			continue
		}
		if _, err := sigscan.Parse(p); err != nil {
			return err
		}
	}
	switch s.Read {
	case sigscan.ReadAddress, sigscan.ReadRel32, sigscan.ReadPointer, sigscan.ReadInt32, sigscan.ReadInt8:
		return nil
	}
	return fmt.Errorf("unknown read %q", s.Read)
}

// Signature returns the signature called name.
func (c *Config) Signature(name string) (sigscan.Signature, bool) {
	for _, s := range c.Signatures {
		if s.Name == name {
			return s, true
		}
	}
	return sigscan.Signature{}, false
}
