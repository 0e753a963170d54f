// Package am loads opgen's configuration.
//
// Values are layered, lowest precedence first: built-in defaults, the user
// file (~/.opgen/opgen.toml), the project opgen.toml found by walking up from
// the working directory (or the file named with --config), OPGEN_*
// environment variables, and finally command-line flags bound to the same
// keys.
package am

import (
	"path/filepath"
	"time"

	"github.com/teranos/opgen/emitter"
	"github.com/teranos/opgen/generator"
)

// Config represents the opgen configuration
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Output    OutputConfig    `mapstructure:"output"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// Source modes
const (
	SourceModeGo       = "go"       // analyze Go packages
	SourceModeManifest = "manifest" // read a declarative type manifest
)

// SourceConfig selects where the type graph comes from
type SourceConfig struct {
	Mode     string   `mapstructure:"mode"`     // go | manifest
	Dir      string   `mapstructure:"dir"`      // module root for go mode, watch root for both
	Patterns []string `mapstructure:"patterns"` // package patterns (go mode)
	Manifest string   `mapstructure:"manifest"` // manifest path (manifest mode)

	// Interfaces lists extra generic interfaces to record on declarations.
	// The controller interface is always included.
	Interfaces []string `mapstructure:"interfaces"`
}

// OutputConfig shapes and places the generated file
type OutputConfig struct {
	Path        string `mapstructure:"path"`         // "-" writes to stdout
	Package     string `mapstructure:"package"`      // package clause
	PackagePath string `mapstructure:"package_path"` // import path of the generated file's package, derived in go mode when empty
	Function    string `mapstructure:"function"`

	BuilderPackage     string `mapstructure:"builder_package"`
	BuilderPackageName string `mapstructure:"builder_package_name"`
	BuilderType        string `mapstructure:"builder_type"`
	RegisterFunction   string `mapstructure:"register_function"`
}

// GeneratorConfig configures discovery and diagnostics
type GeneratorConfig struct {
	Interface      string `mapstructure:"interface"` // qualified name of the controller interface
	ResourceMarker string `mapstructure:"resource_marker"`
	StrictMarkers  bool   `mapstructure:"strict_markers"` // missing markers fail the pass
}

// CacheConfig configures resolution memoization across passes
type CacheConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	ExpirationMinutes int  `mapstructure:"expiration_minutes"`
}

// WatchConfig configures opgen watch
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms"`
}

// Stdout is the output path that writes the generated file to standard output.
const Stdout = "-"

// EmitOptions converts the output section to emitter options.
func (c *Config) EmitOptions() emitter.Options {
	return emitter.Options{
		PackageName:        c.Output.Package,
		PackagePath:        c.Output.PackagePath,
		FuncName:           c.Output.Function,
		BuilderPackage:     c.Output.BuilderPackage,
		BuilderPackageName: c.Output.BuilderPackageName,
		BuilderType:        c.Output.BuilderType,
		RegisterFunc:       c.Output.RegisterFunction,
	}
}

// GeneratorSettings converts the configuration to per-pass generator settings.
func (c *Config) GeneratorSettings() generator.Config {
	return generator.Config{
		Interface:      c.Generator.Interface,
		Emit:           c.EmitOptions(),
		ResourceMarker: c.Generator.ResourceMarker,
		StrictMarkers:  c.Generator.StrictMarkers,
	}
}

// SourceInterfaces returns the interfaces the Go source provider detects:
// the controller interface first, then the configured extras without repeats.
func (c *Config) SourceInterfaces() []string {
	out := []string{c.Generator.Interface}
	seen := map[string]bool{c.Generator.Interface: true}
	for _, iface := range c.Source.Interfaces {
		if !seen[iface] {
			seen[iface] = true
			out = append(out, iface)
		}
	}
	return out
}

// CacheExpiration returns the resolution cache expiry.
func (c *Config) CacheExpiration() time.Duration {
	return time.Duration(c.Cache.ExpirationMinutes) * time.Minute
}

// WatchDebounce returns the quiet period opgen watch waits for.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// ResolvePaths makes the relative file paths of the configuration absolute
// against base, normally the directory of the config file in use.
func (c *Config) ResolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.Source.Dir = abs(c.Source.Dir)
	c.Source.Manifest = abs(c.Source.Manifest)
	if c.Output.Path != Stdout {
		c.Output.Path = abs(c.Output.Path)
	}
}
