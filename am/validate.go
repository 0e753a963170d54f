package am

import (
	"go/token"
	"strings"

	"github.com/teranos/opgen/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Source.Mode {
	case SourceModeGo:
		if c.Source.Dir == "" {
			return errors.NewInvalidConfigError("source.dir cannot be empty in go mode")
		}
	case SourceModeManifest:
		if c.Source.Manifest == "" {
			return errors.WithHint(
				errors.NewInvalidConfigError("source.manifest is required in manifest mode"),
				"set source.manifest to a .yaml, .json or .toml type manifest")
		}
	default:
		return errors.WithHintf(
			errors.NewInvalidConfigError("source.mode must be %q or %q, got %q", SourceModeGo, SourceModeManifest, c.Source.Mode),
			"omit source.mode to analyze Go packages")
	}

	if c.Output.Path == "" {
		return errors.NewInvalidConfigError("output.path cannot be empty (use %q for stdout)", Stdout)
	}
	if c.Output.Path != Stdout && !strings.HasSuffix(c.Output.Path, ".go") {
		return errors.NewInvalidConfigError("output.path must name a .go file, got %q", c.Output.Path)
	}
	if err := c.EmitOptions().Validate(); err != nil {
		return errors.Wrap(err, "output")
	}

	if !isQualifiedTypeName(c.Generator.Interface) {
		return errors.WithHint(
			errors.NewInvalidConfigError("generator.interface must be a qualified type name, got %q", c.Generator.Interface),
			"for example github.com/teranos/opgen/operator.EntityController")
	}
	for _, iface := range c.Source.Interfaces {
		if !isQualifiedTypeName(iface) {
			return errors.NewInvalidConfigError("source.interfaces: %q is not a qualified type name", iface)
		}
	}
	if !strings.HasPrefix(c.Generator.ResourceMarker, "opgen:") {
		return errors.NewInvalidConfigError("generator.resource_marker must start with opgen:, got %q", c.Generator.ResourceMarker)
	}

	// Zero expiration means the resolver default; negative is invalid
	if c.Cache.ExpirationMinutes < 0 {
		return errors.NewInvalidConfigError("cache.expiration_minutes must be >= 0, got %d", c.Cache.ExpirationMinutes)
	}
	if c.Watch.DebounceMS < 0 {
		return errors.NewInvalidConfigError("watch.debounce_ms must be >= 0, got %d", c.Watch.DebounceMS)
	}

	return nil
}

// isQualifiedTypeName reports whether s looks like importpath.Name.
func isQualifiedTypeName(s string) bool {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i < strings.LastIndex(s, "/") {
		return false
	}
	return token.IsIdentifier(s[i+1:])
}
