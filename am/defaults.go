package am

import (
	"github.com/spf13/viper"

	"github.com/teranos/opgen/generator"
	"github.com/teranos/opgen/resolver"
)

// File and directory names
const (
	ConfigFileName        = "opgen.toml"
	UserConfigDir         = ".opgen"
	EnvPrefix             = "OPGEN"
	DefaultOutputPath     = "zz_generated_controllers.go"
	DefaultDirPermissions = 0o750
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Source defaults
	v.SetDefault("source.mode", SourceModeGo)
	v.SetDefault("source.dir", ".")
	v.SetDefault("source.patterns", []string{"./..."})
	v.SetDefault("source.manifest", "")
	v.SetDefault("source.interfaces", []string{})

	// Output defaults
	v.SetDefault("output.path", DefaultOutputPath)
	v.SetDefault("output.package", "main")
	v.SetDefault("output.package_path", "")
	v.SetDefault("output.function", "RegisterControllers")
	v.SetDefault("output.builder_package", "github.com/teranos/opgen/operator")
	v.SetDefault("output.builder_package_name", "")
	v.SetDefault("output.builder_type", "Builder")
	v.SetDefault("output.register_function", "AddController")

	// Generator defaults
	v.SetDefault("generator.interface", generator.DefaultInterface)
	v.SetDefault("generator.resource_marker", generator.DefaultResourceMarker)
	v.SetDefault("generator.strict_markers", false)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.expiration_minutes", int(resolver.DefaultExpiration.Minutes()))

	// Watch defaults
	v.SetDefault("watch.debounce_ms", int(generator.DefaultDebounce.Milliseconds()))
}

// Keys lists every configuration key SetDefaults knows, in definition order.
// Flags and introspection use it to stay in sync with the defaults.
func Keys() []string {
	return []string{
		"source.mode", "source.dir", "source.patterns", "source.manifest", "source.interfaces",
		"output.path", "output.package", "output.package_path", "output.function",
		"output.builder_package", "output.builder_package_name", "output.builder_type", "output.register_function",
		"generator.interface", "generator.resource_marker", "generator.strict_markers",
		"cache.enabled", "cache.expiration_minutes",
		"watch.debounce_ms",
	}
}
