package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/opgen/errors"
)

var (
	mu             sync.Mutex
	globalConfig   *Config
	viperInstance  *viper.Viper
	explicitConfig string
)

// ConfigSources records which file supplied each key during the last load.
// Keys absent from the map come from defaults, the environment or flags.
var ConfigSources = make(map[string]SourceInfo)

// SetConfigFile makes the next load read path instead of searching for a
// project opgen.toml. An empty path restores the search.
func SetConfigFile(path string) {
	mu.Lock()
	defer mu.Unlock()
	explicitConfig = path
	globalConfig = nil
	viperInstance = nil
}

// Load reads the opgen configuration using Viper
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for flag binding and advanced access.
// Errors reading config files are reported by Load.
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()

	v, _ := initViper()
	return v
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path, on top of the
// defaults only
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	explicitConfig = ""
	ConfigSources = make(map[string]SourceInfo)
}

// initViper initializes Viper with configuration sources and defaults.
// Callers hold mu.
func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	v := viper.New()
	v.SetConfigType("toml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := mergeConfigFiles(v); err != nil {
		return v, err
	}
	viperInstance = v
	return v, nil
}

// FindProjectConfig searches for opgen.toml by walking up the directory tree
// from dir. Returns the empty string if none is found.
func FindProjectConfig(dir string) string {
	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// UserConfigPath returns ~/.opgen/opgen.toml, or "" without a home directory.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, ConfigFileName)
}

// mergeConfigFiles merges configuration files in precedence order:
// user < project (or explicit). Environment and flags still win over both.
func mergeConfigFiles(v *viper.Viper) error {
	ConfigSources = make(map[string]SourceInfo)

	type layer struct {
		path   string
		source ConfigSource
	}
	var layers []layer
	if user := UserConfigPath(); user != "" {
		layers = append(layers, layer{user, SourceUser})
	}

	if explicitConfig != "" {
		if _, err := os.Stat(explicitConfig); err != nil {
			return errors.WithHint(
				errors.Wrapf(err, "config file %s", explicitConfig),
				"pass an existing file to --config or omit it to search for opgen.toml")
		}
		layers = append(layers, layer{explicitConfig, SourceProject})
	} else if wd, err := os.Getwd(); err == nil {
		if project := FindProjectConfig(wd); project != "" {
			layers = append(layers, layer{project, SourceProject})
		}
	}

	for _, l := range layers {
		if _, err := os.Stat(l.path); err != nil {
			continue
		}
		file := viper.New()
		file.SetConfigFile(l.path)
		file.SetConfigType("toml")
		if err := file.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", l.path)
		}
		if err := v.MergeConfigMap(file.AllSettings()); err != nil {
			return errors.Wrapf(err, "failed to merge config file %s", l.path)
		}
		for _, key := range file.AllKeys() {
			ConfigSources[key] = SourceInfo{Source: l.source, Path: l.path}
		}
		if l.source == SourceProject {
			v.SetConfigFile(l.path)
		}
	}
	return nil
}
