package am

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/generator"
)

// isolate points HOME at an empty directory and moves into a fresh working
// directory so no user or project config leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	Reset()
	t.Cleanup(Reset)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, SourceModeGo, cfg.Source.Mode)
	assert.Equal(t, []string{"./..."}, cfg.Source.Patterns)
	assert.Equal(t, DefaultOutputPath, cfg.Output.Path)
	assert.Equal(t, "main", cfg.Output.Package)
	assert.Equal(t, "RegisterControllers", cfg.Output.Function)
	assert.Equal(t, generator.DefaultInterface, cfg.Generator.Interface)
	assert.Equal(t, generator.DefaultResourceMarker, cfg.Generator.ResourceMarker)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.CacheExpiration())
	assert.Equal(t, generator.DefaultDebounce, cfg.WatchDebounce())
	assert.NoError(t, cfg.Validate())
}

func TestKeysMatchDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	assert.ElementsMatch(t, v.AllKeys(), Keys())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opgen.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[source]
mode = "manifest"
manifest = "types.yaml"

[output]
path = "internal/app/zz_controllers.go"
package = "app"
package_path = "example.com/app/internal/app"

[generator]
strict_markers = true
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, SourceModeManifest, cfg.Source.Mode)
	assert.Equal(t, "types.yaml", cfg.Source.Manifest)
	assert.Equal(t, "app", cfg.Output.Package)
	assert.True(t, cfg.Generator.StrictMarkers)
	// Untouched keys keep their defaults
	assert.Equal(t, "AddController", cfg.Output.RegisterFunction)
	assert.NoError(t, cfg.Validate())

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_ProjectConfigAndEnvironment(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`
[output]
package = "fromfile"
function = "FromFile"
`), 0o644))

	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)
	t.Setenv("OPGEN_OUTPUT_FUNCTION", "FromEnv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fromfile", cfg.Output.Package)
	assert.Equal(t, "FromEnv", cfg.Output.Function, "environment overrides the project file")
	assert.Equal(t, SourceProject, ConfigSources["output.package"].Source)
	assert.Contains(t, ConfigSources["output.package"].Path, ConfigFileName)

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("[output]\npackage = \"custom\"\n"), 0o644))

	SetConfigFile(path)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Output.Package)
	assert.Equal(t, path, GetViper().ConfigFileUsed())

	Reset()
	SetConfigFile(filepath.Join(t.TempDir(), "nope.toml"))
	_, err = Load()
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestLoad_UserConfigBelowProject(t *testing.T) {
	dir := isolate(t)
	home := os.Getenv("HOME")
	require.NoError(t, os.MkdirAll(filepath.Join(home, UserConfigDir), 0o755))
	require.NoError(t, os.WriteFile(UserConfigPath(), []byte("[output]\npackage = \"user\"\nfunction = \"UserFunc\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[output]\npackage = \"project\"\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "project", cfg.Output.Package)
	assert.Equal(t, "UserFunc", cfg.Output.Function)
	assert.Equal(t, SourceUser, ConfigSources["output.function"].Source)
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "x", "y", "z")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, "", FindProjectConfig(deep))

	path := filepath.Join(root, "x", ConfigFileName)
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	assert.Equal(t, path, FindProjectConfig(deep))
}

func validConfig() Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		panic(err)
	}
	return *cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"stdout output", func(c *Config) { c.Output.Path = Stdout }, false},
		{"zero expiration uses default", func(c *Config) { c.Cache.ExpirationMinutes = 0 }, false},
		{"unknown mode", func(c *Config) { c.Source.Mode = "python" }, true},
		{"manifest mode without manifest", func(c *Config) { c.Source.Mode = SourceModeManifest }, true},
		{"go mode without dir", func(c *Config) { c.Source.Dir = "" }, true},
		{"empty output", func(c *Config) { c.Output.Path = "" }, true},
		{"non-go output", func(c *Config) { c.Output.Path = "out.txt" }, true},
		{"bad package", func(c *Config) { c.Output.Package = "my-pkg" }, true},
		{"unqualified interface", func(c *Config) { c.Generator.Interface = "EntityController" }, true},
		{"bad extra interface", func(c *Config) { c.Source.Interfaces = []string{"example.com/app"} }, true},
		{"bad marker", func(c *Config) { c.Generator.ResourceMarker = "kubebuilder:resource" }, true},
		{"negative expiration", func(c *Config) { c.Cache.ExpirationMinutes = -1 }, true},
		{"negative debounce", func(c *Config) { c.Watch.DebounceMS = -5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestSourceInterfaces(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Interfaces = []string{"example.com/x.Other", generator.DefaultInterface, "example.com/x.Other"}
	assert.Equal(t, []string{generator.DefaultInterface, "example.com/x.Other"}, cfg.SourceInterfaces())
}

func TestGeneratorSettings(t *testing.T) {
	cfg := validConfig()
	cfg.Output.Package = "app"
	cfg.Generator.StrictMarkers = true

	gc := cfg.GeneratorSettings()
	assert.Equal(t, generator.DefaultInterface, gc.Interface)
	assert.Equal(t, "app", gc.Emit.PackageName)
	assert.Equal(t, "AddController", gc.Emit.RegisterFunc)
	assert.True(t, gc.StrictMarkers)
}

func TestResolvePaths(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Manifest = "types.yaml"
	cfg.Output.Path = "/abs/out.go"
	cfg.ResolvePaths("/repo")

	assert.Equal(t, "/repo", cfg.Source.Dir)
	assert.Equal(t, "/repo/types.yaml", cfg.Source.Manifest)
	assert.Equal(t, "/abs/out.go", cfg.Output.Path)

	cfg.Output.Path = Stdout
	cfg.ResolvePaths("/repo")
	assert.Equal(t, Stdout, cfg.Output.Path)
}

func TestIntrospection(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("[output]\npackage = \"app\"\n"), 0o644))
	t.Setenv("OPGEN_WATCH_DEBOUNCE_MS", "10")

	intro, err := GetConfigIntrospection(map[string]string{"output.path": "output"})
	require.NoError(t, err)
	assert.Contains(t, intro.ConfigFile, ConfigFileName)

	sources := make(map[string]ConfigSource)
	for _, s := range intro.Settings {
		sources[s.Key] = s.Source
	}
	assert.Equal(t, SourceProject, sources["output.package"])
	assert.Equal(t, SourceEnvironment, sources["watch.debounce_ms"])
	assert.Equal(t, SourceFlag, sources["output.path"])
	assert.Equal(t, SourceDefault, sources["output.function"])
}

func TestInitProjectConfig(t *testing.T) {
	dir := t.TempDir()

	path, err := InitProjectConfig(dir, false)
	require.NoError(t, err)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	want := validConfig()
	assert.Equal(t, want.Output, cfg.Output)
	assert.Equal(t, want.Generator, cfg.Generator)
	assert.Equal(t, want.Cache, cfg.Cache)
	assert.Equal(t, want.Source.Patterns, cfg.Source.Patterns)
	assert.NoError(t, cfg.Validate())

	_, err = InitProjectConfig(dir, false)
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))

	_, err = InitProjectConfig(dir, true)
	require.NoError(t, err)
	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err)

	settings, err := ReadConfigFile(path)
	require.NoError(t, err)
	assert.Contains(t, settings, "output")
}

func TestConfigWatcherReloads(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("[output]\npackage = \"before\"\n"), 0o644))
	SetConfigFile(path)

	cw, err := NewConfigWatcher(path)
	require.NoError(t, err)
	cw.debounce = 20 * time.Millisecond

	reloaded := make(chan string, 4)
	cw.OnReload(func(c *Config) error {
		reloaded <- c.Output.Package
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- cw.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-stopped)
	}()

	require.NoError(t, os.WriteFile(path, []byte("[output]\npackage = \"after\"\n"), 0o644))

	select {
	case pkg := <-reloaded:
		assert.Equal(t, "after", pkg)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestConsumeOwnWrite(t *testing.T) {
	cw := &ConfigWatcher{}
	assert.False(t, cw.consumeOwnWrite())

	cw.MarkOwnWrite()
	cw.MarkOwnWrite()
	assert.True(t, cw.consumeOwnWrite())
	assert.True(t, cw.consumeOwnWrite())
	assert.False(t, cw.consumeOwnWrite())
}

func TestIsBackupFile(t *testing.T) {
	assert.True(t, isBackupFile("/x/opgen.toml.back1"))
	assert.True(t, isBackupFile("opgen.toml.back3"))
	assert.False(t, isBackupFile("/x/opgen.toml"))
}
