package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/teranos/opgen/am"
	"github.com/teranos/opgen/emitter"
	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/generator"
	"github.com/teranos/opgen/logger"
	"github.com/teranos/opgen/resolver"
	"github.com/teranos/opgen/typegraph"
	"github.com/teranos/opgen/typegraph/gosource"
	"github.com/teranos/opgen/typegraph/manifest"
)

// loadConfig loads and validates the configuration, with relative paths
// resolved against the directory of the config file in use.
func loadConfig() (*am.Config, error) {
	loaded, err := am.Load()
	if err != nil {
		return nil, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	// Work on a copy so the cached configuration keeps its relative paths
	cfg := *loaded
	cfg.ResolvePaths(configDir())
	return &cfg, nil
}

// configDir is the directory relative config paths are anchored to.
func configDir() string {
	if used := am.GetViper().ConfigFileUsed(); used != "" {
		if abs, err := filepath.Abs(used); err == nil {
			return filepath.Dir(abs)
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// newProvider returns the type graph source selected by source.mode.
func newProvider(cfg *am.Config) (typegraph.Provider, error) {
	switch cfg.Source.Mode {
	case am.SourceModeGo:
		// The previous registration file is loaded as an empty one: it may
		// name controllers that no longer exist.
		var replace map[string][]byte
		if cfg.Output.Path != am.Stdout {
			stub, err := emitter.Emit(nil, cfg.EmitOptions())
			if err != nil {
				return nil, err
			}
			replace = map[string][]byte{cfg.Output.Path: stub}
		}
		return gosource.New(gosource.Config{
			Dir:        cfg.Source.Dir,
			Patterns:   cfg.Source.Patterns,
			Interfaces: cfg.SourceInterfaces(),
			Replace:    replace,
		}, gosource.WithLogger(logger.ComponentLogger("gosource"))), nil
	case am.SourceModeManifest:
		return manifest.NewProvider(cfg.Source.Manifest), nil
	default:
		return nil, errors.NewInvalidConfigError("unknown source mode %q", cfg.Source.Mode)
	}
}

// settleOutputPackage takes the package of the registration file from its
// directory in go mode when output.package_path is unset, so types declared
// beside the file are written unqualified. Writing to stdout uses source.dir.
func settleOutputPackage(ctx context.Context, cfg *am.Config) {
	if cfg.Source.Mode != am.SourceModeGo || cfg.Output.PackagePath != "" {
		return
	}
	dir := cfg.Source.Dir
	if cfg.Output.Path != am.Stdout {
		dir = filepath.Dir(cfg.Output.Path)
	}
	name, path, err := gosource.PackageAt(ctx, dir, nil)
	if err != nil {
		logger.Warnw("Cannot derive the output package, set output.package_path",
			logger.FieldDir, dir, logger.FieldError, err)
		return
	}
	cfg.Output.PackagePath = path
	if name != "" && name != cfg.Output.Package {
		logger.Debugw("Output package taken from directory",
			logger.FieldPackage, name, "configured", cfg.Output.Package)
		cfg.Output.Package = name
	}
}

// newGenerator wires provider, cache and publisher for cfg.
func newGenerator(ctx context.Context, cfg *am.Config, publisher generator.Publisher) (*generator.Generator, error) {
	settleOutputPackage(ctx, cfg)
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	opts := []generator.Option{generator.WithLogger(logger.ComponentLogger("generator"))}
	if cfg.Cache.Enabled {
		opts = append(opts, generator.WithCache(resolver.NewMemoCache(cfg.CacheExpiration())))
	}
	return generator.New(provider, publisher, cfg.GeneratorSettings(), opts...), nil
}

// newPublisher writes to stdout for the "-" output path and to the output
// file otherwise.
func newPublisher(cfg *am.Config, stdout io.Writer) generator.Publisher {
	if cfg.Output.Path == am.Stdout {
		return generator.WriterPublisher{W: stdout}
	}
	return generator.NewFilePublisher(cfg.Output.Path)
}

// requireFileOutput rejects the stdout output path for commands that compare
// with or rewrite a file.
func requireFileOutput(cfg *am.Config, command string) error {
	if cfg.Output.Path != am.Stdout {
		return nil
	}
	return errors.WithHint(
		errors.NewInvalidConfigError("%s needs a file output, not stdout", command),
		"set output.path in opgen.toml or pass --output <file>")
}

// displayPath shortens path relative to the working directory for messages.
func displayPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil && !filepath.IsAbs(rel) && len(rel) < len(path) {
		return rel
	}
	return path
}
