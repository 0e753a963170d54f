// Package manifest reads a type graph snapshot from a declarative file.
//
// A manifest describes types without Go source, which makes it the input of
// choice for fixtures and for type graphs produced by other tools:
//
//	package: example.com/app
//	types:
//	  - name: ControllerBase
//	    params: [T]
//	    abstract: true
//	    implements: ["example.com/operator.EntityController[*T]"]
//	  - name: WidgetController
//	    base: ControllerBase[Widget]
//
// YAML and JSON manifests are decoded with gopkg.in/yaml.v3, TOML manifests
// with github.com/BurntSushi/toml. Unknown keys are rejected in every format.
package manifest

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/typegraph"
)

// Format is a manifest encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", errors.WithHint(
		errors.Newf("unknown manifest format for %s", path),
		"use a .yaml, .yml, .json or .toml extension")
}

// File is the decoded manifest document.
type File struct {
	// Package is the default import path for types that do not set one
	Package string `yaml:"package" toml:"package"`
	// PackageName is the declared name of Package when it differs from the path
	PackageName string `yaml:"package_name" toml:"package_name"`

	Types []Type `yaml:"types" toml:"types"`
}

// Type declares one type. References are written in canonical string form.
type Type struct {
	Name        string   `yaml:"name" toml:"name"`
	Package     string   `yaml:"package" toml:"package"`
	PackageName string   `yaml:"package_name" toml:"package_name"`
	Params      []string `yaml:"params" toml:"params"`
	Abstract    bool     `yaml:"abstract" toml:"abstract"`
	External    bool     `yaml:"external" toml:"external"`
	Base        string   `yaml:"base" toml:"base"`
	Implements  []string `yaml:"implements" toml:"implements"`
	Markers     []string `yaml:"markers" toml:"markers"`
}

// Decode reads a manifest document in the given format.
func Decode(r io.Reader, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML, FormatJSON:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && err != io.EOF {
			return nil, errors.Contract(err, "failed to decode %s manifest", format)
		}
	case FormatTOML:
		md, err := toml.NewDecoder(r).Decode(&f)
		if err != nil {
			return nil, errors.Contract(err, "failed to decode toml manifest")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Contract(errors.Newf("unknown key %s", undecoded[0]), "failed to decode toml manifest")
		}
	default:
		return nil, errors.Newf("unsupported manifest format %q", format)
	}
	return &f, nil
}

// Parse decodes data and builds the snapshot it describes.
func Parse(data []byte, format Format) (*typegraph.Snapshot, error) {
	f, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return nil, err
	}
	return f.Snapshot()
}

// Declarations converts the manifest into type declarations, in file order.
func (f *File) Declarations() ([]typegraph.TypeDeclaration, error) {
	names := f.packageNames()

	decls := make([]typegraph.TypeDeclaration, 0, len(f.Types))
	for i, t := range f.Types {
		pkg, pkgName := t.Package, t.PackageName
		if pkg == "" {
			pkg = f.Package
		}
		if pkgName == "" {
			pkgName = names[pkg]
		}
		if t.Name == "" {
			return nil, errors.Contract(errors.New("type without a name"), "manifest type %d", i)
		}
		if pkg == "" {
			return nil, errors.WithHint(
				errors.Contract(errors.New("no package"), "manifest type %s", t.Name),
				"set package on the type or at the top of the manifest")
		}

		decl := typegraph.TypeDeclaration{
			Package:     pkg,
			PackageName: pkgName,
			Name:        t.Name,
			Params:      t.Params,
			Abstract:    t.Abstract,
			External:    t.External,
			Markers:     t.Markers,
		}
		if decl.HasMarker(typegraph.AbstractMarker) {
			decl.Abstract = true
		}

		pc := typegraph.ParseContext{Params: t.Params, Package: pkg, PackageName: pkgName}
		if t.Base != "" {
			base, err := typegraph.ParseRef(t.Base, pc)
			if err != nil {
				return nil, errors.Contract(err, "base of %s", decl.ID())
			}
			base = withPackageNames(base, names)
			decl.Base = &base
		}
		for _, s := range t.Implements {
			iface, err := typegraph.ParseRef(s, pc)
			if err != nil {
				return nil, errors.Contract(err, "interface of %s", decl.ID())
			}
			decl.Interfaces = append(decl.Interfaces, withPackageNames(iface, names))
		}

		decls = append(decls, decl)
	}
	return decls, nil
}

// Snapshot builds the snapshot the manifest describes.
func (f *File) Snapshot() (*typegraph.Snapshot, error) {
	decls, err := f.Declarations()
	if err != nil {
		return nil, err
	}
	return typegraph.NewSnapshot(decls)
}

// packageNames collects the declared package names the manifest states.
func (f *File) packageNames() map[string]string {
	names := make(map[string]string)
	if f.Package != "" && f.PackageName != "" {
		names[f.Package] = f.PackageName
	}
	for _, t := range f.Types {
		if t.Package != "" && t.PackageName != "" {
			names[t.Package] = t.PackageName
		}
	}
	return names
}

// withPackageNames fills in the declared package name of qualified
// references whose package the manifest names.
func withPackageNames(ref typegraph.TypeRef, names map[string]string) typegraph.TypeRef {
	if ref.Kind == typegraph.KindNamed && ref.PackageName == "" {
		ref.PackageName = names[ref.Package]
	}
	if ref.Elem != nil {
		elem := withPackageNames(*ref.Elem, names)
		ref.Elem = &elem
	}
	if len(ref.Args) > 0 {
		args := make([]typegraph.TypeRef, len(ref.Args))
		for i, a := range ref.Args {
			args[i] = withPackageNames(a, names)
		}
		ref.Args = args
	}
	return ref
}

// Provider loads a snapshot from a manifest file on every Load.
type Provider struct {
	Path string
	// Format overrides detection from the file extension
	Format Format
}

// NewProvider returns a Provider for path.
func NewProvider(path string) *Provider {
	return &Provider{Path: path}
}

// Load implements typegraph.Provider.
func (p *Provider) Load(ctx context.Context) (*typegraph.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format := p.Format
	if format == "" {
		var err error
		if format, err = FormatFromPath(p.Path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", p.Path)
	}

	snap, err := Parse(data, format)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", p.Path)
	}
	return snap, nil
}
