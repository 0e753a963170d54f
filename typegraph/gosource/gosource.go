// Package gosource builds a type graph snapshot from Go packages.
//
// Go has no class inheritance, so the provider maps Go onto the model:
//
//   - the base of a struct type is its first embedded struct field whose
//     type is a defined struct outside the standard library, skipping
//     instantiations the model cannot spell such as Holder[map[string]int]
//   - a type implements a configured generic interface when the methods
//     declared on it (not promoted ones) unify with the interface's methods
//   - a type is abstract when its doc comment carries //opgen:abstract
//
// Bases declared outside the analyzed packages are added as external
// declarations so chains can be walked without a type checker.
package gosource

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/logger"
	"github.com/teranos/opgen/typegraph"
)

// maxLoadErrors bounds the package errors reported in one fault.
const maxLoadErrors = 10

// Config selects the packages to analyze and the interfaces to detect.
type Config struct {
	// Dir is the directory the patterns are resolved in (the module root)
	Dir string
	// Patterns are go/packages patterns, "./..." when empty
	Patterns []string
	// Interfaces are the qualified names of the generic interfaces to detect,
	// e.g. "github.com/teranos/opgen/operator.EntityController"
	Interfaces []string
	// Env overrides the environment of the underlying go command
	Env []string
	// BuildFlags are passed to the underlying go command
	BuildFlags []string
	// Replace maps absolute file paths to the content the loader sees in
	// their place, typically a previous registration file whose references
	// may have gone stale. Paths missing on disk are left alone so a
	// replacement never adds a file to a package.
	Replace map[string][]byte
}

// Provider implements typegraph.Provider over Go source.
type Provider struct {
	cfg Config
	log *zap.SugaredLogger
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Provider) {
		p.log = l
	}
}

// New returns a Provider for cfg.
func New(cfg Config, opts ...Option) *Provider {
	p := &Provider{cfg: cfg, log: logger.ComponentLogger("gosource")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo

// Load implements typegraph.Provider.
func (p *Provider) Load(ctx context.Context) (*typegraph.Snapshot, error) {
	patterns := p.cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context:    ctx,
		Mode:       loadMode,
		Dir:        p.cfg.Dir,
		Env:        p.cfg.Env,
		BuildFlags: p.cfg.BuildFlags,
		Overlay:    p.overlay(),
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "package load canceled")
		}
		return nil, errors.Wrapf(err, "failed to load packages %v", patterns)
	}
	if err := loadErrors(pkgs); err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, errors.Contract(errors.Newf("no packages match %v", patterns), "failed to load packages")
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })

	b := newBuilder(p.log)
	if err := b.resolveInterfaces(pkgs, p.cfg.Interfaces); err != nil {
		return nil, err
	}
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "package load canceled")
		}
		b.addPackage(pkg)
	}
	b.addExternalBases()

	p.log.Debugw("Loaded Go type graph",
		logger.FieldCount, len(b.decls),
		"packages", len(pkgs))

	return typegraph.NewSnapshot(b.decls)
}

// overlay returns the replacements whose files currently exist.
func (p *Provider) overlay() map[string][]byte {
	var out map[string][]byte
	for path, content := range p.cfg.Replace {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if out == nil {
			out = make(map[string][]byte, len(p.cfg.Replace))
		}
		out[path] = content
		p.log.Debugw("Replacing file for load", logger.FieldFile, path)
	}
	return out
}

// PackageAt reports the name and import path of the package in dir. The
// name is empty when dir holds no Go files yet.
func PackageAt(ctx context.Context, dir string, env []string) (name, path string, err error) {
	pkgs, err := packages.Load(&packages.Config{
		Context: ctx,
		Mode:    packages.NeedName,
		Dir:     dir,
		Env:     env,
	}, ".")
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to resolve package in %s", dir)
	}
	if len(pkgs) != 1 || pkgs[0].PkgPath == "" {
		return "", "", errors.Newf("no package found in %s", dir)
	}
	return pkgs[0].Name, pkgs[0].PkgPath, nil
}

// loadErrors reports package, parse and type errors as one contract fault.
func loadErrors(pkgs []*packages.Package) error {
	var msgs []string
	total := 0
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			total++
			if len(msgs) < maxLoadErrors {
				msgs = append(msgs, e.Error())
			}
		}
	})
	if total == 0 {
		return nil
	}
	err := errors.Newf("%d package error(s)", total)
	err = errors.WithDetail(err, strings.Join(msgs, "\n"))
	err = errors.WithHint(err, "the analyzed packages must build; run go build on them first")
	return errors.Contract(err, "failed to load packages")
}

// builder accumulates declarations in snapshot order.
type builder struct {
	log        *zap.SugaredLogger
	decls      []typegraph.TypeDeclaration
	seen       map[string]bool
	interfaces []*types.Named

	// pending bases that may need external declarations, in discovery order
	pending []*types.Named
}

func newBuilder(log *zap.SugaredLogger) *builder {
	return &builder{log: log, seen: make(map[string]bool)}
}

// resolveInterfaces finds each configured interface among the loaded
// packages and their imports. An interface no package can reach is skipped:
// nothing in the graph can implement it.
func (b *builder) resolveInterfaces(pkgs []*packages.Package, names []string) error {
	index := make(map[string]*types.Package)
	var visit func(*types.Package)
	visit = func(tp *types.Package) {
		if tp == nil || index[tp.Path()] != nil {
			return
		}
		index[tp.Path()] = tp
		for _, imp := range tp.Imports() {
			visit(imp)
		}
	}
	for _, pkg := range pkgs {
		visit(pkg.Types)
	}

	for _, name := range names {
		path, local := typegraph.SplitQualifiedName(name)
		tp := index[path]
		if tp == nil {
			b.log.Warnw("Interface package not reachable from analyzed packages",
				logger.FieldInterface, name)
			continue
		}
		obj, ok := tp.Scope().Lookup(local).(*types.TypeName)
		if !ok {
			return errors.NewInvalidConfigError("%s is not a type", name)
		}
		named, ok := obj.Type().(*types.Named)
		if !ok {
			return errors.NewInvalidConfigError("%s is not a defined type", name)
		}
		if _, ok := named.Underlying().(*types.Interface); !ok {
			return errors.NewInvalidConfigError("%s is not an interface", name)
		}
		if named.TypeParams().Len() == 0 {
			return errors.WithHint(
				errors.NewInvalidConfigError("%s is not generic", name),
				"configure a generic interface such as EntityController[E]")
		}
		b.interfaces = append(b.interfaces, named)
	}
	return nil
}

// addPackage declares every defined non-interface type of pkg in source order.
func (b *builder) addPackage(pkg *packages.Package) {
	for _, file := range pkg.Syntax {
		for _, d := range file.Decls {
			gen, ok := d.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, s := range gen.Specs {
				spec := s.(*ast.TypeSpec)
				if spec.Assign.IsValid() {
					continue
				}
				obj, ok := pkg.TypesInfo.Defs[spec.Name].(*types.TypeName)
				if !ok || obj.IsAlias() {
					continue
				}
				named, ok := obj.Type().(*types.Named)
				if !ok {
					continue
				}
				if _, isIface := named.Underlying().(*types.Interface); isIface {
					continue
				}

				decl := b.describe(named, false)
				decl.Markers = markers(spec.Doc, gen)
				decl.Abstract = decl.HasMarker(typegraph.AbstractMarker)
				b.add(decl)
			}
		}
	}
}

// addExternalBases declares the bases no analyzed package declares,
// following their own bases until the chain ends.
func (b *builder) addExternalBases() {
	for len(b.pending) > 0 {
		named := b.pending[0]
		b.pending = b.pending[1:]
		id := qualifiedID(named)
		if b.seen[id] {
			continue
		}
		decl := b.describe(named, true)
		b.log.Debugw("Adding external base", logger.FieldBase, id)
		b.add(decl)
	}
}

func (b *builder) add(decl typegraph.TypeDeclaration) {
	b.seen[decl.ID()] = true
	b.decls = append(b.decls, decl)
}

// describe maps a generic or plain defined type to a declaration.
func (b *builder) describe(named *types.Named, external bool) typegraph.TypeDeclaration {
	named = named.Origin()
	obj := named.Obj()
	decl := typegraph.TypeDeclaration{
		Name:     obj.Name(),
		External: external,
	}
	if pkg := obj.Pkg(); pkg != nil {
		decl.Package = pkg.Path()
		decl.PackageName = pkg.Name()
	}
	tparams := named.TypeParams()
	for i := 0; i < tparams.Len(); i++ {
		decl.Params = append(decl.Params, tparams.At(i).Obj().Name())
	}

	base, baseNamed := b.baseOf(named)
	if base != nil {
		decl.Base = base
		b.pending = append(b.pending, baseNamed)
	}

	for _, iface := range b.interfaces {
		ref, ok := implements(named, iface)
		if ok {
			decl.Interfaces = append(decl.Interfaces, ref)
		}
	}
	return decl
}

// baseOf returns the first embedded field whose type is a defined struct
// outside the standard library. Embeddings whose type arguments the model
// cannot spell (maps, funcs, interfaces, arrays, chans) are skipped.
func (b *builder) baseOf(named *types.Named) (*typegraph.TypeRef, *types.Named) {
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		return nil, nil
	}
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Embedded() {
			continue
		}
		t := types.Unalias(f.Type())
		if ptr, ok := t.(*types.Pointer); ok {
			t = types.Unalias(ptr.Elem())
		}
		embedded, ok := t.(*types.Named)
		if !ok {
			continue
		}
		if _, ok := embedded.Underlying().(*types.Struct); !ok {
			continue
		}
		if pkg := embedded.Obj().Pkg(); pkg == nil || isStdlib(pkg.Path()) {
			continue
		}
		ref, err := refOf(embedded, nil)
		if err != nil {
			b.log.Debugw("Skipping embedded field",
				logger.FieldType, qualifiedID(named),
				"field", f.Name(),
				logger.FieldError, err)
			continue
		}
		return &ref, embedded.Origin()
	}
	return nil, nil
}

// isStdlib reports whether path belongs to the standard library, whose
// import paths have no dot in their first element.
func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

// markers returns the opgen directives of a type's doc comment. A type
// declared alone in its GenDecl may carry them on the declaration instead.
func markers(doc *ast.CommentGroup, gen *ast.GenDecl) []string {
	if doc == nil && !gen.Lparen.IsValid() {
		doc = gen.Doc
	}
	if doc == nil {
		return nil
	}
	var out []string
	for _, c := range doc.List {
		text, ok := strings.CutPrefix(c.Text, "//")
		if !ok {
			continue
		}
		if strings.HasPrefix(text, typegraph.MarkerPrefix) {
			out = append(out, strings.TrimSpace(text))
		}
	}
	return out
}

func qualifiedID(named *types.Named) string {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return typegraph.QualifiedName(obj.Pkg().Path(), obj.Name())
}
