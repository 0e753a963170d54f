// Package resolver decides whether a declared type realizes a generic
// interface shape, and with which type arguments.
//
// Resolution walks the inheritance chain of one declaration through a
// typegraph.Snapshot. Every hop carries a Substitution that maps the current
// declaration's type parameters to references expressed in terms of the
// starting declaration, so a generic base that implements
// EntityController[T] resolves to the entity its subtype closes T with.
package resolver

import (
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/logger"
	"github.com/teranos/opgen/typegraph"
)

// Shape is the structural predicate an interface reference must satisfy:
// its qualified name equals Name and it carries exactly Arity type arguments.
type Shape struct {
	Name  string
	Arity int
}

// Matches reports whether ref has the shape.
func (s Shape) Matches(ref typegraph.TypeRef) bool {
	return ref.Kind == typegraph.KindNamed && ref.ID() == s.Name && len(ref.Args) == s.Arity
}

func (s Shape) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	sb.WriteString("[")
	for i := 0; i < s.Arity; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("_")
	}
	sb.WriteString("]")
	return sb.String()
}

// Resolution is the outcome of resolving one declaration against a shape.
type Resolution struct {
	// Found is true when the chain realizes the shape with closed arguments
	Found bool
	// Args are the closed type arguments of the realized interface
	Args []typegraph.TypeRef
	// Via is the declaration whose interface list matched (the declaration
	// itself or one of its bases). Set for open matches too.
	Via string
	// Depth counts the base hops taken before the match
	Depth int
}

// Substitution maps type parameter names of one declaration to references.
// It is scoped to a single chain walk.
type Substitution map[string]typegraph.TypeRef

// Apply replaces every parameter of ref bound in s. Unbound parameters are
// kept, which leaves the result open.
func (s Substitution) Apply(ref typegraph.TypeRef) typegraph.TypeRef {
	switch ref.Kind {
	case typegraph.KindParam:
		if bound, ok := s[ref.Name]; ok {
			return bound
		}
		return ref
	case typegraph.KindPointer, typegraph.KindSlice:
		if ref.Elem == nil {
			return ref
		}
		elem := s.Apply(*ref.Elem)
		out := ref
		out.Elem = &elem
		return out
	default:
		if len(ref.Args) == 0 {
			return ref
		}
		out := ref
		out.Args = make([]typegraph.TypeRef, len(ref.Args))
		for i, a := range ref.Args {
			out.Args[i] = s.Apply(a)
		}
		return out
	}
}

// Resolver resolves declarations of one snapshot.
type Resolver struct {
	snapshot *typegraph.Snapshot
	cache    Cache
	logger   *zap.SugaredLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache memoizes resolutions in c, keyed by snapshot version.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithLogger sets the logger used for per-type debug output.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) { r.logger = l }
}

// New returns a Resolver over snapshot.
func New(snapshot *typegraph.Snapshot, opts ...Option) *Resolver {
	r := &Resolver{
		snapshot: snapshot,
		logger:   logger.ComponentLogger("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveEntity resolves decl against the single-argument interface name and
// returns the entity type argument. ok is false for a no-match.
func (r *Resolver) ResolveEntity(decl *typegraph.TypeDeclaration, name string) (typegraph.TypeRef, bool, error) {
	res, err := r.Resolve(decl, Shape{Name: name, Arity: 1})
	if err != nil || !res.Found {
		return typegraph.TypeRef{}, false, err
	}
	return res.Args[0], true, nil
}

// Resolve walks decl's inheritance chain looking for an interface reference
// matching shape.
//
// The first matching reference on the walk decides the outcome: when its
// arguments are closed after substitution the resolution is Found, otherwise
// it is a no-match (the chain leaves a parameter open). A chain that ends
// without a match is also a no-match. Cycles, dangling base references and
// base argument counts that disagree with the base's parameters are input
// contract violations.
func (r *Resolver) Resolve(decl *typegraph.TypeDeclaration, shape Shape) (Resolution, error) {
	key := cacheKey(decl.ID(), shape)
	if r.cache != nil {
		if res, ok := r.cache.Lookup(r.snapshot.Version(), key); ok {
			r.logger.Debugw("Resolution cache hit", logger.FieldType, decl.ID())
			return res, nil
		}
	}

	res, err := r.walk(decl, shape)
	if err != nil {
		return Resolution{}, err
	}

	if r.cache != nil {
		r.cache.Store(r.snapshot.Version(), key, res)
	}
	return res, nil
}

func (r *Resolver) walk(start *typegraph.TypeDeclaration, shape Shape) (Resolution, error) {
	env := Substitution{}
	visited := make(map[string]bool)
	var chain []string

	current := start
	for depth := 0; ; depth++ {
		id := current.ID()
		chain = append(chain, id)
		if visited[id] {
			return Resolution{}, errors.WithDetailf(
				errors.Contract(errors.ErrCycle, "resolving %s", start.ID()),
				"chain: %s", strings.Join(chain, " -> "))
		}
		visited[id] = true

		for _, iface := range current.Interfaces {
			if !shape.Matches(iface) {
				continue
			}
			args := make([]typegraph.TypeRef, len(iface.Args))
			closed := true
			for i, a := range iface.Args {
				args[i] = env.Apply(a)
				closed = closed && args[i].Closed()
			}
			if !closed {
				r.logger.Debugw("Interface match leaves a type parameter open",
					logger.FieldType, start.ID(),
					logger.FieldInterface, iface.String(),
					logger.FieldDepth, depth)
				return Resolution{Via: id, Depth: depth}, nil
			}
			return Resolution{Found: true, Args: args, Via: id, Depth: depth}, nil
		}

		if current.Base == nil {
			return Resolution{}, nil
		}

		baseRef := *current.Base
		base, ok := r.snapshot.Lookup(baseRef.ID())
		if !ok {
			return Resolution{}, errors.WithHintf(
				errors.WithDetailf(
					errors.Contract(errors.ErrDanglingBase, "base %s of %s", baseRef.String(), id),
					"chain: %s", strings.Join(chain, " -> ")),
				"the type graph must declare every base type reachable from %s", start.ID())
		}
		if len(base.Params) != len(baseRef.Args) {
			return Resolution{}, errors.WithDetailf(
				errors.Contract(errors.ErrArityMismatch, "base %s of %s", baseRef.String(), id),
				"%s declares %d type parameters, %d supplied", base.ID(), len(base.Params), len(baseRef.Args))
		}

		// The base's parameters are bound to this hop's arguments, resolved
		// through the current environment. A fresh map keeps parameter names
		// of different hops from shadowing each other.
		next := make(Substitution, len(base.Params))
		for i, p := range base.Params {
			next[p] = env.Apply(baseRef.Args[i])
		}
		env = next
		current = base
	}
}

func cacheKey(typeID string, shape Shape) string {
	return typeID + "|" + shape.String()
}
