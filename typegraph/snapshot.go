package typegraph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/teranos/opgen/errors"
)

// MarkerPrefix starts every directive opgen reads from doc comments.
const MarkerPrefix = "opgen:"

// AbstractMarker flags a declaration that must never be registered itself.
const AbstractMarker = MarkerPrefix + "abstract"

// TypeDeclaration is one declared type and its structural shape.
type TypeDeclaration struct {
	Package     string `json:"package"`
	PackageName string `json:"package_name,omitempty"`
	Name        string `json:"name"`

	// Params are the declared type parameter names, in order
	Params   []string `json:"params,omitempty"`
	Abstract bool     `json:"abstract,omitempty"`

	// Base is the supertype this declaration inherits from, with the type
	// arguments it supplies. Arguments may mention Params.
	Base *TypeRef `json:"base,omitempty"`
	// Interfaces are the directly implemented interface references, in order
	Interfaces []TypeRef `json:"interfaces,omitempty"`

	// Markers are opgen directives attached to the declaration ("opgen:resource kind=Foo")
	Markers []string `json:"markers,omitempty"`

	// External declarations live outside the analyzed packages; they exist
	// only so inheritance chains can be walked.
	External bool `json:"external,omitempty"`
}

// ID returns the qualified name of the declaration.
func (d *TypeDeclaration) ID() string {
	return QualifiedName(d.Package, d.Name)
}

// Generic reports whether the declaration has type parameters.
func (d *TypeDeclaration) Generic() bool {
	return len(d.Params) > 0
}

// Ref returns a reference to the declaration, instantiated with its own
// parameters when it is generic.
func (d *TypeDeclaration) Ref() TypeRef {
	ref := Named(d.Package, d.Name)
	ref.PackageName = d.PackageName
	for _, p := range d.Params {
		ref.Args = append(ref.Args, Param(p))
	}
	return ref
}

// HasMarker reports whether the declaration carries the directive name,
// with or without arguments.
func (d *TypeDeclaration) HasMarker(name string) bool {
	for _, m := range d.Markers {
		if m == name || strings.HasPrefix(m, name+" ") {
			return true
		}
	}
	return false
}

// Snapshot is the immutable type graph of one analysis pass.
type Snapshot struct {
	types   []*TypeDeclaration
	index   map[string]*TypeDeclaration
	version string
}

// NewSnapshot builds a snapshot from declarations in declaration order.
// Duplicate qualified names are an input contract violation.
func NewSnapshot(decls []TypeDeclaration) (*Snapshot, error) {
	s := &Snapshot{
		types: make([]*TypeDeclaration, 0, len(decls)),
		index: make(map[string]*TypeDeclaration, len(decls)),
	}
	for i := range decls {
		d := decls[i]
		if d.Name == "" {
			return nil, errors.Contract(errors.New("declaration without a name"), "declaration %d", i)
		}
		id := d.ID()
		if _, dup := s.index[id]; dup {
			return nil, errors.Contract(errors.ErrDuplicateType, "type %s", id)
		}
		s.types = append(s.types, &d)
		s.index[id] = &d
	}

	version, err := computeVersion(decls)
	if err != nil {
		return nil, err
	}
	s.version = version
	return s, nil
}

// computeVersion hashes the canonical JSON encoding of the declarations.
// Struct fields encode in a fixed order, so equal inputs hash equally.
func computeVersion(decls []TypeDeclaration) (string, error) {
	data, err := json.Marshal(decls)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode snapshot")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Version identifies the snapshot contents.
func (s *Snapshot) Version() string {
	return s.version
}

// Len returns the number of declarations, external ones included.
func (s *Snapshot) Len() int {
	return len(s.types)
}

// Lookup returns the declaration with the given qualified name.
func (s *Snapshot) Lookup(id string) (*TypeDeclaration, bool) {
	d, ok := s.index[id]
	return d, ok
}

// All returns every declaration in declaration order.
// Callers must not modify the returned declarations.
func (s *Snapshot) All() []*TypeDeclaration {
	return s.types
}

// Declared returns the non-external declarations in declaration order.
func (s *Snapshot) Declared() []*TypeDeclaration {
	declared := make([]*TypeDeclaration, 0, len(s.types))
	for _, d := range s.types {
		if !d.External {
			declared = append(declared, d)
		}
	}
	return declared
}

// Provider supplies the type graph snapshot for one analysis pass.
type Provider interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*Snapshot, error)

// Load calls f(ctx).
func (f ProviderFunc) Load(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// Static returns a Provider that always yields s.
func Static(s *Snapshot) Provider {
	return ProviderFunc(func(context.Context) (*Snapshot, error) { return s, nil })
}
