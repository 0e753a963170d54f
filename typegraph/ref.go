// Package typegraph models the declared types of one analysis pass.
//
// A Snapshot is an immutable, self-describing set of TypeDeclarations: every
// base type reachable from an analyzed type is declared in it, so chains can
// be walked without going back to a compiler or loader.
package typegraph

import (
	"strings"
)

// Kind distinguishes the shapes a TypeRef can take.
type Kind int

const (
	// KindNamed is a (possibly instantiated) named type such as example.com/app.Foo[string]
	KindNamed Kind = iota
	// KindParam is a reference to a type parameter of the enclosing declaration
	KindParam
	// KindPointer is *Elem
	KindPointer
	// KindSlice is []Elem
	KindSlice
)

func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindParam:
		return "param"
	case KindPointer:
		return "pointer"
	case KindSlice:
		return "slice"
	default:
		return "unknown"
	}
}

// TypeRef is a reference to a type, with type arguments where it is generic.
type TypeRef struct {
	Kind Kind `json:"kind"`

	// Package is the import path of a named type; empty for predeclared types
	Package string `json:"package,omitempty"`
	// PackageName is the declared package name when it is known and differs
	// from the last import path element
	PackageName string `json:"package_name,omitempty"`
	// Name is the type name (KindNamed) or parameter name (KindParam)
	Name string `json:"name,omitempty"`

	Args []TypeRef `json:"args,omitempty"`
	Elem *TypeRef  `json:"elem,omitempty"`
}

// Named returns a reference to the named type pkg.name instantiated with args.
func Named(pkg, name string, args ...TypeRef) TypeRef {
	return TypeRef{Kind: KindNamed, Package: pkg, Name: name, Args: args}
}

// Param returns a reference to the type parameter name.
func Param(name string) TypeRef {
	return TypeRef{Kind: KindParam, Name: name}
}

// Pointer returns *elem.
func Pointer(elem TypeRef) TypeRef {
	return TypeRef{Kind: KindPointer, Elem: &elem}
}

// Slice returns []elem.
func Slice(elem TypeRef) TypeRef {
	return TypeRef{Kind: KindSlice, Elem: &elem}
}

// ID returns the qualified identity of a named reference without type
// arguments ("example.com/app.Foo"), or "" for other kinds.
func (r TypeRef) ID() string {
	if r.Kind != KindNamed {
		return ""
	}
	return QualifiedName(r.Package, r.Name)
}

// Closed reports whether no type parameter occurs anywhere in r.
func (r TypeRef) Closed() bool {
	switch r.Kind {
	case KindParam:
		return false
	case KindPointer, KindSlice:
		return r.Elem != nil && r.Elem.Closed()
	}
	for _, a := range r.Args {
		if !a.Closed() {
			return false
		}
	}
	return true
}

// Equal reports whether r and o denote the same type.
func (r TypeRef) Equal(o TypeRef) bool {
	if r.Kind != o.Kind || r.Package != o.Package || r.Name != o.Name || len(r.Args) != len(o.Args) {
		return false
	}
	if (r.Elem == nil) != (o.Elem == nil) {
		return false
	}
	if r.Elem != nil && !r.Elem.Equal(*o.Elem) {
		return false
	}
	for i := range r.Args {
		if !r.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

// Packages returns the import paths r depends on, in first-seen order.
func (r TypeRef) Packages() []string {
	var paths []string
	seen := make(map[string]bool)
	r.walk(func(n TypeRef) {
		if n.Kind == KindNamed && n.Package != "" && !seen[n.Package] {
			seen[n.Package] = true
			paths = append(paths, n.Package)
		}
	})
	return paths
}

func (r TypeRef) walk(fn func(TypeRef)) {
	fn(r)
	if r.Elem != nil {
		r.Elem.walk(fn)
	}
	for _, a := range r.Args {
		a.walk(fn)
	}
}

// String renders r in canonical form: *example.com/app.Foo[string, T].
func (r TypeRef) String() string {
	var sb strings.Builder
	r.format(&sb, func(n TypeRef) string { return n.ID() })
	return sb.String()
}

// Format renders r using qualify to spell each named type.
// Emitters use it to substitute package aliases for import paths.
func (r TypeRef) Format(qualify func(TypeRef) string) string {
	var sb strings.Builder
	r.format(&sb, qualify)
	return sb.String()
}

func (r TypeRef) format(sb *strings.Builder, qualify func(TypeRef) string) {
	switch r.Kind {
	case KindParam:
		sb.WriteString(r.Name)
	case KindPointer:
		sb.WriteString("*")
		r.elemOrInvalid().format(sb, qualify)
	case KindSlice:
		sb.WriteString("[]")
		r.elemOrInvalid().format(sb, qualify)
	default:
		sb.WriteString(qualify(r))
		if len(r.Args) > 0 {
			sb.WriteString("[")
			for i, a := range r.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				a.format(sb, qualify)
			}
			sb.WriteString("]")
		}
	}
}

func (r TypeRef) elemOrInvalid() TypeRef {
	if r.Elem == nil {
		return Named("", "invalid")
	}
	return *r.Elem
}

// Core returns the named type at the center of r: r itself for a named
// reference, the pointee for *T, the element for []T. ok is false for parameters.
func (r TypeRef) Core() (TypeRef, bool) {
	switch r.Kind {
	case KindNamed:
		return r, true
	case KindPointer, KindSlice:
		if r.Elem == nil {
			return TypeRef{}, false
		}
		return r.Elem.Core()
	default:
		return TypeRef{}, false
	}
}

// QualifiedName joins an import path and a type name.
func QualifiedName(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// SplitQualifiedName splits "example.com/app.Foo" into its import path and
// name. The separator is the last dot after the last slash.
func SplitQualifiedName(qualified string) (pkg, name string) {
	slash := strings.LastIndex(qualified, "/")
	dot := strings.LastIndex(qualified, ".")
	if dot <= slash {
		return "", qualified
	}
	return qualified[:dot], qualified[dot+1:]
}

// DefaultPackageName guesses a package's name from its import path: the last
// path element, without a major version suffix or a "go-" prefix, with
// characters that cannot appear in identifiers dropped.
func DefaultPackageName(path string) string {
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	if len(parts) > 1 && isMajorVersion(name) {
		name = parts[len(parts)-2]
	}
	name = strings.TrimPrefix(name, "go-")
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	var sb strings.Builder
	for _, c := range name {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9' && sb.Len() > 0) {
			sb.WriteRune(c)
		}
	}
	if sb.Len() == 0 {
		return "pkg"
	}
	return sb.String()
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
