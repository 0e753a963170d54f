package typegraph

import (
	"strings"

	"github.com/teranos/opgen/errors"
)

// ParseContext tells ParseRef how to interpret bare identifiers.
type ParseContext struct {
	// Params are the type parameters in scope; a bare identifier naming one is a KindParam
	Params []string
	// Package qualifies any other bare identifier that is not a predeclared type
	Package string
	// PackageName is recorded on references qualified with Package
	PackageName string
}

// predeclared lists Go's predeclared type names, which are never qualified.
var predeclared = map[string]bool{
	"any": true, "bool": true, "byte": true, "comparable": true, "complex64": true,
	"complex128": true, "error": true, "float32": true, "float64": true, "int": true,
	"int8": true, "int16": true, "int32": true, "int64": true, "rune": true,
	"string": true, "uint": true, "uint8": true, "uint16": true, "uint32": true,
	"uint64": true, "uintptr": true,
}

// ParseRef parses the canonical string form of a type reference:
//
//	example.com/app.Foo
//	*example.com/app.Foo[string, T]
//	[]Bar
func ParseRef(s string, pc ParseContext) (TypeRef, error) {
	p := &refParser{src: s, ctx: pc}
	ref, err := p.parseRef()
	if err != nil {
		return TypeRef{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return TypeRef{}, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return ref, nil
}

type refParser struct {
	src string
	pos int
	ctx ParseContext
}

func (p *refParser) parseRef() (TypeRef, error) {
	p.skipSpace()
	switch {
	case p.consume("*"):
		elem, err := p.parseRef()
		if err != nil {
			return TypeRef{}, err
		}
		return Pointer(elem), nil
	case p.consume("["):
		p.skipSpace()
		if !p.consume("]") {
			return TypeRef{}, p.errorf("expected ] after [")
		}
		elem, err := p.parseRef()
		if err != nil {
			return TypeRef{}, err
		}
		return Slice(elem), nil
	}

	ident := p.scanIdent()
	if ident == "" {
		return TypeRef{}, p.errorf("expected type name")
	}
	ref := p.resolveIdent(ident)

	p.skipSpace()
	if !p.consume("[") {
		return ref, nil
	}
	if ref.Kind == KindParam {
		return TypeRef{}, p.errorf("type parameter %s cannot take type arguments", ident)
	}
	for {
		arg, err := p.parseRef()
		if err != nil {
			return TypeRef{}, err
		}
		ref.Args = append(ref.Args, arg)
		p.skipSpace()
		if p.consume("]") {
			return ref, nil
		}
		if !p.consume(",") {
			return TypeRef{}, p.errorf("expected , or ] in type argument list")
		}
	}
}

func (p *refParser) resolveIdent(ident string) TypeRef {
	if !strings.ContainsAny(ident, "./") {
		for _, param := range p.ctx.Params {
			if param == ident {
				return Param(ident)
			}
		}
		if predeclared[ident] {
			return Named("", ident)
		}
		ref := Named(p.ctx.Package, ident)
		ref.PackageName = p.ctx.PackageName
		return ref
	}
	pkg, name := SplitQualifiedName(ident)
	return Named(pkg, name)
}

func (p *refParser) scanIdent() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '.' || c == '/' || c == '-' || c == '~' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80 {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *refParser) consume(tok string) bool {
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *refParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *refParser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(errors.Newf(format, args...), "type reference %q at offset %d", p.src, p.pos)
}
