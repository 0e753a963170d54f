package gosource

import (
	"go/types"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/typegraph"
)

// refOf converts a Go type to a reference. rename maps method receiver type
// parameters to the declared parameter names of the receiver's type.
//
// Only the shapes the model can spell are supported: named types and their
// instantiations, type parameters, pointers and slices.
func refOf(t types.Type, rename map[*types.TypeParam]string) (typegraph.TypeRef, error) {
	switch t := types.Unalias(t).(type) {
	case *types.TypeParam:
		if name, ok := rename[t]; ok {
			return typegraph.Param(name), nil
		}
		return typegraph.Param(t.Obj().Name()), nil
	case *types.Pointer:
		elem, err := refOf(t.Elem(), rename)
		if err != nil {
			return typegraph.TypeRef{}, err
		}
		return typegraph.Pointer(elem), nil
	case *types.Slice:
		elem, err := refOf(t.Elem(), rename)
		if err != nil {
			return typegraph.TypeRef{}, err
		}
		return typegraph.Slice(elem), nil
	case *types.Basic:
		return typegraph.Named("", t.Name()), nil
	case *types.Named:
		obj := t.Obj()
		ref := typegraph.Named("", obj.Name())
		if pkg := obj.Pkg(); pkg != nil {
			ref.Package = pkg.Path()
			ref.PackageName = pkg.Name()
		}
		targs := t.TypeArgs()
		for i := 0; i < targs.Len(); i++ {
			arg, err := refOf(targs.At(i), rename)
			if err != nil {
				return typegraph.TypeRef{}, err
			}
			ref.Args = append(ref.Args, arg)
		}
		// An uninstantiated generic type stands for itself over its own params.
		if targs.Len() == 0 {
			tparams := t.TypeParams()
			for i := 0; i < tparams.Len(); i++ {
				ref.Args = append(ref.Args, typegraph.Param(tparams.At(i).Obj().Name()))
			}
		}
		return ref, nil
	}
	return typegraph.TypeRef{}, errors.Newf("unsupported type %s", t)
}

// implements reports whether the methods declared on named realize the
// generic interface iface, and with which type arguments.
func implements(named *types.Named, iface *types.Named) (typegraph.TypeRef, bool) {
	it := iface.Underlying().(*types.Interface)
	if it.NumMethods() == 0 {
		return typegraph.TypeRef{}, false
	}

	declared := make(map[string]*types.Func, named.NumMethods())
	for i := 0; i < named.NumMethods(); i++ {
		m := named.Method(i)
		declared[m.Name()] = m
	}

	u := &unifier{
		params: make(map[*types.TypeParam]int),
		bound:  make([]*typegraph.TypeRef, iface.TypeParams().Len()),
	}
	for i := 0; i < iface.TypeParams().Len(); i++ {
		u.params[iface.TypeParams().At(i)] = i
	}

	for i := 0; i < it.NumMethods(); i++ {
		want := it.Method(i)
		have, ok := declared[want.Name()]
		if !ok {
			return typegraph.TypeRef{}, false
		}
		haveSig := have.Type().(*types.Signature)
		u.rename = receiverRenames(named, haveSig)
		if !u.unify(want.Type(), haveSig) {
			return typegraph.TypeRef{}, false
		}
	}

	ref, err := refOf(iface, nil)
	if err != nil {
		return typegraph.TypeRef{}, false
	}
	for i, b := range u.bound {
		if b == nil {
			return typegraph.TypeRef{}, false
		}
		ref.Args[i] = *b
	}
	return ref, true
}

// receiverRenames maps the receiver type parameters of a method to the
// parameter names its type declares; a method may rename them.
func receiverRenames(named *types.Named, sig *types.Signature) map[*types.TypeParam]string {
	recv := sig.RecvTypeParams()
	if recv.Len() == 0 {
		return nil
	}
	declared := named.TypeParams()
	rename := make(map[*types.TypeParam]string, recv.Len())
	for i := 0; i < recv.Len() && i < declared.Len(); i++ {
		rename[recv.At(i)] = declared.At(i).Obj().Name()
	}
	return rename
}

// unifier binds the type parameters of one interface against a type's
// method signatures. A parameter bound twice must bind to equal references.
type unifier struct {
	params map[*types.TypeParam]int
	bound  []*typegraph.TypeRef
	rename map[*types.TypeParam]string
}

func (u *unifier) unify(pattern, actual types.Type) bool {
	pattern, actual = types.Unalias(pattern), types.Unalias(actual)

	if tp, ok := pattern.(*types.TypeParam); ok {
		if i, isIfaceParam := u.params[tp]; isIfaceParam {
			ref, err := refOf(actual, u.rename)
			if err != nil {
				return false
			}
			if u.bound[i] != nil {
				return u.bound[i].Equal(ref)
			}
			u.bound[i] = &ref
			return true
		}
	}

	switch p := pattern.(type) {
	case *types.Pointer:
		a, ok := actual.(*types.Pointer)
		return ok && u.unify(p.Elem(), a.Elem())
	case *types.Slice:
		a, ok := actual.(*types.Slice)
		return ok && u.unify(p.Elem(), a.Elem())
	case *types.Array:
		a, ok := actual.(*types.Array)
		return ok && p.Len() == a.Len() && u.unify(p.Elem(), a.Elem())
	case *types.Map:
		a, ok := actual.(*types.Map)
		return ok && u.unify(p.Key(), a.Key()) && u.unify(p.Elem(), a.Elem())
	case *types.Chan:
		a, ok := actual.(*types.Chan)
		return ok && p.Dir() == a.Dir() && u.unify(p.Elem(), a.Elem())
	case *types.Named:
		a, ok := actual.(*types.Named)
		if !ok || p.Origin().Obj() != a.Origin().Obj() {
			return false
		}
		pargs, aargs := p.TypeArgs(), a.TypeArgs()
		if pargs.Len() != aargs.Len() {
			return false
		}
		for i := 0; i < pargs.Len(); i++ {
			if !u.unify(pargs.At(i), aargs.At(i)) {
				return false
			}
		}
		return true
	case *types.Signature:
		a, ok := actual.(*types.Signature)
		if !ok || p.Variadic() != a.Variadic() {
			return false
		}
		return u.unifyTuple(p.Params(), a.Params()) && u.unifyTuple(p.Results(), a.Results())
	}
	return types.Identical(pattern, actual)
}

func (u *unifier) unifyTuple(pattern, actual *types.Tuple) bool {
	if pattern.Len() != actual.Len() {
		return false
	}
	for i := 0; i < pattern.Len(); i++ {
		if !u.unify(pattern.At(i).Type(), actual.At(i).Type()) {
			return false
		}
	}
	return true
}
