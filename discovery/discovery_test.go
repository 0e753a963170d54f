package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/resolver"
	tg "github.com/teranos/opgen/typegraph"
)

const (
	app       = "example.com/app"
	ops       = "example.com/operator"
	ctrlIface = ops + ".EntityController"
)

func controllerOf(arg tg.TypeRef) tg.TypeRef {
	return tg.Named(ops, "EntityController", arg)
}

func ref(r tg.TypeRef) *tg.TypeRef {
	return &r
}

func discover(t *testing.T, decls ...tg.TypeDeclaration) ([]Pair, error) {
	t.Helper()
	snap, err := tg.NewSnapshot(decls)
	require.NoError(t, err)
	return Discover(context.Background(), snap, resolver.New(snap), ctrlIface)
}

func pairStrings(pairs []Pair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.String()
	}
	return out
}

func TestDiscoverDirect(t *testing.T) {
	pairs, err := discover(t,
		tg.TypeDeclaration{Package: app, Name: "V1TestEntity"},
		tg.TypeDeclaration{Package: app, Name: "V1TestEntityController",
			Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "V1TestEntity"))}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com/app.V1TestEntityController -> example.com/app.V1TestEntity"}, pairStrings(pairs))
}

func TestDiscoverInheritedMatchesDirect(t *testing.T) {
	direct, err := discover(t,
		tg.TypeDeclaration{Package: app, Name: "X", Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "Y"))}},
	)
	require.NoError(t, err)

	inherited, err := discover(t,
		tg.TypeDeclaration{Package: app, Name: "B", Params: []string{"T"}, Abstract: true,
			Interfaces: []tg.TypeRef{controllerOf(tg.Param("T"))}},
		tg.TypeDeclaration{Package: app, Name: "X", Base: ref(tg.Named(app, "B", tg.Named(app, "Y")))},
	)
	require.NoError(t, err)

	assert.Equal(t, pairStrings(direct), pairStrings(inherited))
	require.Len(t, inherited, 1)
	assert.Equal(t, "example.com/app.Y", inherited[0].Entity.String())
}

func TestDiscoverSkipsAbstract(t *testing.T) {
	pairs, err := discover(t,
		tg.TypeDeclaration{Package: app, Name: "AbstractCtrl", Abstract: true,
			Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "Y"))}},
	)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestDiscoverSkipsGenericControllers(t *testing.T) {
	pairs, err := discover(t,
		// Implements the interface with a closed argument but is itself generic.
		tg.TypeDeclaration{Package: app, Name: "Wrapper", Params: []string{"T"},
			Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "Y"))}},
		tg.TypeDeclaration{Package: app, Name: "Open", Params: []string{"T"},
			Interfaces: []tg.TypeRef{controllerOf(tg.Param("T"))}},
	)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestDiscoverPreservesDeclarationOrder(t *testing.T) {
	pairs, err := discover(t,
		tg.TypeDeclaration{Package: app, Name: "Zeta", Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "Q"))}},
		tg.TypeDeclaration{Package: app, Name: "Plain"},
		tg.TypeDeclaration{Package: app, Name: "Alpha", Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "P"))}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"example.com/app.Zeta -> example.com/app.Q",
		"example.com/app.Alpha -> example.com/app.P",
	}, pairStrings(pairs))
}

func TestDiscoverIgnoresExternalDeclarations(t *testing.T) {
	pairs, err := discover(t,
		tg.TypeDeclaration{Package: "example.com/lib", Name: "Ready", External: true,
			Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "Y"))}},
	)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestDiscoverFaultAbortsPass(t *testing.T) {
	pairs, err := discover(t,
		tg.TypeDeclaration{Package: app, Name: "Good", Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "Y"))}},
		tg.TypeDeclaration{Package: app, Name: "Broken", Base: ref(tg.Named(app, "Nowhere"))},
	)
	require.Error(t, err)
	assert.Nil(t, pairs)
	assert.True(t, errors.Is(err, errors.ErrDanglingBase))
	assert.Contains(t, err.Error(), "example.com/app.Broken")
}

func TestDiscoverHonoursCancellation(t *testing.T) {
	snap, err := tg.NewSnapshot([]tg.TypeDeclaration{
		{Package: app, Name: "Good", Interfaces: []tg.TypeRef{controllerOf(tg.Named(app, "Y"))}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pairs, err := Discover(ctx, snap, resolver.New(snap), ctrlIface)
	require.Error(t, err)
	assert.Nil(t, pairs)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDiscoverEmptySnapshot(t *testing.T) {
	pairs, err := discover(t)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}
