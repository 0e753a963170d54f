// Package discovery finds the (controller, entity) pairs of a type graph.
package discovery

import (
	"context"

	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/logger"
	"github.com/teranos/opgen/resolver"
	"github.com/teranos/opgen/typegraph"
)

// Pair binds a concrete controller type to the entity type it reconciles.
type Pair struct {
	Controller typegraph.TypeRef
	Entity     typegraph.TypeRef
}

func (p Pair) String() string {
	return p.Controller.String() + " -> " + p.Entity.String()
}

// Discover resolves every declared, non-external type of snapshot against
// the single-argument controller interface iface and returns the matching
// pairs in declaration order.
//
// Abstract types are skipped, and so are generic types: an open generic
// controller cannot be registered. A fault from the resolver stops discovery
// and is returned unchanged. Cancellation is checked before each type.
func Discover(ctx context.Context, snapshot *typegraph.Snapshot, r *resolver.Resolver, iface string) ([]Pair, error) {
	log := logger.LoggerFromContext(ctx).Named("discovery")
	shape := resolver.Shape{Name: iface, Arity: 1}

	var pairs []Pair
	for _, decl := range snapshot.Declared() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "discovery canceled")
		}

		if decl.Abstract {
			log.Debugw("Skipping abstract type", logger.FieldType, decl.ID())
			continue
		}
		if decl.Generic() {
			log.Debugw("Skipping generic type", logger.FieldType, decl.ID())
			continue
		}

		res, err := r.Resolve(decl, shape)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", decl.ID())
		}
		if !res.Found {
			continue
		}

		pair := Pair{Controller: decl.Ref(), Entity: res.Args[0]}
		log.Debugw("Discovered controller",
			logger.FieldController, pair.Controller.String(),
			logger.FieldEntity, pair.Entity.String(),
			logger.FieldDepth, res.Depth)
		pairs = append(pairs, pair)
	}

	return pairs, nil
}
