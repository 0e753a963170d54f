// Package operator is the registration surface that opgen-generated code
// targets.
//
// A controller reconciles one entity type by implementing EntityController
// for it. Generated RegisterControllers functions add every discovered
// controller to a Builder with AddController:
//
//	builder := operator.NewBuilder()
//	builder = RegisterControllers(builder)
//	for _, reg := range builder.Registrations() {
//	    fmt.Println(reg.Controller, "reconciles", reg.Entity)
//	}
package operator

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/teranos/opgen/errors"
)

// EntityController reconciles entities of type E.
type EntityController[E any] interface {
	// Reconcile is called when an entity is created or updated
	Reconcile(ctx context.Context, entity E) (Result, error)
	// Deleted is called after an entity has been removed
	Deleted(ctx context.Context, entity E) error
}

// Result tells the caller of Reconcile when to look at the entity again.
type Result struct {
	// RequeueAfter schedules another reconcile; zero means none
	RequeueAfter time.Duration
}

// Registration records one controller bound to one entity type.
type Registration struct {
	Controller reflect.Type
	Entity     reflect.Type

	newController func() any
}

// NewController returns a fresh zero-valued controller as *C, wrapped in any.
// Callers assert it to EntityController[E] for the registered E.
func (r Registration) NewController() any {
	return r.newController()
}

func (r Registration) String() string {
	return fmt.Sprintf("%s -> %s", r.Controller, r.Entity)
}

// Builder accumulates registrations. Register returns the builder to use for
// further calls, which lets implementations be immutable.
type Builder interface {
	Register(reg Registration) Builder
}

// AddController registers controller type C for entity type E.
//
// *C must implement EntityController[E]; the compiler checks this and infers
// PC, so callers write AddController[FooController, *Foo](b).
func AddController[C any, E any, PC interface {
	*C
	EntityController[E]
}](b Builder) Builder {
	return b.Register(Registration{
		Controller: reflect.TypeFor[C](),
		Entity:     reflect.TypeFor[E](),
		newController: func() any {
			return PC(new(C))
		},
	})
}

// RecordingBuilder is a Builder that keeps registrations in call order.
// A second registration of the same controller type replaces nothing and
// is reported by Err.
type RecordingBuilder struct {
	mu            sync.Mutex
	registrations []Registration
	seen          map[reflect.Type]bool
	err           error
}

// NewBuilder returns an empty RecordingBuilder.
func NewBuilder() *RecordingBuilder {
	return &RecordingBuilder{seen: make(map[reflect.Type]bool)}
}

// Register implements Builder.
func (b *RecordingBuilder) Register(reg Registration) Builder {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.seen[reg.Controller] {
		if b.err == nil {
			b.err = errors.Newf("controller %s registered more than once", reg.Controller)
		}
		return b
	}
	b.seen[reg.Controller] = true
	b.registrations = append(b.registrations, reg)
	return b
}

// Registrations returns a copy of the registrations in call order.
func (b *RecordingBuilder) Registrations() []Registration {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Registration, len(b.registrations))
	copy(out, b.registrations)
	return out
}

// Err reports the first duplicate registration, if any.
func (b *RecordingBuilder) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
