// Package generator drives one analysis pass: load the type graph, discover
// controller pairs, emit the registration file, and publish it.
//
// A pass is all-or-nothing. A fault or cancellation at any phase before
// publishing returns an error and leaves the previous artifact untouched.
package generator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/opgen/discovery"
	"github.com/teranos/opgen/emitter"
	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/logger"
	"github.com/teranos/opgen/resolver"
	"github.com/teranos/opgen/typegraph"
)

// DefaultInterface is the controller interface generated code registers.
const DefaultInterface = "github.com/teranos/opgen/operator.EntityController"

// Config holds the per-pass settings.
type Config struct {
	// Interface is the qualified name of the single-argument controller interface
	Interface string
	// Emit shapes the generated file
	Emit emitter.Options

	// ResourceMarker is the directive every discovered entity should carry;
	// DefaultResourceMarker when empty
	ResourceMarker string
	// StrictMarkers fails the pass when an entity lacks ResourceMarker
	StrictMarkers bool
}

// DefaultConfig targets the operator package.
func DefaultConfig() Config {
	return Config{
		Interface:      DefaultInterface,
		Emit:           emitter.DefaultOptions(),
		ResourceMarker: DefaultResourceMarker,
	}
}

// Result describes a completed pass.
type Result struct {
	PassID string
	// Version is the snapshot version the pass analyzed
	Version string
	Pairs   []discovery.Pair
	// Diagnostics are non-fatal findings about the discovered entities
	Diagnostics []Diagnostic
	// Source is the generated file
	Source   []byte
	Duration time.Duration
}

// Generator runs passes against one provider.
type Generator struct {
	provider  typegraph.Provider
	publisher Publisher
	cfg       Config
	cache     resolver.Cache
	log       *zap.SugaredLogger
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache shares a resolution cache across passes.
func WithCache(c resolver.Cache) Option {
	return func(g *Generator) {
		g.cache = c
	}
}

// WithLogger sets the generator's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(g *Generator) {
		g.log = l
	}
}

// New returns a Generator that publishes through publisher. A nil publisher
// makes Run equivalent to Generate.
func New(provider typegraph.Provider, publisher Publisher, cfg Config, opts ...Option) *Generator {
	if cfg.ResourceMarker == "" {
		cfg.ResourceMarker = DefaultResourceMarker
	}
	g := &Generator{
		provider:  provider,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.ComponentLogger("generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Cache returns the resolution cache shared across passes, or nil.
func (g *Generator) Cache() resolver.Cache {
	return g.cache
}

// Run performs one pass and publishes its output.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	res, err := g.Generate(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "pass canceled before publish")
	}
	if g.publisher == nil {
		return res, nil
	}

	if err := g.publisher.Publish(ctx, res.Source); err != nil {
		return nil, errors.Wrap(err, "failed to publish registration file")
	}
	g.log.Infow("Published registration file",
		logger.FieldPassID, res.PassID,
		logger.FieldCount, len(res.Pairs),
		logger.FieldSize, len(res.Source),
		logger.FieldDurationMS, res.Duration.Milliseconds())
	return res, nil
}

// Generate performs one pass without publishing.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	start := time.Now()
	passID := uuid.NewString()
	ctx = logger.WithPassID(ctx, passID)
	log := g.log.With(logger.FieldPassID, passID)

	if g.cfg.Interface == "" {
		return nil, errors.NewInvalidConfigError("no controller interface configured")
	}

	snap, err := g.provider.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load type graph")
	}
	log.Debugw("Loaded snapshot",
		logger.FieldVersion, snap.Version(),
		logger.FieldCount, snap.Len())

	opts := []resolver.Option{resolver.WithLogger(log)}
	if g.cache != nil {
		opts = append(opts, resolver.WithCache(g.cache))
	}
	pairs, err := discovery.Discover(ctx, snap, resolver.New(snap, opts...), g.cfg.Interface)
	if err != nil {
		return nil, err
	}

	src, err := emitter.Emit(pairs, g.cfg.Emit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to emit registration file")
	}

	diags := CheckResourceMarkers(snap, pairs, g.cfg.ResourceMarker)
	for _, d := range diags {
		log.Warnw(d.Message,
			logger.FieldController, d.Controller,
			logger.FieldEntity, d.Entity)
	}
	if g.cfg.StrictMarkers && len(diags) > 0 {
		return nil, markerError(diags, g.cfg.ResourceMarker)
	}

	res := &Result{
		PassID:      passID,
		Version:     snap.Version(),
		Pairs:       pairs,
		Diagnostics: diags,
		Source:      src,
		Duration:    time.Since(start),
	}
	log.Debugw("Pass complete",
		logger.FieldCount, len(pairs),
		logger.FieldDurationMS, res.Duration.Milliseconds())
	return res, nil
}
