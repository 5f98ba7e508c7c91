package vfs

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// The Engine presents the forest: one namespace over all containers, answered by their replicated storages.
//
// The engine owns its open file table and its backend instances, so several engines never interfere. It is safe
// to share one engine between goroutines, but a single Handle must not be used concurrently by unrelated callers
// unless they coordinate the cursor themselves.
type Engine struct {
	resolver    Resolver
	translator  PathTranslator
	backends    *backendCache
	handles     *handleTable
	events      *EventBus
	eventBuffer int
	logger      *zap.Logger
	policy      ExecutionPolicy
}

// An Option configures an Engine.
type Option func(e *Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTranslator replaces the default SuffixTranslator.
func WithTranslator(t PathTranslator) Option {
	return func(e *Engine) {
		e.translator = t
	}
}

// WithEventBus shares an existing bus instead of creating a private one.
func WithEventBus(bus *EventBus) Option {
	return func(e *Engine) {
		e.events = bus
	}
}

// WithEventBuffer sets the per subscriber capacity of the private bus.
func WithEventBuffer(n int) Option {
	return func(e *Engine) {
		e.eventBuffer = n
	}
}

// WithPolicy sets the execution policy.
func WithPolicy(p ExecutionPolicy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// NewEngine creates an engine answering paths through resolver and creating backends through registry.
func NewEngine(resolver Resolver, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		resolver:    resolver,
		translator:  SuffixTranslator{},
		eventBuffer: DefaultEventBuffer,
		logger:      zap.NewNop(),
		policy:      SequentiallyToFirstSuccess,
		handles:     newHandleTable(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.events == nil {
		e.events = NewEventBus(e.eventBuffer)
	}
	e.backends = newBackendCache(registry, e.logger.Named("backends"))
	return e
}

// Events returns the bus the engine reports to.
func (e *Engine) Events() *EventBus {
	return e.events
}

// Subscribe is a shortcut for Events().Subscribe().
func (e *Engine) Subscribe() *Subscriber {
	return e.events.Subscribe()
}

// Translator returns the path translator in use.
func (e *Engine) Translator() PathTranslator {
	return e.translator
}

// OpenHandles returns all handles which have not been closed yet, in ascending order.
func (e *Engine) OpenHandles() []Handle {
	return e.handles.handles()
}

// Shutdown closes every open handle, then every cached backend which is an io.Closer, e.g. an object store
// bucket. Close failures are collected but never stop the remaining releases. The engine remains usable and
// creates backends anew on demand.
func (e *Engine) Shutdown() error {
	var err error
	for _, f := range e.handles.drain() {
		if cerr := f.release(); cerr != nil {
			e.logger.Warn("failed to close descriptor on shutdown", zap.Stringer("path", f.exposed), zap.Error(cerr))
			err = multierr.Append(err, errors.Wrapf(cerr, "close %s", f.exposed))
		}
	}
	for id, b := range e.backends.drain() {
		closer, ok := b.(io.Closer)
		if !ok {
			continue
		}
		if cerr := closer.Close(); cerr != nil {
			e.logger.Warn("failed to close backend on shutdown", zap.Stringer("storage", id), zap.Error(cerr))
			err = multierr.Append(err, errors.Wrapf(cerr, "close backend of storage %s", id))
		}
	}
	return err
}

// lookup is the resolution state of one exposed path for one operation.
type lookup struct {
	exposed  Path
	absolute Path
	nodes    []Node
	table    []Exposure
}

func (e *Engine) lookup(ctx context.Context, op string, exposed Path) (*lookup, error) {
	abs := e.translator.ExposedToAbsolute(exposed)
	resolved, err := e.resolver.Resolve(ctx, abs)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: resolve %s", op, abs)
	}
	nodes := nodesOf(abs, resolved)
	return &lookup{
		exposed:  Path(exposed.String()),
		absolute: abs,
		nodes:    nodes,
		table:    e.translator.SolveConflicts(nodes),
	}, nil
}

// target returns the node a read addresses. With several nodes, only a unique match answers.
func (e *Engine) target(l *lookup) (Node, bool) {
	if len(l.nodes) == 0 {
		return nil, false
	}
	return e.translator.Match(l.table, l.exposed)
}

// mutable returns the single node a mutation addresses. Several nodes never have a writable target.
func (e *Engine) mutable(op string, l *lookup) (Node, error) {
	switch {
	case len(l.nodes) == 0:
		return nil, NewError(KindNoSuchPath, op, l.exposed)
	case len(l.nodes) > 1:
		return nil, NewError(KindReadOnlyPath, op, l.exposed)
	}
	node, ok := e.translator.Match(l.table, l.exposed)
	if !ok {
		return nil, NewError(KindNoSuchPath, op, l.exposed)
	}
	return node, nil
}

// unclaimed decides why a path without any claim cannot be created: below a virtual directory nothing can be
// written, without any parent there is nothing to write into.
func (e *Engine) unclaimed(ctx context.Context, op string, l *lookup) error {
	if l.absolute.IsRoot() {
		return NewError(KindPathAlreadyExists, op, l.exposed)
	}
	parent, err := e.resolver.Resolve(ctx, l.absolute.Parent())
	if err != nil {
		return errors.Wrapf(err, "%s: resolve %s", op, l.absolute.Parent())
	}
	if len(parent) > 0 {
		return NewError(KindReadOnlyPath, op, l.exposed)
	}
	return NewError(KindParentDoesNotExist, op, l.exposed)
}
