package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// An ExecutionPolicy governs how an operation runs across the replicas answering for one node.
type ExecutionPolicy int

const (
	// SequentiallyToFirstSuccess tries the replicas strictly in resolver order and stops at the first replica which
	// gives an answer, be it a success or a logical outcome.
	SequentiallyToFirstSuccess ExecutionPolicy = iota
)

func (p ExecutionPolicy) String() string {
	switch p {
	case SequentiallyToFirstSuccess:
		return "sequentially-to-first-success"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// replicaCall is one backend invocation; inner is the path relative to the storage root.
type replicaCall[T any] func(ctx context.Context, backend Backend, inner Path) (T, error)

// execute runs call against the replicas of node following the engine policy. Logical outcomes are relabeled to
// the exposed path. Only transport failures make it move on to the next replica.
func execute[T any](ctx context.Context, e *Engine, op string, exposed Path, node *PhysicalNode, call replicaCall[T]) (T, error) {
	switch e.policy {
	case SequentiallyToFirstSuccess:
		return sequentiallyToFirstSuccess(ctx, e, op, exposed, node, call)
	default:
		panic(fmt.Sprintf("vfs: unknown execution policy %v", e.policy))
	}
}

func sequentiallyToFirstSuccess[T any](ctx context.Context, e *Engine, op string, exposed Path, node *PhysicalNode, call replicaCall[T]) (T, error) {
	var zero T
	var lastErr error
	storages := node.Storages()
	for _, storage := range storages.Storages {
		if err := ctx.Err(); err != nil {
			return zero, errors.WithStack(err)
		}
		backend, err := e.backends.get(ctx, storage)
		if err != nil {
			lastErr = err
			cause := UnresponsiveBackend
			if errors.Is(err, errUnsupportedBackendType) {
				cause = UnsupportedBackendType
			}
			e.logger.Warn("replica unavailable", zap.String("op", op), zap.Stringer("path", exposed),
				zap.Stringer("storage", storage), zap.Stringer("cause", cause), zap.Error(err))
			e.events.Send(Event{Cause: cause, Operation: op, OperationPath: exposed, BackendType: storage.BackendType})
			continue
		}

		start := time.Now()
		res, err := call(ctx, backend, storages.Path)
		switch {
		case err == nil:
			backendSeconds.WithLabelValues(storage.BackendType, op, "ok").Observe(time.Since(start).Seconds())
			e.logger.Debug("dispatched", zap.String("op", op), zap.Stringer("path", exposed), zap.Stringer("storage", storage))
			return res, nil
		case IsLogical(err):
			backendSeconds.WithLabelValues(storage.BackendType, op, "logical").Observe(time.Since(start).Seconds())
			return zero, relabel(err, op, exposed)
		default:
			backendSeconds.WithLabelValues(storage.BackendType, op, "transport").Observe(time.Since(start).Seconds())
			lastErr = err
			e.logger.Warn("replica failed, trying next", zap.String("op", op), zap.Stringer("path", exposed),
				zap.Stringer("storage", storage), zap.Error(err))
			e.events.Send(Event{Cause: UnresponsiveBackend, Operation: op, OperationPath: exposed, BackendType: storage.BackendType})
		}
	}
	e.events.Send(Event{Cause: AllBackendsUnresponsive, Operation: op, OperationPath: exposed})
	return zero, &Error{Kind: KindStorageNotResponsive, Op: op, Path: exposed, Err: lastErr}
}
