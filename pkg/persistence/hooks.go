package persistence

import (
	"context"
	"log/slog"
)

// Hook system lets entities run logic around persist and unpersist without
// overriding the lifecycle itself.

// LifecycleHooks are invoked by Persistible around each operation. The before
// hooks always run; the after hooks run only when the operation succeeded.
type LifecycleHooks interface {
	BeforePersisting(ctx context.Context)
	AfterPersisting(ctx context.Context)
	BeforeUnpersisting(ctx context.Context)
	AfterUnpersisting(ctx context.Context)
}

// ErrorObserver may be implemented by LifecycleHooks to be told about
// failures. It runs in place of the skipped after hook.
type ErrorObserver interface {
	OnError(ctx context.Context, op string, err error)
}

// NoopHooks implements LifecycleHooks and Serializable with no-ops. Embed it
// to override only the hooks you need.
type NoopHooks struct{}

func (NoopHooks) BeforePersisting(ctx context.Context)   {}
func (NoopHooks) AfterPersisting(ctx context.Context)    {}
func (NoopHooks) BeforeUnpersisting(ctx context.Context) {}
func (NoopHooks) AfterUnpersisting(ctx context.Context)  {}

func (NoopHooks) BeforeSerialization() error { return nil }
func (NoopHooks) AfterSerialization() error  { return nil }

// AfterDeserialization returns obj unchanged.
func (NoopHooks) AfterDeserialization(obj Serializable, data any) (Serializable, error) {
	return obj, nil
}

// HookFuncs adapts optional callbacks to LifecycleHooks and ErrorObserver.
// Nil fields are skipped.
type HookFuncs struct {
	OnBeforePersisting   func(ctx context.Context)
	OnAfterPersisting    func(ctx context.Context)
	OnBeforeUnpersisting func(ctx context.Context)
	OnAfterUnpersisting  func(ctx context.Context)
	OnFailure            func(ctx context.Context, op string, err error)
}

func (h HookFuncs) BeforePersisting(ctx context.Context) {
	if h.OnBeforePersisting != nil {
		h.OnBeforePersisting(ctx)
	}
}

func (h HookFuncs) AfterPersisting(ctx context.Context) {
	if h.OnAfterPersisting != nil {
		h.OnAfterPersisting(ctx)
	}
}

func (h HookFuncs) BeforeUnpersisting(ctx context.Context) {
	if h.OnBeforeUnpersisting != nil {
		h.OnBeforeUnpersisting(ctx)
	}
}

func (h HookFuncs) AfterUnpersisting(ctx context.Context) {
	if h.OnAfterUnpersisting != nil {
		h.OnAfterUnpersisting(ctx)
	}
}

func (h HookFuncs) OnError(ctx context.Context, op string, err error) {
	if h.OnFailure != nil {
		h.OnFailure(ctx, op, err)
	}
}

// Chain runs several hook sets in order.
type Chain []LifecycleHooks

func (c Chain) BeforePersisting(ctx context.Context) {
	for _, h := range c {
		h.BeforePersisting(ctx)
	}
}

func (c Chain) AfterPersisting(ctx context.Context) {
	for _, h := range c {
		h.AfterPersisting(ctx)
	}
}

func (c Chain) BeforeUnpersisting(ctx context.Context) {
	for _, h := range c {
		h.BeforeUnpersisting(ctx)
	}
}

func (c Chain) AfterUnpersisting(ctx context.Context) {
	for _, h := range c {
		h.AfterUnpersisting(ctx)
	}
}

func (c Chain) OnError(ctx context.Context, op string, err error) {
	for _, h := range c {
		if observer, ok := h.(ErrorObserver); ok {
			observer.OnError(ctx, op, err)
		}
	}
}

// LoggingHooks logs every lifecycle transition of the entity a.
func LoggingHooks(logger *slog.Logger, a Addressable) HookFuncs {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := func() []any {
		return []any{"object_type", a.ObjectType(), "namespace", a.Namespace(), "name", a.Name()}
	}
	return HookFuncs{
		OnBeforePersisting: func(ctx context.Context) {
			logger.DebugContext(ctx, "Persisting", attrs()...)
		},
		OnAfterPersisting: func(ctx context.Context) {
			logger.InfoContext(ctx, "Persisted", attrs()...)
		},
		OnBeforeUnpersisting: func(ctx context.Context) {
			logger.DebugContext(ctx, "Unpersisting", attrs()...)
		},
		OnAfterUnpersisting: func(ctx context.Context) {
			logger.InfoContext(ctx, "Unpersisted", attrs()...)
		},
		OnFailure: func(ctx context.Context, op string, err error) {
			logger.ErrorContext(ctx, "Persistence operation failed", append(attrs(), "op", op, "err", err)...)
		},
	}
}
