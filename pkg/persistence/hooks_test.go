package persistence_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-persist/pkg/persistence"
)

func TestChain(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	chain := persistence.Chain{first.hooks(), persistence.NoopHooks{}, second.hooks()}
	ctx := context.Background()

	chain.BeforePersisting(ctx)
	chain.AfterPersisting(ctx)
	chain.BeforeUnpersisting(ctx)
	chain.AfterUnpersisting(ctx)
	chain.OnError(ctx, "persist", errors.New("x"))

	want := []string{"beforePersisting", "afterPersisting", "beforeUnpersisting", "afterUnpersisting", "error:persist"}
	assert.Equal(t, want, first.calls)
	assert.Equal(t, want, second.calls)
}

func TestHookFuncs_NilFieldsAreSkipped(t *testing.T) {
	var h persistence.HookFuncs
	ctx := context.Background()
	assert.NotPanics(t, func() {
		h.BeforePersisting(ctx)
		h.AfterPersisting(ctx)
		h.BeforeUnpersisting(ctx)
		h.AfterUnpersisting(ctx)
		h.OnError(ctx, "persist", errors.New("x"))
	})
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p := persistence.NewPersistible(persistence.WithIdentity("ns", "sales"))
	hooks := persistence.LoggingHooks(logger, p)
	ctx := context.Background()

	hooks.AfterPersisting(ctx)
	hooks.OnError(ctx, "unpersist", errors.New("gone"))

	out := buf.String()
	assert.Contains(t, out, "msg=Persisted")
	assert.Contains(t, out, "namespace=ns")
	assert.Contains(t, out, "name=sales")
	assert.Contains(t, out, "op=unpersist")
	assert.Contains(t, out, "err=gone")
}
