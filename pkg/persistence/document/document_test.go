package document_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/container"
	"github.com/tendant/simple-persist/pkg/persistence/document"
)

func newManager(t *testing.T) *container.Manager {
	t.Helper()
	m, err := container.NewManager()
	require.NoError(t, err)
	return m
}

func TestDocument_PersistAndLoad(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	doc := document.New(m, "reports", "q3")
	doc.Body = json.RawMessage(`{"total":42}`)

	uri, err := doc.Persist(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "basic:///ddf/reports/q3", uri.String())
	assert.Equal(t, document.ObjectType, doc.ObjectType())
	assert.Equal(t, document.DefaultContentType, doc.ContentType)
	assert.Equal(t, "document://reports/q3", doc.URI())

	loaded := document.New(m, "", "")
	_, err = m.Load(ctx, uri, loaded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":42}`, string(loaded.Body))
	assert.Equal(t, "reports", loaded.Namespace())
	assert.Equal(t, "q3", loaded.Name())
	assert.Equal(t, doc.GlobalID(), loaded.GlobalID())
}

func TestDocument_JSONOmitsPersistible(t *testing.T) {
	m := newManager(t)
	doc := document.New(m, "reports", "q3")
	doc.ContentType = "application/vnd.report+json"
	doc.Body = json.RawMessage(`[1,2]`)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content_type":"application/vnd.report+json","body":[1,2]}`, string(data))
}

func TestDocument_InvalidBody(t *testing.T) {
	m := newManager(t)
	doc := document.New(m, "reports", "broken")
	doc.Body = json.RawMessage(`{not json`)

	_, err := doc.Persist(context.Background(), false)
	assert.ErrorIs(t, err, document.ErrInvalidBody)
}

func TestDocument_EmptyBodyIsNull(t *testing.T) {
	m := newManager(t)
	doc := document.New(m, "reports", "empty")

	_, err := doc.Persist(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "null", string(doc.Body))
}

func TestDocument_LogLifecycle(t *testing.T) {
	m := newManager(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	doc := document.New(m, "reports", "logged")
	doc.LogLifecycle(logger)

	ctx := context.Background()
	_, err := doc.Persist(ctx, false)
	require.NoError(t, err)
	require.NoError(t, doc.Unpersist(ctx))

	out := buf.String()
	assert.Contains(t, out, "msg=Persisted")
	assert.Contains(t, out, "msg=Unpersisted")
	assert.Contains(t, out, "name=logged")

	buf.Reset()
	_, err = doc.Persist(ctx, false)
	require.NoError(t, err)
	_, err = doc.Persist(ctx, false)
	assert.ErrorIs(t, err, persistence.ErrAlreadyExists)
	assert.Contains(t, buf.String(), "Persistence operation failed")
}
