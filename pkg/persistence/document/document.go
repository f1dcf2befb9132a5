// Package document provides Document, a JSON payload that can persist itself.
package document

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/container"
)

// ObjectType is reported by every Document
const ObjectType = "document"

// DefaultContentType is used when a document is persisted without one
const DefaultContentType = "application/json"

// ErrInvalidBody is returned when a document body is not valid JSON
var ErrInvalidBody = errors.New("document body is not valid JSON")

// Document is a named JSON payload bound to a container.Manager
type Document struct {
	*persistence.Persistible `json:"-"`

	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// New creates a document bound to mgr. Additional options are applied after
// the manager bindings, e.g. persistence.WithHooks.
func New(mgr *container.Manager, namespace, name string, opts ...persistence.Option) *Document {
	d := &Document{}
	options := append(mgr.Bind(d),
		persistence.WithIdentity(namespace, name),
		persistence.WithObjectType(ObjectType),
		persistence.WithSerializationHooks(documentHooks{d}),
	)
	d.Persistible = persistence.NewPersistible(append(options, opts...)...)
	return d
}

// LogLifecycle replaces the lifecycle hooks with ones logging persist and
// unpersist events to logger
func (d *Document) LogLifecycle(logger *slog.Logger) {
	persistence.WithHooks(persistence.LoggingHooks(logger, d))(d.Persistible)
}

// documentHooks checks the body before it is written
type documentHooks struct {
	d *Document
}

func (h documentHooks) BeforeSerialization() error {
	if h.d.ContentType == "" {
		h.d.ContentType = DefaultContentType
	}
	if len(h.d.Body) == 0 {
		h.d.Body = json.RawMessage("null")
	}
	if !json.Valid(h.d.Body) {
		return ErrInvalidBody
	}
	return nil
}

func (h documentHooks) AfterSerialization() error {
	return nil
}

func (h documentHooks) AfterDeserialization(obj persistence.Serializable, data any) (persistence.Serializable, error) {
	if h.d.ContentType == "" {
		h.d.ContentType = DefaultContentType
	}
	return obj, nil
}
