package container

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/objectkey"
)

// FormatJSON is the only payload format written by containers
const FormatJSON = "json"

// schema is the sidecar stored next to the payload under the .sch extension
type schema struct {
	ID          uuid.UUID `json:"id"`
	ObjectType  string    `json:"object_type"`
	Namespace   string    `json:"namespace"`
	Name        string    `json:"name"`
	Engine      string    `json:"engine"`
	Format      string    `json:"format"`
	GoType      string    `json:"go_type"`
	Size        int64     `json:"size"`
	PersistedAt time.Time `json:"persisted_at"`
}

// Container holds one entity on one engine. It is created by a Manager.
type Container struct {
	manager *Manager
	engine  *engine
	entity  persistence.Entity
	name    string
}

var _ persistence.Container = (*Container)(nil)

// Name returns the name the entity is stored under
func (c *Container) Name() string {
	return c.name
}

// Engine returns the engine name
func (c *Container) Engine() string {
	return c.engine.name
}

// Entity returns the wrapped entity
func (c *Container) Entity() persistence.Entity {
	return c.entity
}

func (c *Container) namespace() string {
	if ns := c.entity.Namespace(); ns != "" {
		return ns
	}
	return c.manager.defaultNamespace
}

// Persist serializes the entity, writes its payload and schema sidecar and
// records it in the catalog. An entity already stored under the same engine,
// namespace and name is replaced only when overwrite is set.
func (c *Container) Persist(ctx context.Context, overwrite bool) (*persistence.URI, error) {
	if c.name == "" {
		return nil, persistence.ErrNameRequired
	}

	m := c.manager
	namespace := c.namespace()
	id := c.entity.GlobalID()

	for _, component := range []string{namespace, c.name} {
		if err := objectkey.ValidateComponent(component); err != nil {
			return nil, err
		}
	}

	existing, err := m.repo.GetRecordByName(ctx, c.engine.name, namespace, c.name)
	switch {
	case err == nil:
		if !overwrite {
			return nil, fmt.Errorf("%s/%s: %w", namespace, c.name, persistence.ErrAlreadyExists)
		}
		if existing.ID != id {
			// another entity held the name, it is replaced
			if err := m.repo.DeleteRecord(ctx, existing.ID); err != nil && !errors.Is(err, persistence.ErrRecordNotFound) {
				return nil, err
			}
			m.forget(existing.ID)
		}
	case errors.Is(err, persistence.ErrRecordNotFound):
	default:
		return nil, err
	}

	// a renamed entity leaves its previous objects behind otherwise
	previous, err := m.repo.GetRecord(ctx, id)
	if err != nil {
		if !errors.Is(err, persistence.ErrRecordNotFound) {
			return nil, err
		}
		previous = nil
	}

	if err := c.entity.BeforeSerialization(); err != nil {
		return nil, fmt.Errorf("before serialization: %w", err)
	}
	data, err := json.Marshal(c.entity)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", namespace, c.name, err)
	}
	if err := c.entity.AfterSerialization(); err != nil {
		return nil, fmt.Errorf("after serialization: %w", err)
	}

	key := m.keys.GenerateKey(namespace, c.name)
	sidecar, err := json.Marshal(schema{
		ID:          id,
		ObjectType:  c.entity.ObjectType(),
		Namespace:   namespace,
		Name:        c.name,
		Engine:      c.engine.name,
		Format:      FormatJSON,
		GoType:      fmt.Sprintf("%T", c.entity),
		Size:        int64(len(data)),
		PersistedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if err := c.upload(ctx, key+dataExtension, data); err != nil {
		return nil, err
	}
	if err := c.upload(ctx, key+schemaExtension, sidecar); err != nil {
		return nil, err
	}

	raw := c.engine.uri(key)
	record := &persistence.Record{
		ID:         id,
		Engine:     c.engine.name,
		Namespace:  namespace,
		Name:       c.name,
		ObjectType: c.entity.ObjectType(),
		URI:        raw,
		Size:       int64(len(data)),
	}
	if err := m.repo.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	m.register(id)

	if previous != nil && previous.URI != raw {
		if err := m.deleteObjects(ctx, previous); err != nil {
			m.logger.WarnContext(ctx, "Failed to remove previous objects", "uri", previous.URI, "err", err)
		}
	}

	m.logger.InfoContext(ctx, "Stored entity", "uri", raw, "id", id, "size", record.Size)
	return persistence.Parse(raw)
}

func (c *Container) upload(ctx context.Context, key string, data []byte) error {
	if err := c.engine.store.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		return &persistence.StorageError{Engine: c.engine.name, Key: key, Op: "upload", Err: err}
	}
	return nil
}

// Unpersist deletes the payload, the schema sidecar and the catalog record.
func (c *Container) Unpersist(ctx context.Context) error {
	m := c.manager
	id := c.entity.GlobalID()

	record, err := m.repo.GetRecord(ctx, id)
	if errors.Is(err, persistence.ErrRecordNotFound) && c.name != "" {
		record, err = m.repo.GetRecordByName(ctx, c.engine.name, c.namespace(), c.name)
	}
	if errors.Is(err, persistence.ErrRecordNotFound) {
		m.forget(id)
	}
	if err != nil {
		return err
	}

	if err := m.deleteObjects(ctx, record); err != nil {
		return err
	}

	if err := m.repo.DeleteRecord(ctx, record.ID); err != nil {
		return err
	}
	m.forget(record.ID, id)

	m.logger.InfoContext(ctx, "Removed entity", "uri", record.URI, "id", record.ID)
	return nil
}

// deleteObjects removes the payload and sidecar of record. The keys come from
// the recorded URI, so records written under another key layout are removed
// too. Objects already missing from the store are ignored.
func (m *Manager) deleteObjects(ctx context.Context, record *persistence.Record) error {
	e, err := m.engine(record.Engine)
	if err != nil {
		return err
	}
	uri, err := persistence.Parse(record.URI)
	if err != nil {
		return fmt.Errorf("record %s: %w", record.ID, err)
	}
	key := e.keyFromPath(uri.Path())
	if err := objectkey.ValidateKey(key); err != nil {
		return fmt.Errorf("record %s: %w", record.ID, err)
	}

	var result error
	for _, k := range []string{key + dataExtension, key + schemaExtension} {
		if err := e.store.Delete(ctx, k); err != nil && !errors.Is(err, persistence.ErrObjectNotFound) {
			result = multierr.Append(result, &persistence.StorageError{Engine: e.name, Key: k, Op: "delete", Err: err})
		}
	}
	return result
}
