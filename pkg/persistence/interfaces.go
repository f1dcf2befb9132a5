package persistence

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Container wraps an entity and performs the actual save and delete.
type Container interface {
	// Persist saves the wrapped entity and returns where it was written
	Persist(ctx context.Context, overwrite bool) (*URI, error)

	// Unpersist removes the backing storage record
	Unpersist(ctx context.Context) error
}

// ContainerFactory creates a container holding a specific entity. A nil
// container with a nil error is treated as a creation failure.
//
// Implementations must return an untyped nil Container on failure. A typed
// nil pointer wrapped in the interface is not detected and its methods are
// called.
type ContainerFactory interface {
	NewContainer(ctx context.Context) (Container, error)
}

// ContainerFactoryFunc adapts a function to ContainerFactory.
type ContainerFactoryFunc func(ctx context.Context) (Container, error)

// NewContainer calls f(ctx).
func (f ContainerFactoryFunc) NewContainer(ctx context.Context) (Container, error) {
	return f(ctx)
}

// ContainerManager keeps container names in sync with their entities.
type ContainerManager interface {
	SetContainerName(ctx context.Context, c Container, name string) error
}

// SchemaNamer generates names for entities that have none.
type SchemaNamer interface {
	GenerateName(ctx context.Context, a Addressable) (string, error)
}

// IdentifierRegistry reports whether an entity has been assigned a global identifier.
type IdentifierRegistry interface {
	HasGlobalIdentifier(a Addressable) bool
}

// Serializable is implemented by entities that want to run logic around
// their serialization by a container.
type Serializable interface {
	BeforeSerialization() error
	AfterSerialization() error
	// AfterDeserialization may return a replacement for obj, e.g. with
	// transient references re-attached.
	AfterDeserialization(obj Serializable, data any) (Serializable, error)
}

// Identified is implemented by entities carrying a global identifier.
type Identified interface {
	GlobalID() uuid.UUID
	SetGlobalID(id uuid.UUID)
}

// Entity is what a container wraps: an addressable, serializable object
// whose identity can be restored after loading.
type Entity interface {
	Addressable
	Serializable
	Identified
	SetNamespace(namespace string)
	SetName(name string)
}

// BlobStore defines the interface for storage engines
type BlobStore interface {
	// Upload writes content under objectKey, replacing any previous content
	Upload(ctx context.Context, objectKey string, reader io.Reader) error

	// Download opens the content stored under objectKey
	Download(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// Delete removes objectKey
	Delete(ctx context.Context, objectKey string) error

	// GetObjectMeta retrieves metadata for an object
	GetObjectMeta(ctx context.Context, objectKey string) (*ObjectMeta, error)
}

// ObjectMeta contains metadata about an object in storage
type ObjectMeta struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
	ETag      string
	Metadata  map[string]string
}

// Record is the catalog entry for a persisted entity.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Engine     string    `json:"engine"`
	Namespace  string    `json:"namespace"`
	Name       string    `json:"name"`
	ObjectType string    `json:"object_type"`
	URI        string    `json:"uri"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Repository defines the interface for the catalog of persisted entities
type Repository interface {
	// SaveRecord inserts or replaces the record with the same ID
	SaveRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
	GetRecordByName(ctx context.Context, engine, namespace, name string) (*Record, error)
	// ListRecords lists records of one namespace, or all when namespace is empty
	ListRecords(ctx context.Context, namespace string) ([]*Record, error)
	DeleteRecord(ctx context.Context, id uuid.UUID) error
}
