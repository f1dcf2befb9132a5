package persistence

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// ObjectTypePersistible is the default object type of a Persistible.
const ObjectTypePersistible = "persistible"

// Persistible gives an entity the ability to save and remove itself through a
// storage container. Embed a *Persistible in the domain type and bind it to a
// container factory, usually with container.Manager.Bind.
//
// Namespace, name and the persistable flag are plain fields. A Persistible
// must not be used from several goroutines at once without external locking.
type Persistible struct {
	namespace   string
	name        string
	objectType  string
	persistable bool
	id          uuid.UUID

	factory  ContainerFactory
	manager  ContainerManager
	namer    SchemaNamer
	registry IdentifierRegistry
	hooks    LifecycleHooks
	serial   Serializable
	logger   *slog.Logger
}

// Option configures a Persistible.
type Option func(*Persistible)

// WithIdentity sets the initial namespace and name
func WithIdentity(namespace, name string) Option {
	return func(p *Persistible) {
		p.namespace = namespace
		p.name = name
	}
}

// WithObjectType sets the object type reported by ObjectType
func WithObjectType(objectType string) Option {
	return func(p *Persistible) {
		p.objectType = objectType
	}
}

// WithContainerFactory sets the factory that wraps the entity in a container
func WithContainerFactory(factory ContainerFactory) Option {
	return func(p *Persistible) {
		p.factory = factory
	}
}

// WithContainerManager sets the collaborator that names containers
func WithContainerManager(manager ContainerManager) Option {
	return func(p *Persistible) {
		p.manager = manager
	}
}

// WithSchemaNamer sets the collaborator that generates missing names
func WithSchemaNamer(namer SchemaNamer) Option {
	return func(p *Persistible) {
		p.namer = namer
	}
}

// WithIdentifierRegistry sets the collaborator backing IsPersistable
func WithIdentifierRegistry(registry IdentifierRegistry) Option {
	return func(p *Persistible) {
		p.registry = registry
	}
}

// WithHooks sets the lifecycle hooks
func WithHooks(hooks LifecycleHooks) Option {
	return func(p *Persistible) {
		p.hooks = hooks
	}
}

// WithSerializationHooks sets the hooks run around serialization
func WithSerializationHooks(serial Serializable) Option {
	return func(p *Persistible) {
		p.serial = serial
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persistible) {
		p.logger = logger
	}
}

// NewPersistible creates a persistable entity with no identifier assigned.
func NewPersistible(options ...Option) *Persistible {
	p := &Persistible{
		objectType:  ObjectTypePersistible,
		persistable: true,
		namer:       UUIDNamer{},
		hooks:       NoopHooks{},
		serial:      NoopHooks{},
		logger:      slog.Default(),
	}

	for _, option := range options {
		option(p)
	}

	if p.registry == nil {
		p.registry = selfRegistry{}
	}

	return p
}

// Namespace implements Addressable.
func (p *Persistible) Namespace() string {
	return p.namespace
}

// SetNamespace sets the namespace.
func (p *Persistible) SetNamespace(namespace string) {
	p.namespace = namespace
}

// Name implements Addressable.
func (p *Persistible) Name() string {
	return p.name
}

// SetName sets the name.
func (p *Persistible) SetName(name string) {
	p.name = name
}

// ObjectType implements Addressable.
func (p *Persistible) ObjectType() string {
	return p.objectType
}

// URI returns the canonical identity string, see GlobalURI.
func (p *Persistible) URI() string {
	return GlobalURI(p)
}

// GlobalID returns the assigned identifier, uuid.Nil when none.
func (p *Persistible) GlobalID() uuid.UUID {
	return p.id
}

// SetGlobalID is called by the container collaborator when it registers the entity.
func (p *Persistible) SetGlobalID(id uuid.UUID) {
	p.id = id
}

// IsPersistable is false while no global identifier is assigned, and the
// stored flag otherwise.
func (p *Persistible) IsPersistable() bool {
	if !p.registry.HasGlobalIdentifier(p) {
		return false
	}
	return p.persistable
}

// SetPersistable sets the stored flag.
func (p *Persistible) SetPersistable(persistable bool) {
	p.persistable = persistable
}

// Persist wraps the entity in a new container and saves it. BeforePersisting
// always runs; AfterPersisting runs only when the save succeeded.
func (p *Persistible) Persist(ctx context.Context, overwrite bool) (*URI, error) {
	p.hooks.BeforePersisting(ctx)

	c, err := p.wrap(ctx, "persist", true)
	if err != nil {
		p.fail(ctx, "persist", err)
		return nil, err
	}

	uri, err := c.Persist(ctx, overwrite)
	if err != nil {
		p.fail(ctx, "persist", err)
		return nil, err
	}

	p.hooks.AfterPersisting(ctx)

	p.logger.DebugContext(ctx, "Entity persisted", "uri", uri.String(), "overwrite", overwrite)
	return uri, nil
}

// Save persists with overwrite.
func (p *Persistible) Save(ctx context.Context) (*URI, error) {
	return p.Persist(ctx, true)
}

// Unpersist removes the backing storage record. The in-memory entity is left
// untouched.
func (p *Persistible) Unpersist(ctx context.Context) error {
	p.hooks.BeforeUnpersisting(ctx)

	c, err := p.wrap(ctx, "unpersist", false)
	if err != nil {
		p.fail(ctx, "unpersist", err)
		return err
	}

	if err := c.Unpersist(ctx); err != nil {
		p.fail(ctx, "unpersist", err)
		return err
	}

	p.hooks.AfterUnpersisting(ctx)

	p.logger.DebugContext(ctx, "Entity unpersisted", "namespace", p.namespace, "name", p.name)
	return nil
}

// wrap obtains a container for the entity and aligns its name with ours.
func (p *Persistible) wrap(ctx context.Context, op string, generateName bool) (Container, error) {
	var (
		c   Container
		err error
	)
	if p.factory != nil {
		c, err = p.factory.NewContainer(ctx)
	}
	if c == nil {
		cause := ErrContainerCreationFailed
		if err != nil {
			cause = errors.Join(ErrContainerCreationFailed, err)
		}
		return nil, &ContainerError{
			ObjectType: p.objectType,
			Namespace:  p.namespace,
			Name:       p.name,
			Op:         op,
			Err:        cause,
		}
	}
	if err != nil {
		return nil, err
	}

	if generateName && p.name == "" {
		name, err := p.namer.GenerateName(ctx, p)
		if err != nil {
			return nil, err
		}
		p.name = name
	}

	if p.manager != nil {
		if err := p.manager.SetContainerName(ctx, c, p.name); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (p *Persistible) fail(ctx context.Context, op string, err error) {
	if observer, ok := p.hooks.(ErrorObserver); ok {
		observer.OnError(ctx, op, err)
	}
}

// BeforeSerialization runs the configured serialization hook.
func (p *Persistible) BeforeSerialization() error {
	return p.serial.BeforeSerialization()
}

// AfterSerialization runs the configured serialization hook.
func (p *Persistible) AfterSerialization() error {
	return p.serial.AfterSerialization()
}

// AfterDeserialization runs the configured hook; by default obj is returned unchanged.
func (p *Persistible) AfterDeserialization(obj Serializable, data any) (Serializable, error) {
	return p.serial.AfterDeserialization(obj, data)
}

// UUIDNamer names entities "{objectType}_{uuid without dashes}".
type UUIDNamer struct{}

// GenerateName implements SchemaNamer.
func (UUIDNamer) GenerateName(ctx context.Context, a Addressable) (string, error) {
	return a.ObjectType() + "_" + strings.ReplaceAll(uuid.NewString(), "-", ""), nil
}

// selfRegistry trusts the identifier stored on the entity.
type selfRegistry struct{}

func (selfRegistry) HasGlobalIdentifier(a Addressable) bool {
	if identified, ok := a.(Identified); ok {
		return identified.GlobalID() != uuid.Nil
	}
	return false
}
