// Package container provides the storage side of the persistence lifecycle:
// a Manager that names, registers and loads entities, and the Container that
// writes them to a blob store and records them in the catalog.
package container

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/objectkey"
	repomemory "github.com/tendant/simple-persist/pkg/persistence/repo/memory"
	storagememory "github.com/tendant/simple-persist/pkg/persistence/storage/memory"
)

const (
	// DefaultEngine is the engine registered when none is configured
	DefaultEngine = "basic"
	// DefaultRoot is the root path of the default engine
	DefaultRoot = "/ddf"
	// DefaultNamespace is used for entities created without a namespace
	DefaultNamespace = "default"

	dataExtension   = ".dat"
	schemaExtension = ".sch"
)

// engine is a named blob store rooted at a path prefix used in URIs
type engine struct {
	name  string
	store persistence.BlobStore
	root  string
}

func (e *engine) uri(key string) string {
	return fmt.Sprintf("%s://%s", e.name, path.Join("/", e.root, key+dataExtension))
}

// keyFromPath strips the root from a derived URI path
func (e *engine) keyFromPath(p string) string {
	p = strings.TrimPrefix(p, "/")
	if root := strings.Trim(e.root, "/"); root != "" {
		p = strings.TrimPrefix(p, root+"/")
	}
	for _, ext := range []string{dataExtension, schemaExtension} {
		p = strings.TrimSuffix(p, ext)
	}
	return p
}

// Manager creates containers for entities and tracks which entities carry a
// global identifier. It implements persistence.ContainerManager,
// persistence.SchemaNamer and persistence.IdentifierRegistry and is safe for
// concurrent use.
type Manager struct {
	mu               sync.RWMutex
	engines          map[string]*engine
	defaultEngine    string
	repo             persistence.Repository
	keys             objectkey.Generator
	defaultNamespace string
	logger           *slog.Logger
	live             map[uuid.UUID]struct{}
}

// Option configures a Manager
type Option func(*Manager) error

// WithRepository sets the catalog repository
func WithRepository(repo persistence.Repository) Option {
	return func(m *Manager) error {
		if repo == nil {
			return errors.New("repository is nil")
		}
		m.repo = repo
		return nil
	}
}

// WithEngine registers a blob store under name. The root is the path prefix
// used in the URIs of entities stored there.
func WithEngine(name string, store persistence.BlobStore, root string) Option {
	return func(m *Manager) error {
		if name == "" {
			return errors.New("engine name is required")
		}
		if store == nil {
			return fmt.Errorf("engine %s: store is nil", name)
		}
		if _, exists := m.engines[name]; exists {
			return fmt.Errorf("engine %s registered twice", name)
		}
		m.engines[name] = &engine{name: name, store: store, root: root}
		if m.defaultEngine == "" {
			m.defaultEngine = name
		}
		return nil
	}
}

// WithDefaultEngine selects the engine used by Factory and Bind. The first
// registered engine is the default otherwise.
func WithDefaultEngine(name string) Option {
	return func(m *Manager) error {
		m.defaultEngine = name
		return nil
	}
}

// WithKeyGenerator sets the object key layout
func WithKeyGenerator(keys objectkey.Generator) Option {
	return func(m *Manager) error {
		m.keys = keys
		return nil
	}
}

// WithDefaultNamespace sets the namespace given to entities that have none
func WithDefaultNamespace(namespace string) Option {
	return func(m *Manager) error {
		m.defaultNamespace = namespace
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

// NewManager creates a Manager. Without WithEngine an in-memory engine named
// "basic" rooted at "/ddf" is registered; without WithRepository an in-memory
// catalog is used.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		engines:          make(map[string]*engine),
		keys:             objectkey.NewFlatGenerator(),
		defaultNamespace: DefaultNamespace,
		logger:           slog.Default(),
		live:             make(map[uuid.UUID]struct{}),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if len(m.engines) == 0 {
		m.engines[DefaultEngine] = &engine{name: DefaultEngine, store: storagememory.New(), root: DefaultRoot}
		if m.defaultEngine == "" {
			m.defaultEngine = DefaultEngine
		}
	}
	if _, ok := m.engines[m.defaultEngine]; !ok {
		return nil, fmt.Errorf("default engine %s: %w", m.defaultEngine, persistence.ErrEngineNotFound)
	}
	if m.repo == nil {
		m.repo = repomemory.New()
	}

	return m, nil
}

// DefaultNamespace returns the namespace given to entities that have none
func (m *Manager) DefaultNamespace() string {
	return m.defaultNamespace
}

// Engines returns the registered engine names, sorted
func (m *Manager) Engines() []string {
	names := make([]string, 0, len(m.engines))
	for name := range m.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) engine(name string) (*engine, error) {
	if name == "" {
		name = m.defaultEngine
	}
	e, ok := m.engines[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, persistence.ErrEngineNotFound)
	}
	return e, nil
}

// NewContainer wraps entity in a container on the default engine.
func (m *Manager) NewContainer(ctx context.Context, entity persistence.Entity) (*Container, error) {
	return m.NewContainerOn(ctx, "", entity)
}

// NewContainerOn wraps entity in a container on the named engine. The entity
// receives a global identifier if it has none. It is registered with the
// manager once it has been persisted or loaded.
func (m *Manager) NewContainerOn(ctx context.Context, engineName string, entity persistence.Entity) (*Container, error) {
	if entity == nil {
		return nil, errors.New("entity is nil")
	}
	e, err := m.engine(engineName)
	if err != nil {
		return nil, err
	}

	if entity.Namespace() == "" {
		entity.SetNamespace(m.defaultNamespace)
	}
	if entity.GlobalID() == uuid.Nil {
		entity.SetGlobalID(uuid.New())
	}

	return &Container{
		manager: m,
		engine:  e,
		entity:  entity,
		name:    entity.Name(),
	}, nil
}

// Factory returns a container factory for entity on the default engine. On
// failure the factory returns an untyped nil container.
func (m *Manager) Factory(entity persistence.Entity) persistence.ContainerFactory {
	return persistence.ContainerFactoryFunc(func(ctx context.Context) (persistence.Container, error) {
		c, err := m.NewContainer(ctx, entity)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Bind returns the options wiring a Persistible to this manager. Use it when
// constructing the Persistible embedded in entity.
func (m *Manager) Bind(entity persistence.Entity) []persistence.Option {
	return []persistence.Option{
		persistence.WithContainerFactory(m.Factory(entity)),
		persistence.WithContainerManager(m),
		persistence.WithSchemaNamer(m),
		persistence.WithIdentifierRegistry(m),
		persistence.WithLogger(m.logger),
	}
}

// SetContainerName implements persistence.ContainerManager.
func (m *Manager) SetContainerName(ctx context.Context, c persistence.Container, name string) error {
	ours, ok := c.(*Container)
	if !ok {
		return fmt.Errorf("%T: %w", c, persistence.ErrUnsupportedContainer)
	}
	ours.name = name
	return nil
}

// GenerateName implements persistence.SchemaNamer.
func (m *Manager) GenerateName(ctx context.Context, a persistence.Addressable) (string, error) {
	name, err := persistence.UUIDNamer{}.GenerateName(ctx, a)
	if err != nil {
		return "", err
	}
	m.logger.DebugContext(ctx, "Generated name", "object_type", a.ObjectType(), "namespace", a.Namespace(), "name", name)
	return name, nil
}

// HasGlobalIdentifier implements persistence.IdentifierRegistry. An entity has
// one when it was persisted or loaded through this manager, or when its
// identifier is recorded in the catalog.
func (m *Manager) HasGlobalIdentifier(a persistence.Addressable) bool {
	identified, ok := a.(persistence.Identified)
	if !ok {
		return false
	}
	id := identified.GlobalID()
	if id == uuid.Nil {
		return false
	}

	m.mu.RLock()
	_, live := m.live[id]
	m.mu.RUnlock()
	if live {
		return true
	}

	_, err := m.repo.GetRecord(context.Background(), id)
	return err == nil
}

func (m *Manager) register(id uuid.UUID) {
	m.mu.Lock()
	m.live[id] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) forget(ids ...uuid.UUID) {
	m.mu.Lock()
	for _, id := range ids {
		delete(m.live, id)
	}
	m.mu.Unlock()
}

// Lookup returns the catalog record of an entity. An empty engine means the
// default engine.
func (m *Manager) Lookup(ctx context.Context, engineName, namespace, name string) (*persistence.Record, error) {
	e, err := m.engine(engineName)
	if err != nil {
		return nil, err
	}
	return m.repo.GetRecordByName(ctx, e.name, namespace, name)
}

// List returns the catalog records of namespace, or all records when empty
func (m *Manager) List(ctx context.Context, namespace string) ([]*persistence.Record, error) {
	return m.repo.ListRecords(ctx, namespace)
}

// Load reads the entity stored at uri into the given entity, restores its
// identity and runs its AfterDeserialization hook, whose result is returned.
func (m *Manager) Load(ctx context.Context, uri *persistence.URI, into persistence.Entity) (persistence.Serializable, error) {
	e, err := m.engine(uri.Engine())
	if err != nil {
		return nil, err
	}
	key := e.keyFromPath(uri.Path())
	if err := objectkey.ValidateKey(key); err != nil {
		return nil, err
	}

	var s schema
	if err := m.readJSON(ctx, e, key+schemaExtension, &s); err != nil {
		return nil, err
	}

	data, err := m.read(ctx, e, key+dataExtension)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, into); err != nil {
		return nil, fmt.Errorf("decode %s: %w", uri, err)
	}

	into.SetNamespace(s.Namespace)
	into.SetName(s.Name)
	into.SetGlobalID(s.ID)
	m.register(s.ID)

	m.logger.DebugContext(ctx, "Entity loaded", "uri", uri.String(), "id", s.ID)
	return into.AfterDeserialization(into, json.RawMessage(data))
}

// LoadByName finds the catalog record of namespace/name and loads it into the
// given entity. An empty engine means the default engine.
func (m *Manager) LoadByName(ctx context.Context, engineName, namespace, name string, into persistence.Entity) (persistence.Serializable, error) {
	record, err := m.Lookup(ctx, engineName, namespace, name)
	if err != nil {
		return nil, err
	}
	uri, err := persistence.Parse(record.URI)
	if err != nil {
		return nil, err
	}
	return m.Load(ctx, uri, into)
}

func (m *Manager) read(ctx context.Context, e *engine, key string) ([]byte, error) {
	rc, err := e.store.Download(ctx, key)
	if err != nil {
		return nil, &persistence.StorageError{Engine: e.name, Key: key, Op: "download", Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &persistence.StorageError{Engine: e.name, Key: key, Op: "download", Err: err}
	}
	return data, nil
}

func (m *Manager) readJSON(ctx context.Context, e *engine, key string, v any) error {
	data, err := m.read(ctx, e, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Close closes every engine and repository that holds resources
func (m *Manager) Close() error {
	var err error
	for _, name := range m.Engines() {
		if closer, ok := m.engines[name].store.(io.Closer); ok {
			err = multierr.Append(err, closer.Close())
		}
	}
	if closer, ok := m.repo.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}
