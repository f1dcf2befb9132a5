package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-persist/pkg/persistence"
)

// Repository implements persistence.Repository using in-memory storage
type Repository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*persistence.Record
	byName  map[string]uuid.UUID // "engine:namespace/name" -> record id
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		records: make(map[uuid.UUID]*persistence.Record),
		byName:  make(map[string]uuid.UUID),
	}
}

func nameKey(engine, namespace, name string) string {
	return engine + ":" + namespace + "/" + name
}

// SaveRecord inserts or replaces the record with the same ID. A different
// record already holding the same engine, namespace and name is rejected.
func (r *Repository) SaveRecord(ctx context.Context, record *persistence.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameKey(record.Engine, record.Namespace, record.Name)
	if id, exists := r.byName[key]; exists && id != record.ID {
		return persistence.ErrAlreadyExists
	}

	now := time.Now().UTC()

	// Create a copy to avoid external modifications
	recordCopy := *record
	if previous, exists := r.records[record.ID]; exists {
		recordCopy.CreatedAt = previous.CreatedAt
		delete(r.byName, nameKey(previous.Engine, previous.Namespace, previous.Name))
	} else if recordCopy.CreatedAt.IsZero() {
		recordCopy.CreatedAt = now
	}
	recordCopy.UpdatedAt = now

	r.records[record.ID] = &recordCopy
	r.byName[key] = record.ID

	record.CreatedAt = recordCopy.CreatedAt
	record.UpdatedAt = recordCopy.UpdatedAt
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, id uuid.UUID) (*persistence.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, persistence.ErrRecordNotFound
	}

	// Return a copy to prevent external modifications
	recordCopy := *record
	return &recordCopy, nil
}

func (r *Repository) GetRecordByName(ctx context.Context, engine, namespace, name string) (*persistence.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byName[nameKey(engine, namespace, name)]
	if !exists {
		return nil, persistence.ErrRecordNotFound
	}

	recordCopy := *r.records[id]
	return &recordCopy, nil
}

func (r *Repository) ListRecords(ctx context.Context, namespace string) ([]*persistence.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*persistence.Record, 0, len(r.records))
	for _, record := range r.records {
		if namespace != "" && record.Namespace != namespace {
			continue
		}
		recordCopy := *record
		result = append(result, &recordCopy)
	}

	// Sort by namespace, then name
	sort.Slice(result, func(i, j int) bool {
		if result[i].Namespace != result[j].Namespace {
			return result[i].Namespace < result[j].Namespace
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

func (r *Repository) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[id]
	if !exists {
		return persistence.ErrRecordNotFound
	}

	delete(r.byName, nameKey(record.Engine, record.Namespace, record.Name))
	delete(r.records, id)
	return nil
}
