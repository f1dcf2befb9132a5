package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/tendant/simple-persist/pkg/persistence"
)

const (
	boltFileMode      os.FileMode = 0o600
	defaultBucketName             = "objects"
	metaSuffix                    = "\x00mtime"
)

var (
	boltTimeout   = 5 * time.Second
	errStoreClose = errors.New("bolt: store is closed")
)

// Config options for the bolt backend
type Config struct {
	Path   string // Database file, created when missing
	Bucket string // Bucket holding the objects (default: "objects")
}

// Backend stores objects in a single bbolt database file.
//
// bbolt provides single-writer/multi-reader semantics. Only the closed state
// is guarded here.
type Backend struct {
	db     *bbolt.DB
	bucket []byte
	closed atomic.Bool
}

// New opens (or creates) the database file and its bucket
func New(config Config) (*Backend, error) {
	if config.Path == "" {
		return nil, errors.New("database path is required")
	}
	if config.Bucket == "" {
		config.Bucket = defaultBucketName
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}

	db, err := bbolt.Open(config.Path, boltFileMode, &bbolt.Options{Timeout: boltTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: opening database: %w", err)
	}

	bucket := []byte(config.Bucket)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: initializing bucket: %w", err)
	}

	return &Backend{db: db, bucket: bucket}, nil
}

// Upload stores content under objectKey
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	if err := b.ensureUsable(ctx); err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	mtime := make([]byte, 8)
	binary.BigEndian.PutUint64(mtime, uint64(time.Now().UTC().UnixNano()))

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := b.getBucket(tx)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(objectKey), data); err != nil {
			return err
		}
		return bucket.Put([]byte(objectKey+metaSuffix), mtime)
	})
}

// Download returns a copy of the stored content
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	if err := b.ensureUsable(ctx); err != nil {
		return nil, err
	}

	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, err := b.getBucket(tx)
		if err != nil {
			return err
		}
		raw := bucket.Get([]byte(objectKey))
		if raw == nil {
			return persistence.ErrObjectNotFound
		}
		// raw is only valid inside the transaction
		data = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes objectKey
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	if err := b.ensureUsable(ctx); err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := b.getBucket(tx)
		if err != nil {
			return err
		}
		if bucket.Get([]byte(objectKey)) == nil {
			return persistence.ErrObjectNotFound
		}
		if err := bucket.Delete([]byte(objectKey)); err != nil {
			return err
		}
		return bucket.Delete([]byte(objectKey + metaSuffix))
	})
}

// GetObjectMeta retrieves size and modification time for an object
func (b *Backend) GetObjectMeta(ctx context.Context, objectKey string) (*persistence.ObjectMeta, error) {
	if err := b.ensureUsable(ctx); err != nil {
		return nil, err
	}

	meta := &persistence.ObjectMeta{Key: objectKey, Metadata: map[string]string{}}
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket, err := b.getBucket(tx)
		if err != nil {
			return err
		}
		raw := bucket.Get([]byte(objectKey))
		if raw == nil {
			return persistence.ErrObjectNotFound
		}
		meta.Size = int64(len(raw))
		if mtime := bucket.Get([]byte(objectKey + metaSuffix)); len(mtime) == 8 {
			meta.UpdatedAt = time.Unix(0, int64(binary.BigEndian.Uint64(mtime))).UTC()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Close releases the underlying database handle
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) getBucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket(b.bucket)
	if bucket == nil {
		return nil, fmt.Errorf("bolt: bucket %q missing", b.bucket)
	}
	return bucket, nil
}

func (b *Backend) ensureUsable(ctx context.Context) error {
	if b.closed.Load() {
		return errStoreClose
	}
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
