package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-persist/pkg/persistence"
	"github.com/tendant/simple-persist/pkg/persistence/container"
	"github.com/tendant/simple-persist/pkg/persistence/objectkey"
	repomemory "github.com/tendant/simple-persist/pkg/persistence/repo/memory"
	repopg "github.com/tendant/simple-persist/pkg/persistence/repo/postgres"
	boltstorage "github.com/tendant/simple-persist/pkg/persistence/storage/bolt"
	fsstorage "github.com/tendant/simple-persist/pkg/persistence/storage/fs"
	memorystorage "github.com/tendant/simple-persist/pkg/persistence/storage/memory"
	s3storage "github.com/tendant/simple-persist/pkg/persistence/storage/s3"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		DatabaseType:     "memory",
		DefaultEngine:    container.DefaultEngine,
		DefaultNamespace: container.DefaultNamespace,
		KeyLayout:        "flat",
		Engines: []EngineConfig{
			{
				Name:   container.DefaultEngine,
				Type:   "memory",
				Root:   container.DefaultRoot,
				Config: map[string]interface{}{},
			},
		},
	}
}

// Config describes the catalog, the storage engines and the naming defaults
// a container.Manager is built from
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"
	DBSchema     string // Postgres schema to use (default: search_path of the role)

	// Storage configuration
	DefaultEngine string
	Engines       []EngineConfig

	// Naming
	DefaultNamespace string
	KeyLayout        string // "flat", "sharded"
}

// EngineConfig represents configuration for a storage engine
type EngineConfig struct {
	Name   string // Engine token used in URIs
	Type   string // "memory", "fs", "s3", "bolt"
	Root   string // Path prefix used in URIs
	Config map[string]interface{}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if _, err := objectkey.New(c.KeyLayout); err != nil {
		return err
	}

	// Ensure default engine exists in configured engines
	found := false
	for _, engine := range c.Engines {
		if engine.Name == "" {
			return errors.New("engine name is required")
		}
		if engine.Name == c.DefaultEngine {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("default engine '%s' not found in configured engines", c.DefaultEngine)
	}

	return nil
}

// BuildManager creates a container.Manager from the configuration. The
// returned manager owns every store and connection pool it opened; release
// them with Manager.Close.
func (c *Config) BuildManager(ctx context.Context, logger *slog.Logger) (*container.Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repo, err := c.buildRepository(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}

	keys, err := objectkey.New(c.KeyLayout)
	if err != nil {
		return nil, err
	}

	options := []container.Option{
		container.WithRepository(repo),
		container.WithKeyGenerator(keys),
		container.WithDefaultNamespace(c.DefaultNamespace),
		container.WithDefaultEngine(c.DefaultEngine),
		container.WithLogger(logger),
	}

	var opened []persistence.BlobStore
	for _, engineConfig := range c.Engines {
		store, err := c.buildStore(engineConfig)
		if err != nil {
			closeAll(repo, opened)
			return nil, fmt.Errorf("failed to build storage engine %s: %w", engineConfig.Name, err)
		}
		opened = append(opened, store)
		options = append(options, container.WithEngine(engineConfig.Name, store, engineConfig.Root))
	}

	mgr, err := container.NewManager(options...)
	if err != nil {
		closeAll(repo, opened)
		return nil, err
	}

	logger.Info("Persistence manager ready",
		"database", c.DatabaseType,
		"engines", mgr.Engines(),
		"default_engine", c.DefaultEngine,
		"key_layout", c.KeyLayout)
	return mgr, nil
}

func closeAll(repo persistence.Repository, stores []persistence.BlobStore) {
	if closer, ok := repo.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	for _, store := range stores {
		if closer, ok := store.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}

// buildRepository creates a Repository based on the configuration
func (c *Config) buildRepository(ctx context.Context) (persistence.Repository, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		pool, err := newPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		repo := repopg.NewWithPool(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required for postgres")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	// Optionally set search_path for the connection
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// PingPostgres verifies connectivity to Postgres and optionally sets search_path for the session.
// It fails if the schema (when provided) does not exist.
func PingPostgres(ctx context.Context, databaseURL, schema string) error {
	pool, err := newPool(ctx, databaseURL, schema)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// buildStore creates a BlobStore based on the engine configuration
func (c *Config) buildStore(config EngineConfig) (persistence.BlobStore, error) {
	switch config.Type {
	case "memory":
		return memorystorage.New(), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir: getString(config.Config, "base_dir", "./data/storage"),
		})

	case "bolt":
		return boltstorage.New(boltstorage.Config{
			Path:   getString(config.Config, "path", "./data/persist.db"),
			Bucket: getString(config.Config, "bucket", ""),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", ""),
			Prefix:                 getString(config.Config, "prefix", ""),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage engine type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
		if str, ok := value.(string); ok {
			if b, err := strconv.ParseBool(str); err == nil {
				return b
			}
		}
	}
	return defaultValue
}
