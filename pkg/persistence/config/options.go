package config

import (
	"errors"
)

// WithDatabase sets the catalog database type and URL
func WithDatabase(dbType, url string) Option {
	return func(c *Config) error {
		if dbType != "memory" && dbType != "postgres" {
			return errors.New("database type must be 'memory' or 'postgres'")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the Postgres schema
func WithDatabaseSchema(schema string) Option {
	return func(c *Config) error {
		c.DBSchema = schema
		return nil
	}
}

// WithDefaultEngine sets the engine new entities are stored on
func WithDefaultEngine(name string) Option {
	return func(c *Config) error {
		if name == "" {
			return errors.New("default engine name cannot be empty")
		}
		c.DefaultEngine = name
		return nil
	}
}

// WithMemoryEngine adds an in-memory engine
func WithMemoryEngine(name, root string) Option {
	return func(c *Config) error {
		c.Engines = upsertEngine(c.Engines, EngineConfig{Name: name, Type: "memory", Root: root})
		return nil
	}
}

// WithFilesystemEngine adds a filesystem engine
func WithFilesystemEngine(name, root, baseDir string) Option {
	return func(c *Config) error {
		if baseDir == "" {
			return errors.New("filesystem base directory cannot be empty")
		}
		c.Engines = upsertEngine(c.Engines, EngineConfig{
			Name:   name,
			Type:   "fs",
			Root:   root,
			Config: map[string]interface{}{"base_dir": baseDir},
		})
		return nil
	}
}

// WithBoltEngine adds a single-file bbolt engine
func WithBoltEngine(name, root, path string) Option {
	return func(c *Config) error {
		if path == "" {
			return errors.New("bolt database path cannot be empty")
		}
		c.Engines = upsertEngine(c.Engines, EngineConfig{
			Name:   name,
			Type:   "bolt",
			Root:   root,
			Config: map[string]interface{}{"path": path},
		})
		return nil
	}
}

// WithS3Engine adds an S3 engine. Credentials come from the default AWS
// chain unless set with WithS3Credentials.
func WithS3Engine(name, root, bucket, region string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return errors.New("S3 bucket cannot be empty")
		}
		c.Engines = upsertEngine(c.Engines, EngineConfig{
			Name: name,
			Type: "s3",
			Root: root,
			Config: map[string]interface{}{
				"bucket": bucket,
				"region": region,
			},
		})
		return nil
	}
}

// WithS3Credentials sets static credentials on an S3 engine added earlier
func WithS3Credentials(name, accessKeyID, secretAccessKey string) Option {
	return func(c *Config) error {
		for i := range c.Engines {
			if c.Engines[i].Name == name && c.Engines[i].Type == "s3" {
				c.Engines[i].Config["access_key_id"] = accessKeyID
				c.Engines[i].Config["secret_access_key"] = secretAccessKey
				return nil
			}
		}
		return errors.New("S3 engine " + name + " not found; call WithS3Engine first")
	}
}

// WithDefaultNamespace sets the namespace given to entities without one
func WithDefaultNamespace(namespace string) Option {
	return func(c *Config) error {
		c.DefaultNamespace = namespace
		return nil
	}
}

// WithKeyLayout selects the object key layout ("flat" or "sharded")
func WithKeyLayout(layout string) Option {
	return func(c *Config) error {
		c.KeyLayout = layout
		return nil
	}
}
