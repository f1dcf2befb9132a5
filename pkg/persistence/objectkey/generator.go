package objectkey

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/tendant/simple-persist/pkg/persistence"
)

// Generator defines the interface for object key generation strategies.
//
// Every strategy keeps the namespace as the second to last segment and the
// name as the last one, so a persistence URI built from the key derives the
// same namespace and name back.
type Generator interface {
	// GenerateKey creates the storage key of an entity, without extension
	GenerateKey(namespace, name string) string
}

// FlatGenerator lays keys out as {namespace}/{name}
type FlatGenerator struct{}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) GenerateKey(namespace, name string) string {
	return fmt.Sprintf("%s/%s", sanitizePathComponent(namespace), sanitizePathComponent(name))
}

// ShardedGenerator provides Git-style sharding in front of the namespace
// Structure: objects/ab/{namespace}/{name}
// The shard is derived from a hash of namespace and name, so keys are stable.
type ShardedGenerator struct {
	// ShardLength controls how many hex characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{
		ShardLength: 2,
	}
}

func (g *ShardedGenerator) GenerateKey(namespace, name string) string {
	namespace = sanitizePathComponent(namespace)
	name = sanitizePathComponent(name)

	hash := sha256.Sum256([]byte(namespace + "/" + name))
	hashStr := fmt.Sprintf("%x", hash)

	shardLength := g.ShardLength
	if shardLength <= 0 {
		shardLength = 2
	}
	if shardLength > len(hashStr) {
		shardLength = len(hashStr)
	}

	return fmt.Sprintf("objects/%s/%s/%s", hashStr[:shardLength], namespace, name)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(namespace, name string) string
}

func NewCustomFuncGenerator(fn func(namespace, name string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(namespace, name string) string {
	return g.GenerateFunc(namespace, name)
}

// sanitizePathComponent keeps a namespace or name within a single path segment
func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(component)
}

// ValidateComponent rejects namespaces and names that would not stay a single
// path segment once sanitized: "", "." and "..".
func ValidateComponent(component string) error {
	switch sanitizePathComponent(component) {
	case "", ".", "..":
		return fmt.Errorf("%q: %w", component, persistence.ErrInvalidName)
	}
	return nil
}

// ValidateKey checks every segment of a storage key, extension excluded.
func ValidateKey(key string) error {
	for _, segment := range strings.Split(key, "/") {
		if err := ValidateComponent(segment); err != nil {
			return err
		}
	}
	return nil
}

// New returns the generator for a layout name: "flat" (default) or "sharded".
func New(layout string) (Generator, error) {
	switch strings.ToLower(layout) {
	case "", "flat":
		return NewFlatGenerator(), nil
	case "sharded":
		return NewShardedGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported key layout: %s", layout)
	}
}
