package persistence

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrEmptyURI is returned when parsing an empty URI string
	ErrEmptyURI = errors.New("uri may not be null or empty")

	// ErrContainerCreationFailed indicates the container factory produced no container
	ErrContainerCreationFailed = errors.New("cannot create new container")

	// ErrObjectNotFound indicates a blob was not found in a storage engine
	ErrObjectNotFound = errors.New("object not found")

	// ErrRecordNotFound indicates no catalog record exists for an entity
	ErrRecordNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates an entity is already persisted and overwrite was not requested
	ErrAlreadyExists = errors.New("already persisted")

	// ErrNameRequired indicates a container was persisted without a name
	ErrNameRequired = errors.New("name is required")

	// ErrInvalidName indicates a namespace or name that cannot be used as a storage path segment
	ErrInvalidName = errors.New("invalid namespace or name")

	// ErrEngineNotFound indicates an unknown storage engine
	ErrEngineNotFound = errors.New("storage engine not found")

	// ErrUnsupportedContainer indicates a container of a foreign implementation was passed to a manager
	ErrUnsupportedContainer = errors.New("unsupported container")
)

// ContainerError reports a failure to wrap an entity in a container.
type ContainerError struct {
	ObjectType string
	Namespace  string
	Name       string
	Op         string
	Err        error
}

func (e *ContainerError) Error() string {
	return fmt.Sprintf("%s: cannot create new container for %s: %s/%s: %v", e.Op, e.ObjectType, e.Namespace, e.Name, e.Err)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Engine string
	Key    string
	Op     string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on engine %s: %v", e.Op, e.Key, e.Engine, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
