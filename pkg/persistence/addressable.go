package persistence

import "fmt"

// Addressable is implemented by anything that has a namespaced, typed name.
type Addressable interface {
	Namespace() string
	Name() string
	// ObjectType is a constant per concrete kind, e.g. "persistence_uri".
	ObjectType() string
}

// GlobalURI renders the canonical identity of a as
// "{objectType}://{namespace}/{name}".
func GlobalURI(a Addressable) string {
	return fmt.Sprintf("%s://%s/%s", a.ObjectType(), a.Namespace(), a.Name())
}
