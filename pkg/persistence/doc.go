// Package persistence provides an addressing scheme and a persistence
// lifecycle for entities that are saved inside storage containers.
//
// A persisted entity is located by a URI of the form
//
//	<engine>://<path>
//
// for example basic:///root/ddf/com.example/MyDDF.dat. The last path segment
// (minus a .dat or .sch extension) is the entity name and the segment before
// it is the namespace.
//
// Persistible orchestrates the save and delete of a single entity. It asks a
// ContainerFactory for a container, makes sure the entity has a name, keeps
// the container name in sync through a ContainerManager and delegates the
// actual I/O to the container. Lifecycle hooks run before and after each
// operation.
//
// Container, blob store and catalog implementations live in subpackages
// (container, storage/*, repo/*).
package persistence
