package persistence

import (
	"strings"
)

const (
	// ObjectTypeURI is the object type reported by URI.
	ObjectTypeURI = "persistence_uri"

	uriDelimiter = "://"
)

// Recognized name extensions, compared case-insensitively.
var nameExtensions = []string{".dat", ".sch"}

// URI locates a persisted entity inside a storage engine.
//
// The textual form is
//
//	<engine>://<path>
//
// e.g. basic:///root/ddf/ddf-runtime/basic-ddf-db/com.example/MyDDF.dat.
//
// Namespace and name are derived from the path lazily, the first time any of
// Path, Namespace, Name, URI or String is called. Deriving strips a trailing
// .dat or .sch extension from both the name and the path.
//
// A URI is not safe for concurrent use until it has been derived once.
type URI struct {
	engine    string
	path      string
	namespace string
	name      string
	parsed    bool
}

// Parse splits raw on the first "://". Without a delimiter the whole string
// is the path and the engine is left empty. Any later "://" stays in the path.
func Parse(raw string) (*URI, error) {
	if raw == "" {
		return nil, ErrEmptyURI
	}

	engine, path, found := strings.Cut(raw, uriDelimiter)
	if !found {
		return &URI{path: raw}, nil
	}
	return &URI{engine: engine, path: path}, nil
}

// NewURI builds a URI from an explicit engine and path. No validation is done.
func NewURI(engine, path string) *URI {
	return &URI{engine: engine, path: path}
}

// ParsePath derives namespace and name from the current path. It runs
// regardless of any earlier derivation and may shorten the path when the last
// segment carries a recognized extension.
//
// A path ending in "/" yields an empty name.
func (u *URI) ParsePath() {
	u.parsed = true
	if u.path == "" {
		return
	}

	segments := strings.Split(u.path, "/")
	name := segments[len(segments)-1]
	if hasNameExtension(name) {
		name = name[:strings.LastIndex(name, ".")]
		u.path = u.path[:strings.LastIndex(u.path, ".")]
	}
	u.name = name

	if len(segments) > 1 {
		u.namespace = segments[len(segments)-2]
	}
}

func (u *URI) ensureParsed() {
	if !u.parsed {
		u.ParsePath()
	}
}

func hasNameExtension(segment string) bool {
	lower := strings.ToLower(segment)
	for _, ext := range nameExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Engine returns the storage engine token, empty when the URI had no scheme.
func (u *URI) Engine() string {
	return u.engine
}

// Path returns the path with any recognized extension removed.
func (u *URI) Path() string {
	u.ensureParsed()
	return u.path
}

// Namespace implements Addressable.
func (u *URI) Namespace() string {
	u.ensureParsed()
	return u.namespace
}

// SetNamespace overrides the derived namespace.
func (u *URI) SetNamespace(namespace string) {
	u.ensureParsed()
	u.namespace = namespace
}

// Name implements Addressable.
func (u *URI) Name() string {
	u.ensureParsed()
	return u.name
}

// SetName overrides the derived name.
func (u *URI) SetName(name string) {
	u.ensureParsed()
	u.name = name
}

// ObjectType implements Addressable.
func (u *URI) ObjectType() string {
	return ObjectTypeURI
}

// URI returns the canonical identity string, see GlobalURI.
func (u *URI) URI() string {
	return GlobalURI(u)
}

// String renders "{engine}://{path}". An empty engine renders as "://{path}".
func (u *URI) String() string {
	return u.engine + uriDelimiter + u.Path()
}

// MarshalText implements encoding.TextMarshaler.
func (u *URI) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *URI) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*u = *parsed
	return nil
}
