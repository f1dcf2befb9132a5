package persistence_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-persist/pkg/persistence"
)

func TestParse_EmptyURI(t *testing.T) {
	uri, err := persistence.Parse("")
	assert.Nil(t, uri)
	assert.ErrorIs(t, err, persistence.ErrEmptyURI)
	assert.EqualError(t, err, "uri may not be null or empty")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		engine    string
		path      string
		namespace string
		objName   string
	}{
		{
			name:      "engine with dat extension",
			raw:       "basic:///root/ddf/x/y/MyDDF.dat",
			engine:    "basic",
			path:      "/root/ddf/x/y/MyDDF",
			namespace: "y",
			objName:   "MyDDF",
		},
		{
			name:      "no engine with sch extension",
			raw:       "/plain/path/name.sch",
			engine:    "",
			path:      "/plain/path/name",
			namespace: "path",
			objName:   "name",
		},
		{
			name:      "extension is case insensitive",
			raw:       "basic://com.example/Sales.DAT",
			engine:    "basic",
			path:      "com.example/Sales",
			namespace: "com.example",
			objName:   "Sales",
		},
		{
			name:      "unrecognized extension is kept",
			raw:       "s3://bucket/ns/report.csv",
			engine:    "s3",
			path:      "bucket/ns/report.csv",
			namespace: "ns",
			objName:   "report.csv",
		},
		{
			name:      "single segment has no namespace",
			raw:       "basic://MyDDF.dat",
			engine:    "basic",
			path:      "MyDDF",
			namespace: "",
			objName:   "MyDDF",
		},
		{
			name:      "trailing slash yields empty name",
			raw:       "basic:///a/b/",
			engine:    "basic",
			path:      "/a/b/",
			namespace: "b",
			objName:   "",
		},
		{
			name:      "only the first delimiter splits",
			raw:       "basic://mirror://a/b/c.dat",
			engine:    "basic",
			path:      "mirror://a/b/c",
			namespace: "b",
			objName:   "c",
		},
		{
			name:      "empty engine",
			raw:       ":///a/b",
			engine:    "",
			path:      "/a/b",
			namespace: "a",
			objName:   "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := persistence.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.engine, uri.Engine())
			assert.Equal(t, tt.path, uri.Path())
			assert.Equal(t, tt.namespace, uri.Namespace())
			assert.Equal(t, tt.objName, uri.Name())
		})
	}
}

func TestURI_String(t *testing.T) {
	assert.Equal(t, "basic:///a/b", persistence.NewURI("basic", "/a/b").String())
	assert.Equal(t, ":///a/b", persistence.NewURI("", "/a/b").String())

	uri, err := persistence.Parse("basic:///root/ddf/x/y/MyDDF.dat")
	require.NoError(t, err)
	assert.Equal(t, "basic:///root/ddf/x/y/MyDDF", uri.String())
}

func TestURI_ParsePathIsIdempotent(t *testing.T) {
	paths := []string{"/a/b/c", "a", "", "/", "ns/name.csv", "/x/y/"}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			uri := persistence.NewURI("basic", p)
			uri.ParsePath()
			first := []string{uri.Path(), uri.Namespace(), uri.Name()}

			uri.ParsePath()
			second := []string{uri.Path(), uri.Namespace(), uri.Name()}

			assert.Equal(t, first, second)
		})
	}
}

func TestURI_DerivationIsLazy(t *testing.T) {
	uri := persistence.NewURI("basic", "/ns/first.dat")
	assert.Equal(t, "first", uri.Name())

	// accessors never re-derive once derived
	uri.SetName("renamed")
	assert.Equal(t, "renamed", uri.Name())
	assert.Equal(t, "/ns/first", uri.Path())
}

func TestURI_GlobalURI(t *testing.T) {
	uri, err := persistence.Parse("basic:///root/ns/MyDDF.dat")
	require.NoError(t, err)

	assert.Equal(t, persistence.ObjectTypeURI, uri.ObjectType())
	assert.Equal(t, "persistence_uri://ns/MyDDF", uri.URI())

	other := persistence.NewURI("other", "elsewhere/ns/MyDDF.sch")
	assert.Equal(t, uri.URI(), other.URI())
}

func TestURI_JSON(t *testing.T) {
	type wrapper struct {
		Location *persistence.URI `json:"location"`
	}

	uri, err := persistence.Parse("basic:///root/ns/MyDDF.dat")
	require.NoError(t, err)

	data, err := json.Marshal(wrapper{Location: uri})
	require.NoError(t, err)
	assert.JSONEq(t, `{"location":"basic:///root/ns/MyDDF"}`, string(data))

	var decoded wrapper
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "basic", decoded.Location.Engine())
	assert.Equal(t, "ns", decoded.Location.Namespace())
	assert.Equal(t, "MyDDF", decoded.Location.Name())

	err = json.Unmarshal([]byte(`{"location":""}`), &decoded)
	assert.ErrorIs(t, err, persistence.ErrEmptyURI)
}
