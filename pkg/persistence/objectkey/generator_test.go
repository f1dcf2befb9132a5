package objectkey

import (
	"errors"
	"strings"
	"testing"

	"github.com/tendant/simple-persist/pkg/persistence"
)

func TestFlatGenerator(t *testing.T) {
	gen := NewFlatGenerator()

	tests := []struct {
		name      string
		namespace string
		objName   string
		expected  string
	}{
		{
			name:      "plain",
			namespace: "com.example",
			objName:   "MyDDF",
			expected:  "com.example/MyDDF",
		},
		{
			name:      "separators are replaced",
			namespace: "a/b",
			objName:   "c:d e",
			expected:  "a_b/c_d_e",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.GenerateKey(tt.namespace, tt.objName)
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestShardedGenerator(t *testing.T) {
	gen := NewShardedGenerator()

	key := gen.GenerateKey("com.example", "MyDDF")
	parts := strings.Split(key, "/")
	if len(parts) != 4 {
		t.Fatalf("expected 4 segments, got %q", key)
	}
	if parts[0] != "objects" || len(parts[1]) != 2 {
		t.Errorf("unexpected shard prefix in %q", key)
	}
	if again := gen.GenerateKey("com.example", "MyDDF"); again != key {
		t.Errorf("expected stable key, got %s and %s", key, again)
	}

	wide := &ShardedGenerator{ShardLength: 3}
	if parts := strings.Split(wide.GenerateKey("ns", "n"), "/"); len(parts[1]) != 3 {
		t.Errorf("expected 3 char shard, got %q", parts[1])
	}
}

func TestGeneratorsRoundTripThroughURI(t *testing.T) {
	generators := map[string]Generator{
		"flat":    NewFlatGenerator(),
		"sharded": NewShardedGenerator(),
	}

	for label, gen := range generators {
		t.Run(label, func(t *testing.T) {
			key := gen.GenerateKey("sales", "q3_report")
			uri, err := persistence.Parse("basic:///root/" + key + ".dat")
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if uri.Namespace() != "sales" || uri.Name() != "q3_report" {
				t.Errorf("got namespace=%q name=%q from %s", uri.Namespace(), uri.Name(), key)
			}
		})
	}
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(namespace, name string) string {
		return "custom/" + namespace + "/" + name
	})
	if got := gen.GenerateKey("ns", "n"); got != "custom/ns/n" {
		t.Errorf("unexpected key %s", got)
	}
}

func TestNew(t *testing.T) {
	for _, layout := range []string{"", "flat", "FLAT", "sharded"} {
		if _, err := New(layout); err != nil {
			t.Errorf("layout %q: %v", layout, err)
		}
	}
	if _, err := New("spiral"); err == nil {
		t.Error("expected error for unknown layout")
	}
}

func TestValidateComponent(t *testing.T) {
	tests := []struct {
		component string
		valid     bool
	}{
		{"sales", true},
		{"q3.report", true},
		{"...", true},
		{".hidden", true},
		{"", false},
		{".", false},
		{"..", false},
	}

	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			err := ValidateComponent(tt.component)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.component, err)
			}
			if !tt.valid && !errors.Is(err, persistence.ErrInvalidName) {
				t.Errorf("expected ErrInvalidName for %q, got %v", tt.component, err)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey(NewShardedGenerator().GenerateKey("sales", "q3")); err != nil {
		t.Errorf("expected generated key to be valid, got %v", err)
	}
	for _, key := range []string{"../escaped", "sales/..", "a//b", ""} {
		if err := ValidateKey(key); !errors.Is(err, persistence.ErrInvalidName) {
			t.Errorf("expected ErrInvalidName for %q, got %v", key, err)
		}
	}
}
