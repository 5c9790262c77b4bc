package gameid

import (
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator(nil)
	id := gen.Generate()

	if len(id) != 26 {
		t.Errorf("expected 26 characters, got %d", len(id))
	}
	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			t.Errorf("invalid character %c at position %d", char, i)
		}
	}
}

func TestPrefixedIdentifiers(t *testing.T) {
	gen := NewGenerator(nil)

	tests := []struct {
		name   string
		id     string
		prefix string
	}{
		{"table", gen.Table(), PrefixTable},
		{"hand", gen.Hand(), PrefixHand},
		{"seed request", gen.SeedRequest(), PrefixSeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.id, tt.prefix+"_") {
				t.Errorf("expected prefix %q, got %s", tt.prefix, tt.id)
			}
			if err := Validate(tt.id, tt.prefix); err != nil {
				t.Errorf("generated ID failed validation: %v", err)
			}
		})
	}
}

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator(nil)
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := gen.Generate()
		if ids[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		ids[id] = true
	}
}

func TestGenerateTimeSorted(t *testing.T) {
	gen := NewGenerator(nil)
	var ids []string

	for i := 0; i < 10; i++ {
		ids = append(ids, gen.Generate())
		time.Sleep(time.Millisecond)
	}

	// UUIDv7 should be sortable by timestamp
	for i := 1; i < len(ids); i++ {
		if strings.Compare(ids[i-1], ids[i]) >= 0 {
			t.Errorf("IDs not sorted: %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		prefix  string
		wantErr bool
	}{
		{
			name:    "valid table ID",
			id:      "tbl_01h5n0et5q6mt3v7ms1234abcd",
			prefix:  PrefixTable,
			wantErr: false,
		},
		{
			name:    "missing prefix",
			id:      "01h5n0et5q6mt3v7ms1234abcd",
			prefix:  PrefixTable,
			wantErr: true,
		},
		{
			name:    "wrong prefix",
			id:      "hand_01h5n0et5q6mt3v7ms1234abcd",
			prefix:  PrefixTable,
			wantErr: true,
		},
		{
			name:    "too short",
			id:      "tbl_01h5n0et5q6mt3v7ms123",
			prefix:  PrefixTable,
			wantErr: true,
		},
		{
			name:    "too long",
			id:      "tbl_01h5n0et5q6mt3v7ms1234abcdef",
			prefix:  PrefixTable,
			wantErr: true,
		},
		{
			name:    "invalid character",
			id:      "tbl_01h5n0et5q6mt3v7ms1234abci",
			prefix:  PrefixTable,
			wantErr: true,
		},
		{
			name:    "uppercase not allowed",
			id:      "tbl_01H5N0ET5Q6MT3V7MS1234ABCD",
			prefix:  PrefixTable,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id, tt.prefix)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAlphabet(t *testing.T) {
	if len(alphabet) != 32 {
		t.Errorf("alphabet should have 32 characters, got %d", len(alphabet))
	}

	seen := make(map[rune]bool)
	for _, char := range alphabet {
		if seen[char] {
			t.Errorf("duplicate character in alphabet: %c", char)
		}
		seen[char] = true
	}

	// Crockford base32 drops the ambiguous letters
	forbidden := "ilou"
	for _, char := range forbidden {
		if strings.ContainsRune(alphabet, char) {
			t.Errorf("alphabet should not contain %c", char)
		}
	}
}

// MockRandSource for deterministic testing
type MockRandSource struct {
	values []int
	index  int
}

func NewMockRandSource(values ...int) *MockRandSource {
	return &MockRandSource{values: values}
}

func (m *MockRandSource) Intn(n int) int {
	if m.index >= len(m.values) {
		return 0
	}
	val := m.values[m.index] % n
	m.index++
	return val
}

func TestGeneratorDeterministic(t *testing.T) {
	values := make([]int, 40)
	for i := range values {
		values[i] = i + 100
	}

	gen := NewGenerator(NewMockRandSource(values...))

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, gen.Table())
	}

	idMap := make(map[string]bool)
	for i, id := range ids {
		if err := Validate(id, PrefixTable); err != nil {
			t.Errorf("ID %d failed validation: %v", i, err)
		}
		// Unique even with a repeating random source, timestamp differs
		if idMap[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		idMap[id] = true
	}
}
