package domain

import (
	"fmt"
	"strings"
	"time"
)

// FieldMapping is an explicit override of automatic matching:
// semantic key to field name or field ID. The zero value is the empty mapping.
type FieldMapping map[string]string

// Target returns the field reference for a key, if mapped.
func (m FieldMapping) Target(key string) (string, bool) {
	if len(m) == 0 {
		return "", false
	}
	ref, ok := m[NormalizeName(key)]
	if !ok || strings.TrimSpace(ref) == "" {
		return "", false
	}
	return ref, true
}

// Normalized returns a copy with every key in canonical form.
func (m FieldMapping) Normalized() FieldMapping {
	out := make(FieldMapping, len(m))
	for k, v := range m {
		name := NormalizeName(k)
		if name == "" || strings.TrimSpace(v) == "" {
			continue
		}
		out[name] = strings.TrimSpace(v)
	}
	return out
}

// Merge returns a mapping where entries of other take precedence.
func (m FieldMapping) Merge(other FieldMapping) FieldMapping {
	out := m.Normalized()
	for k, v := range other.Normalized() {
		out[k] = v
	}
	return out
}

// ParseFieldMappingPairs parses "key=field" pairs as given on the command line.
func ParseFieldMappingPairs(pairs []string) (FieldMapping, error) {
	m := make(FieldMapping, len(pairs))
	for _, p := range pairs {
		key, ref, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(ref) == "" {
			return nil, fmt.Errorf("%w: mapping %q must be key=field", ErrInvalidInput, p)
		}
		m[NormalizeName(key)] = strings.TrimSpace(ref)
	}
	return m, nil
}

// MappingProfile is a named FieldMapping saved for reuse.
type MappingProfile struct {
	// ID is the unique identifier for the profile.
	ID string `json:"id"`

	// Name is the human-readable name used to select the profile.
	Name string `json:"name"`

	// ListID optionally scopes the profile to one list. Empty means any list.
	ListID string `json:"list_id,omitempty"`

	// Mapping is the stored mapping.
	Mapping FieldMapping `json:"mapping"`

	// CreatedAt is when the profile was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the profile was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}
