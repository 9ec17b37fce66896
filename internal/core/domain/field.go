package domain

import (
	"strings"
	"unicode"
)

// FieldType is the semantic type of a custom field.
type FieldType string

// Field types.
const (
	// FieldUnknown is used as "no hint" when inferring types.
	FieldUnknown FieldType = ""

	// FieldShortText is a single-line text field.
	FieldShortText FieldType = "short_text"

	// FieldNumber is a numeric field (including currency).
	FieldNumber FieldType = "number"

	// FieldDate is a date field.
	FieldDate FieldType = "date"

	// FieldOther covers provider types the engine does not create (drop downs, checkboxes...).
	FieldOther FieldType = "other"
)

// String returns the string representation.
func (t FieldType) String() string {
	return string(t)
}

// IsCreatable returns true if the synthesizer may create fields of this type.
func (t FieldType) IsCreatable() bool {
	return t == FieldShortText || t == FieldNumber || t == FieldDate
}

// Accepts reports whether a value inferred as v can be written to a field of type t
// without a type mismatch. Text fields accept anything.
func (t FieldType) Accepts(v FieldType) bool {
	switch t {
	case FieldShortText:
		return true
	case FieldNumber, FieldDate:
		return t == v
	default:
		return false
	}
}

// FieldOption is one allowed value of an enumerated field.
type FieldOption struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"orderindex"`
}

// FieldDescriptor identifies a custom field on a list.
type FieldDescriptor struct {
	// ID is the remote field identifier.
	ID string `json:"id"`

	// Name is the display name as defined on the list.
	Name string `json:"name"`

	// Type is the semantic type.
	Type FieldType `json:"type"`

	// ProviderType is the raw type reported by the task-management system.
	ProviderType string `json:"provider_type,omitempty"`

	// Options are the allowed values for enumerated fields.
	Options []FieldOption `json:"options,omitempty"`
}

// IsEnumerated returns true if the field only accepts one of its options.
func (f FieldDescriptor) IsEnumerated() bool {
	return len(f.Options) > 0
}

// Option finds an option by normalised name or by ID.
func (f FieldDescriptor) Option(value string) (FieldOption, bool) {
	want := NormalizeName(value)
	for _, opt := range f.Options {
		if opt.ID == value || NormalizeName(opt.Name) == want {
			return opt, true
		}
	}
	return FieldOption{}, false
}

// NormalizeName returns the canonical form of a field name or key:
// camelCase is split, letters are lowercased and every run of
// non-alphanumeric characters becomes a single underscore.
// "Total Amount", "total-amount" and "totalAmount" all become "total_amount".
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)

	runes := []rune(strings.TrimSpace(s))
	pendingSep := false
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSep = b.Len() > 0
			continue
		}
		// Split "invoiceNumber" and "PONumber" at the case boundary.
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				pendingSep = b.Len() > 0
			}
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Tokens splits a normalised name into its words.
func Tokens(normalised string) []string {
	if normalised == "" {
		return nil
	}
	return strings.Split(normalised, "_")
}

// acronyms are rendered upper-case by Humanize.
var acronyms = map[string]string{
	"po":   "PO",
	"id":   "ID",
	"vat":  "VAT",
	"sku":  "SKU",
	"url":  "URL",
	"iban": "IBAN",
}

// Humanize turns a semantic key into a display name:
// "due_date" becomes "Due Date" and "poNumber" becomes "PO Number".
func Humanize(key string) string {
	words := Tokens(NormalizeName(key))
	for i, w := range words {
		if a, ok := acronyms[w]; ok {
			words[i] = a
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
