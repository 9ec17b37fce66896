package domain

import "strings"

// SemanticKey is a logical field name that the engine knows how to type.
type SemanticKey struct {
	// Name is the normalised key (e.g. "due_date").
	Name string

	// Hint is the field type expected for values of this key.
	Hint FieldType
}

// Header keys produced by the extraction collaborator.
const (
	KeyInvoiceNumber = "invoice_number"
	KeyInvoiceDate   = "invoice_date"
	KeyDueDate       = "due_date"
	KeyVendorName    = "vendor_name"
	KeyVendorAddress = "vendor_address"
	KeyBuyerName     = "buyer_name"
	KeyBuyerAddress  = "buyer_address"
	KeyCurrency      = "currency"
	KeySubtotal      = "subtotal"
	KeyTax           = "tax"
	KeyTotal         = "total"
	KeyPONumber      = "po_number"
)

// Line item keys.
const (
	KeyItemDescription = "item_description"
	KeyQuantity        = "quantity"
	KeyUnit            = "unit"
	KeyUnitPrice       = "unit_price"
	KeyAmount          = "amount"
)

// HeaderKeys lists the invoice header keys in report order.
var HeaderKeys = []SemanticKey{
	{Name: KeyInvoiceNumber, Hint: FieldShortText},
	{Name: KeyInvoiceDate, Hint: FieldDate},
	{Name: KeyDueDate, Hint: FieldDate},
	{Name: KeyVendorName, Hint: FieldShortText},
	{Name: KeyVendorAddress, Hint: FieldShortText},
	{Name: KeyBuyerName, Hint: FieldShortText},
	{Name: KeyBuyerAddress, Hint: FieldShortText},
	{Name: KeyCurrency, Hint: FieldShortText},
	{Name: KeySubtotal, Hint: FieldNumber},
	{Name: KeyTax, Hint: FieldNumber},
	{Name: KeyTotal, Hint: FieldNumber},
	{Name: KeyPONumber, Hint: FieldShortText},
}

// ItemKeys lists the line item keys in report order.
var ItemKeys = []SemanticKey{
	{Name: KeyItemDescription, Hint: FieldShortText},
	{Name: KeyQuantity, Hint: FieldNumber},
	{Name: KeyUnit, Hint: FieldShortText},
	{Name: KeyUnitPrice, Hint: FieldNumber},
	{Name: KeyAmount, Hint: FieldNumber},
}

// LookupKey returns the registered semantic key for a normalised name.
func LookupKey(name string) (SemanticKey, bool) {
	for _, k := range HeaderKeys {
		if k.Name == name {
			return k, true
		}
	}
	for _, k := range ItemKeys {
		if k.Name == name {
			return k, true
		}
	}
	return SemanticKey{}, false
}

// HintForKey returns the type hint for a key. Unregistered keys that mention
// a date get a date hint; everything else has no hint.
func HintForKey(name string) FieldType {
	if k, ok := LookupKey(name); ok {
		return k.Hint
	}
	for _, tok := range strings.Split(name, "_") {
		if tok == "date" || tok == "dated" || tok == "deadline" {
			return FieldDate
		}
	}
	return FieldUnknown
}

// EntryKind tags an Entry as a registered key or an arbitrary extracted key.
type EntryKind int

// Entry kinds.
const (
	// EntryKnown is a key from HeaderKeys or ItemKeys.
	EntryKnown EntryKind = iota

	// EntryUnknown is any other key the extractor produced.
	EntryUnknown
)

// String returns the kind name.
func (k EntryKind) String() string {
	if k == EntryKnown {
		return "known"
	}
	return "unknown"
}

// Entry is one semantic key with its value, ready for resolution.
type Entry struct {
	Kind  EntryKind
	Key   string
	Hint  FieldType
	Value Value
}

// NewEntry classifies a raw key. The key is normalised first.
func NewEntry(key string, v Value) Entry {
	name := NormalizeName(key)
	if k, ok := LookupKey(name); ok {
		return Entry{Kind: EntryKnown, Key: name, Hint: k.Hint, Value: v}
	}
	return Entry{Kind: EntryUnknown, Key: name, Hint: HintForKey(name), Value: v}
}
