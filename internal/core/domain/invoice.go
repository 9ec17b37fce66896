package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// InvoiceRecord is the structured output of the extraction collaborator.
// It is treated as immutable once handed to the reconciliation engine.
type InvoiceRecord struct {
	InvoiceNumber Value `json:"invoice_number"`
	InvoiceDate   Value `json:"invoice_date"`
	DueDate       Value `json:"due_date"`
	VendorName    Value `json:"vendor_name"`
	VendorAddress Value `json:"vendor_address"`
	BuyerName     Value `json:"buyer_name"`
	BuyerAddress  Value `json:"buyer_address"`
	Currency      Value `json:"currency"`
	Subtotal      Value `json:"subtotal"`
	Tax           Value `json:"tax"`
	Total         Value `json:"total"`
	PONumber      Value `json:"po_number"`

	// LineItems keeps the extractor's order.
	LineItems []LineItem `json:"line_items"`

	// Extra holds every other scalar key the extractor produced, keyed by normalised name.
	Extra map[string]Value `json:"-"`
}

// LineItem is one row of an invoice. Every attribute is independently optional.
type LineItem struct {
	Description Value `json:"description"`
	Quantity    Value `json:"quantity"`
	Unit        Value `json:"unit"`
	UnitPrice   Value `json:"unit_price"`
	Amount      Value `json:"amount"`

	Extra map[string]Value `json:"-"`
}

// ParseInvoice decodes extractor JSON into an InvoiceRecord.
func ParseInvoice(data []byte) (*InvoiceRecord, error) {
	var rec InvoiceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: invoice: %v", ErrInvalidInput, err)
	}
	return &rec, nil
}

// headerSlots returns pointers to the typed header slots keyed by semantic key.
func (r *InvoiceRecord) headerSlots() map[string]*Value {
	return map[string]*Value{
		KeyInvoiceNumber: &r.InvoiceNumber,
		KeyInvoiceDate:   &r.InvoiceDate,
		KeyDueDate:       &r.DueDate,
		KeyVendorName:    &r.VendorName,
		KeyVendorAddress: &r.VendorAddress,
		KeyBuyerName:     &r.BuyerName,
		KeyBuyerAddress:  &r.BuyerAddress,
		KeyCurrency:      &r.Currency,
		KeySubtotal:      &r.Subtotal,
		KeyTax:           &r.Tax,
		KeyTotal:         &r.Total,
		KeyPONumber:      &r.PONumber,
	}
}

// UnmarshalJSON fills the typed slots and collects unknown scalar keys into Extra.
// Aliases such as "invoiceNumber" land in the typed slot after normalisation.
// When several keys normalise to the same name, the one already spelled in its
// normalised form wins, then the lexically first. Nested objects and arrays
// other than line_items are ignored.
func (r *InvoiceRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = InvoiceRecord{}
	slots := r.headerSlots()
	for _, key := range sortedKeys(raw) {
		msg := raw[key]
		name := NormalizeName(key)
		canonical := key == name
		if name == "line_items" || name == "items" {
			if r.LineItems != nil && !canonical {
				continue
			}
			var items []LineItem
			if err := json.Unmarshal(msg, &items); err != nil {
				return fmt.Errorf("line_items: %w", err)
			}
			r.LineItems = items
			continue
		}
		var v Value
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		if v.IsAbsent() {
			continue
		}
		if slot, ok := slots[name]; ok {
			if canonical || slot.IsAbsent() {
				*slot = v
			}
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]Value)
		}
		if _, seen := r.Extra[name]; !seen || canonical {
			r.Extra[name] = v
		}
	}
	return nil
}

// Entries returns the present header values: registered keys first in
// HeaderKeys order, then extra keys sorted by name.
func (r *InvoiceRecord) Entries() []Entry {
	slots := r.headerSlots()
	entries := make([]Entry, 0, len(slots)+len(r.Extra))
	for _, k := range HeaderKeys {
		v := *slots[k.Name]
		if v.IsAbsent() {
			continue
		}
		entries = append(entries, Entry{Kind: EntryKnown, Key: k.Name, Hint: k.Hint, Value: v})
	}
	return append(entries, extraEntries(r.Extra)...)
}

// UnmarshalJSON fills the typed slots and collects unknown scalar keys into Extra.
// Collisions resolve the same way as for InvoiceRecord, with aliases such as
// "qty" ranking below the canonical key.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*li = LineItem{}
	slots := li.slots()
	for _, key := range sortedKeys(raw) {
		name := NormalizeName(key)
		alias, isAlias := itemAliases[name]
		canonical := !isAlias && key == name
		switch {
		case name == "description":
			name = KeyItemDescription
		case isAlias:
			name = alias
		}
		var v Value
		if err := json.Unmarshal(raw[key], &v); err != nil || v.IsAbsent() {
			continue
		}
		if slot, ok := slots[name]; ok {
			if canonical || slot.IsAbsent() {
				*slot = v
			}
			continue
		}
		if li.Extra == nil {
			li.Extra = make(map[string]Value)
		}
		if _, seen := li.Extra[name]; !seen || canonical {
			li.Extra[name] = v
		}
	}
	return nil
}

func sortedKeys(raw map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// itemAliases maps extractor spellings onto item keys.
var itemAliases = map[string]string{
	"name":       KeyItemDescription,
	"product":    KeyItemDescription,
	"item":       KeyItemDescription,
	"qty":        KeyQuantity,
	"price":      KeyUnitPrice,
	"line_total": KeyAmount,
}

func (li *LineItem) slots() map[string]*Value {
	return map[string]*Value{
		KeyItemDescription: &li.Description,
		KeyQuantity:        &li.Quantity,
		KeyUnit:            &li.Unit,
		KeyUnitPrice:       &li.UnitPrice,
		KeyAmount:          &li.Amount,
	}
}

// Entries returns the present item attributes in ItemKeys order, then extras.
func (li *LineItem) Entries() []Entry {
	slots := li.slots()
	entries := make([]Entry, 0, len(slots)+len(li.Extra))
	for _, k := range ItemKeys {
		v := *slots[k.Name]
		if v.IsAbsent() {
			continue
		}
		entries = append(entries, Entry{Kind: EntryKnown, Key: k.Name, Hint: k.Hint, Value: v})
	}
	return append(entries, extraEntries(li.Extra)...)
}

// KeyValueEntries turns a free-form key/value mapping into entries sorted by key.
// Keys that normalise to the same name keep the value of the lexically first raw key.
func KeyValueEntries(kv map[string]Value) []Entry {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool, len(keys))
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v := kv[k]
		if v.IsAbsent() {
			continue
		}
		e := NewEntry(k, v)
		if e.Key == "" || seen[e.Key] {
			continue
		}
		seen[e.Key] = true
		entries = append(entries, e)
	}
	return entries
}

func extraEntries(extra map[string]Value) []Entry {
	if len(extra) == 0 {
		return nil
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, NewEntry(name, extra[name]))
	}
	return entries
}
