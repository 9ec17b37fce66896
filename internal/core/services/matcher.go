package services

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/invoicesync/internal/core/domain"
)

// synonymGroups lists, per semantic key, the normalised field names that mean the same thing.
// A key that equals one of the aliases joins the group, so "date" resolves like "invoice_date".
var synonymGroups = map[string][]string{
	domain.KeyInvoiceNumber: {"invoice_no", "invoice_num", "invoice_nr", "invoice_id", "invoice", "inv_no", "bill_number"},
	domain.KeyInvoiceDate:   {"date", "issue_date", "date_of_issue", "invoice_dated", "bill_date", "issued_on"},
	domain.KeyDueDate:       {"payment_due", "payment_due_date", "due", "due_by", "deadline", "pay_by"},
	domain.KeyVendorName:    {"vendor", "supplier", "supplier_name", "seller", "seller_name", "merchant"},
	domain.KeyVendorAddress: {"supplier_address", "seller_address", "vendor_addr"},
	domain.KeyBuyerName:     {"buyer", "customer", "customer_name", "client", "client_name", "bill_to"},
	domain.KeyBuyerAddress:  {"customer_address", "client_address", "billing_address", "bill_to_address"},
	domain.KeyCurrency:      {"currency_code", "ccy"},
	domain.KeySubtotal:      {"sub_total", "net", "net_amount", "net_total", "amount_before_tax"},
	domain.KeyTax:           {"vat", "gst", "tax_amount", "vat_amount", "sales_tax", "tax_total"},
	domain.KeyTotal:         {"total_amount", "amount_due", "grand_total", "invoice_total", "invoice_amount", "total_due", "balance_due"},
	domain.KeyPONumber:      {"po", "po_no", "purchase_order", "purchase_order_number", "order_number"},

	domain.KeyItemDescription: {"description", "item", "item_name", "product", "line_description"},
	domain.KeyQuantity:        {"qty", "units_ordered"},
	domain.KeyUnit:            {"uom", "unit_of_measure"},
	domain.KeyUnitPrice:       {"price", "rate", "unit_cost", "price_per_unit"},
	domain.KeyAmount:          {"line_total", "line_amount", "item_total", "item_amount"},
}

// claims maps every normalised name in synonymGroups to the groups that own it.
var claims = buildClaims()

func buildClaims() map[string][]string {
	out := make(map[string][]string)
	for key, aliases := range synonymGroups {
		out[key] = append(out[key], key)
		for _, a := range aliases {
			out[a] = append(out[a], key)
		}
	}
	return out
}

// Resolution is the result of matching one semantic key.
type Resolution struct {
	// Field is the resolved field. Zero when Action is ActionNone.
	Field domain.FieldDescriptor

	// Action is ActionMapped, ActionMatched or ActionNone.
	Action domain.Action
}

// Found returns true if a field was resolved.
func (r Resolution) Found() bool {
	return r.Action == domain.ActionMapped || r.Action == domain.ActionMatched
}

// FieldMatcher resolves semantic keys against a list's fields.
//
// Resolution order:
//  1. an explicit mapping entry, by field ID then by name; automatic matching is never consulted
//  2. exact normalised name; the first field in schema order wins
//  3. synonym match, ranked by alias-exact over containment, then type compatibility,
//     then fewest extra tokens, then schema order
//  4. no match
type FieldMatcher struct{}

// NewFieldMatcher creates a new field matcher.
func NewFieldMatcher() *FieldMatcher {
	return &FieldMatcher{}
}

// Resolve finds the field for key. valueType is the inferred type of the value to be
// written and is used to break ties between synonym candidates.
// Returns domain.ErrUnknownFieldReference if a mapping entry names a field that does not exist.
func (m *FieldMatcher) Resolve(
	key string,
	valueType domain.FieldType,
	index *domain.SchemaIndex,
	mapping domain.FieldMapping,
) (Resolution, error) {
	return m.ResolveExcluding(key, valueType, index, mapping, nil)
}

// ResolveExcluding is Resolve with the fields in taken (by ID) withheld from
// synonym matching. Mapped and exact-name matches ignore taken.
func (m *FieldMatcher) ResolveExcluding(
	key string,
	valueType domain.FieldType,
	index *domain.SchemaIndex,
	mapping domain.FieldMapping,
	taken map[string]bool,
) (Resolution, error) {
	key = domain.NormalizeName(key)

	if ref, ok := mapping.Target(key); ok {
		if f, ok := index.ByID(ref); ok {
			return Resolution{Field: f, Action: domain.ActionMapped}, nil
		}
		if f, ok := index.Lookup(ref); ok {
			return Resolution{Field: f, Action: domain.ActionMapped}, nil
		}
		return Resolution{Action: domain.ActionNone},
			fmt.Errorf("%w: %s -> %q", domain.ErrUnknownFieldReference, key, ref)
	}

	if f, ok := index.Lookup(key); ok {
		return Resolution{Field: f, Action: domain.ActionMatched}, nil
	}

	if f, ok := m.synonymMatch(key, valueType, index, taken); ok {
		return Resolution{Field: f, Action: domain.ActionMatched}, nil
	}

	return Resolution{Action: domain.ActionNone}, nil
}

// Direct returns the field key takes without automatic matching: its mapping
// target, or the field carrying exactly its normalised name.
func (m *FieldMatcher) Direct(key string, index *domain.SchemaIndex, mapping domain.FieldMapping) (domain.FieldDescriptor, bool) {
	key = domain.NormalizeName(key)
	if ref, ok := mapping.Target(key); ok {
		if f, ok := index.ByID(ref); ok {
			return f, true
		}
		return index.Lookup(ref)
	}
	return index.Lookup(key)
}

type candidate struct {
	field      domain.FieldDescriptor
	pos        int
	aliasExact bool
	compatible bool
	extra      int
}

func (m *FieldMatcher) synonymMatch(
	key string,
	valueType domain.FieldType,
	index *domain.SchemaIndex,
	taken map[string]bool,
) (domain.FieldDescriptor, bool) {
	groups := groupsFor(key)
	exact, contain := synonymTerms(key, groups)

	var candidates []candidate
	for pos, f := range index.Fields() {
		name := domain.NormalizeName(f.Name)
		if name == "" || taken[f.ID] {
			continue
		}
		c := candidate{field: f, pos: pos, compatible: compatible(f, valueType)}

		switch {
		case exact[name]:
			c.aliasExact = true
		case claimedElsewhere(name, groups):
			continue
		default:
			extra, ok := containment(name, contain)
			if !ok {
				continue
			}
			c.extra = extra
		}
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return domain.FieldDescriptor{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.aliasExact != b.aliasExact {
			return a.aliasExact
		}
		if a.compatible != b.compatible {
			return a.compatible
		}
		if a.extra != b.extra {
			return a.extra < b.extra
		}
		return a.pos < b.pos
	})
	return candidates[0].field, true
}

// groupsFor returns the synonym groups key belongs to, by name or alias.
func groupsFor(key string) []string {
	groups := claims[key]
	out := make([]string, len(groups))
	copy(out, groups)
	sort.Strings(out)
	return out
}

// synonymTerms returns the names that match exactly and the token sets used for
// containment. Single-word aliases only match exactly; "date" must not pull in
// every field that mentions a date.
func synonymTerms(key string, groups []string) (map[string]bool, [][]string) {
	exact := make(map[string]bool)
	contain := [][]string{domain.Tokens(key)}
	for _, g := range groups {
		terms := append([]string{g}, synonymGroups[g]...)
		for _, term := range terms {
			exact[term] = true
			if tokens := domain.Tokens(term); term == g || len(tokens) > 1 {
				contain = append(contain, tokens)
			}
		}
	}
	return exact, contain
}

// claimedElsewhere reports whether a field name belongs to a synonym group
// other than the key's own.
func claimedElsewhere(name string, groups []string) bool {
	for _, owner := range claims[name] {
		mine := false
		for _, g := range groups {
			if g == owner {
				mine = true
				break
			}
		}
		if !mine {
			return true
		}
	}
	return false
}

// containment reports whether the field's tokens include every token of one of the
// terms, and how many extra tokens the field has for the best such term.
func containment(name string, terms [][]string) (int, bool) {
	fieldTokens := domain.Tokens(name)
	have := make(map[string]bool, len(fieldTokens))
	for _, t := range fieldTokens {
		have[t] = true
	}

	best, found := 0, false
	for _, term := range terms {
		if len(term) == 0 {
			continue
		}
		all := true
		for _, t := range term {
			if !have[t] {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		extra := len(fieldTokens) - len(term)
		if !found || extra < best {
			best, found = extra, true
		}
	}
	return best, found
}

// compatible reports whether a value of type valueType can be written to f without
// a type mismatch. Enumerated fields take text that names one of their options.
func compatible(f domain.FieldDescriptor, valueType domain.FieldType) bool {
	if f.IsEnumerated() {
		return valueType == domain.FieldShortText
	}
	return f.Type.Accepts(valueType)
}
