package domain

// SchemaIndex maps normalised field names to the custom fields of one list.
// It is built fresh for every reconciliation call and never shared between calls.
type SchemaIndex struct {
	// ListID is the list the fields belong to.
	ListID string

	fields []FieldDescriptor
	byName map[string]int
	byID   map[string]int
}

// NewSchemaIndex builds an index from fields in the order the remote returned them.
// When two fields normalise to the same name, the first one wins the name lookup;
// both remain reachable by ID.
func NewSchemaIndex(listID string, fields []FieldDescriptor) *SchemaIndex {
	idx := &SchemaIndex{
		ListID: listID,
		byName: make(map[string]int, len(fields)),
		byID:   make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		idx.Add(f)
	}
	return idx
}

// Add appends a field, e.g. one created during the current call.
func (s *SchemaIndex) Add(f FieldDescriptor) {
	if _, dup := s.byID[f.ID]; dup && f.ID != "" {
		return
	}
	pos := len(s.fields)
	s.fields = append(s.fields, f)
	if f.ID != "" {
		s.byID[f.ID] = pos
	}
	name := NormalizeName(f.Name)
	if _, taken := s.byName[name]; !taken && name != "" {
		s.byName[name] = pos
	}
}

// Lookup finds a field by normalised name.
func (s *SchemaIndex) Lookup(name string) (FieldDescriptor, bool) {
	pos, ok := s.byName[NormalizeName(name)]
	if !ok {
		return FieldDescriptor{}, false
	}
	return s.fields[pos], true
}

// ByID finds a field by its remote ID.
func (s *SchemaIndex) ByID(id string) (FieldDescriptor, bool) {
	pos, ok := s.byID[id]
	if !ok {
		return FieldDescriptor{}, false
	}
	return s.fields[pos], true
}

// Fields returns all fields in schema order.
func (s *SchemaIndex) Fields() []FieldDescriptor {
	out := make([]FieldDescriptor, len(s.fields))
	copy(out, s.fields)
	return out
}

// Len returns the number of fields.
func (s *SchemaIndex) Len() int {
	return len(s.fields)
}
