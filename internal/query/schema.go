package query

// Schema is the per-collection allow-list: which fields may be filtered and
// sorted on, their kinds, and which fields keyword search covers.
type Schema struct {
	Fields       map[string]Kind
	SearchFields []string
	// DefaultSort uses the same syntax as the sort parameter.
	DefaultSort string
}

var baseFields = map[string]Kind{
	FieldID:        KindID,
	FieldCreatedAt: KindTime,
	FieldUpdatedAt: KindTime,
}

// Kind returns the declared kind of field, including the fields every
// document carries.
func (s Schema) Kind(field string) (Kind, bool) {
	if k, ok := s.Fields[field]; ok {
		return k, true
	}
	k, ok := baseFields[field]
	return k, ok
}

func (s Schema) defaultSort() string {
	if s.DefaultSort != "" {
		return s.DefaultSort
	}
	return "-" + FieldCreatedAt
}
