package queryir

import "slices"

// FieldKind is the value type of a source field.
type FieldKind uint8

const (
	KindString FieldKind = iota + 1
	KindInt
	KindBool
)

func (k FieldKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	}
	return "unknown"
}

// Field is one column of a source.
type Field struct {
	Name string
	Kind FieldKind
}

// Source is a queryable relation of the trace store.
type Source struct {
	Name   string
	Fields []Field

	// Order is the total order rows are returned in.
	Order []string
}

// Field returns the named field.
func (s Source) Field(name string) (Field, bool) {
	i := slices.IndexFunc(s.Fields, func(f Field) bool { return f.Name == name })
	if i < 0 {
		return Field{}, false
	}
	return s.Fields[i], true
}

// FieldNames lists the source's fields in declaration order.
func (s Source) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Source names.
const (
	Timeline = "timeline"
	Failures = "failure_log"
)

var sources = map[string]Source{
	Timeline: {
		Name: Timeline,
		Fields: []Field{
			{"run_id", KindString},
			{"seq", KindInt},
			{"kind", KindString},
			{"inst_id", KindInt},
			{"production", KindString},
			{"match_goal_level", KindInt},
		},
		Order: []string{"seq", "inst_id"},
	},
	Failures: {
		Name: Failures,
		Fields: []Field{
			{"run_id", KindString},
			{"seq", KindInt},
			{"inst_id", KindInt},
			{"production", KindString},
			{"code", KindString},
			{"message", KindString},
		},
		Order: []string{"seq", "inst_id"},
	},
}

// LookupSource returns the named source.
func LookupSource(name string) (Source, bool) {
	s, ok := sources[name]
	return s, ok
}

// Restrict keeps the conjuncts of p that only use fields of src, so one
// filter can be applied to several sources. It returns nil when nothing
// applies.
func Restrict(p Predicate, src Source) Predicate {
	switch pp := p.(type) {
	case nil:
		return nil
	case Equals:
		if _, ok := src.Field(pp.Field); ok {
			return pp
		}
		return nil
	case *Equals:
		return Restrict(*pp, src)
	case BoundEquals:
		if _, ok := src.Field(pp.Field); ok {
			return pp
		}
		return nil
	case *BoundEquals:
		return Restrict(*pp, src)
	case And:
		var kept []Predicate
		for _, sub := range pp.Predicates {
			if r := Restrict(sub, src); r != nil {
				kept = append(kept, r)
			}
		}
		return Conjoin(kept...)
	case *And:
		return Restrict(*pp, src)
	}
	return nil
}
