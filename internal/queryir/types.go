package queryir

// Query is a trace query. Sealed.
type Query interface {
	queryNode()
}

// Predicate is a row filter. Sealed.
//
// Predicate types:
//   - Equals: field = literal
//   - BoundEquals: field = parameter supplied at compile time
//   - And: all predicates must hold
//
// There is no OR. Callers run two queries instead.
type Predicate interface {
	predicateNode()
}

// Select reads Fields from the rows of a source that satisfy Filter.
//
//	Select{
//	  From:   "timeline",
//	  Filter: And{Predicates: []Predicate{
//	    BoundEquals{Field: "run_id", Param: "run"},
//	    Equals{Field: "kind", Value: "fired"},
//	  }},
//	  Fields: []string{"seq", "inst_id", "production"},
//	}
//
// An empty Fields selects every field of the source in declaration order.
// Rows always come back in the source's order.
type Select struct {
	From   string
	Filter Predicate // nil matches every row
	Fields []string
}

func (Select) queryNode() {}

// Equals compares a field to a literal. Value is a string, int64 or bool
// matching the field's kind.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// BoundEquals compares a field to a named parameter whose value is bound
// by the backend, such as the run id of the trace being read.
type BoundEquals struct {
	Field string
	Param string
}

func (BoundEquals) predicateNode() {}

// And is a conjunction. An empty And matches every row.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Conjoin returns the conjunction of preds, skipping nils and flattening
// nested Ands. It returns nil when nothing is left.
func Conjoin(preds ...Predicate) Predicate {
	var out []Predicate
	for _, p := range preds {
		switch pp := p.(type) {
		case nil:
		case And:
			if flat := Conjoin(pp.Predicates...); flat != nil {
				out = append(out, flatten(flat)...)
			}
		case *And:
			if pp == nil {
				continue
			}
			if flat := Conjoin(pp.Predicates...); flat != nil {
				out = append(out, flatten(flat)...)
			}
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return And{Predicates: out}
}

func flatten(p Predicate) []Predicate {
	if and, ok := p.(And); ok {
		return and.Predicates
	}
	return []Predicate{p}
}
