package queryir

import "fmt"

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err returns the problems as one error, or nil for a valid query.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	if len(r.Errors) == 1 {
		return fmt.Errorf("invalid query: %s", r.Errors[0])
	}
	return fmt.Errorf("invalid query: %s (and %d more)", r.Errors[0], len(r.Errors)-1)
}

// Validate checks that a query names a known source, known fields and
// literals of the right kind.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{Valid: len(v.errors) == 0, Errors: v.errors}
}

// validator accumulates errors during traversal.
type validator struct {
	errors []string
	src    Source
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addError("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	src, ok := LookupSource(sel.From)
	if !ok {
		v.addError("unknown source %q", sel.From)
		return
	}
	v.src = src

	seen := make(map[string]bool, len(sel.Fields))
	for _, name := range sel.Fields {
		if _, ok := src.Field(name); !ok {
			v.addError("%s has no field %q", src.Name, name)
		}
		if seen[name] {
			v.addError("field %q selected twice", name)
		}
		seen[name] = true
	}
	v.validatePredicate(sel.Filter)
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case BoundEquals:
		v.validateBound(pred)
	case *BoundEquals:
		v.validateBound(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	default:
		v.addError("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	f, ok := v.src.Field(eq.Field)
	if !ok {
		v.addError("%s has no field %q", v.src.Name, eq.Field)
		return
	}
	var got FieldKind
	switch eq.Value.(type) {
	case string:
		got = KindString
	case int64:
		got = KindInt
	case bool:
		got = KindBool
	case nil:
		v.addError("field %q compared to null", eq.Field)
		return
	default:
		v.addError("field %q compared to unsupported %T", eq.Field, eq.Value)
		return
	}
	if got != f.Kind {
		v.addError("field %q is %s, compared to %s", eq.Field, f.Kind, got)
	}
}

func (v *validator) validateBound(b BoundEquals) {
	if _, ok := v.src.Field(b.Field); !ok {
		v.addError("%s has no field %q", v.src.Name, b.Field)
	}
	if b.Param == "" {
		v.addError("field %q bound to an unnamed parameter", b.Field)
	}
}
