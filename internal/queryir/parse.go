package queryir

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFilter turns field=value expressions into a conjunction of Equals
// predicates over src. Values are converted to the field's kind.
func ParseFilter(src Source, exprs []string) (Predicate, error) {
	preds := make([]Predicate, 0, len(exprs))
	for _, expr := range exprs {
		name, raw, ok := strings.Cut(expr, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: want field=value", expr)
		}
		f, ok := src.Field(name)
		if !ok {
			return nil, fmt.Errorf("%q: %s has no field %q (fields: %s)",
				expr, src.Name, name, strings.Join(src.FieldNames(), ", "))
		}
		value, err := parseValue(f, strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", expr, err)
		}
		preds = append(preds, Equals{Field: name, Value: value})
	}
	return Conjoin(preds...), nil
}

func parseValue(f Field, raw string) (any, error) {
	switch f.Kind {
	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s is an integer field", f.Name)
		}
		return n, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s is a boolean field", f.Name)
		}
		return b, nil
	}
	return raw, nil
}
