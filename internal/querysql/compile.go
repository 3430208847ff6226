// Package querysql compiles trace queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/prodsys/internal/queryir"
)

// SQLCompiler compiles queryir queries to SQL for the trace store.
//
// Every query ends in ORDER BY over the source's total order with
// COLLATE BINARY on text keys. Values are always parameters, never
// interpolated.
type SQLCompiler struct {
	// BoundValues holds the values of BoundEquals parameters.
	BoundValues map[string]any
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{BoundValues: make(map[string]any)}
}

// Bind sets a parameter value and returns c.
func (c *SQLCompiler) Bind(param string, value any) *SQLCompiler {
	c.BoundValues[param] = value
	return c
}

// Compile converts a query to SQL and its parameters. The query is
// validated first.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q).Err(); err != nil {
		return "", nil, err
	}
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	}
	return "", nil, fmt.Errorf("unsupported query type: %T", q)
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	src, _ := queryir.LookupSource(q.From)

	fields := q.Fields
	if len(fields) == 0 {
		fields = src.FieldNames()
	}

	var (
		where  string
		params []any
	)
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = " WHERE " + filterSQL
		params = filterParams
	}

	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s",
		strings.Join(fields, ", "),
		src.Name,
		where,
		orderBy(src))
	return sql, params, nil
}

// orderBy renders the source's total order.
func orderBy(src queryir.Source) string {
	parts := make([]string, len(src.Order))
	for i, name := range src.Order {
		f, _ := src.Field(name)
		if f.Kind == queryir.KindString {
			parts[i] = name + " COLLATE BINARY ASC"
		} else {
			parts[i] = name + " ASC"
		}
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.BoundEquals:
		return c.compileBoundEquals(pred)
	case *queryir.BoundEquals:
		return c.compileBoundEquals(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	}
	return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
}

func compileEquals(eq queryir.Equals) (string, []any, error) {
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

// compileBoundEquals looks the parameter up in BoundValues. An unbound
// parameter is an error.
func (c *SQLCompiler) compileBoundEquals(beq queryir.BoundEquals) (string, []any, error) {
	val, ok := c.BoundValues[beq.Param]
	if !ok {
		return "", nil, fmt.Errorf("parameter %q is not bound", beq.Param)
	}
	param, err := valueToParam(val)
	if err != nil {
		return "", nil, fmt.Errorf("parameter %q: %w", beq.Param, err)
	}
	return beq.Field + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(queryir.And); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// valueToParam converts a literal to a database/sql parameter. Booleans
// are stored as 0 and 1.
func valueToParam(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("unsupported parameter type %T", v)
}
