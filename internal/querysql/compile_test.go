package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/queryir"
)

func TestCompile_Select(t *testing.T) {
	query := queryir.Select{
		From:   queryir.Timeline,
		Fields: []string{"seq", "production"},
		Filter: queryir.Equals{Field: "kind", Value: "fired"},
	}

	sql, params, err := NewSQLCompiler().Compile(query)
	require.NoError(t, err)
	assert.Equal(t, "SELECT seq, production FROM timeline WHERE kind = ? ORDER BY seq ASC, inst_id ASC", sql)
	assert.Equal(t, []any{"fired"}, params)
	assert.NotContains(t, sql, "fired")
}

func TestCompile_AllFieldsNoFilter(t *testing.T) {
	sql, params, err := NewSQLCompiler().Compile(&queryir.Select{From: queryir.Failures})
	require.NoError(t, err)
	assert.Equal(t, "SELECT run_id, seq, inst_id, production, code, message FROM failure_log ORDER BY seq ASC, inst_id ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_BoundAndConjunction(t *testing.T) {
	query := queryir.Select{
		From: queryir.Timeline,
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.BoundEquals{Field: "run_id", Param: "run"},
			&queryir.Equals{Field: "inst_id", Value: int64(7)},
			queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "kind", Value: "retracted"},
				queryir.Equals{Field: "production", Value: "seen"},
			}},
		}},
		Fields: []string{"seq"},
	}

	sql, params, err := NewSQLCompiler().Bind("run", "r-1").Compile(query)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT seq FROM timeline WHERE run_id = ? AND inst_id = ? AND (kind = ? AND production = ?) ORDER BY seq ASC, inst_id ASC",
		sql)
	assert.Equal(t, []any{"r-1", int64(7), "retracted", "seen"}, params)
}

func TestCompile_EmptyAnd(t *testing.T) {
	sql, _, err := NewSQLCompiler().Compile(queryir.Select{From: queryir.Timeline, Fields: []string{"seq"}, Filter: queryir.And{}})
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE 1 = 1")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query queryir.Query
		want  string
	}{
		{"nil", nil, "nil query"},
		{"unknown source", queryir.Select{From: "runs"}, `unknown source "runs"`},
		{"unbound parameter", queryir.Select{
			From:   queryir.Timeline,
			Filter: queryir.BoundEquals{Field: "run_id", Param: "run"},
		}, `parameter "run" is not bound`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewSQLCompiler().Compile(tt.query)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValueToParam(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"x", "x"},
		{int64(-3), int64(-3)},
		{4, int64(4)},
		{uint64(9), int64(9)},
		{true, int64(1)},
		{false, int64(0)},
	}
	for _, tt := range tests {
		got, err := valueToParam(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := valueToParam(1.5)
	assert.ErrorContains(t, err, "unsupported parameter type float64")
}
