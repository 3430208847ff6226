package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/engine"
	"github.com/roach88/prodsys/internal/reorder"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxElaborations, c.MaxElaborations)
	assert.Equal(t, DefaultMaxDecisions, c.MaxDecisions)
	assert.True(t, c.NCCs())
	assert.Equal(t, engine.SupportAutomatic, c.Support())
	assert.Nil(t, c.Branching())
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "text", c.Log.Format)
	assert.Empty(t, c.TraceDB)
}

func TestParse_AllFields(t *testing.T) {
	c, err := Parse([]byte(`
support_mode: o-support
branching_factors:
  color: 3
  size: 2
reorder_nccs: false
max_elaborations: 7
max_decisions: 3
trace_db: trace.db
log:
  level: debug
  format: json
  add_source: true
`))
	require.NoError(t, err)

	assert.Equal(t, engine.SupportOperator, c.Support())
	assert.Equal(t, reorder.BranchingFactors{"color": 3, "size": 2}, c.Branching())
	assert.False(t, c.NCCs())
	assert.Equal(t, 7, c.MaxElaborations)
	assert.Equal(t, 3, c.MaxDecisions)
	assert.Equal(t, "trace.db", c.TraceDB)
	assert.True(t, c.Log.AddSource)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("max_elaboration: 5\n"))
	assert.Error(t, err)
}

func TestValidate_CollectsEveryError(t *testing.T) {
	c := &Config{
		SupportMode:      "sometimes",
		BranchingFactors: map[string]int{"b": 0, "a": -1},
		MaxElaborations:  -1,
		MaxDecisions:     -2,
		Log:              LogConfig{Level: "loud", Format: "xml"},
	}

	errs := c.Validate()

	var fields, codes []string
	for _, e := range errs {
		fields = append(fields, e.Field)
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{
		"support_mode",
		"branching_factors.a",
		"branching_factors.b",
		"max_elaborations",
		"max_decisions",
		"log.level",
		"log.format",
	}, fields)
	assert.Equal(t, []string{
		ErrInvalidSupportMode,
		ErrInvalidBranching,
		ErrInvalidBranching,
		ErrInvalidQuota,
		ErrInvalidDecisionLimit,
		ErrInvalidLogLevel,
		ErrInvalidLogFormat,
	}, codes)
	assert.Equal(t, "[C101] support_mode: unknown mode \"sometimes\" (want automatic, i-support or o-support)", errs[0].Error())
}

func TestParse_ReportsValidationErrors(t *testing.T) {
	_, err := Parse([]byte("support_mode: never\nlog: {format: xml}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C101")
	assert.Contains(t, err.Error(), "C105")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_decisions: 9\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, c.MaxDecisions)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "production", "p1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"production":"p1"`)
}
