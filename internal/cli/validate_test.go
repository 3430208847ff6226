package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidRules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "count.cue", countRules)
	writeFile(t, dir, "seen.cue", seenRules)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 5 production(s) in 2 file(s) are valid")
}

func TestValidateValidRulesJSON(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "count.cue", countRules)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), rules)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 4, resp.Data.Productions)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestValidateReportsEveryError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_broken.cue", "production: broken: {\n")
	writeFile(t, dir, "b_loose.cue", `production: loose: {
	lhs: [{id: "<x>", attr: "a", value: "b"}]
	rhs: [{id: "<x>", attr: "c", value: "d"}]
}
`)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[E004]")
	assert.Contains(t, out, "[E105] loose")
	assert.Contains(t, out, "✗ 2 error(s) in 2 file(s)")
}

func TestValidateDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.cue", seenRules)
	writeFile(t, dir, "two.cue", seenRules)

	out, _, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, "E101", resp.Data.Errors[0].Code)
}
