package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prodsys/internal/ir"
)

// recordChain runs the seen/told rules against color=red into a fresh
// trace database and returns the database path and run id.
func recordChain(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	rules := writeFile(t, dir, "chain.cue", chainRules)
	db := filepath.Join(dir, "trace.db")

	summary, _, err := runJSON(t, rules, "--fact", "color=red", "--db", db)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Fired)
	return db, summary.RunID
}

func TestTraceListsRuns(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)

	var resp struct {
		Data []ir.TraceRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, run, resp.Data[0].ID)
	assert.Contains(t, resp.Data[0].Source, "chain.cue")
	assert.Len(t, resp.Data[0].RulesHash, 64)
}

func TestTraceTimeline(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", db, "--run", run)
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, run, resp.Data.Run.ID)
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, "seen", resp.Data.Timeline[0].Production)
	assert.Equal(t, "told", resp.Data.Timeline[1].Production)
	assert.Equal(t, TraceStats{Events: 2, Fired: 2}, resp.Data.Stats)
}

func TestTraceTimelineText(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--run", run, "--where", "production=told")
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+run)
	assert.Contains(t, out, "[2] told")
	assert.NotContains(t, out, "[1] seen")
	assert.Contains(t, out, "1 event(s): 1 fired")
}

func TestTraceWhereCombinesFilters(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", db, "--run", run, "--where", "kind=fired", "--where", "inst_id=1")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "seen", resp.Data.Timeline[0].Production)
}

func TestTraceWhereRejectsUnknownField(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", db, "--run", run, "--where", "color=red")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `timeline has no field "color"`)
}

func TestTraceUnknownRun(t *testing.T) {
	db, _ := recordChain(t)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: run nope not found")
}

func TestTraceMissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, db)
}

func TestTraceRequiresDB(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"db" not set`)
}

func TestExplainWalksBacktrace(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewExplainCommand(&RootOptions{Format: "json"}),
		"--db", db, "--run", run, "--inst", "2")
	require.NoError(t, err)

	var resp struct {
		Data ExplainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Chain, 2)

	told := resp.Data.Chain[0]
	assert.Equal(t, "told", told.Production)
	assert.Equal(t, 0, told.Depth)
	require.Len(t, told.Matched, 1)
	assert.Contains(t, told.Matched[0].WME, "^saw red")
	assert.Equal(t, uint64(1), told.Matched[0].SourceInstID)
	require.Len(t, told.Preferences, 1)
	assert.Contains(t, told.Preferences[0].Text, "^told red")

	seen := resp.Data.Chain[1]
	assert.Equal(t, "seen", seen.Production)
	assert.Equal(t, 1, seen.Depth)
	require.Len(t, seen.Matched, 1)
	assert.Zero(t, seen.Matched[0].SourceInstID)
}

func TestExplainText(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewExplainCommand(&RootOptions{Format: "text"}),
		"--db", db, "--run", run, "--inst", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "[2] told\n")
	assert.Contains(t, out, "(from [1])")
	assert.Contains(t, out, "  [1] seen\n")
	assert.Contains(t, out, "(input)")
}

func TestExplainUnknownInstantiation(t *testing.T) {
	db, run := recordChain(t)

	out, _, err := execute(NewExplainCommand(&RootOptions{Format: "text"}),
		"--db", db, "--run", run, "--inst", "99")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "instantiation 99 not found")
}
