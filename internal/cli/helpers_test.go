package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const countRules = `production: "count*init": {
	support: "o"
	lhs: [
		{id: "<s>", goal: true, attr: "start", value: "yes"},
		{id: "<s>", attr: "count", value: "*", negated: true},
	]
	rhs: [{id: "<s>", attr: "count", value: 0}]
}

production: "count*propose": {
	lhs: [{id: "<s>", goal: true, attr: "count", value: "{ <n> < 3 }"}]
	rhs: [
		{id: "<s>", attr: "operator", value: "<o>", pref: "+"},
		{id: "<o>", attr: "name", value: "increment"},
		{id: "<o>", attr: "number", value: "<n>"},
	]
}

production: "count*apply": {
	support: "o"
	lhs: [
		{id: "<s>", goal: true, attr: "operator", value: "<o>"},
		{id: "<o>", attr: "name", value: "increment"},
		{id: "<o>", attr: "number", value: "<n>"},
		{id: "<s>", attr: "count", value: "<n>"},
	]
	rhs: [
		{id: "<s>", attr: "count", value: "<n>", pref: "-"},
		{id: "<s>", attr: "count", value: "(+ <n> 1)"},
	]
}

production: "count*done": {
	lhs: [{id: "<s>", goal: true, attr: "count", value: "{ <n> >= 3 }"}]
	rhs: [
		{call: "(write |done at | <n> (crlf))"},
		{call: "(halt)"},
	]
}
`

const seenRules = `production: seen: {
	lhs: [{id: "<s>", goal: true, attr: "color", value: "<c>"}]
	rhs: [{id: "<s>", attr: "saw", value: "<c>"}]
}
`

const chainRules = `production: seen: {
	lhs: [{id: "<s>", goal: true, attr: "color", value: "<c>"}]
	rhs: [{id: "<s>", attr: "saw", value: "<c>"}]
}

production: told: {
	lhs: [{id: "<s>", goal: true, attr: "saw", value: "<c>"}]
	rhs: [{id: "<s>", attr: "told", value: "<c>"}]
}
`

// writeFile writes content to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
