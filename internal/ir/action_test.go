package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePreference(t *testing.T) {
	tests := []struct {
		sym     string
		binary  bool
		numeric bool
		want    PreferenceType
		ok      bool
	}{
		{"", false, false, AcceptablePref, true},
		{"+", false, false, AcceptablePref, true},
		{"+", true, false, AcceptablePref, false},
		{"!", false, false, RequirePref, true},
		{"-", false, false, RejectPref, true},
		{"~", false, false, ProhibitPref, true},
		{">", false, false, BestPref, true},
		{">", true, false, BetterPref, true},
		{"<", false, false, WorstPref, true},
		{"<", true, false, WorsePref, true},
		{"=", false, false, UnaryIndifferentPref, true},
		{"=", true, false, BinaryIndifferentPref, true},
		{"=", true, true, NumericIndifferentPref, true},
		{"&", false, false, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePreference(tt.sym, tt.binary, tt.numeric)
		assert.Equal(t, tt.ok, ok, "%q binary=%v", tt.sym, tt.binary)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%q binary=%v numeric=%v", tt.sym, tt.binary, tt.numeric)
		}
	}
}

func TestPreferenceType_SymbolRoundTrip(t *testing.T) {
	for typ := range preferenceNames {
		got, ok := ParsePreference(typ.Symbol(), typ.IsBinary(), typ == NumericIndifferentPref)
		assert.True(t, ok, typ.String())
		assert.Equal(t, typ, got, typ.String())
	}
}

func TestPreferenceType_Names(t *testing.T) {
	assert.Equal(t, "acceptable", AcceptablePref.String())
	assert.Equal(t, "numeric-indifferent", NumericIndifferentPref.String())
	assert.Equal(t, "unknown", PreferenceType(0).String())
	assert.Equal(t, "?", PreferenceType(0).Symbol())
}

func TestPreferenceType_IsBinary(t *testing.T) {
	binary := []PreferenceType{BetterPref, WorsePref, BinaryIndifferentPref, NumericIndifferentPref}
	for typ := range preferenceNames {
		assert.Equal(t, contains(binary, typ), typ.IsBinary(), typ.String())
	}
}

func contains(ts []PreferenceType, t PreferenceType) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}
