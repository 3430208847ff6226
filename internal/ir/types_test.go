package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionType_RoundTrip(t *testing.T) {
	for _, typ := range ProductionTypes {
		got, err := ParseProductionType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	got, err := ParseProductionType("")
	require.NoError(t, err)
	assert.Equal(t, UserProduction, got)

	_, err = ParseProductionType("macro")
	assert.ErrorContains(t, err, `unknown production type "macro"`)
	assert.Equal(t, "unknown", ProductionType(0).String())
}

func TestSupportDeclaration_Parse(t *testing.T) {
	tests := []struct {
		in   string
		want SupportDeclaration
	}{
		{"", SupportUnspecified},
		{"i", DeclaredISupport},
		{"i-support", DeclaredISupport},
		{"o", DeclaredOSupport},
		{"o-support", DeclaredOSupport},
	}
	for _, tt := range tests {
		got, err := ParseSupportDeclaration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSupportDeclaration("x")
	assert.Error(t, err)
	assert.Equal(t, "o", DeclaredOSupport.String())
	assert.Equal(t, "", SupportUnspecified.String())
}
