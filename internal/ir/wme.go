package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/prodsys/internal/symtab"
)

// WME is a working-memory element: one (identifier ^attribute value) triple
// currently believed true.
type WME struct {
	ID    *symtab.Symbol
	Attr  *symtab.Symbol
	Value *symtab.Symbol

	// Acceptable marks an acceptable-preference element (S1 ^operator O1 +).
	Acceptable bool

	// Timetag orders elements by creation and identifies them in tokens.
	Timetag uint64

	// Pref is the preference that put this element in memory, nil for
	// input and architecture elements.
	Pref *Preference
}

// FieldSymbol returns the symbol in field f.
func (w *WME) FieldSymbol(f Field) *symtab.Symbol {
	switch f {
	case FieldID:
		return w.ID
	case FieldAttr:
		return w.Attr
	default:
		return w.Value
	}
}

// String renders the element as "(12: S1 ^foo 1)".
func (w *WME) String() string {
	acc := ""
	if w.Acceptable {
		acc = " +"
	}
	return fmt.Sprintf("(%d: %s ^%s %s%s)", w.Timetag, w.ID, w.Attr, w.Value, acc)
}

// Token is one match of a production: the element matched by each top-level
// condition, in condition order. Entries for negative conditions and
// conjunctive negations are nil.
type Token []*WME

// TokenKey identifies a (production, token) pair for refraction.
func TokenKey(p *Production, tok Token) string {
	var b strings.Builder
	b.WriteString(p.Name)
	b.WriteByte('|')
	for i, w := range tok {
		if i > 0 {
			b.WriteByte(',')
		}
		if w == nil {
			b.WriteByte('-')
			continue
		}
		b.WriteString(strconv.FormatUint(w.Timetag, 10))
	}
	return b.String()
}
