package symtab

import (
	"strconv"
	"strings"
)

// Constant interns text as an integer or float constant when it parses as
// one, and as a string constant otherwise. The caller owns the reference.
func (t *Table) Constant(text string) *Symbol {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return t.Int(i)
	}
	if strings.ContainsAny(text, ".eE") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return t.Float(f)
		}
	}
	return t.Str(text)
}

// FindIdentifierName returns the existing identifier written as "S1", or
// nil. No reference is taken.
func (t *Table) FindIdentifierName(name string) *Symbol {
	if len(name) < 2 {
		return nil
	}
	letter := name[0]
	if letter < 'A' || letter > 'Z' {
		return nil
	}
	n, err := strconv.ParseUint(name[1:], 10, 64)
	if err != nil {
		return nil
	}
	return t.FindIdentifier(letter, n)
}
