package symtab

import (
	"fmt"
	"hash/fnv"
	"math"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

type idKey struct {
	letter byte
	number uint64
}

// Table interns symbols for one agent.
//
// Every constructor returns a symbol with one reference held by the caller.
// Release removes a symbol from the table when its count reaches zero.
// A Table is not safe for concurrent use; the engine is single-threaded.
type Table struct {
	strs   map[string]*Symbol
	ints   map[int64]*Symbol
	floats map[uint64]*Symbol // keyed by IEEE bits so -0 and NaN stay distinct
	vars   map[string]*Symbol
	ids    map[idKey]*Symbol

	idCounters [26]uint64
	varCounter uint64
	strCounter uint64
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{
		strs:   make(map[string]*Symbol),
		ints:   make(map[int64]*Symbol),
		floats: make(map[uint64]*Symbol),
		vars:   make(map[string]*Symbol),
		ids:    make(map[idKey]*Symbol),
	}
}

// Str interns a string constant. The text is NFC-normalized first so that
// composed and decomposed spellings intern to the same symbol.
func (t *Table) Str(text string) *Symbol {
	text = norm.NFC.String(text)
	if s, ok := t.strs[text]; ok {
		s.refs++
		return s
	}
	s := &Symbol{kind: StrConstantKind, str: text, refs: 1}
	s.hash = hashOf(StrConstantKind, text)
	t.strs[text] = s
	return s
}

// Int interns an integer constant.
func (t *Table) Int(v int64) *Symbol {
	if s, ok := t.ints[v]; ok {
		s.refs++
		return s
	}
	s := &Symbol{kind: IntConstantKind, i: v, refs: 1}
	s.hash = hashOf(IntConstantKind, strconv.FormatInt(v, 10))
	t.ints[v] = s
	return s
}

// Float interns a float constant.
func (t *Table) Float(v float64) *Symbol {
	bits := math.Float64bits(v)
	if s, ok := t.floats[bits]; ok {
		s.refs++
		return s
	}
	s := &Symbol{kind: FloatConstantKind, f: v, refs: 1}
	s.hash = hashOf(FloatConstantKind, strconv.FormatFloat(v, 'g', -1, 64))
	t.floats[bits] = s
	return s
}

// Var interns a variable. name must include the angle brackets.
func (t *Table) Var(name string) *Symbol {
	if s, ok := t.vars[name]; ok {
		s.refs++
		return s
	}
	s := &Symbol{kind: VariableKind, str: name, refs: 1}
	s.hash = hashOf(VariableKind, "")
	t.vars[name] = s
	return s
}

// NewIdentifier creates a fresh identifier named by letter at the given
// goal-stack level. Non-alphabetic letters become 'I'; lower case is raised.
func (t *Table) NewIdentifier(letter byte, level int) *Symbol {
	letter = normalizeLetter(letter)
	idx := letter - 'A'
	t.idCounters[idx]++
	key := idKey{letter: letter, number: t.idCounters[idx]}
	for t.ids[key] != nil {
		t.idCounters[idx]++
		key.number = t.idCounters[idx]
	}
	s := &Symbol{kind: IdentifierKind, letter: letter, number: key.number, level: level, refs: 1}
	s.hash = hashOf(IdentifierKind, string(letter)+strconv.FormatUint(key.number, 10))
	t.ids[key] = s
	return s
}

// FindIdentifier returns an existing identifier without taking a reference.
func (t *Table) FindIdentifier(letter byte, number uint64) *Symbol {
	return t.ids[idKey{letter: normalizeLetter(letter), number: number}]
}

// FindStr returns an existing string constant without taking a reference.
func (t *Table) FindStr(text string) *Symbol {
	return t.strs[norm.NFC.String(text)]
}

// FindInt returns an existing integer constant without taking a reference.
func (t *Table) FindInt(v int64) *Symbol {
	return t.ints[v]
}

// GenerateVariable returns a variable that does not exist yet, named
// <prefix-N>.
func (t *Table) GenerateVariable(prefix string) *Symbol {
	for {
		t.varCounter++
		name := fmt.Sprintf("<%s%d>", prefix, t.varCounter)
		if _, taken := t.vars[name]; !taken {
			return t.Var(name)
		}
	}
}

// GenerateConstant returns a string constant that does not exist yet,
// named prefixN.
func (t *Table) GenerateConstant(prefix string) *Symbol {
	if prefix == "" {
		prefix = "constant"
	}
	for {
		t.strCounter++
		name := prefix + strconv.FormatUint(t.strCounter, 10)
		if _, taken := t.strs[name]; !taken {
			return t.Str(name)
		}
	}
}

// Retain takes an additional reference and returns s for convenience.
func (t *Table) Retain(s *Symbol) *Symbol {
	if s != nil {
		s.refs++
	}
	return s
}

// Release gives back one reference. The symbol leaves the table when the
// count reaches zero. Releasing a symbol with no references panics: it means
// an ownership transfer was counted twice.
func (t *Table) Release(s *Symbol) {
	if s == nil {
		return
	}
	if s.refs <= 0 {
		panic(fmt.Sprintf("symtab: release of %s with refcount %d", s, s.refs))
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	switch s.kind {
	case StrConstantKind:
		delete(t.strs, s.str)
	case IntConstantKind:
		delete(t.ints, s.i)
	case FloatConstantKind:
		delete(t.floats, math.Float64bits(s.f))
	case VariableKind:
		delete(t.vars, s.str)
	case IdentifierKind:
		delete(t.ids, idKey{letter: s.letter, number: s.number})
	}
}

// Live returns the number of symbols currently interned.
// Tests use it to audit reference counting across a fire/retract cycle.
func (t *Table) Live() int {
	return len(t.strs) + len(t.ints) + len(t.floats) + len(t.vars) + len(t.ids)
}

func normalizeLetter(letter byte) byte {
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		letter = 'I'
	}
	return letter
}

func hashOf(kind Kind, text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(kind)})
	h.Write([]byte(text))
	return h.Sum64()
}
