package agent

import (
	"fmt"
	"sync"
)

// InputOp says what an Input does to working memory.
type InputOp int

const (
	// InputAdd adds a fact.
	InputAdd InputOp = iota + 1
	// InputRemove removes a fact added earlier.
	InputRemove
)

// String returns "add" or "remove".
func (op InputOp) String() string {
	switch op {
	case InputAdd:
		return "add"
	case InputRemove:
		return "remove"
	}
	return fmt.Sprintf("InputOp(%d)", int(op))
}

// Input is one pending change to the input facts.
//
// ID names an existing identifier ("S1"); empty means the top goal. Attr
// and Value are parsed as constants, except that a Value naming an existing
// identifier refers to it.
type Input struct {
	Op    InputOp
	ID    string
	Attr  string
	Value string
}

// String renders the input as "+(S1 ^color red)" or "-(S1 ^color red)".
func (in Input) String() string {
	sign := "+"
	if in.Op == InputRemove {
		sign = "-"
	}
	id := in.ID
	if id == "" {
		id = "<top>"
	}
	return fmt.Sprintf("%s(%s ^%s %s)", sign, id, in.Attr, in.Value)
}

// inputQueue is a FIFO of pending inputs.
//
// Producers may enqueue from any goroutine; the agent drains it between
// decisions from the goroutine that calls Run.
type inputQueue struct {
	mu     sync.Mutex
	inputs []Input
	closed bool
}

func newInputQueue() *inputQueue {
	return &inputQueue{inputs: make([]Input, 0, 16)}
}

// Enqueue appends in. It returns false after Close.
func (q *inputQueue) Enqueue(in Input) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.inputs = append(q.inputs, in)
	return true
}

// Drain removes and returns every pending input in arrival order.
func (q *inputQueue) Drain() []Input {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.inputs) == 0 {
		return nil
	}
	out := q.inputs
	q.inputs = make([]Input, 0, cap(out))
	return out
}

// Len returns the number of pending inputs.
func (q *inputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inputs)
}

// Close rejects further inputs. Pending inputs can still be drained.
func (q *inputQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
