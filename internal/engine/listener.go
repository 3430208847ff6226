package engine

import "github.com/roach88/prodsys/internal/ir"

// Listener observes lifecycle transitions. Each callback runs after the
// transition is committed.
type Listener interface {
	ProductionFired(inst *ir.Instantiation)
	ProductionRetracted(inst *ir.Instantiation)
}

// DeallocationListener is implemented by listeners that also want to see
// instantiations being deallocated.
type DeallocationListener interface {
	InstantiationDeallocated(inst *ir.Instantiation)
}

// ExciseListener is implemented by listeners that track excised
// productions, such as the match network driver.
type ExciseListener interface {
	ProductionExcised(p *ir.Production)
}

func (e *Engine) notifyFired(inst *ir.Instantiation) {
	for _, l := range e.listeners {
		l.ProductionFired(inst)
	}
}

func (e *Engine) notifyRetracted(inst *ir.Instantiation) {
	for _, l := range e.listeners {
		l.ProductionRetracted(inst)
	}
}

func (e *Engine) notifyDeallocated(inst *ir.Instantiation) {
	for _, l := range e.listeners {
		if dl, ok := l.(DeallocationListener); ok {
			dl.InstantiationDeallocated(inst)
		}
	}
}

func (e *Engine) notifyExcised(p *ir.Production) {
	for _, l := range e.listeners {
		if xl, ok := l.(ExciseListener); ok {
			xl.ProductionExcised(p)
		}
	}
}

// FailureListener is implemented by listeners that record failed actions.
type FailureListener interface {
	ActionFailed(inst *ir.Instantiation, err *RuntimeError)
}

func (e *Engine) notifyFailed(inst *ir.Instantiation, err *RuntimeError) {
	for _, l := range e.listeners {
		if fl, ok := l.(FailureListener); ok {
			fl.ActionFailed(inst, err)
		}
	}
}
