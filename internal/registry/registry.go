// Package registry is the reference-counted catalog of registered
// productions.
//
// A production is registered after it has been reordered. Registration
// encodes its right-hand side, computes its fingerprint and takes the
// membership reference. Every instantiation of the production holds one
// more reference until it is deallocated. When the count reaches zero the
// production's symbols are released.
//
// INVARIANTS:
//   - Declaration order never changes for registered productions
//   - Names are unique
//   - RefCount >= LiveInstantiations + membership (0 or 1)
package registry

import (
	"container/list"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/prodsys/internal/ir"
	"github.com/roach88/prodsys/internal/rhs"
	"github.com/roach88/prodsys/internal/symtab"
)

var (
	// ErrDuplicate is returned, with the existing production, when a
	// structurally identical production is already registered.
	ErrDuplicate = errors.New("duplicate production")

	// ErrNameInUse is returned when another production has the same name.
	ErrNameInUse = errors.New("production name already in use")

	// ErrNotFound is returned by lookups of unknown names.
	ErrNotFound = errors.New("production not found")
)

// Registry holds productions by name, by type and in declaration order.
// It is not safe for concurrent use; the engine mutates it from a single
// goroutine.
type Registry struct {
	syms   *symtab.Table
	lib    *rhs.Library
	logger *slog.Logger

	byName        map[string]*ir.Production
	byFingerprint map[string]*ir.Production
	byType        map[ir.ProductionType][]*ir.Production
	order         []*ir.Production
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates an empty registry that encodes right-hand sides against lib.
func New(syms *symtab.Table, lib *rhs.Library, opts ...Option) *Registry {
	r := &Registry{
		syms:          syms,
		lib:           lib,
		logger:        slog.Default(),
		byName:        make(map[string]*ir.Production),
		byFingerprint: make(map[string]*ir.Production),
		byType:        make(map[ir.ProductionType][]*ir.Production),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register encodes and catalogs a reordered production.
//
// When a structurally identical production exists, Register increments its
// duplicate counter and returns it together with ErrDuplicate. p is not
// registered in that case or on any other error; the caller still owns it
// and releases it with p.Release.
func (r *Registry) Register(p *ir.Production) (*ir.Production, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("register: production has no name")
	}
	if _, taken := r.byName[p.Name]; taken {
		return nil, fmt.Errorf("register %s: %w", p.Name, ErrNameInUse)
	}
	if p.Type == 0 {
		p.Type = ir.UserProduction
	}
	if err := rhs.Encode(r.syms, p, r.lib); err != nil {
		return nil, fmt.Errorf("register %s: %w", p.Name, err)
	}
	fp, err := ir.Fingerprint(p)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", p.Name, err)
	}
	if existing, ok := r.byFingerprint[fp]; ok {
		existing.DuplicateCount++
		r.logger.Warn("ignoring duplicate production",
			"production", p.Name,
			"existing", existing.Name)
		return existing, ErrDuplicate
	}

	p.Fingerprint = fp
	p.Instantiations = list.New()
	p.AddRef()

	r.byName[p.Name] = p
	r.byFingerprint[fp] = p
	r.byType[p.Type] = append(r.byType[p.Type], p)
	r.order = append(r.order, p)

	r.logger.Debug("production registered",
		"production", p.Name,
		"type", p.Type.String(),
		"fingerprint", fp[:12])
	return p, nil
}

// Lookup returns the production named name.
func (r *Registry) Lookup(name string) (*ir.Production, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", name, ErrNotFound)
	}
	return p, nil
}

// All returns the registered productions in declaration order.
func (r *Registry) All() []*ir.Production {
	return slices.Clone(r.order)
}

// ByType returns the registered productions of type t in declaration order.
func (r *Registry) ByType(t ir.ProductionType) []*ir.Production {
	return slices.Clone(r.byType[t])
}

// Count returns the number of registered productions of each type.
func (r *Registry) Count() map[ir.ProductionType]int {
	out := make(map[ir.ProductionType]int, len(r.byType))
	for t, ps := range r.byType {
		out[t] = len(ps)
	}
	return out
}

// Len returns the number of registered productions.
func (r *Registry) Len() int {
	return len(r.order)
}

// Link appends inst to its production's live-instantiation list.
func (r *Registry) Link(inst *ir.Instantiation) {
	p := inst.Prod
	if p == nil || inst.ProdElem != nil {
		return
	}
	inst.ProdElem = p.Instantiations.PushBack(inst)
}

// Unlink removes inst from its production's live-instantiation list.
func (r *Registry) Unlink(inst *ir.Instantiation) {
	p := inst.Prod
	if p == nil || inst.ProdElem == nil {
		return
	}
	p.Instantiations.Remove(inst.ProdElem)
	inst.ProdElem = nil
}

// AddRef takes a reference on p for a new instantiation.
func (r *Registry) AddRef(p *ir.Production) {
	p.AddRef()
}

// RemoveRef releases a reference on p. The production is destroyed when
// the last reference goes away, which reports true.
func (r *Registry) RemoveRef(p *ir.Production) bool {
	if p.RemoveRef() > 0 {
		return false
	}
	r.logger.Debug("production destroyed", "production", p.Name)
	p.Release(r.syms)
	return true
}

// Excise drops p's membership. p must have no live instantiations: the
// engine retracts them first. Instantiations that still hold preferences
// keep p alive until they are deallocated.
func (r *Registry) Excise(p *ir.Production) bool {
	if p.Excised {
		return false
	}
	if n := p.LiveInstantiations(); n > 0 {
		panic(fmt.Sprintf("registry: excise of %s with %d live instantiations", p.Name, n))
	}
	if r.byName[p.Name] != p {
		panic(fmt.Sprintf("registry: excise of unregistered production %s", p.Name))
	}

	p.Excised = true
	delete(r.byName, p.Name)
	delete(r.byFingerprint, p.Fingerprint)
	r.byType[p.Type] = slices.DeleteFunc(r.byType[p.Type], func(q *ir.Production) bool { return q == p })
	r.order = slices.DeleteFunc(r.order, func(q *ir.Production) bool { return q == p })

	r.logger.Debug("production excised", "production", p.Name)
	r.RemoveRef(p)
	return true
}
