package core

import "github.com/cockroachdb/errors"

// Identifier is a slot index plus the generation the slot had when the
// identifier was handed out. A released slot bumps its generation, so an
// Identifier kept around after release no longer matches.
type Identifier struct {
	Index      uint32
	Generation uint32
}

// InvalidIdentifier never matches a live slot.
var InvalidIdentifier = Identifier{Index: ^uint32(0), Generation: 0}

type identifierSlot struct {
	owner      interface{}
	generation uint32
}

// IdentifierPool hands out reusable identifiers to owners.
type IdentifierPool struct {
	slots []identifierSlot
}

func NewIdentifierPool(capacity int) *IdentifierPool {
	return &IdentifierPool{
		slots: make([]identifierSlot, 0, capacity),
	}
}

func (p *IdentifierPool) Acquire(owner interface{}) Identifier {
	for i := range p.slots {
		// Existing free spot. Take it.
		if p.slots[i].owner == nil {
			p.slots[i].owner = owner
			return Identifier{Index: uint32(i), Generation: p.slots[i].generation}
		}
	}

	// No free slots, push a new one. Generations start at 1 so the zero
	// value of Identifier is never valid.
	p.slots = append(p.slots, identifierSlot{owner: owner, generation: 1})
	return Identifier{Index: uint32(len(p.slots) - 1), Generation: 1}
}

func (p *IdentifierPool) Release(id Identifier) error {
	if !p.Valid(id) {
		return errors.Newf("identifier %d (gen %d) is not live. Nothing was done", id.Index, id.Generation)
	}
	p.slots[id.Index].owner = nil
	p.slots[id.Index].generation++
	return nil
}

func (p *IdentifierPool) Valid(id Identifier) bool {
	if int(id.Index) >= len(p.slots) {
		return false
	}
	s := p.slots[id.Index]
	return s.owner != nil && s.generation == id.Generation
}

// Owner returns the owner registered for id, or nil when id is stale.
func (p *IdentifierPool) Owner(id Identifier) interface{} {
	if !p.Valid(id) {
		return nil
	}
	return p.slots[id.Index].owner
}

func (p *IdentifierPool) Live() int {
	n := 0
	for _, s := range p.slots {
		if s.owner != nil {
			n++
		}
	}
	return n
}

// Identifiers lists every live identifier in index order.
func (p *IdentifierPool) Identifiers() []Identifier {
	var ids []Identifier
	for i, s := range p.slots {
		if s.owner != nil {
			ids = append(ids, Identifier{Index: uint32(i), Generation: s.generation})
		}
	}
	return ids
}
