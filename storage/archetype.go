package storage

import (
	"fmt"

	"github.com/tessera-engine/tessera/types"
)

// Column is one component's value buffer within an archetype, together with
// its borrow cell and change ledgers. Values are stored densely; values[slot]
// belongs to the entity at entities[slot] of the owning archetype.
type Column struct {
	metadata types.ComponentMetadata
	values   []any
	cell     Cell
	changes  Changes
}

// Metadata returns the component descriptor shared by every value in the column.
func (c *Column) Metadata() types.ComponentMetadata {
	return c.metadata
}

// Cell returns the borrow cell guarding this column.
func (c *Column) Cell() *Cell {
	return &c.cell
}

// Changes returns the change ledgers for this column.
func (c *Column) Changes() *Changes {
	return &c.changes
}

// Get returns the value at the given slot.
func (c *Column) Get(slot types.Slot) any {
	return c.values[slot]
}

// set writes the value at the given slot without ledger bookkeeping; the
// archetype is responsible for stamping.
func (c *Column) set(slot types.Slot, value any) {
	c.values[slot] = value
}

// Archetype is the storage table for all entities sharing one exact component
// set. All columns have the same length as the entity list, and entities[slot]
// identifies the occupant of slot.
type Archetype struct {
	id         types.ArchetypeID
	mask       types.Mask
	components []types.ComponentMetadata
	columns    map[types.ComponentID]*Column
	entities   []types.EntityID

	// Graph edges: which archetype an entity moves to when one component is
	// added or removed. Filled lazily by the store.
	addEdges    map[types.ComponentID]types.ArchetypeID
	removeEdges map[types.ComponentID]types.ArchetypeID
}

func newArchetype(id types.ArchetypeID, components []types.ComponentMetadata) *Archetype {
	a := &Archetype{
		id:          id,
		components:  components,
		columns:     make(map[types.ComponentID]*Column, len(components)),
		addEdges:    make(map[types.ComponentID]types.ArchetypeID),
		removeEdges: make(map[types.ComponentID]types.ArchetypeID),
	}
	for _, comp := range components {
		a.mask = a.mask.Set(comp.ID())
		a.columns[comp.ID()] = &Column{metadata: comp}
	}
	return a
}

// ID returns the archetype's identifier.
func (a *Archetype) ID() types.ArchetypeID {
	return a.id
}

// Mask returns the component set of this archetype as a bitmask. The mask is
// the archetype's identity: two archetypes are never created for the same set.
func (a *Archetype) Mask() types.Mask {
	return a.mask
}

// Components returns the component descriptors of this archetype in ID order.
func (a *Archetype) Components() []types.ComponentMetadata {
	return a.components
}

// Column returns the column for the given component, or nil if the archetype
// does not store it.
func (a *Archetype) Column(id types.ComponentID) *Column {
	return a.columns[id]
}

// Len returns the number of entities stored.
func (a *Archetype) Len() int {
	return len(a.entities)
}

// Entities returns the stored entities in slot order.
func (a *Archetype) Entities() []types.EntityID {
	return a.entities
}

// EntityAt returns the occupant of the given slot.
func (a *Archetype) EntityAt(slot types.Slot) types.EntityID {
	return a.entities[slot]
}

// push appends a new row for the entity and returns its slot. values must
// hold a value for every column.
func (a *Archetype) push(id types.EntityID, values map[types.ComponentID]any) types.Slot {
	slot := len(a.entities)
	a.entities = append(a.entities, id)
	for compID, col := range a.columns {
		col.values = append(col.values, values[compID])
	}
	if debugValidate {
		a.checkLengths()
	}
	return slot
}

// swapRemove removes the row at slot by moving the last row into its place.
// It returns the entity that now occupies slot, if any. Change ledger stamps
// of the moved row follow it to its new slot.
func (a *Archetype) swapRemove(slot types.Slot) (moved types.EntityID, ok bool) {
	last := len(a.entities) - 1
	movedID := a.entities[last]
	a.entities[slot] = movedID
	a.entities = a.entities[:last]
	for _, col := range a.columns {
		col.values[slot] = col.values[last]
		col.values[last] = nil
		col.values = col.values[:last]
		col.changes.SwapOut(slot, last)
	}
	if debugValidate {
		a.checkLengths()
	}
	if slot == last {
		return types.EntityID{}, false
	}
	return movedID, true
}

// checkLengths asserts the column/entity length invariant. A mismatch is a
// programming error.
func (a *Archetype) checkLengths() {
	for _, col := range a.columns {
		if len(col.values) != len(a.entities) {
			panic(fmt.Sprintf(
				"storage: column %q length %d does not match entity count %d in archetype %d",
				col.metadata.Name(), len(col.values), len(a.entities), a.id,
			))
		}
	}
}
