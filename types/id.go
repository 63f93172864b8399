package types

import "fmt"

// EntityID identifies a single entity in a World. The Index half is recycled
// after the entity is destroyed, but only after Generation has been bumped, so
// a stale EntityID never aliases a live one.
type EntityID struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

func (id EntityID) String() string {
	return fmt.Sprintf("%d:%d", id.Index, id.Generation)
}

// ComponentID is the process-wide identifier assigned to a component type when
// it is registered. IDs are assigned sequentially starting at 0.
type ComponentID int

// ArchetypeID identifies one archetype within a store. Archetype IDs are never
// reused, even after the archetype is pruned.
type ArchetypeID int

// Tick is the logical clock used to order and detect changes. It only ever
// advances.
type Tick uint64

// Slot is an index into an archetype's columns. Slots are not stable across
// structural mutations; the entity index is the only durable pointer.
type Slot = int

// Location is an entity's current physical position: which archetype holds its
// row and at which slot.
type Location struct {
	Archetype ArchetypeID
	Slot      Slot
}
