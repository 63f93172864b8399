package storage

import (
	"github.com/rotisserie/eris"

	"github.com/tessera-engine/tessera/types"
)

type entityMeta struct {
	loc        types.Location
	generation uint32
	alive      bool
}

// EntityIndex owns entity identifier allocation and is the only durable
// mapping from an EntityID to the archetype and slot that hold its data. It
// is updated synchronously with every structural mutation.
type EntityIndex struct {
	metas   []entityMeta
	freeIDs []uint32
}

// NewEntityIndex creates an empty entity index.
func NewEntityIndex() *EntityIndex {
	return &EntityIndex{}
}

// NewEntity allocates a fresh or recycled entity identifier located at loc.
// A recycled index keeps the bumped generation it received on destruction, so
// handles to the previous occupant remain dead.
func (idx *EntityIndex) NewEntity(loc types.Location) types.EntityID {
	if n := len(idx.freeIDs); n > 0 {
		index := idx.freeIDs[n-1]
		idx.freeIDs = idx.freeIDs[:n-1]
		meta := &idx.metas[index]
		meta.loc = loc
		meta.alive = true
		return types.EntityID{Index: index, Generation: meta.generation}
	}
	index := uint32(len(idx.metas))
	idx.metas = append(idx.metas, entityMeta{loc: loc, alive: true})
	return types.EntityID{Index: index, Generation: 0}
}

// Locate returns the current location of the given entity. It is O(1) and
// never blocks. A stale or unknown identifier returns ErrEntityDoesNotExist.
func (idx *EntityIndex) Locate(id types.EntityID) (types.Location, error) {
	meta, err := idx.lookup(id)
	if err != nil {
		return types.Location{}, err
	}
	return meta.loc, nil
}

// IsAlive reports whether the given identifier refers to a live entity.
func (idx *EntityIndex) IsAlive(id types.EntityID) bool {
	_, err := idx.lookup(id)
	return err == nil
}

// SetLocation updates the entity's location. Callers must invoke this in the
// same mutation that moves the entity's row so the index never points at a
// stale slot.
func (idx *EntityIndex) SetLocation(id types.EntityID, loc types.Location) error {
	meta, err := idx.lookup(id)
	if err != nil {
		return err
	}
	meta.loc = loc
	return nil
}

// Destroy invalidates the identifier and returns its last-known location for
// the caller to use during row removal. The index is recycled with a bumped
// generation.
func (idx *EntityIndex) Destroy(id types.EntityID) (types.Location, error) {
	meta, err := idx.lookup(id)
	if err != nil {
		return types.Location{}, err
	}
	loc := meta.loc
	meta.alive = false
	meta.generation++
	idx.freeIDs = append(idx.freeIDs, id.Index)
	return loc, nil
}

func (idx *EntityIndex) lookup(id types.EntityID) (*entityMeta, error) {
	if int(id.Index) >= len(idx.metas) {
		return nil, eris.Wrapf(ErrEntityDoesNotExist, "index %d out of range", id.Index)
	}
	meta := &idx.metas[id.Index]
	if !meta.alive || meta.generation != id.Generation {
		return nil, eris.Wrapf(ErrEntityDoesNotExist, "stale id %s", id)
	}
	return meta, nil
}
