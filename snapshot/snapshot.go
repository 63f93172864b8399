// Package snapshot serializes world state to JSON and back, and persists
// snapshots in redis keyed by label.
package snapshot

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"

	"github.com/tessera-engine/tessera"
	"github.com/tessera-engine/tessera/codec"
	"github.com/tessera-engine/tessera/filter"
	"github.com/tessera-engine/tessera/types"
)

// ArchetypeSnapshot is one archetype's rows in column-major form. Columns is
// keyed by component name; each column holds one encoded value per entity, in
// the same order as Entities.
type ArchetypeSnapshot struct {
	Components []string                     `json:"components"`
	Entities   []types.EntityID             `json:"entities"`
	Columns    map[string][]json.RawMessage `json:"columns"`
}

// WorldSnapshot is the serialized state of every live entity.
type WorldSnapshot struct {
	Tick       types.Tick          `json:"tick"`
	Archetypes []ArchetypeSnapshot `json:"archetypes"`
}

// Take captures all live entities. Component values that fail to encode are
// skipped; the component name is dropped from the archetype's snapshot rather
// than failing the capture.
func Take(w *tessera.World) (*WorldSnapshot, error) {
	store := w.Store()
	snap := &WorldSnapshot{Tick: w.CurrentTick()}
	archIDs, err := store.FindArchetypes(filter.All())
	if err != nil {
		return nil, err
	}
	for _, archID := range archIDs {
		arch, err := store.Archetype(archID)
		if err != nil || arch.Len() == 0 {
			continue
		}
		archSnap := ArchetypeSnapshot{
			Entities: append([]types.EntityID(nil), arch.Entities()...),
			Columns:  map[string][]json.RawMessage{},
		}
		for _, meta := range arch.Components() {
			col := arch.Column(meta.ID())
			encoded := make([]json.RawMessage, 0, arch.Len())
			ok := true
			for slot := 0; slot < arch.Len(); slot++ {
				bz, err := meta.Encode(col.Get(slot))
				if err != nil {
					ok = false
					break
				}
				encoded = append(encoded, bz)
			}
			if !ok {
				continue
			}
			archSnap.Components = append(archSnap.Components, meta.Name())
			archSnap.Columns[meta.Name()] = encoded
		}
		snap.Archetypes = append(snap.Archetypes, archSnap)
	}
	return snap, nil
}

// Restore replays a snapshot into the world through the normal spawn and set
// paths. Entity identifiers are not preserved; the world assigns fresh ones
// and the mapping from snapshotted to assigned identifiers is returned.
// Relation targets inside restored component values are not rewritten;
// callers re-point them with SetRelation using the returned mapping.
func Restore(w *tessera.World, snap *WorldSnapshot) (map[types.EntityID]types.EntityID, error) {
	remap := make(map[types.EntityID]types.EntityID)
	for _, archSnap := range snap.Archetypes {
		for row, oldID := range archSnap.Entities {
			newID, err := spawnRow(w, archSnap, row)
			if err != nil {
				return remap, eris.Wrapf(err, "restoring entity %s", oldID)
			}
			remap[oldID] = newID
		}
	}
	return remap, nil
}

func spawnRow(w *tessera.World, archSnap ArchetypeSnapshot, row int) (types.EntityID, error) {
	comps := make([]types.Component, 0, len(archSnap.Components))
	for _, name := range archSnap.Components {
		meta, err := w.Components().GetComponentByName(name)
		if err != nil {
			return types.EntityID{}, err
		}
		value, err := meta.Decode(archSnap.Columns[name][row])
		if err != nil {
			return types.EntityID{}, err
		}
		comp, ok := value.(types.Component)
		if !ok {
			return types.EntityID{}, eris.Errorf("decoded %q is not a component", name)
		}
		comps = append(comps, comp)
	}
	return w.Spawn(comps...)
}

// Diff returns a JSON patch describing how to turn snapshot a into snapshot b.
func Diff(a, b *WorldSnapshot) (jsondiff.Patch, error) {
	aBytes, err := codec.Encode(a)
	if err != nil {
		return nil, err
	}
	bBytes, err := codec.Encode(b)
	if err != nil {
		return nil, err
	}
	patch, err := jsondiff.CompareJSON(aBytes, bBytes)
	if err != nil {
		return nil, eris.Wrap(err, "comparing snapshots")
	}
	return patch, nil
}
