package storage

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tessera-engine/tessera/component"
	"github.com/tessera-engine/tessera/filter"
	"github.com/tessera-engine/tessera/types"
)

// Store owns the entity index, the archetype set, and the archetype graph.
// All structural mutations (create, destroy, add/remove component) go through
// it under the world's exclusive-access discipline. Ticks are threaded in
// explicitly so the engine stays deterministic under test.
type Store struct {
	components *component.Manager
	index      *EntityIndex

	// archetypes is indexed by ArchetypeID. A pruned archetype leaves a nil
	// slot behind; IDs are never reused.
	archetypes []*Archetype
	byMask     map[types.Mask]types.ArchetypeID
	// containing maps a component to every archetype storing it. Queries seed
	// their archetype walk from the rarest required component's posting list
	// instead of scanning all archetypes.
	containing map[types.ComponentID][]types.ArchetypeID

	// incoming is the reverse relation index: target -> relation component ->
	// source entities. It is kept consistent with the forward edges (stored
	// as component values) on every structural mutation.
	incoming map[types.EntityID]map[types.ComponentID][]types.EntityID

	logger *zerolog.Logger
}

// NewStore creates an empty store backed by the given component registry.
func NewStore(components *component.Manager) *Store {
	return &Store{
		components: components,
		index:      NewEntityIndex(),
		byMask:     make(map[types.Mask]types.ArchetypeID),
		containing: make(map[types.ComponentID][]types.ArchetypeID),
		incoming:   make(map[types.EntityID]map[types.ComponentID][]types.EntityID),
		logger:     &log.Logger,
	}
}

// InjectLogger sets the logger for the store.
func (s *Store) InjectLogger(logger *zerolog.Logger) {
	s.logger = logger
}

// Components returns the component registry backing this store.
func (s *Store) Components() *component.Manager {
	return s.components
}

// Index returns the entity index.
func (s *Store) Index() *EntityIndex {
	return s.index
}

// Archetype returns the archetype with the given ID, or an error if the ID is
// unknown or the archetype has been pruned.
func (s *Store) Archetype(id types.ArchetypeID) (*Archetype, error) {
	if int(id) >= len(s.archetypes) || s.archetypes[id] == nil {
		return nil, eris.Wrapf(ErrArchetypeNotFound, "id %d", id)
	}
	return s.archetypes[id], nil
}

// ArchetypeCount returns the number of live archetypes.
func (s *Store) ArchetypeCount() int {
	n := 0
	for _, a := range s.archetypes {
		if a != nil {
			n++
		}
	}
	return n
}

// GetOrCreateArchetype returns the archetype for the exact component set
// given, creating it on first encounter. Creation inserts the archetype into
// the graph: add/remove edges are wired to every existing archetype whose set
// differs by exactly the one component, and the per-component posting lists
// are extended.
func (s *Store) GetOrCreateArchetype(comps []types.ComponentMetadata) *Archetype {
	sorted := sortComponentSet(comps)
	mask := maskOfComponents(sorted)
	if id, ok := s.byMask[mask]; ok {
		return s.archetypes[id]
	}

	id := types.ArchetypeID(len(s.archetypes))
	arch := newArchetype(id, sorted)
	s.archetypes = append(s.archetypes, arch)
	s.byMask[mask] = id
	for _, comp := range sorted {
		s.containing[comp.ID()] = append(s.containing[comp.ID()], id)
	}

	// Wire graph edges to neighbors one component away in either direction.
	for _, other := range s.archetypes[:id] {
		if other == nil {
			continue
		}
		if diff, superset, ok := oneComponentDiff(arch.mask, other.mask); ok {
			if superset {
				// arch = other + diff
				other.addEdges[diff] = id
				arch.removeEdges[diff] = other.id
			} else {
				// other = arch + diff
				arch.addEdges[diff] = other.id
				other.removeEdges[diff] = id
			}
		}
	}

	s.logger.Debug().Int("archetype_id", int(id)).Int("component_count", len(sorted)).Msg("created archetype")
	return arch
}

// FindArchetypes returns the IDs of all live archetypes matching the filter.
// The filter's component-set summary narrows the walk: when the filter
// requires at least one component, only the posting list of the rarest
// required component is examined.
func (s *Store) FindArchetypes(f filter.ComponentFilter) ([]types.ArchetypeID, error) {
	summary := f.Summary()
	if summary.Required.Intersects(summary.Excluded) {
		return nil, eris.Wrap(ErrUnsatisfiableQuery, "")
	}

	var candidates []types.ArchetypeID
	if required := summary.Required.Components(); len(required) > 0 {
		rarest := required[0]
		for _, compID := range required[1:] {
			if len(s.containing[compID]) < len(s.containing[rarest]) {
				rarest = compID
			}
		}
		candidates = s.containing[rarest]
	} else {
		candidates = make([]types.ArchetypeID, 0, len(s.archetypes))
		for id, a := range s.archetypes {
			if a != nil {
				candidates = append(candidates, types.ArchetypeID(id))
			}
		}
	}

	var matched []types.ArchetypeID
	for _, id := range candidates {
		arch := s.archetypes[id]
		if arch == nil {
			continue
		}
		if !arch.mask.ContainsAll(summary.Required) || arch.mask.Intersects(summary.Excluded) {
			continue
		}
		if !f.MatchesMask(arch.mask) {
			continue
		}
		matched = append(matched, id)
	}
	return matched, nil
}

// CreateEntity creates a new entity holding the given component values,
// stamping every column with tick. Values must be fully decoded component
// values whose types are registered.
func (s *Store) CreateEntity(tick types.Tick, values []any) (types.EntityID, error) {
	if len(values) == 0 {
		return types.EntityID{}, eris.Wrap(ErrEntityMustHaveAtLeastOneComponent, "")
	}
	comps := make([]types.ComponentMetadata, 0, len(values))
	byID := make(map[types.ComponentID]any, len(values))
	for _, value := range values {
		comp, ok := value.(types.Component)
		if !ok {
			return types.EntityID{}, eris.Errorf("value of type %T is not a component", value)
		}
		metadata, err := s.components.GetComponentByName(comp.Name())
		if err != nil {
			return types.EntityID{}, err
		}
		if _, exists := byID[metadata.ID()]; exists {
			return types.EntityID{}, eris.Wrap(ErrComponentAlreadyOnEntity, metadata.Name())
		}
		comps = append(comps, metadata)
		byID[metadata.ID()] = value
	}

	arch := s.GetOrCreateArchetype(comps)
	// Reserve the slot before allocating the ID so the index is born pointing
	// at the correct location.
	slot := arch.Len()
	id := s.index.NewEntity(types.Location{Archetype: arch.id, Slot: slot})
	arch.push(id, byID)

	for compID := range byID {
		arch.Column(compID).Changes().Record(ChangeAdded, SingleSlot(slot), tick)
		s.addRelationEdge(id, compID, byID[compID])
	}
	s.logger.Debug().Str("entity_id", id.String()).Int("archetype_id", int(arch.id)).Msg("created entity")
	return id, nil
}

// RemoveEntity destroys the entity, swap-removing its row. The entity that
// previously occupied the archetype's last slot (if any) has its index entry
// updated to the vacated slot in the same mutation.
func (s *Store) RemoveEntity(tick types.Tick, id types.EntityID) error {
	loc, err := s.index.Destroy(id)
	if err != nil {
		return err
	}
	arch := s.archetypes[loc.Archetype]

	for _, comp := range arch.components {
		col := arch.Column(comp.ID())
		col.changes.Record(ChangeRemoved, SingleSlot(loc.Slot), tick)
		s.removeRelationEdge(id, comp.ID(), col.Get(loc.Slot))
	}
	delete(s.incoming, id)

	if moved, ok := arch.swapRemove(loc.Slot); ok {
		if err := s.index.SetLocation(moved, types.Location{Archetype: arch.id, Slot: loc.Slot}); err != nil {
			return err
		}
	}
	return nil
}

// AddComponent moves the entity to the archetype holding its current set plus
// the given component, initialized to value. Migration cost is proportional
// to the number of differing components.
func (s *Store) AddComponent(tick types.Tick, id types.EntityID, value any) error {
	comp, ok := value.(types.Component)
	if !ok {
		return eris.Errorf("value of type %T is not a component", value)
	}
	metadata, err := s.components.GetComponentByName(comp.Name())
	if err != nil {
		return err
	}
	loc, err := s.index.Locate(id)
	if err != nil {
		return err
	}
	from := s.archetypes[loc.Archetype]
	if from.mask.Has(metadata.ID()) {
		return eris.Wrap(ErrComponentAlreadyOnEntity, metadata.Name())
	}

	to := s.archetypeViaAddEdge(from, metadata)
	newSlot, err := s.moveEntity(id, from, loc.Slot, to)
	if err != nil {
		return err
	}
	to.Column(metadata.ID()).set(newSlot, value)
	to.Column(metadata.ID()).Changes().Record(ChangeAdded, SingleSlot(newSlot), tick)
	s.addRelationEdge(id, metadata.ID(), value)
	return nil
}

// RemoveComponent moves the entity to the archetype holding its current set
// minus the given component. The removed value's relation edge, if any, is
// dropped from the reverse index in the same mutation.
func (s *Store) RemoveComponent(tick types.Tick, id types.EntityID, metadata types.ComponentMetadata) error {
	loc, err := s.index.Locate(id)
	if err != nil {
		return err
	}
	from := s.archetypes[loc.Archetype]
	if !from.mask.Has(metadata.ID()) {
		return eris.Wrap(ErrComponentNotOnEntity, metadata.Name())
	}
	if len(from.components) == 1 {
		return eris.Wrap(ErrEntityMustHaveAtLeastOneComponent, "")
	}

	oldValue := from.Column(metadata.ID()).Get(loc.Slot)
	from.Column(metadata.ID()).Changes().Record(ChangeRemoved, SingleSlot(loc.Slot), tick)
	s.removeRelationEdge(id, metadata.ID(), oldValue)

	to := s.archetypeViaRemoveEdge(from, metadata)
	_, err = s.moveEntity(id, from, loc.Slot, to)
	return err
}

// SetComponent overwrites the entity's value for a component it already
// holds, stamping the modified ledger. The relation reverse index follows the
// value change.
func (s *Store) SetComponent(tick types.Tick, id types.EntityID, value any) error {
	comp, ok := value.(types.Component)
	if !ok {
		return eris.Errorf("value of type %T is not a component", value)
	}
	metadata, err := s.components.GetComponentByName(comp.Name())
	if err != nil {
		return err
	}
	loc, err := s.index.Locate(id)
	if err != nil {
		return err
	}
	arch := s.archetypes[loc.Archetype]
	col := arch.Column(metadata.ID())
	if col == nil {
		return eris.Wrap(ErrComponentNotOnEntity, metadata.Name())
	}

	s.removeRelationEdge(id, metadata.ID(), col.Get(loc.Slot))
	col.set(loc.Slot, value)
	col.changes.Record(ChangeModified, SingleSlot(loc.Slot), tick)
	s.addRelationEdge(id, metadata.ID(), value)
	return nil
}

// GetComponent returns the entity's current value for the given component.
func (s *Store) GetComponent(id types.EntityID, metadata types.ComponentMetadata) (any, error) {
	loc, err := s.index.Locate(id)
	if err != nil {
		return nil, err
	}
	arch := s.archetypes[loc.Archetype]
	col := arch.Column(metadata.ID())
	if col == nil {
		return nil, eris.Wrap(ErrComponentNotOnEntity, metadata.Name())
	}
	return col.Get(loc.Slot), nil
}

// ComponentsFor returns the component descriptors currently on the entity.
func (s *Store) ComponentsFor(id types.EntityID) ([]types.ComponentMetadata, error) {
	loc, err := s.index.Locate(id)
	if err != nil {
		return nil, err
	}
	return s.archetypes[loc.Archetype].components, nil
}

// Incoming returns the entities holding an edge of the given relation that
// targets the given entity. The returned slice must not be mutated.
func (s *Store) Incoming(target types.EntityID, relation types.ComponentID) []types.EntityID {
	return s.incoming[target][relation]
}

// RelationRoots returns the entities that are targets of at least one edge of
// the given relation but hold no edge of it themselves, in stable entity
// order. These are the discovered roots for hierarchy traversal.
func (s *Store) RelationRoots(relation types.ComponentID) []types.EntityID {
	var roots []types.EntityID
	for target, edges := range s.incoming {
		if len(edges[relation]) == 0 {
			continue
		}
		loc, err := s.index.Locate(target)
		if err != nil {
			continue
		}
		if s.archetypes[loc.Archetype].mask.Has(relation) {
			continue
		}
		roots = append(roots, target)
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].Index != roots[j].Index {
			return roots[i].Index < roots[j].Index
		}
		return roots[i].Generation < roots[j].Generation
	})
	return roots
}

// PruneEmptyArchetypes physically removes archetypes that hold no entities.
// Empty archetypes are otherwise kept so code paths that oscillate entities
// in and out of a set do not thrash the graph; this is the explicit
// maintenance pass. Non-empty archetypes are never pruned.
func (s *Store) PruneEmptyArchetypes() int {
	pruned := 0
	for i, arch := range s.archetypes {
		if arch == nil || arch.Len() > 0 {
			continue
		}
		delete(s.byMask, arch.mask)
		for _, comp := range arch.components {
			s.containing[comp.ID()] = removeArchID(s.containing[comp.ID()], arch.id)
		}
		for compID, neighbor := range arch.addEdges {
			if other := s.archetypes[neighbor]; other != nil {
				delete(other.removeEdges, compID)
			}
		}
		for compID, neighbor := range arch.removeEdges {
			if other := s.archetypes[neighbor]; other != nil {
				delete(other.addEdges, compID)
			}
		}
		s.archetypes[i] = nil
		pruned++
	}
	if pruned > 0 {
		s.logger.Debug().Int("pruned", pruned).Msg("pruned empty archetypes")
	}
	return pruned
}

// RebaseLedgers drops every ledger entry at or before tick. Callers guarantee
// no live query still tracks a since-tick at or before the given tick.
func (s *Store) RebaseLedgers(tick types.Tick) {
	for _, arch := range s.archetypes {
		if arch == nil {
			continue
		}
		for _, col := range arch.columns {
			col.changes.Rebase(tick)
		}
	}
}

// moveEntity moves the entity's row from one archetype to another. Columns
// present in both keep their values and their change history; columns only in
// the source are dropped. Columns only in the destination are left zeroed for
// the caller to initialize. The vacated source slot is filled by swap-remove.
func (s *Store) moveEntity(id types.EntityID, from *Archetype, fromSlot types.Slot, to *Archetype) (types.Slot, error) {
	values := make(map[types.ComponentID]any, len(to.components))
	for _, comp := range to.components {
		if col := from.Column(comp.ID()); col != nil {
			values[comp.ID()] = col.Get(fromSlot)
		}
	}
	toSlot := to.push(id, values)

	// Change history of shared columns follows the entity.
	for _, comp := range to.components {
		if fromCol := from.Column(comp.ID()); fromCol != nil {
			fromCol.changes.MigrateTo(to.Column(comp.ID()).Changes(), fromSlot, toSlot)
		}
	}

	if moved, ok := from.swapRemove(fromSlot); ok {
		if err := s.index.SetLocation(moved, types.Location{Archetype: from.id, Slot: fromSlot}); err != nil {
			return 0, err
		}
	}
	if err := s.index.SetLocation(id, types.Location{Archetype: to.id, Slot: toSlot}); err != nil {
		return 0, err
	}
	return toSlot, nil
}

// archetypeViaAddEdge resolves the destination archetype for adding one
// component, caching the edge for repeat migrations.
func (s *Store) archetypeViaAddEdge(from *Archetype, metadata types.ComponentMetadata) *Archetype {
	if toID, ok := from.addEdges[metadata.ID()]; ok {
		if to := s.archetypes[toID]; to != nil {
			return to
		}
	}
	comps := make([]types.ComponentMetadata, 0, len(from.components)+1)
	comps = append(comps, from.components...)
	comps = append(comps, metadata)
	return s.GetOrCreateArchetype(comps)
}

// archetypeViaRemoveEdge resolves the destination archetype for removing one
// component, caching the edge for repeat migrations.
func (s *Store) archetypeViaRemoveEdge(from *Archetype, metadata types.ComponentMetadata) *Archetype {
	if toID, ok := from.removeEdges[metadata.ID()]; ok {
		if to := s.archetypes[toID]; to != nil {
			return to
		}
	}
	comps := make([]types.ComponentMetadata, 0, len(from.components)-1)
	for _, comp := range from.components {
		if comp.ID() != metadata.ID() {
			comps = append(comps, comp)
		}
	}
	return s.GetOrCreateArchetype(comps)
}

// addRelationEdge records value's edge in the reverse index if the component
// is a relation.
func (s *Store) addRelationEdge(source types.EntityID, compID types.ComponentID, value any) {
	metadata, err := s.components.GetComponentByID(compID)
	if err != nil || !metadata.IsRelation() {
		return
	}
	target, ok := metadata.Target(value)
	if !ok {
		return
	}
	edges, ok := s.incoming[target]
	if !ok {
		edges = make(map[types.ComponentID][]types.EntityID)
		s.incoming[target] = edges
	}
	edges[compID] = append(edges[compID], source)
}

// removeRelationEdge drops value's edge from the reverse index if the
// component is a relation.
func (s *Store) removeRelationEdge(source types.EntityID, compID types.ComponentID, value any) {
	metadata, err := s.components.GetComponentByID(compID)
	if err != nil || !metadata.IsRelation() {
		return
	}
	target, ok := metadata.Target(value)
	if !ok {
		return
	}
	edges, ok := s.incoming[target]
	if !ok {
		return
	}
	sources := edges[compID]
	for i, src := range sources {
		if src == source {
			edges[compID] = append(sources[:i], sources[i+1:]...)
			break
		}
	}
	if len(edges[compID]) == 0 {
		delete(edges, compID)
	}
	if len(edges) == 0 {
		delete(s.incoming, target)
	}
}

func sortComponentSet(comps []types.ComponentMetadata) []types.ComponentMetadata {
	sorted := make([]types.ComponentMetadata, len(comps))
	copy(sorted, comps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })
	return sorted
}

func maskOfComponents(comps []types.ComponentMetadata) types.Mask {
	var m types.Mask
	for _, comp := range comps {
		m = m.Set(comp.ID())
	}
	return m
}

// oneComponentDiff reports whether a and b differ by exactly one component.
// superset is true when a is the larger set; diff is the differing component.
func oneComponentDiff(a, b types.Mask) (diff types.ComponentID, superset bool, ok bool) {
	var onlyA, onlyB types.Mask
	for i := range a {
		onlyA[i] = a[i] &^ b[i]
		onlyB[i] = b[i] &^ a[i]
	}
	switch {
	case onlyA.Count() == 1 && onlyB.IsZero():
		return onlyA.Components()[0], true, true
	case onlyB.Count() == 1 && onlyA.IsZero():
		return onlyB.Components()[0], false, true
	}
	return 0, false, false
}

func removeArchID(ids []types.ArchetypeID, id types.ArchetypeID) []types.ArchetypeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
