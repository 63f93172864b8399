package tessera

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tessera-engine/tessera/component"
	"github.com/tessera-engine/tessera/filter"
	"github.com/tessera-engine/tessera/log"
	"github.com/tessera-engine/tessera/search"
	"github.com/tessera-engine/tessera/storage"
	"github.com/tessera-engine/tessera/types"
)

// ErrRelationAlreadySet is returned by SetRelation when a non-exclusive
// relation already holds an edge on the entity.
var ErrRelationAlreadySet = eris.New("relation already set on entity")

// World is the façade over the component registry, the entity index, and the
// archetype store. Structural mutations (spawn, despawn, add/remove
// component) require exclusive access to the World and must not interleave
// with in-flight query iteration over the same entities; deferred mutation
// during iteration belongs to the command buffer.
type World struct {
	config     WorldConfig
	components *component.Manager
	store      *storage.Store

	// tick is the process-wide logical clock. Every observable mutation
	// stamps the affected slots with the current tick before advancing it.
	tick atomic.Uint64

	logger zerolog.Logger
}

// NewWorld creates a new World.
func NewWorld(opts ...WorldOption) (*World, error) {
	cfg, err := GetWorldConfig()
	if err != nil {
		return nil, err
	}
	components := component.NewManager()
	w := &World{
		config:     cfg,
		components: components,
		store:      storage.NewStore(components),
		logger:     zlog.Logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.store.InjectLogger(&w.logger)
	return w, nil
}

// RegisterComponent registers the component type T with the world. All
// component types must be registered before entities use them.
func RegisterComponent[T types.Component](w *World, opts ...component.Option[T]) (types.ComponentMetadata, error) {
	metadata, err := component.NewComponentMetadata[T](opts...)
	if err != nil {
		return nil, err
	}
	if err := w.components.RegisterComponent(metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// Spawn creates a new entity holding the given component values and returns
// its identifier.
func (w *World) Spawn(comps ...types.Component) (types.EntityID, error) {
	values := make([]any, len(comps))
	for i, comp := range comps {
		values[i] = comp
	}
	id, err := w.store.CreateEntity(w.stampTick(), values)
	if err != nil {
		return id, err
	}
	if metas, err := w.store.ComponentsFor(id); err == nil {
		if loc, err := w.store.Index().Locate(id); err == nil {
			log.Entity(&w.logger, zerolog.DebugLevel, id, loc.Archetype, metas)
		}
	}
	return id, nil
}

// Despawn destroys the entity. The identifier's index is recycled with a
// bumped generation; the stale handle fails every subsequent operation with
// storage.ErrEntityDoesNotExist.
func (w *World) Despawn(id types.EntityID) error {
	return w.store.RemoveEntity(w.stampTick(), id)
}

// AddComponent attaches the component value to the entity, migrating it to
// the archetype for its widened set.
func (w *World) AddComponent(id types.EntityID, comp types.Component) error {
	return w.store.AddComponent(w.stampTick(), id, comp)
}

// SetComponent overwrites the entity's value for a component it already holds.
func (w *World) SetComponent(id types.EntityID, comp types.Component) error {
	return w.store.SetComponent(w.stampTick(), id, comp)
}

// SetComponentBytes decodes the encoded component value and writes it to the
// entity, adding the component if the entity does not yet hold it. This is
// the boundary used by external collaborators that carry serialized values.
func (w *World) SetComponentBytes(id types.EntityID, name string, bz []byte) error {
	metadata, err := w.components.GetComponentByName(name)
	if err != nil {
		return err
	}
	value, err := metadata.Decode(bz)
	if err != nil {
		return err
	}
	comps, err := w.store.ComponentsFor(id)
	if err != nil {
		return err
	}
	for _, c := range comps {
		if c.ID() == metadata.ID() {
			return w.store.SetComponent(w.stampTick(), id, value)
		}
	}
	return w.store.AddComponent(w.stampTick(), id, value)
}

// RemoveComponent detaches the named component from the entity, migrating it
// to the archetype for its narrowed set.
func (w *World) RemoveComponent(id types.EntityID, name string) error {
	metadata, err := w.components.GetComponentByName(name)
	if err != nil {
		return err
	}
	return w.store.RemoveComponent(w.stampTick(), id, metadata)
}

// GetComponent returns the entity's current value for the named component.
func (w *World) GetComponent(id types.EntityID, name string) (any, error) {
	metadata, err := w.components.GetComponentByName(name)
	if err != nil {
		return nil, err
	}
	return w.store.GetComponent(id, metadata)
}

// GetComponent returns the entity's current value for component type T.
func GetComponent[T types.Component](w *World, id types.EntityID) (T, error) {
	var zero T
	value, err := w.GetComponent(id, zero.Name())
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, eris.Errorf("component %q has type %T, not %T", zero.Name(), value, zero)
	}
	return typed, nil
}

// SetRelation sets the entity's edge for the given relation component. An
// exclusive relation atomically replaces any previous edge: the reverse index
// drops the old target and gains the new one in the same mutation. A
// non-exclusive relation refuses to overwrite an existing edge; remove the
// component first to retarget it.
func (w *World) SetRelation(id types.EntityID, rel types.Relation) error {
	metadata, err := w.components.GetComponentByName(rel.Name())
	if err != nil {
		return err
	}
	if !metadata.IsRelation() {
		return eris.Errorf("component %q is not a relation", rel.Name())
	}
	comps, err := w.store.ComponentsFor(id)
	if err != nil {
		return err
	}
	for _, c := range comps {
		if c.ID() == metadata.ID() {
			if !metadata.IsExclusive() {
				return eris.Wrapf(ErrRelationAlreadySet,
					"relation %q is not exclusive", rel.Name())
			}
			return w.store.SetComponent(w.stampTick(), id, rel)
		}
	}
	return w.store.AddComponent(w.stampTick(), id, rel)
}

// NewSearch creates a search over this world's entities.
func (w *World) NewSearch(f filter.ComponentFilter) *search.Search {
	return search.New(w.store, f)
}

// NewTraversal creates a hierarchy traversal following the given relation.
func (w *World) NewTraversal(relation types.ComponentMetadata) *search.Traversal {
	return search.NewTraversal(w.store, relation)
}

// CurrentTick returns the tick the next mutation will be stamped with.
func (w *World) CurrentTick() types.Tick {
	return types.Tick(w.tick.Load())
}

// Locate returns the entity's current archetype and slot.
func (w *World) Locate(id types.EntityID) (types.Location, error) {
	return w.store.Index().Locate(id)
}

// IsAlive reports whether the identifier refers to a live entity.
func (w *World) IsAlive(id types.EntityID) bool {
	return w.store.Index().IsAlive(id)
}

// Components returns the component registry.
func (w *World) Components() *component.Manager {
	return w.components
}

// Store exposes the underlying archetype store to collaborators that operate
// at the storage boundary.
func (w *World) Store() *storage.Store {
	return w.store
}

// Maintain runs the opportunistic maintenance pass: empty archetypes are
// physically pruned and ledgers are rebased to the given tick. Callers
// guarantee no live query still tracks a since-tick at or before it.
func (w *World) Maintain(oldestTracked types.Tick) {
	w.store.PruneEmptyArchetypes()
	w.store.RebaseLedgers(oldestTracked)
}

// stampTick returns the tick mutations should be stamped with and advances
// the clock. This is the single mutation point of the logical clock.
func (w *World) stampTick() types.Tick {
	return types.Tick(w.tick.Add(1) - 1)
}
