// Package cmdbuffer queues structural mutations for deferred application.
// Systems iterating query results must not mutate the world structurally;
// they record spawns, despawns, and component edits here instead, and the
// buffer is applied once at a point where no borrows are outstanding.
package cmdbuffer

import (
	"github.com/tessera-engine/tessera"
	"github.com/tessera-engine/tessera/types"
)

type opKind uint8

const (
	opSpawn opKind = iota
	opDespawn
	opSet
	opRemove
)

type op struct {
	kind   opKind
	entity types.EntityID
	comps  []types.Component // spawn
	comp   types.Component   // set
	name   string            // remove
}

// CommandBuffer accumulates deferred structural operations. It is not safe
// for concurrent use; each worker owns its own buffer.
type CommandBuffer struct {
	ops   []op
	dedup bool
}

// Option modifies a command buffer at construction time.
type Option func(*CommandBuffer)

// WithDedup makes later Set operations for the same entity and component
// replace earlier pending ones instead of queueing both.
func WithDedup() Option {
	return func(b *CommandBuffer) {
		b.dedup = true
	}
}

// New creates an empty command buffer.
func New(opts ...Option) *CommandBuffer {
	b := &CommandBuffer{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Spawn queues the creation of an entity with the given components. The
// entity's identifier is only known once the buffer is applied; Apply returns
// the created identifiers in submission order.
func (b *CommandBuffer) Spawn(comps ...types.Component) {
	b.ops = append(b.ops, op{kind: opSpawn, comps: comps})
}

// Despawn queues the destruction of the entity.
func (b *CommandBuffer) Despawn(id types.EntityID) {
	b.ops = append(b.ops, op{kind: opDespawn, entity: id})
}

// Set queues a component write on the entity, adding the component if absent.
func (b *CommandBuffer) Set(id types.EntityID, comp types.Component) {
	if b.dedup {
		for i := len(b.ops) - 1; i >= 0; i-- {
			pending := &b.ops[i]
			if pending.kind == opSet && pending.entity == id && pending.comp.Name() == comp.Name() {
				pending.comp = comp
				return
			}
		}
	}
	b.ops = append(b.ops, op{kind: opSet, entity: id, comp: comp})
}

// Remove queues the removal of the named component from the entity.
func (b *CommandBuffer) Remove(id types.EntityID, name string) {
	b.ops = append(b.ops, op{kind: opRemove, entity: id, name: name})
}

// Len returns the number of pending operations.
func (b *CommandBuffer) Len() int {
	return len(b.ops)
}

// Discard drops all pending operations.
func (b *CommandBuffer) Discard() {
	b.ops = b.ops[:0]
}

// Apply executes the pending operations against the world once, in submission
// order, and clears the buffer. The first failing operation aborts the
// application; operations before it stay applied. Created entity identifiers
// are returned in spawn submission order.
func (b *CommandBuffer) Apply(w *tessera.World) ([]types.EntityID, error) {
	var created []types.EntityID
	for _, pending := range b.ops {
		switch pending.kind {
		case opSpawn:
			id, err := w.Spawn(pending.comps...)
			if err != nil {
				return created, err
			}
			created = append(created, id)
		case opDespawn:
			if err := w.Despawn(pending.entity); err != nil {
				return created, err
			}
		case opSet:
			if err := setOrAdd(w, pending.entity, pending.comp); err != nil {
				return created, err
			}
		case opRemove:
			if err := w.RemoveComponent(pending.entity, pending.name); err != nil {
				return created, err
			}
		}
	}
	b.ops = b.ops[:0]
	return created, nil
}

func setOrAdd(w *tessera.World, id types.EntityID, comp types.Component) error {
	meta, err := w.Components().GetComponentByName(comp.Name())
	if err != nil {
		return err
	}
	current, err := w.Store().ComponentsFor(id)
	if err != nil {
		return err
	}
	for _, c := range current {
		if c.ID() == meta.ID() {
			return w.SetComponent(id, comp)
		}
	}
	return w.AddComponent(id, comp)
}
