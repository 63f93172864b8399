package storage

import (
	"testing"

	"github.com/tessera-engine/tessera/assert"
	"github.com/tessera-engine/tessera/component"
	"github.com/tessera-engine/tessera/filter"
	"github.com/tessera-engine/tessera/types"
)

type Position struct {
	X, Y float64
}

func (Position) Name() string { return "position" }

type Velocity struct {
	DX, DY float64
}

func (Velocity) Name() string { return "velocity" }

type Health struct {
	Value int
}

func (Health) Name() string { return "health" }

type ChildOf struct {
	Parent types.EntityID
}

func (ChildOf) Name() string { return "child_of" }

func (c ChildOf) Target() types.EntityID { return c.Parent }

type testFixture struct {
	store   *Store
	pos     types.ComponentMetadata
	vel     types.ComponentMetadata
	health  types.ComponentMetadata
	childOf types.ComponentMetadata
}

func newTestStore(t *testing.T) *testFixture {
	t.Helper()
	manager := component.NewManager()
	f := &testFixture{
		pos:     component.MustNewComponentMetadata[Position](),
		vel:     component.MustNewComponentMetadata[Velocity](),
		health:  component.MustNewComponentMetadata[Health](),
		childOf: component.MustNewComponentMetadata[ChildOf](),
	}
	for _, meta := range []types.ComponentMetadata{f.pos, f.vel, f.health, f.childOf} {
		assert.NilError(t, manager.RegisterComponent(meta))
	}
	f.store = NewStore(manager)
	return f
}

func TestCreateEntity_LocateAndGet(t *testing.T) {
	f := newTestStore(t)

	id, err := f.store.CreateEntity(1, []any{Position{X: 1, Y: 2}, Velocity{DX: 3}})
	assert.NilError(t, err)
	assert.True(t, f.store.Index().IsAlive(id))

	loc, err := f.store.Index().Locate(id)
	assert.NilError(t, err)
	assert.Equal(t, loc.Slot, 0)

	got, err := f.store.GetComponent(id, f.pos)
	assert.NilError(t, err)
	assert.Equal(t, got.(Position), Position{X: 1, Y: 2})
}

func TestCreateEntity_RequiresComponents(t *testing.T) {
	f := newTestStore(t)
	_, err := f.store.CreateEntity(1, nil)
	assert.ErrorIs(t, err, ErrEntityMustHaveAtLeastOneComponent)
}

func TestCreateEntity_DuplicateComponentRejected(t *testing.T) {
	f := newTestStore(t)
	_, err := f.store.CreateEntity(1, []any{Position{}, Position{}})
	assert.ErrorIs(t, err, ErrComponentAlreadyOnEntity)
}

func TestRemoveEntity_StaleIDStaysDead(t *testing.T) {
	f := newTestStore(t)

	stale, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.NilError(t, f.store.RemoveEntity(2, stale))

	// The freed index is recycled with a bumped generation; the stale ID must
	// not resolve to the new entity.
	fresh, err := f.store.CreateEntity(3, []any{Position{}})
	assert.NilError(t, err)
	assert.Equal(t, fresh.Index, stale.Index)
	assert.True(t, fresh.Generation > stale.Generation)

	assert.True(t, f.store.Index().IsAlive(fresh))
	assert.False(t, f.store.Index().IsAlive(stale))
	_, err = f.store.GetComponent(stale, f.pos)
	assert.ErrorIs(t, err, ErrEntityDoesNotExist)
}

func TestRemoveEntity_SwapRemoveRelocatesLast(t *testing.T) {
	f := newTestStore(t)

	first, err := f.store.CreateEntity(1, []any{Position{X: 1}})
	assert.NilError(t, err)
	_, err = f.store.CreateEntity(1, []any{Position{X: 2}})
	assert.NilError(t, err)
	last, err := f.store.CreateEntity(1, []any{Position{X: 3}})
	assert.NilError(t, err)

	assert.NilError(t, f.store.RemoveEntity(2, first))

	// The last entity fills the vacated slot and its index entry follows.
	loc, err := f.store.Index().Locate(last)
	assert.NilError(t, err)
	assert.Equal(t, loc.Slot, 0)

	got, err := f.store.GetComponent(last, f.pos)
	assert.NilError(t, err)
	assert.Equal(t, got.(Position).X, 3.0)
}

func TestAddRemoveComponent_ReturnsToOriginalArchetype(t *testing.T) {
	f := newTestStore(t)

	id, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	before, err := f.store.Index().Locate(id)
	assert.NilError(t, err)

	assert.NilError(t, f.store.AddComponent(2, id, Velocity{DX: 1}))
	mid, err := f.store.Index().Locate(id)
	assert.NilError(t, err)
	assert.Assert(t, mid.Archetype != before.Archetype)

	assert.NilError(t, f.store.RemoveComponent(3, id, f.vel))
	after, err := f.store.Index().Locate(id)
	assert.NilError(t, err)
	assert.Equal(t, after.Archetype, before.Archetype)

	// No third archetype was created for the round trip.
	assert.Equal(t, f.store.ArchetypeCount(), 2)
}

func TestAddComponent_AlreadyPresent(t *testing.T) {
	f := newTestStore(t)
	id, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.ErrorIs(t, f.store.AddComponent(2, id, Position{}), ErrComponentAlreadyOnEntity)
}

func TestRemoveComponent_LastComponentRejected(t *testing.T) {
	f := newTestStore(t)
	id, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.ErrorIs(t, f.store.RemoveComponent(2, id, f.pos), ErrEntityMustHaveAtLeastOneComponent)
}

func TestRemoveComponent_NotPresent(t *testing.T) {
	f := newTestStore(t)
	id, err := f.store.CreateEntity(1, []any{Position{}, Velocity{}})
	assert.NilError(t, err)
	assert.ErrorIs(t, f.store.RemoveComponent(2, id, f.health), ErrComponentNotOnEntity)
}

func TestSetComponent_StampsModified(t *testing.T) {
	f := newTestStore(t)

	id, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.NilError(t, f.store.SetComponent(5, id, Position{X: 9}))

	loc, err := f.store.Index().Locate(id)
	assert.NilError(t, err)
	arch, err := f.store.Archetype(loc.Archetype)
	assert.NilError(t, err)

	changed := arch.Column(f.pos.ID()).Changes().Since(ChangeModified, 4)
	assert.DeepEqual(t, changed, []SlotRange{SingleSlot(0)})
	assert.Len(t, arch.Column(f.pos.ID()).Changes().Since(ChangeModified, 5), 0)
}

func TestMoveEntity_ChangeHistoryFollows(t *testing.T) {
	f := newTestStore(t)

	id, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.NilError(t, f.store.SetComponent(2, id, Position{X: 1}))
	assert.NilError(t, f.store.AddComponent(3, id, Velocity{}))

	loc, err := f.store.Index().Locate(id)
	assert.NilError(t, err)
	arch, err := f.store.Archetype(loc.Archetype)
	assert.NilError(t, err)

	// The modified stamp from tick 2 migrated with the entity.
	changed := arch.Column(f.pos.ID()).Changes().Since(ChangeModified, 1)
	assert.DeepEqual(t, changed, []SlotRange{SingleSlot(loc.Slot)})
}

func TestFindArchetypes_FiltersAndPostings(t *testing.T) {
	f := newTestStore(t)

	_, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	both, err := f.store.CreateEntity(1, []any{Position{}, Velocity{}})
	assert.NilError(t, err)
	_, err = f.store.CreateEntity(1, []any{Health{}})
	assert.NilError(t, err)

	withPos, err := f.store.FindArchetypes(filter.Contains(f.pos))
	assert.NilError(t, err)
	assert.Len(t, withPos, 2)

	noVel, err := f.store.FindArchetypes(filter.And(filter.Contains(f.pos), filter.Without(f.vel)))
	assert.NilError(t, err)
	assert.Len(t, noVel, 1)

	exact, err := f.store.FindArchetypes(filter.Exact(f.pos, f.vel))
	assert.NilError(t, err)
	assert.Len(t, exact, 1)
	bothLoc, err := f.store.Index().Locate(both)
	assert.NilError(t, err)
	assert.Equal(t, exact[0], bothLoc.Archetype)
}

func TestFindArchetypes_UnsatisfiableContradiction(t *testing.T) {
	f := newTestStore(t)
	_, err := f.store.FindArchetypes(filter.And(filter.Contains(f.pos), filter.Without(f.pos)))
	assert.ErrorIs(t, err, ErrUnsatisfiableQuery)
}

func TestRelationEdges_IncomingIndex(t *testing.T) {
	f := newTestStore(t)

	parent, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	child, err := f.store.CreateEntity(1, []any{Position{}, ChildOf{Parent: parent}})
	assert.NilError(t, err)

	assert.DeepEqual(t, f.store.Incoming(parent, f.childOf.ID()), []types.EntityID{child})

	// Retargeting moves the reverse edge.
	other, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.NilError(t, f.store.SetComponent(2, child, ChildOf{Parent: other}))
	assert.Len(t, f.store.Incoming(parent, f.childOf.ID()), 0)
	assert.DeepEqual(t, f.store.Incoming(other, f.childOf.ID()), []types.EntityID{child})

	// Destroying the child clears its edge.
	assert.NilError(t, f.store.RemoveEntity(3, child))
	assert.Len(t, f.store.Incoming(other, f.childOf.ID()), 0)
}

func TestRelationRoots(t *testing.T) {
	f := newTestStore(t)

	root, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	mid, err := f.store.CreateEntity(1, []any{Position{}, ChildOf{Parent: root}})
	assert.NilError(t, err)
	_, err = f.store.CreateEntity(1, []any{Position{}, ChildOf{Parent: mid}})
	assert.NilError(t, err)

	// Only root is targeted without holding an edge itself.
	assert.DeepEqual(t, f.store.RelationRoots(f.childOf.ID()), []types.EntityID{root})
}

func TestPruneEmptyArchetypes(t *testing.T) {
	f := newTestStore(t)

	id, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.NilError(t, f.store.AddComponent(2, id, Velocity{}))

	// The position-only archetype is now empty but still present.
	assert.Equal(t, f.store.ArchetypeCount(), 2)
	assert.Equal(t, f.store.PruneEmptyArchetypes(), 1)
	assert.Equal(t, f.store.ArchetypeCount(), 1)

	// Re-entering the pruned set recreates the archetype under a fresh ID.
	assert.NilError(t, f.store.RemoveComponent(3, id, f.vel))
	loc, err := f.store.Index().Locate(id)
	assert.NilError(t, err)
	assert.Equal(t, int(loc.Archetype), 2)
}

func TestRebaseLedgers(t *testing.T) {
	f := newTestStore(t)

	id, err := f.store.CreateEntity(1, []any{Position{}})
	assert.NilError(t, err)
	assert.NilError(t, f.store.SetComponent(5, id, Position{X: 1}))

	f.store.RebaseLedgers(4)

	loc, err := f.store.Index().Locate(id)
	assert.NilError(t, err)
	arch, err := f.store.Archetype(loc.Archetype)
	assert.NilError(t, err)
	assert.Len(t, arch.Column(f.pos.ID()).Changes().Since(ChangeAdded, 0), 0)
	assert.Len(t, arch.Column(f.pos.ID()).Changes().Since(ChangeModified, 4), 1)
}
