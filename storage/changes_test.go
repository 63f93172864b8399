package storage

import (
	"testing"

	"github.com/tessera-engine/tessera/assert"
	"github.com/tessera-engine/tessera/types"
)

func init() {
	debugValidate = true
}

func entries(l *ChangeList) []Change {
	return append([]Change(nil), l.Entries()...)
}

func TestChangeList_NewerTickSplitsOlderEntry(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 5}, Tick: 1, Kind: ChangeModified})
	l.Set(Change{Range: SlotRange{3, 5}, Tick: 3, Kind: ChangeModified})

	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SlotRange{0, 3}, Tick: 1, Kind: ChangeModified},
		{Range: SlotRange{3, 5}, Tick: 3, Kind: ChangeModified},
	})
}

func TestChangeList_NewerTickSplitsMiddle(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 10}, Tick: 1, Kind: ChangeModified})
	l.Set(Change{Range: SlotRange{4, 6}, Tick: 2, Kind: ChangeModified})

	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SlotRange{0, 4}, Tick: 1, Kind: ChangeModified},
		{Range: SlotRange{4, 6}, Tick: 2, Kind: ChangeModified},
		{Range: SlotRange{6, 10}, Tick: 1, Kind: ChangeModified},
	})
}

func TestChangeList_OlderIncomingIsCarved(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{2, 6}, Tick: 5, Kind: ChangeModified})
	l.Set(Change{Range: SlotRange{0, 8}, Tick: 3, Kind: ChangeModified})

	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SlotRange{0, 2}, Tick: 3, Kind: ChangeModified},
		{Range: SlotRange{2, 6}, Tick: 5, Kind: ChangeModified},
		{Range: SlotRange{6, 8}, Tick: 3, Kind: ChangeModified},
	})
}

func TestChangeList_AdjacentSameTickCoalesce(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 2}, Tick: 4, Kind: ChangeAdded})
	l.Set(Change{Range: SlotRange{2, 4}, Tick: 4, Kind: ChangeAdded})

	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SlotRange{0, 4}, Tick: 4, Kind: ChangeAdded},
	})
}

func TestChangeList_AdjacentDifferentTickStaySplit(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 2}, Tick: 4, Kind: ChangeAdded})
	l.Set(Change{Range: SlotRange{2, 4}, Tick: 5, Kind: ChangeAdded})

	assert.Len(t, entries(&l), 2)
}

func TestChangeList_SameTickRefreshMerges(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 4}, Tick: 2, Kind: ChangeModified})
	l.Set(Change{Range: SlotRange{2, 6}, Tick: 2, Kind: ChangeModified})

	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SlotRange{0, 6}, Tick: 2, Kind: ChangeModified},
	})
}

func TestChangeList_SinceIsStrictlyGreater(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 3}, Tick: 7, Kind: ChangeModified})

	assert.Len(t, l.Since(7), 0)
	assert.DeepEqual(t, l.Since(6), []SlotRange{{0, 3}})
}

func TestChangeList_RemoveSplitsCoveringEntry(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 5}, Tick: 1, Kind: ChangeModified})

	removed := l.Remove(2)
	assert.DeepEqual(t, removed, []Change{
		{Range: SingleSlot(2), Tick: 1, Kind: ChangeModified},
	})
	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SlotRange{0, 2}, Tick: 1, Kind: ChangeModified},
		{Range: SlotRange{3, 5}, Tick: 1, Kind: ChangeModified},
	})
}

func TestChangeList_SwapOutMovesLastStampIntoHole(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SingleSlot(0), Tick: 1, Kind: ChangeModified})
	l.Set(Change{Range: SingleSlot(4), Tick: 9, Kind: ChangeModified})

	l.SwapOut(0, 4)
	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SingleSlot(0), Tick: 9, Kind: ChangeModified},
	})
}

func TestChangeList_MigrateToFollowsEntity(t *testing.T) {
	var src, dst ChangeList
	src.Set(Change{Range: SingleSlot(3), Tick: 6, Kind: ChangeAdded})
	src.Set(Change{Range: SlotRange{0, 2}, Tick: 1, Kind: ChangeAdded})

	src.MigrateTo(&dst, 3, 0)

	assert.DeepEqual(t, entries(&src), []Change{
		{Range: SlotRange{0, 2}, Tick: 1, Kind: ChangeAdded},
	})
	assert.DeepEqual(t, entries(&dst), []Change{
		{Range: SingleSlot(0), Tick: 6, Kind: ChangeAdded},
	})
}

func TestChangeList_RebaseDropsOldEntries(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{0, 2}, Tick: 2, Kind: ChangeModified})
	l.Set(Change{Range: SlotRange{2, 4}, Tick: 5, Kind: ChangeModified})

	l.Rebase(2)
	assert.DeepEqual(t, entries(&l), []Change{
		{Range: SlotRange{2, 4}, Tick: 5, Kind: ChangeModified},
	})
}

func TestChangeList_EmptyRangeIgnored(t *testing.T) {
	var l ChangeList
	l.Set(Change{Range: SlotRange{3, 3}, Tick: 1, Kind: ChangeModified})
	assert.Len(t, entries(&l), 0)
}

func TestChanges_RecordAndSinceByKind(t *testing.T) {
	var c Changes
	c.Record(ChangeAdded, SingleSlot(0), 1)
	c.Record(ChangeModified, SingleSlot(0), 2)

	assert.Len(t, c.Since(ChangeAdded, 1), 0)
	assert.DeepEqual(t, c.Since(ChangeModified, 1), []SlotRange{SingleSlot(0)})
}

func TestSlotRange_Subtract(t *testing.T) {
	r := SlotRange{2, 8}

	assert.DeepEqual(t, r.subtract(SlotRange{0, 2}), []SlotRange{{2, 8}})
	assert.DeepEqual(t, r.subtract(SlotRange{4, 6}), []SlotRange{{2, 4}, {6, 8}})
	assert.DeepEqual(t, r.subtract(SlotRange{2, 8}), []SlotRange(nil))
	assert.DeepEqual(t, r.subtract(SlotRange{0, 5}), []SlotRange{{5, 8}})
}

func TestSlotRangeHelpers(t *testing.T) {
	assert.True(t, SlotRange{1, 1}.IsEmpty())
	assert.True(t, SingleSlot(3).Contains(3))
	assert.False(t, SingleSlot(3).Contains(types.Slot(4)))
}
