package storage

import (
	"fmt"
	"sort"

	"github.com/tessera-engine/tessera/types"
)

// ChangeKind classifies a ledger entry.
type ChangeKind uint8

const (
	// ChangeAdded marks slots whose component was inserted.
	ChangeAdded ChangeKind = iota
	// ChangeModified marks slots whose component value was written.
	ChangeModified
	// ChangeRemoved marks slots whose component was removed.
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// SlotRange is a half-open range of slots [Start, End).
type SlotRange struct {
	Start types.Slot
	End   types.Slot
}

// SingleSlot returns the range covering exactly one slot.
func SingleSlot(slot types.Slot) SlotRange {
	return SlotRange{Start: slot, End: slot + 1}
}

func (r SlotRange) IsEmpty() bool {
	return r.End <= r.Start
}

func (r SlotRange) Contains(slot types.Slot) bool {
	return slot >= r.Start && slot < r.End
}

// subtract returns the parts of r not covered by other, in ascending order.
func (r SlotRange) subtract(other SlotRange) []SlotRange {
	if other.End <= r.Start || other.Start >= r.End {
		return []SlotRange{r}
	}
	var out []SlotRange
	if other.Start > r.Start {
		out = append(out, SlotRange{Start: r.Start, End: other.Start})
	}
	if other.End < r.End {
		out = append(out, SlotRange{Start: other.End, End: r.End})
	}
	return out
}

// Change is one ledger entry: a slot range stamped with the tick at which the
// change happened.
type Change struct {
	Range SlotRange
	Tick  types.Tick
	Kind  ChangeKind
}

// ChangeList is a self-compacting ledger for one change kind of one column.
// Entries are kept ascending by slot and non-overlapping; a slot is covered
// by at most one entry, carrying its most recent tick. Adjacent ranges with
// the same tick are coalesced, so ledger size is bounded by the number of
// distinct mutation bursts rather than the number of mutated entities.
type ChangeList struct {
	changes []Change
}

// debugValidate enables the ordering invariant check after every mutation.
// Tests flip this on; an invariant violation is a programming error and
// panics.
var debugValidate = false

// Set merges the stamped range into the ledger. Newer ticks win on overlap;
// older entries are split around the incoming range.
func (l *ChangeList) Set(change Change) {
	if change.Range.IsEmpty() {
		return
	}

	incoming := []SlotRange{change.Range}
	kept := make([]Change, 0, len(l.changes)+1)
	for _, v := range l.changes {
		switch {
		case v.Tick <= change.Tick:
			// The incoming stamp is newer (or refreshes the same tick): keep
			// only the parts of the old entry outside the incoming range.
			for _, piece := range v.Range.subtract(change.Range) {
				kept = append(kept, Change{Range: piece, Tick: v.Tick, Kind: v.Kind})
			}
		default:
			// The existing entry is newer: carve it out of the incoming range.
			var next []SlotRange
			for _, piece := range incoming {
				next = append(next, piece.subtract(v.Range)...)
			}
			incoming = next
			kept = append(kept, v)
		}
	}
	for _, piece := range incoming {
		kept = append(kept, Change{Range: piece, Tick: change.Tick, Kind: change.Kind})
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Range.Start < kept[j].Range.Start })
	l.changes = coalesce(kept)

	if debugValidate {
		l.validate()
	}
}

// coalesce merges adjacent entries that share a tick. Input must be sorted by
// range start and non-overlapping.
func coalesce(changes []Change) []Change {
	if len(changes) == 0 {
		return changes
	}
	out := changes[:1]
	for _, v := range changes[1:] {
		last := &out[len(out)-1]
		if last.Tick == v.Tick && last.Range.End == v.Range.Start {
			last.Range.End = v.Range.End
			continue
		}
		out = append(out, v)
	}
	return out
}

// Remove removes a single slot from the ledger, splitting any covering entry,
// and returns the removed stamps.
func (l *ChangeList) Remove(slot types.Slot) []Change {
	target := SingleSlot(slot)
	var removed []Change
	kept := make([]Change, 0, len(l.changes))
	for _, v := range l.changes {
		if !v.Range.Contains(slot) {
			kept = append(kept, v)
			continue
		}
		removed = append(removed, Change{Range: target, Tick: v.Tick, Kind: v.Kind})
		for _, piece := range v.Range.subtract(target) {
			kept = append(kept, Change{Range: piece, Tick: v.Tick, Kind: v.Kind})
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Range.Start < kept[j].Range.Start })
	l.changes = kept

	if debugValidate {
		l.validate()
	}
	return removed
}

// SwapOut removes src by moving dst's stamps into its place, mirroring the
// swap-remove of the column values. The removed stamps of src are returned.
func (l *ChangeList) SwapOut(src, dst types.Slot) []Change {
	srcChanges := l.Remove(src)
	if src == dst {
		return srcChanges
	}
	for _, v := range l.Remove(dst) {
		v.Range = SingleSlot(src)
		l.Set(v)
	}
	return srcChanges
}

// MigrateTo moves the stamps of srcSlot into other at dstSlot. Used when an
// entity's row moves between archetypes so change history follows the entity.
func (l *ChangeList) MigrateTo(other *ChangeList, srcSlot, dstSlot types.Slot) {
	for _, v := range l.Remove(srcSlot) {
		v.Range = SingleSlot(dstSlot)
		other.Set(v)
	}
}

// Since returns the ranges stamped strictly after the given tick.
func (l *ChangeList) Since(tick types.Tick) []SlotRange {
	var out []SlotRange
	for _, v := range l.changes {
		if v.Tick > tick {
			out = append(out, v.Range)
		}
	}
	return out
}

// Rebase drops entries at or before the given tick. Callers must not rebase
// past the oldest tick any live query still tracks.
func (l *ChangeList) Rebase(tick types.Tick) {
	kept := l.changes[:0]
	for _, v := range l.changes {
		if v.Tick > tick {
			kept = append(kept, v)
		}
	}
	l.changes = kept
}

// Len returns the number of ledger entries.
func (l *ChangeList) Len() int {
	return len(l.changes)
}

// Entries returns the ledger entries in ascending slot order.
func (l *ChangeList) Entries() []Change {
	return l.changes
}

func (l *ChangeList) validate() {
	for i := 1; i < len(l.changes); i++ {
		prev, cur := l.changes[i-1], l.changes[i]
		if cur.Range.Start < prev.Range.End {
			panic(fmt.Sprintf("storage: change ledger overlap after merge: %+v then %+v", prev, cur))
		}
	}
}

// Changes bundles the three ledgers kept per (archetype, column).
type Changes struct {
	added    ChangeList
	modified ChangeList
	removed  ChangeList
}

// ByKind returns the ledger for the given change kind.
func (c *Changes) ByKind(kind ChangeKind) *ChangeList {
	switch kind {
	case ChangeAdded:
		return &c.added
	case ChangeModified:
		return &c.modified
	case ChangeRemoved:
		return &c.removed
	}
	panic(fmt.Sprintf("storage: unknown change kind %d", kind))
}

// Record merges the stamped range into the ledger for the given kind.
func (c *Changes) Record(kind ChangeKind, r SlotRange, tick types.Tick) {
	c.ByKind(kind).Set(Change{Range: r, Tick: tick, Kind: kind})
}

// Since returns slots of the given kind stamped strictly after tick.
func (c *Changes) Since(kind ChangeKind, tick types.Tick) []SlotRange {
	return c.ByKind(kind).Since(tick)
}

// SwapOut applies a swap-remove of src (filled from dst) to all three ledgers.
func (c *Changes) SwapOut(src, dst types.Slot) {
	c.added.SwapOut(src, dst)
	c.modified.SwapOut(src, dst)
	c.removed.SwapOut(src, dst)
}

// MigrateTo moves all stamps for srcSlot into other at dstSlot.
func (c *Changes) MigrateTo(other *Changes, srcSlot, dstSlot types.Slot) {
	c.added.MigrateTo(&other.added, srcSlot, dstSlot)
	c.modified.MigrateTo(&other.modified, srcSlot, dstSlot)
	c.removed.MigrateTo(&other.removed, srcSlot, dstSlot)
}

// Rebase drops entries at or before tick from all three ledgers.
func (c *Changes) Rebase(tick types.Tick) {
	c.added.Rebase(tick)
	c.modified.Rebase(tick)
	c.removed.Rebase(tick)
}
