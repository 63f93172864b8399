package types

import "math/bits"

// MaxComponentTypes is the maximum number of component types that can be
// registered in one world.
const MaxComponentTypes = 256

const maskWords = MaxComponentTypes / 64

// Mask is a fixed-size bitset over component IDs. An archetype's identity is
// its mask; query summaries are expressed as required/excluded mask pairs.
type Mask [maskWords]uint64

// Has reports whether the component bit is set.
func (m Mask) Has(id ComponentID) bool {
	if id < 0 || id >= MaxComponentTypes {
		return false
	}
	return m[id/64]&(1<<(uint(id)%64)) != 0
}

// Set returns a copy of the mask with the component bit set.
func (m Mask) Set(id ComponentID) Mask {
	m[id/64] |= 1 << (uint(id) % 64)
	return m
}

// Unset returns a copy of the mask with the component bit cleared.
func (m Mask) Unset(id ComponentID) Mask {
	m[id/64] &^= 1 << (uint(id) % 64)
	return m
}

// ContainsAll reports whether every bit in other is also set in m.
func (m Mask) ContainsAll(other Mask) bool {
	for i := range m {
		if m[i]&other[i] != other[i] {
			return false
		}
	}
	return true
}

// Intersects reports whether m and other share at least one bit.
func (m Mask) Intersects(other Mask) bool {
	for i := range m {
		if m[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

// Count returns the number of set bits.
func (m Mask) Count() int {
	n := 0
	for i := range m {
		n += bits.OnesCount64(m[i])
	}
	return n
}

// IsZero reports whether no bits are set.
func (m Mask) IsZero() bool {
	for i := range m {
		if m[i] != 0 {
			return false
		}
	}
	return true
}

// Components returns the IDs of all set bits in ascending order.
func (m Mask) Components() []ComponentID {
	ids := make([]ComponentID, 0, m.Count())
	for w := 0; w < maskWords; w++ {
		word := m[w]
		for word != 0 {
			bit := bits.TrailingZeros64(word)
			ids = append(ids, ComponentID(w*64+bit))
			word &= word - 1
		}
	}
	return ids
}

// MaskOf builds a mask from a list of component IDs.
func MaskOf(ids ...ComponentID) Mask {
	var m Mask
	for _, id := range ids {
		m = m.Set(id)
	}
	return m
}
