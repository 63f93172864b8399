package filter

import (
	"github.com/tessera-engine/tessera/types"
)

// ComponentFilter is a filter that filters entities based on their components.
type ComponentFilter interface {
	// MatchesMask returns true if an archetype with the given component mask
	// satisfies the filter.
	MatchesMask(mask types.Mask) bool
	// Summary returns the components that are definitely required and
	// definitely excluded by this filter. It is used to seed the archetype
	// graph walk so that queries do not scan every archetype.
	Summary() Summary
}

// Summary is a conservative component-set summary of a filter. A filter may
// match fewer archetypes than its summary admits, never more.
type Summary struct {
	Required types.Mask
	Excluded types.Mask
}

func (s Summary) merge(other Summary) Summary {
	for i := range s.Required {
		s.Required[i] |= other.Required[i]
		s.Excluded[i] |= other.Excluded[i]
	}
	return s
}

func maskOf(components []types.ComponentMetadata) types.Mask {
	var m types.Mask
	for _, c := range components {
		m = m.Set(c.ID())
	}
	return m
}
