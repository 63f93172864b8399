package filter

import (
	"github.com/tessera-engine/tessera/types"
)

type without struct {
	mask types.Mask
}

// Without matches archetypes that contain none of the components specified.
func Without(components ...types.ComponentMetadata) ComponentFilter {
	return &without{mask: maskOf(components)}
}

func (f *without) MatchesMask(mask types.Mask) bool {
	return !mask.Intersects(f.mask)
}

func (f *without) Summary() Summary {
	return Summary{Excluded: f.mask}
}
