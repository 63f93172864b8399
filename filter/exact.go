package filter

import (
	"github.com/tessera-engine/tessera/types"
)

type exact struct {
	mask types.Mask
}

// Exact matches archetypes that contain exactly the components specified.
func Exact(components ...types.ComponentMetadata) ComponentFilter {
	return &exact{mask: maskOf(components)}
}

func (f *exact) MatchesMask(mask types.Mask) bool {
	return mask == f.mask
}

func (f *exact) Summary() Summary {
	return Summary{Required: f.mask}
}
