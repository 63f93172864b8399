package filter

import (
	"github.com/tessera-engine/tessera/types"
)

type contains struct {
	mask types.Mask
}

// Contains matches archetypes that contain all the components specified.
func Contains(components ...types.ComponentMetadata) ComponentFilter {
	return &contains{mask: maskOf(components)}
}

func (f *contains) MatchesMask(mask types.Mask) bool {
	return mask.ContainsAll(f.mask)
}

func (f *contains) Summary() Summary {
	return Summary{Required: f.mask}
}
