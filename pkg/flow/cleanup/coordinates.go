package cleanup

import (
	"sort"

	"github.com/espalierhq/espalier/pkg/flow"
)

// Horizontal spacing between auto-placed elements.
const placementStride = 280

// fixCoordinates assigns layout positions to nodes and layers that are
// missing one. Placement is purely cosmetic and deterministic: missing
// elements are laid out left to right in ID order below the lowest
// placed element, so running the pass twice changes nothing.
type fixCoordinates struct {
	missingNodes  []string
	missingLayers []string
	baseY         float64
}

func (f *fixCoordinates) Name() string { return "fix_initial_coordinates" }

func (f *fixCoordinates) Collect(b *flow.Board) {
	f.missingNodes = f.missingNodes[:0]
	f.missingLayers = f.missingLayers[:0]
	f.baseY = 0
	for id, n := range b.Nodes {
		if n.Coordinates == nil {
			f.missingNodes = append(f.missingNodes, id)
		} else if n.Coordinates[1] > f.baseY {
			f.baseY = n.Coordinates[1]
		}
	}
	for id, l := range b.Layers {
		if l.Coordinates == nil {
			f.missingLayers = append(f.missingLayers, id)
		} else if l.Coordinates[1] > f.baseY {
			f.baseY = l.Coordinates[1]
		}
	}
	sort.Strings(f.missingNodes)
	sort.Strings(f.missingLayers)
}

func (f *fixCoordinates) Apply(b *flow.Board, _ map[string]flow.PinRef) {
	y := f.baseY
	if len(f.missingNodes) > 0 || len(f.missingLayers) > 0 {
		y += placementStride
	}
	x := float64(0)
	for _, id := range f.missingNodes {
		coords := [3]float64{x, y, 0}
		b.Nodes[id].Coordinates = &coords
		x += placementStride
	}
	for _, id := range f.missingLayers {
		coords := [3]float64{x, y, 0}
		b.Layers[id].Coordinates = &coords
		x += placementStride
	}
}

func (f *fixCoordinates) Finalize(*flow.Board) {}
