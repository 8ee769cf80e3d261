// Frame-to-cube wiring: grouping a single spatial frame's point events into
// the tiled cube/block layout Encode/Decode operate on, and the reverse.
// There is no direct teacher analog for this grouping (webp has no
// equivalent of "a sparse point stream tiled into fixed blocks"); it is new
// plumbing built to the cube/block shapes already defined in block.go and
// cube.go, following their naming and slot layout exactly.
package compressed

import "github.com/adter/adter/internal/core"

// TileCounts returns how many tile columns and rows cover a width x height
// plane.
func TileCounts(width, height int) (int, int) {
	tx := (width + TileSize - 1) / TileSize
	ty := (height + TileSize - 1) / TileSize
	return tx, ty
}

// BuildChannelCubes groups one frame's events for a single channel into
// per-tile cubes. A pixel's successive events within the frame land in
// successive temporal blocks of its tile's cube, matching the cube model
// in cube.go: block 0 is always the tile's intra anchor, later blocks
// predict from the one before.
func BuildChannelCubes(events []core.Event, channel uint8, width, height int) []*Cube {
	type key struct{ tx, ty int }

	cubes := make(map[key]*Cube)
	occurrence := make(map[key]map[int]int)
	var order []key

	for _, e := range events {
		if e.IsEOF() || e.Coord.Channel() != channel {
			continue
		}
		x, y := int(e.Coord.X), int(e.Coord.Y)
		k := key{x / TileSize, y / TileSize}

		c, ok := cubes[k]
		if !ok {
			c = &Cube{TileX: k.tx, TileY: k.ty}
			cubes[k] = c
			occurrence[k] = make(map[int]int)
			order = append(order, k)
		}

		lx, ly := x%TileSize, y%TileSize
		pos := ly*TileSize + lx
		idx := occurrence[k][pos]
		occurrence[k][pos] = idx + 1
		for len(c.Blocks) <= idx {
			c.Blocks = append(c.Blocks, &Block{})
		}
		c.Blocks[idx].Set(lx, ly, e.D, float64(e.T))
	}

	out := make([]*Cube, 0, len(order))
	for _, k := range order {
		out = append(out, cubes[k])
	}
	_ = width
	_ = height
	return out
}

// EventsFromChannelCubes reverses BuildChannelCubes, reconstructing one
// channel's events in tile and temporal-block order. Events across
// different tiles carry no relative order guarantee beyond what §5
// already allows for chunk-parallel dispatch.
func EventsFromChannelCubes(cubes []*Cube, channel uint8, multiChannel bool) []core.Event {
	var events []core.Event
	for _, c := range cubes {
		for _, blk := range c.Blocks {
			for pos := 0; pos < BlockArea; pos++ {
				s := blk.Slots[pos]
				if !s.Present {
					continue
				}
				lx, ly := pos%TileSize, pos/TileSize
				coord := core.Coord{
					X: uint16(c.TileX*TileSize + lx),
					Y: uint16(c.TileY*TileSize + ly),
				}
				if multiChannel {
					ch := channel
					coord.C = &ch
				}
				events = append(events, core.Event{Coord: coord, D: s.D, T: uint32(s.DeltaT)})
			}
		}
	}
	return events
}
