// Cube/ADU wiring resolves an Open Question left implicit by spec §4.5: a
// cube is "one intra block followed by its inter blocks", and an ADU is
// meant to be independently decodable (spec §9 "the reset [of the Fenwick
// model] is what enables random-access decoding"). If inter prediction
// state crossed an ADU boundary, that random-access property would not
// hold — so here a cube's prediction state never crosses an ADU boundary:
// the first block a tile contributes within a given ADU is always
// intra-coded, and any further blocks contributed by the same tile within
// that same ADU's time window are inter-coded against the previous
// block's reconstructed state. This keeps every ADU self-contained while
// still giving a tile multiple temporal samples per ADU, as the event
// stream's variable rate requires. See DESIGN.md.
package compressed

import (
	"fmt"

	"github.com/adter/adter/internal/core"
)

// Cube is the per-tile, per-channel sequence of blocks within an ADU
// (spec glossary "Cube").
type Cube struct {
	TileX, TileY int
	Blocks       []*Block
}

// encodedBlock is the transmitted form of one of a cube's blocks: either
// an intra-coded anchor or an inter-coded prediction against the
// preceding block's reconstructed state.
type encodedBlock struct {
	Intra bool
	IC    intraCoded
	InC   interCoded
}

// encodeCube runs forward intra prediction on a cube's first block and
// forward inter prediction on every subsequent block, threading
// reconstructed per-pixel state between them (spec §4.5).
func encodeCube(cube *Cube, mode core.Mode, refInterval, deltaTMax uint32) ([]encodedBlock, error) {
	if len(cube.Blocks) == 0 {
		return nil, fmt.Errorf("compressed: cube has no blocks")
	}
	var state [BlockArea]interState
	out := make([]encodedBlock, 0, len(cube.Blocks))

	ic, ok := forwardIntra(cube.Blocks[0], mode, refInterval)
	if !ok {
		return nil, fmt.Errorf("compressed: cube's first block has no present pixels")
	}
	applyIntraState(state[:], ic)
	out = append(out, encodedBlock{Intra: true, IC: ic})

	for _, blk := range cube.Blocks[1:] {
		inC := forwardInter(blk, state[:], mode, refInterval, deltaTMax)
		applyInterState(state[:], inC)
		out = append(out, encodedBlock{Intra: false, InC: inC})
	}
	return out, nil
}

// decodeCube reverses encodeCube, reconstructing each block in order.
func decodeCube(encoded []encodedBlock, mode core.Mode, refInterval, deltaTMax uint32) ([]*Block, error) {
	if len(encoded) == 0 || !encoded[0].Intra {
		return nil, fmt.Errorf("compressed: cube's first block must be intra-coded")
	}
	var state [BlockArea]interState
	blocks := make([]*Block, 0, len(encoded))

	// Wire-decoded blocks carry only the transmitted fields; the recon
	// slices the state threading reads must be rebuilt here, exactly as
	// the encoder built them on its side.
	head := encoded[0].IC
	head.ReconT, head.ReconD = reconstructIntraTimes(head, mode, refInterval)
	blocks = append(blocks, intraBlockFromRecon(head, head.ReconT, head.ReconD))
	applyIntraState(state[:], head)

	for _, eb := range encoded[1:] {
		if eb.Intra {
			return nil, fmt.Errorf("compressed: only a cube's first block may be intra-coded")
		}
		inC := eb.InC
		inC.ReconT, inC.ReconD = reconstructInterTimes(inC, state[:], mode, refInterval, deltaTMax)
		blocks = append(blocks, interBlockFromRecon(inC, inC.ReconT, inC.ReconD))
		applyInterState(state[:], inC)
	}
	return blocks, nil
}
