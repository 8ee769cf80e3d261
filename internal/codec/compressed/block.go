package compressed

import (
	"github.com/adter/adter/internal/core"
)

// TileSize is the side length of a block's pixel tile (spec §4.5 "Blocks
// are 16x16 pixel tiles").
const TileSize = 16

// BlockArea is BLOCK_SIZE_AREA from spec §4.5.
const BlockArea = TileSize * TileSize

// maxQuantized is 2^15 - 1, the largest magnitude a quantized delta_t
// residual may carry once it is narrowed to an i16 (spec §4.5 "raise a
// shift loss parameter sparam such that max_residual >> sparam <=
// 2^15 - 1").
const maxQuantized = 1<<15 - 1

// Slot holds one pixel position's event within a Block, if any.
type Slot struct {
	D       core.D
	DeltaT  float64
	Present bool
}

// Block is one 16x16 tile's batch of events for a single channel at one
// coding instant (spec §4.5).
type Block struct {
	Slots [BlockArea]Slot
}

// Set records an event at local tile position (x, y).
func (b *Block) Set(x, y int, d core.D, deltaT float64) {
	b.Slots[y*TileSize+x] = Slot{D: d, DeltaT: deltaT, Present: true}
}

// intraCoded is the transmitted form of a forward-intra-predicted block
// (spec §4.5 "Inverse intra prediction... (start_t, start_d, sparam,
// d_residuals, t_residuals)").
type intraCoded struct {
	AnchorPos  int
	StartD     core.D
	StartT     float64
	Sparam     uint8
	Positions  []int
	DResiduals []int32
	TResiduals []int16
	// ReconT is the reconstructed time for every present pixel in scan
	// order, anchor first, used to seed the next block's inter prediction
	// (spec §4.5 "Record per-pixel reconstructed times for FramePerfect
	// alignment").
	ReconT []float64
	ReconD []core.D
}

// forwardIntra implements spec §4.5's "Forward intra prediction": the
// first present pixel in scan order is the anchor (start_d, start_t);
// every other present pixel is coded as a (d_residual, delta_t_residual)
// pair, quantized by a shared shift-loss parameter sparam. ok is false if
// the block has no present pixels.
func forwardIntra(b *Block, mode core.Mode, refInterval uint32) (intraCoded, bool) {
	anchorPos := -1
	for i, s := range b.Slots {
		if s.Present {
			anchorPos = i
			break
		}
	}
	if anchorPos < 0 {
		return intraCoded{}, false
	}
	anchor := b.Slots[anchorPos]

	var positions []int
	var dRaw []int32
	var tRaw []float64
	var maxAbs float64
	for i := anchorPos + 1; i < BlockArea; i++ {
		s := b.Slots[i]
		if !s.Present {
			continue
		}
		positions = append(positions, i)
		dRaw = append(dRaw, int32(s.D)-int32(anchor.D))
		tr := s.DeltaT - anchor.DeltaT
		tRaw = append(tRaw, tr)
		if a := abs(tr); a > maxAbs {
			maxAbs = a
		}
	}

	sparam := shiftLossFor(maxAbs)
	tQuant := make([]int16, len(tRaw))
	for i, v := range tRaw {
		tQuant[i] = quantize(v, sparam)
	}

	ic := intraCoded{
		AnchorPos:  anchorPos,
		StartD:     anchor.D,
		StartT:     anchor.DeltaT,
		Sparam:     sparam,
		Positions:  positions,
		DResiduals: dRaw,
		TResiduals: tQuant,
	}
	ic.ReconT, ic.ReconD = reconstructIntraTimes(ic, mode, refInterval)
	return ic, true
}

// inverseIntra implements spec §4.5's "Inverse intra prediction": reverse
// the residual math using the transmitted fields.
func inverseIntra(ic intraCoded, mode core.Mode, refInterval uint32) *Block {
	reconT, reconD := reconstructIntraTimes(ic, mode, refInterval)
	return intraBlockFromRecon(ic, reconT, reconD)
}

// intraBlockFromRecon lays already-reconstructed (d, t) pairs back into a
// Block, anchor first.
func intraBlockFromRecon(ic intraCoded, reconT []float64, reconD []core.D) *Block {
	b := &Block{}
	b.Set(ic.AnchorPos%TileSize, ic.AnchorPos/TileSize, reconD[0], reconT[0])
	for i, pos := range ic.Positions {
		b.Set(pos%TileSize, pos/TileSize, reconD[i+1], reconT[i+1])
	}
	return b
}

// reconstructIntraTimes derives the reconstructed (d, t) pair for the
// anchor and every residual entry, applying the FramePerfect rounding
// described in spec §4.5 when the pixel mode calls for it.
func reconstructIntraTimes(ic intraCoded, mode core.Mode, refInterval uint32) ([]float64, []core.D) {
	reconT := make([]float64, len(ic.Positions)+1)
	reconD := make([]core.D, len(ic.Positions)+1)
	reconT[0] = roundForMode(ic.StartT, mode, refInterval)
	reconD[0] = ic.StartD
	for i := range ic.Positions {
		t := ic.StartT + dequantize(ic.TResiduals[i], ic.Sparam)
		reconT[i+1] = roundForMode(t, mode, refInterval)
		reconD[i+1] = core.D(int32(ic.StartD) + ic.DResiduals[i])
	}
	return reconT, reconD
}

func shiftLossFor(maxAbs float64) uint8 {
	var sparam uint8
	v := int64(maxAbs)
	for v>>sparam > maxQuantized {
		sparam++
	}
	return sparam
}

func quantize(v float64, sparam uint8) int16 {
	q := int64(v) >> sparam
	if q > maxQuantized {
		q = maxQuantized
	}
	if q < -maxQuantized-1 {
		q = -maxQuantized - 1
	}
	return int16(q)
}

func dequantize(q int16, sparam uint8) float64 {
	return float64(int64(q) << sparam)
}

func roundForMode(t float64, mode core.Mode, refInterval uint32) float64 {
	if mode != core.FramePerfect || refInterval == 0 {
		return t
	}
	return roundUpToMultiple(t, refInterval)
}

func roundUpToMultiple(v float64, ref uint32) float64 {
	iv := int64(v)
	r := int64(ref)
	if iv%r == 0 {
		return float64(iv)
	}
	if iv < 0 {
		return float64((iv / r) * r)
	}
	return float64((iv/r + 1) * r)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
