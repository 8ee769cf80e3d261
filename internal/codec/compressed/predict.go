package compressed

import "github.com/adter/adter/internal/core"

// interState is the decoder-equivalent per-pixel reconstructed state
// carried between blocks of the same cube, matching spec §4.5's "maintain
// reconstructed t state exactly as the decoder will, to prevent drift".
type interState struct {
	D       core.D
	T       float64
	Present bool
}

// predictDeltaT implements spec §4.5's "Forward inter prediction" scaling
// rule: predict delta_t_new from delta_t_prev scaled by a power of two
// derived from d_residual (left-shift if d grew by a small positive
// amount, right-shift if it shrank, unchanged otherwise), clamped to
// delta_t_max per the Open Question's documented safe policy (spec §9).
func predictDeltaT(prevT float64, dResidual int32, deltaTMax uint32) float64 {
	predicted := prevT
	switch {
	case dResidual > 0 && dResidual < 8:
		predicted = prevT * float64(int64(1)<<uint(dResidual))
	case dResidual < 0 && dResidual > -8:
		predicted = prevT / float64(int64(1)<<uint(-dResidual))
	}
	if deltaTMax > 0 && predicted > float64(deltaTMax) {
		predicted = float64(deltaTMax)
	}
	if predicted < 0 {
		predicted = 0
	}
	return predicted
}

// interCoded is the transmitted form of a forward-inter-predicted block.
type interCoded struct {
	Sparam     uint8
	Positions  []int
	DResiduals []int32
	TResiduals []int16
	ReconT     []float64
	ReconD     []core.D
}

// forwardInter implements spec §4.5's "Forward inter prediction": every
// present pixel is coded against prev's reconstructed state at the same
// position. A pixel with no prior state codes its raw d as the residual
// and predicts from zero, matching an intra anchor's seed.
func forwardInter(b *Block, prev []interState, mode core.Mode, refInterval, deltaTMax uint32) interCoded {
	var positions []int
	var dRaw []int32
	var tRaw []float64
	var maxAbs float64

	for i, s := range b.Slots {
		if !s.Present {
			continue
		}
		prevSt := prev[i]
		var dResidual int32
		var predicted float64
		if prevSt.Present {
			dResidual = int32(s.D) - int32(prevSt.D)
			predicted = predictDeltaT(prevSt.T, dResidual, deltaTMax)
		} else {
			dResidual = int32(s.D)
			predicted = 0
		}
		positions = append(positions, i)
		dRaw = append(dRaw, dResidual)
		tr := s.DeltaT - predicted
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

	ic := interCoded{Sparam: sparam, Positions: positions, DResiduals: dRaw, TResiduals: tQuant}
	ic.ReconT, ic.ReconD = reconstructInterTimes(ic, prev, mode, refInterval, deltaTMax)
	return ic
}

// inverseInter implements spec §4.5's "Inverse inter prediction": the
// symmetric reconstruction of forwardInter.
func inverseInter(ic interCoded, prev []interState, mode core.Mode, refInterval, deltaTMax uint32) *Block {
	reconT, reconD := reconstructInterTimes(ic, prev, mode, refInterval, deltaTMax)
	return interBlockFromRecon(ic, reconT, reconD)
}

// interBlockFromRecon lays already-reconstructed (d, t) pairs back into a
// Block.
func interBlockFromRecon(ic interCoded, reconT []float64, reconD []core.D) *Block {
	b := &Block{}
	for i, pos := range ic.Positions {
		b.Set(pos%TileSize, pos/TileSize, reconD[i], reconT[i])
	}
	return b
}

func reconstructInterTimes(ic interCoded, prev []interState, mode core.Mode, refInterval, deltaTMax uint32) ([]float64, []core.D) {
	reconT := make([]float64, len(ic.Positions))
	reconD := make([]core.D, len(ic.Positions))
	for i, pos := range ic.Positions {
		prevSt := prev[pos]
		var predicted float64
		var d core.D
		if prevSt.Present {
			predicted = predictDeltaT(prevSt.T, ic.DResiduals[i], deltaTMax)
			d = core.D(int32(prevSt.D) + ic.DResiduals[i])
		} else {
			predicted = 0
			d = core.D(ic.DResiduals[i])
		}
		t := predicted + dequantize(ic.TResiduals[i], ic.Sparam)
		reconT[i] = roundForMode(t, mode, refInterval)
		reconD[i] = d
	}
	return reconT, reconD
}

// applyIntraState folds a block's reconstructed (d, t) pairs into prev,
// threading prediction state from one block to the next within a cube.
func applyIntraState(prev []interState, ic intraCoded) {
	prev[ic.AnchorPos] = interState{D: ic.ReconD[0], T: ic.ReconT[0], Present: true}
	for i, pos := range ic.Positions {
		prev[pos] = interState{D: ic.ReconD[i+1], T: ic.ReconT[i+1], Present: true}
	}
}

func applyInterState(prev []interState, ic interCoded) {
	for i, pos := range ic.Positions {
		prev[pos] = interState{D: ic.ReconD[i], T: ic.ReconT[i], Present: true}
	}
}
