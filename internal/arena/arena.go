// Package arena implements the per-pixel speculative integrator described
// in the spec as the "pixel arena" (component A): it converts a stream of
// (intensity, time) samples into ADTER events without buffering large
// event histories, by keeping a short speculative chain of branch nodes
// per pixel.
//
// It is adapted from the teacher's per-macroblock encode state machine
// (internal/lossy/encode_iterator.go, encode_frame.go): there, one small
// fixed-size struct walks a macroblock through mode decision, residual
// coding, and reconstruction feedback entirely in place, with no
// heap-allocated tree. Here, one small fixed-size struct walks a pixel
// through repeated overshoot/branch/commit cycles the same way.
package arena

import (
	"math"

	"github.com/adter/adter/internal/core"
)

// maxNodes bounds the speculation arena. The spec notes six nodes suffice
// in practice and a cap of 16 is more than safe; we use a fixed array
// instead of a growable slice so a PixelArena never allocates after
// construction (the grid holds width*height*channels of these).
const maxNodes = 16

// pendingEvent is a node's "if I fired now" event, cached in delta-t space
// until the node is committed (popped). It is distinct from core.Event
// because T there is a fixed-width on-wire integer; here DeltaT is still a
// float64 so repeated overshoot math doesn't accumulate rounding error.
type pendingEvent struct {
	D      core.D
	DeltaT float64
}

// node is one element of the speculation arena (spec §3 "PixelNode").
type node struct {
	D           core.D
	Integration float64
	DeltaT      float64
	Best        *pendingEvent
	Alt         bool // true once this node has a successor (spec invariant 2)
}

func freshNode(seedIntensity float64) node {
	return node{D: dFromIntensity(seedIntensity)}
}

// Arena is the per-pixel speculative integrator (spec §3 "PixelArena").
type Arena struct {
	Coord      core.Coord
	TimeMode   core.TimeMode
	LastFiredT float64
	RunningT   float64

	length int
	nodes  [maxNodes]node

	BaseVal uint8

	NeedToPopTop bool
	dtmReached   bool
	poppedDtm    bool

	CThresh          uint8
	CIncreaseCounter uint8
}

// New creates a PixelArena seeded with a single fresh head node, per spec
// invariant 1 ("arena length >= 1 at all times").
func New(coord core.Coord, startIntensity float64) *Arena {
	a := &Arena{
		Coord:            coord,
		length:           1,
		CThresh:          10,
		CIncreaseCounter: 1,
	}
	a.nodes[0] = freshNode(startIntensity)
	return a
}

// Len reports the current number of live nodes in the speculation arena.
func (a *Arena) Len() int { return a.length }

// SetTimeMode configures whether emitted events carry delta or absolute
// time. The kernel always integrates in delta-t space regardless (spec §9
// "Time-mode duality"); this only affects the conversion done at emission.
func (a *Arena) SetTimeMode(mode core.TimeMode) { a.TimeMode = mode }

// dFromIntensity returns floor(log2(intensity)) clamped to [0, DMax],
// matching the spec's rule for seeding a fresh node's decimation.
func dFromIntensity(intensity float64) core.D {
	if intensity <= 0 {
		return 0
	}
	d := int(math.Floor(math.Log2(intensity)))
	if d < 0 {
		d = 0
	}
	if d > int(core.DMax) {
		d = int(core.DMax)
	}
	return core.D(d)
}

// advanceD returns the smallest d >= from such that 2^d > integration,
// per spec §4.1 step 3 ("advance d to the smallest value where 2^d >
// integration").
func advanceD(from core.D, integration float64) core.D {
	d := from
	for d < core.DMax && core.DShift[d] <= integration {
		d++
	}
	return d
}

// Integrate ingests an intensity sample spanning time ticks (spec §4.1
// "Integration algorithm"). It may branch the arena and sets
// NeedToPopTop when the head saturates at DMax or reaches dtm.
func (a *Arena) Integrate(
	intensity, time float64,
	mode core.Mode,
	dtm uint32,
	refTime uint32,
	cThreshMax uint8,
	cIncreaseVelocity uint8,
	multiMode core.PixelMultiMode,
) {
	tail := &a.nodes[a.length-1]
	if tail.DeltaT == 0 && tail.Integration == 0 {
		tail.D = dFromIntensity(intensity)
	}
	a.RunningT += time

	idx := 0
	for {
		n := &a.nodes[idx]
		if n.Integration+intensity >= core.DShift[n.D] {
			// A sample large enough to cross more than one decimation
			// threshold in a single call must jump d straight to the
			// value the full post-add intensity warrants before deriving
			// prop/best_event, not the stale pre-add n.D — otherwise the
			// committed event is quantized at the wrong (too-small) d and
			// the bulk of the intensity gets shunted into cascading extra
			// branch nodes instead of being captured in this one.
			newD := dFromIntensity(n.Integration + intensity)
			threshold := core.DShift[newD]
			prop := (threshold - n.Integration) / intensity
			bestDeltaT := n.DeltaT + time*prop
			if mode == core.FramePerfect {
				// The remainder is dropped below, so the event spans the
				// whole sample and stays on the frame grid.
				bestDeltaT = n.DeltaT + time
			}
			n.Best = &pendingEvent{D: newD, DeltaT: bestDeltaT}
			n.Integration += intensity
			n.DeltaT += time
			n.D = advanceD(newD, n.Integration)
			n.Alt = true

			var remIntensity, remTime float64
			if mode == core.FramePerfect {
				remIntensity, remTime = 0, 0
			} else {
				remIntensity = intensity - intensity*prop
				remTime = time - time*prop
			}

			if idx+1 >= maxNodes {
				// Arena exhausted; stop branching and let the caller pop.
				break
			}
			if idx+1 >= a.length {
				// Only seed a fresh node when none exists yet at this
				// depth; if one does, it already holds accumulation from
				// an earlier branch and must not be clobbered here (that
				// would silently lose intensity).
				a.nodes[idx+1] = freshNode(intensity)
				a.length = idx + 2
			}

			intensity, time = remIntensity, remTime

			if multiMode == core.Collapse {
				break
			}
			idx++
			if idx >= a.length || intensity <= 0 {
				break
			}
			continue
		}
		n.Integration += intensity
		n.DeltaT += time
		break
	}

	head := &a.nodes[0]
	a.dtmReached = head.DeltaT >= float64(dtm)
	a.NeedToPopTop = head.D == core.DMax || (a.dtmReached && !a.poppedDtm)

	if a.CThresh < cThreshMax {
		if cIncreaseVelocity <= 1 || a.CIncreaseCounter >= cIncreaseVelocity-1 {
			a.CThresh++
			a.CIncreaseCounter = 0
		} else {
			a.CIncreaseCounter++
		}
	}
}

// deltaTToAbsoluteT converts a pending event's delta-t into the wire Event,
// applying the AbsoluteT mapping described in spec §4.1.
func (a *Arena) deltaTToAbsoluteT(ev pendingEvent, mode core.Mode, refTime uint32) core.Event {
	deltaT := ev.DeltaT
	if a.TimeMode == core.AbsoluteT {
		deltaT += a.LastFiredT
		a.LastFiredT = deltaT
		if mode == core.FramePerfect && refTime > 0 {
			a.LastFiredT = roundUpToMultiple(a.LastFiredT, refTime)
		}
	}
	return core.Event{Coord: a.Coord, D: ev.D, T: uint32(deltaT)}
}

func roundUpToMultiple(v float64, ref uint32) float64 {
	iv := uint64(v)
	r := uint64(ref)
	if iv%r == 0 {
		return float64(iv)
	}
	return float64((iv/r + 1) * r)
}

// zeroEvent synthesizes a DZeroIntegration event from a node that reached
// dtm with no accumulated integration (spec §4.1 "Pop-top semantics").
func zeroEvent(n *node, nextIntensity float64, hasNext bool) pendingEvent {
	ev := pendingEvent{D: core.DZeroIntegration, DeltaT: n.DeltaT}
	n.DeltaT = 0
	if hasNext {
		n.D = dFromIntensity(nextIntensity)
	}
	return ev
}

// PopTopEvent commits the head's best event and shifts the remaining
// nodes up (spec §4.1 "pop_top_event"). Should only be called when
// NeedToPopTop is set.
func (a *Arena) PopTopEvent(nextIntensity float64, mode core.Mode, refTime uint32) core.Event {
	a.NeedToPopTop = false
	head := &a.nodes[0]

	var ev pendingEvent
	if head.Best != nil {
		ev = *head.Best
		for i := 0; i < a.length-1; i++ {
			a.nodes[i] = a.nodes[i+1]
		}
		a.length--
	} else if head.Integration == 0 && head.DeltaT > 0 {
		ev = zeroEvent(head, nextIntensity, true)
	} else {
		// Defensive fallback matching the original's recursive retry: the
		// head overshot silently (e.g. exactly at a power-of-two boundary
		// with no intensity left to propagate); synthesize the event from
		// the accumulated integration directly.
		ev = pendingEvent{D: dFromIntensity(head.Integration), DeltaT: head.DeltaT}
		a.nodes[0] = freshNode(nextIntensity)
	}

	a.poppedDtm = true
	return a.deltaTToAbsoluteT(ev, mode, refTime)
}

// PopBestEvents commits every speculative event in arena order into
// buffer and resets the arena to a single fresh head (spec §4.1
// "pop_best_events"), applying the Collapse policy when requested.
func (a *Arena) PopBestEvents(buffer []core.Event, mode core.Mode, multiMode core.PixelMultiMode, refTime uint32) []core.Event {
	var local []core.Event
	for i := 0; i < a.length; i++ {
		n := &a.nodes[i]
		if n.Best != nil {
			local = append(local, a.deltaTToAbsoluteT(*n.Best, mode, refTime))
		} else if n.DeltaT > 0 && n.Integration == 0 {
			local = append(local, a.deltaTToAbsoluteT(zeroEvent(n, 0, false), mode, refTime))
		}
	}

	if multiMode == core.Collapse && len(local) >= 2 {
		local[1] = core.Event{Coord: a.Coord, D: core.DEmpty, T: uint32(a.RunningT)}
		a.LastFiredT = a.RunningT
		if mode == core.FramePerfect && refTime > 0 {
			a.LastFiredT = roundUpToMultiple(a.LastFiredT, refTime)
		}
		buffer = append(buffer, local[0], local[1])
	} else {
		buffer = append(buffer, local...)
	}

	a.nodes[0] = freshNode(0)
	a.length = 1
	a.NeedToPopTop = false
	a.dtmReached = false
	a.poppedDtm = false
	return buffer
}

// SetDForContinuous optionally emits a single DEmpty event carrying only
// elapsed time when the next expected intensity is much smaller than the
// head's current d admits, then resets the head's d (spec §4.1
// "set_d_for_continuous"). Should only be called right after popping.
func (a *Arena) SetDForContinuous(nextIntensity float64, refTime uint32) (core.Event, bool) {
	head := &a.nodes[0]
	nextD := dFromIntensity(nextIntensity)

	if nextD < head.D && head.DeltaT > 0 {
		ev := a.deltaTToAbsoluteT(pendingEvent{D: core.DEmpty, DeltaT: head.DeltaT}, core.Continuous, refTime)
		head.DeltaT = 0
		head.Integration = 0
		head.D = nextD
		return ev, true
	}
	head.D = nextD
	return core.Event{}, false
}

// DtmReached reports whether the head node has accumulated at least dtm
// ticks since its last commit.
func (a *Arena) DtmReached() bool { return a.dtmReached }
