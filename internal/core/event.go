// Package core defines the fundamental ADTER data model shared by every
// other package in the module: the Event/Coord record, the decimation and
// time conventions, and the small enumerations (Mode, PixelMultiMode,
// SourceCamera, TimeMode) that parameterize the pixel arena, the framer,
// and both codecs.
package core

import "fmt"

// D is the decimation exponent type: the integrated light quantity for a
// non-reserved event is exactly 2^D intensity units over the event's T
// ticks (spec §3).
type D = uint8

// DMax is the largest ordinary decimation value. Once a pixel's head node
// reaches DMax it must be popped within one further integrate call.
const DMax D = 127

// DEmpty marks an event that carries only timing, no intensity: the arena
// emits one when collapsing multi-events or when set_d_for_continuous
// decides the next expected intensity is much smaller than D admits.
const DEmpty D = 0xFF

// DZeroIntegration marks a forced empty interval: delta_t_max was reached
// with zero accumulated integration.
const DZeroIntegration D = 254

// DShift holds 2^i for i in [0, 255], used throughout the arena and
// predictive codec instead of repeated bit shifts so overflow behavior is
// explicit and centralized.
var DShift = func() [256]float64 {
	var t [256]float64
	v := 1.0
	for i := range t {
		t[i] = v
		v *= 2
	}
	return t
}()

// Coord is a pixel address: x, y are 16-bit plane coordinates; C is an
// optional channel index, absent (nil) in single-channel streams.
type Coord struct {
	X, Y uint16
	C    *uint8
}

// Channel returns the coordinate's channel, defaulting to 0 for
// single-channel streams.
func (c Coord) Channel() uint8 {
	if c.C == nil {
		return 0
	}
	return *c.C
}

// EOFAddress is the reserved X/Y sentinel value marking the raw codec's
// end-of-file event (spec §4.4, §6).
const EOFAddress uint16 = 0xFFFF

// Event is the wire-level ADTER record (spec §3): a coordinate, a
// decimation, and a time value whose interpretation (delta vs absolute)
// is given by the stream's TimeMode.
type Event struct {
	Coord Coord
	D     D
	T     uint32
}

// IsEOF reports whether e is the raw codec's end-of-stream sentinel.
func (e Event) IsEOF() bool {
	return e.Coord.X == EOFAddress && e.Coord.Y == EOFAddress
}

// EOFEvent builds the sentinel event written by the raw codec at
// close-writer time.
func EOFEvent(channel uint8, multiChannel bool) Event {
	c := Coord{X: EOFAddress, Y: EOFAddress}
	if multiChannel {
		c.C = &channel
	}
	return Event{Coord: c}
}

// Mode selects how the pixel arena handles a branch's remainder intensity
// (spec §4.1).
type Mode uint8

const (
	// Continuous integrates the overshoot remainder into the new branch
	// immediately.
	Continuous Mode = iota
	// FramePerfect starts every new branch fresh at (0, 0), trading a
	// small accuracy loss for frame-aligned event boundaries.
	FramePerfect
)

func (m Mode) String() string {
	if m == FramePerfect {
		return "FramePerfect"
	}
	return "Continuous"
}

// PixelMultiMode selects how multiple speculative events committed by a
// single pop_best_events call are reported (spec §4.1).
type PixelMultiMode uint8

const (
	// Normal emits every committed event as-is.
	Normal PixelMultiMode = iota
	// Collapse keeps only the first event and replaces the second with a
	// DEmpty event, discarding the rest.
	Collapse
)

func (m PixelMultiMode) String() string {
	if m == Collapse {
		return "Collapse"
	}
	return "Normal"
}

// SourceCamera enumerates the upstream producer that generated a stream
// (spec §6), carried in the header from format version 1 onward.
type SourceCamera uint8

const (
	FramedU8 SourceCamera = iota
	FramedU16
	FramedU32
	FramedU64
	FramedF32
	FramedF64
	Dvs
	DavisU8
	Atis
	Asint
)

func (s SourceCamera) String() string {
	switch s {
	case FramedU8:
		return "FramedU8"
	case FramedU16:
		return "FramedU16"
	case FramedU32:
		return "FramedU32"
	case FramedU64:
		return "FramedU64"
	case FramedF32:
		return "FramedF32"
	case FramedF64:
		return "FramedF64"
	case Dvs:
		return "Dvs"
	case DavisU8:
		return "DavisU8"
	case Atis:
		return "Atis"
	case Asint:
		return "Asint"
	default:
		return fmt.Sprintf("SourceCamera(%d)", uint8(s))
	}
}

// IsFramed reports whether s is one of the framed-camera sources, which
// the framer uses to decide whether to round running_ts up to the next
// ref_interval multiple (spec §4.3 "Reduction shortcut").
func (s SourceCamera) IsFramed() bool {
	switch s {
	case FramedU8, FramedU16, FramedU32, FramedU64, FramedF32, FramedF64:
		return true
	default:
		return false
	}
}

// TimeMode enumerates how a stream's Event.T field is to be interpreted
// (spec §3, §6), carried in the header from format version 2 onward.
type TimeMode uint8

const (
	DeltaT TimeMode = iota
	AbsoluteT
	Mixed
)

func (m TimeMode) String() string {
	switch m {
	case DeltaT:
		return "DeltaT"
	case AbsoluteT:
		return "AbsoluteT"
	case Mixed:
		return "Mixed"
	default:
		return fmt.Sprintf("TimeMode(%d)", uint8(m))
	}
}
