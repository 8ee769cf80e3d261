package adter

import (
	"github.com/adter/adter/internal/core"
	"github.com/adter/adter/internal/feature"
	"github.com/adter/adter/internal/framer"
)

// Event, Coord, and D are the wire-level ADTER record types (spec §3):
// aliased here so callers never need to import internal/core directly.
type (
	Event = core.Event
	Coord = core.Coord
	D     = core.D
)

// DMax, DEmpty, and DZeroIntegration are the reserved decimation values
// (spec §3).
const (
	DMax             = core.DMax
	DEmpty           = core.DEmpty
	DZeroIntegration = core.DZeroIntegration
)

// Mode selects how the pixel arena handles a branch's remainder intensity
// when popping speculative events (spec §4.1).
type Mode = core.Mode

const (
	Continuous   = core.Continuous
	FramePerfect = core.FramePerfect
)

// PixelMultiMode selects how multiple events committed by a single pop
// are reported (spec §4.1).
type PixelMultiMode = core.PixelMultiMode

const (
	Normal   = core.Normal
	Collapse = core.Collapse
)

// SourceCamera enumerates the upstream producer that generated a stream
// (spec §6).
type SourceCamera = core.SourceCamera

const (
	FramedU8  = core.FramedU8
	FramedU16 = core.FramedU16
	FramedU32 = core.FramedU32
	FramedU64 = core.FramedU64
	FramedF32 = core.FramedF32
	FramedF64 = core.FramedF64
	Dvs       = core.Dvs
	DavisU8   = core.DavisU8
	Atis      = core.Atis
	Asint     = core.Asint
)

// TimeMode enumerates how a stream's Event.T field is to be interpreted
// (spec §3, §6).
type TimeMode = core.TimeMode

const (
	DeltaTMode    = core.DeltaT
	AbsoluteTMode = core.AbsoluteT
	MixedMode     = core.Mixed
)

// FeatureDetector is the pluggable per-frame feature hook the Video Core
// runs over its running-intensities grid (spec §4.2, component F).
type FeatureDetector = feature.Detector

// FeatureInterval associates one frame's flagged coordinates with the
// intensity interval they were detected within.
type FeatureInterval = feature.Interval

// FeatureCoord is a plane coordinate flagged as a feature.
type FeatureCoord = feature.Coord

// FeatureTracker accumulates per-frame feature sets across a bounded
// window of intervals.
type FeatureTracker = feature.Tracker

// NewContrastDetector builds the default local-contrast FeatureDetector.
func NewContrastDetector(radius int, threshold float64) FeatureDetector {
	return feature.NewContrastDetector(radius, threshold)
}

// NewFeatureTracker creates a FeatureTracker retaining at most
// maxIntervals per-frame feature sets.
func NewFeatureTracker(maxIntervals int) *FeatureTracker {
	return feature.NewTracker(maxIntervals)
}

// Intensity is the numeric type a Decoder reconstructs frames in.
type Intensity = framer.Intensity

// FramerMode selects how a filled frame's value is derived from the
// events spanning it.
type FramerMode = framer.Mode

const (
	Instantaneous = framer.Instantaneous
	Integration   = framer.Integration
)
