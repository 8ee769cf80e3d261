// Package feature implements the Feature Detector Hook (component F): a
// per-frame coordinate set associated with intensity intervals, recovered
// from spec §4.2/§6's brief mention and from the original driver's
// is_feature call site and FeatureInterval bookkeeping (SPEC_FULL §3.7).
//
// The detector itself is adapted from the teacher's alpha-plane filter
// strength heuristic (internal/dsp/alpha_proc.go), which scores a pixel by
// local contrast against a configurable radius; here the same local-window
// contrast score flags a coordinate as a feature instead of a filter
// strength.
package feature

// Params configures the local-contrast detector (spec §9 "Feature-
// detection timing thresholds are source-coded with magic numbers; treat
// them as configuration").
type Params struct {
	Radius    int
	Threshold float64
}

// Detector is the pluggable interface Video Core calls per pixel to
// decide whether a coordinate belongs in the current frame's feature set.
type Detector interface {
	Detect(window []float64, radius int) bool
}

// ContrastDetector is the one concrete Detector: it flags a coordinate
// when the window's max-min spread exceeds Params.Threshold.
type ContrastDetector struct {
	Params Params
}

// NewContrastDetector builds a ContrastDetector from a CRF-resolved
// radius (videocore.QualityParams.FeatureCRadius).
func NewContrastDetector(radius int, threshold float64) *ContrastDetector {
	return &ContrastDetector{Params{Radius: radius, Threshold: threshold}}
}

// Detect reports whether window (a flattened (2*radius+1)^2 neighborhood
// centered on the candidate pixel) has enough local contrast to be
// flagged as a feature.
func (d *ContrastDetector) Detect(window []float64, radius int) bool {
	if len(window) == 0 {
		return false
	}
	min, max := window[0], window[0]
	for _, v := range window[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max-min > d.Params.Threshold
}

// Interval is a coordinate's association with the intensity interval it
// was detected within, matching the original driver's FeatureInterval
// deque entries (SPEC_FULL §3.4 supplement).
type Interval struct {
	EndTS    uint64
	Features []Coord
}

// Coord is a plane coordinate flagged as a feature in a given frame.
type Coord struct {
	X, Y int
}

// Tracker accumulates per-frame feature coordinate sets across a bounded
// window of intervals, mirroring the original driver's feature_interval
// deque (bounded so memory does not grow unbounded on long streams).
type Tracker struct {
	maxIntervals int
	intervals    []Interval
}

// NewTracker creates a Tracker retaining at most maxIntervals entries.
func NewTracker(maxIntervals int) *Tracker {
	if maxIntervals <= 0 {
		maxIntervals = 64
	}
	return &Tracker{maxIntervals: maxIntervals}
}

// Push appends a new interval's feature set, evicting the oldest entry if
// the tracker is at capacity.
func (tr *Tracker) Push(endTS uint64, features []Coord) {
	tr.intervals = append(tr.intervals, Interval{EndTS: endTS, Features: features})
	if len(tr.intervals) > tr.maxIntervals {
		tr.intervals = tr.intervals[len(tr.intervals)-tr.maxIntervals:]
	}
}

// Intervals returns the currently retained feature intervals, oldest first.
func (tr *Tracker) Intervals() []Interval {
	return tr.intervals
}
