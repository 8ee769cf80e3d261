// Package videocore implements the Video Core (component B): it owns the
// 3D grid of pixel arenas, dispatches intensity samples to them row-chunk
// parallel, and applies the per-pixel contrast-threshold policy that
// decides when to flush an arena's speculative events mid-frame.
//
// Dispatch is adapted from the teacher's row-band parallel lossy encoder
// (internal/lossy/encode_parallel.go): there, one goroutine per row band
// walks macroblocks left to right, each band owning disjoint rows of the
// reconstruction buffer so no locking is needed. Here, one goroutine per
// row band (a "chunk") walks pixels the same way, each band owning
// disjoint rows of the arena grid; unlike macroblock encoding, a row here
// never needs a neighboring band's state, so no rowSync condvar fan-out
// is needed — only an errgroup.Group boundary to propagate the first
// producer error.
package videocore

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/adter/adter/internal/arena"
	"github.com/adter/adter/internal/core"
	"github.com/adter/adter/internal/feature"
)

// QualityParams is one CRF quality row: the contrast-threshold baseline
// and ceiling, the delta_t_max multiplier, the adaptive-threshold ramp
// velocity, and the feature detector's contrast radius (spec §4.2 "Quality
// knobs (CRF)").
type QualityParams struct {
	CThreshBaseline     uint8
	CThreshMax          uint8
	DeltaTMaxMultiplier float64
	CIncreaseVelocity   uint8
	FeatureCRadius      int
}

// CRFTable is the 10-entry quality ramp (CRF 0..9) recovered from the
// original's hardcoded per-quality magic numbers (spec §9 Open Questions:
// "Feature-detection timing thresholds are source-coded with magic
// numbers; treat them as configuration"). CRF 0 is highest quality
// (tightest thresholds, most events); CRF 9 is lowest quality (loosest
// thresholds, fewest events).
var CRFTable = [10]QualityParams{
	{CThreshBaseline: 0, CThreshMax: 4, DeltaTMaxMultiplier: 1, CIncreaseVelocity: 1, FeatureCRadius: 1},
	{CThreshBaseline: 1, CThreshMax: 6, DeltaTMaxMultiplier: 2, CIncreaseVelocity: 1, FeatureCRadius: 1},
	{CThreshBaseline: 2, CThreshMax: 8, DeltaTMaxMultiplier: 3, CIncreaseVelocity: 2, FeatureCRadius: 2},
	{CThreshBaseline: 3, CThreshMax: 10, DeltaTMaxMultiplier: 4, CIncreaseVelocity: 2, FeatureCRadius: 2},
	{CThreshBaseline: 5, CThreshMax: 14, DeltaTMaxMultiplier: 6, CIncreaseVelocity: 3, FeatureCRadius: 3},
	{CThreshBaseline: 7, CThreshMax: 18, DeltaTMaxMultiplier: 8, CIncreaseVelocity: 4, FeatureCRadius: 3},
	{CThreshBaseline: 10, CThreshMax: 24, DeltaTMaxMultiplier: 12, CIncreaseVelocity: 5, FeatureCRadius: 4},
	{CThreshBaseline: 14, CThreshMax: 32, DeltaTMaxMultiplier: 16, CIncreaseVelocity: 6, FeatureCRadius: 4},
	{CThreshBaseline: 20, CThreshMax: 42, DeltaTMaxMultiplier: 24, CIncreaseVelocity: 8, FeatureCRadius: 5},
	{CThreshBaseline: 28, CThreshMax: 56, DeltaTMaxMultiplier: 32, CIncreaseVelocity: 10, FeatureCRadius: 6},
}

// Params holds the fully resolved, non-CRF-indexed dispatch parameters for
// a Grid (spec §6 "Parameter knobs").
type Params struct {
	Width, Height, Channels int
	ChunkRows               int
	TPS                     uint32
	RefInterval             uint32
	DeltaTMax               uint32
	TimeMode                core.TimeMode
	PixelMode               core.Mode
	PixelMultiMode          core.PixelMultiMode
	CRF                     int
}

// Quality returns the resolved QualityParams for p.CRF, clamped to the
// valid table range.
func (p Params) Quality() QualityParams {
	crf := p.CRF
	if crf < 0 {
		crf = 0
	}
	if crf > 9 {
		crf = 9
	}
	return CRFTable[crf]
}

// Grid owns width*height*channels pixel arenas, partitioned into row-band
// chunks for parallel per-frame dispatch.
type Grid struct {
	Params Params

	arenas           []*arena.Arena // flattened [y*width*channels + x*channels + c]
	baseVal          []float64      // per-pixel committed intensity, for contrast comparison
	runningIntens    []float64      // parallel grid feeding the feature-detector hook / display sink
	firstFrame       bool
	chunkRows        int
	cThreshBaseline  uint8
	cThreshMax       uint8
	cIncreaseVel     uint8
	deltaTMax        uint32
	refInterval      uint32

	ticksIngested  float64
	detector       feature.Detector
	featureRadius  int
	featureTracker *feature.Tracker
}

// NewGrid allocates a Grid for the given Params. Arenas are not
// initialized until the first frame is ingested (spec §4.2 step 1).
func NewGrid(p Params) (*Grid, error) {
	if p.Width <= 0 || p.Height <= 0 || p.Channels <= 0 {
		return nil, fmt.Errorf("videocore: %w: non-positive plane dimensions", core.ErrMalformedEncoder)
	}
	chunkRows := p.ChunkRows
	if chunkRows <= 0 {
		chunkRows = p.Height
	}
	q := p.Quality()
	dtm := p.DeltaTMax
	if dtm == 0 {
		dtm = uint32(float64(p.RefInterval) * q.DeltaTMaxMultiplier)
	}
	n := p.Width * p.Height * p.Channels
	return &Grid{
		Params:        p,
		arenas:        make([]*arena.Arena, n),
		baseVal:       make([]float64, n),
		runningIntens: make([]float64, n),
		firstFrame:      true,
		chunkRows:       chunkRows,
		cThreshBaseline: q.CThreshBaseline,
		cThreshMax:    q.CThreshMax,
		cIncreaseVel:  q.CIncreaseVelocity,
		deltaTMax:     dtm,
		refInterval:   p.RefInterval,
	}, nil
}

func (g *Grid) index(x, y, c int) int {
	return (y*g.Params.Width+x)*g.Params.Channels + c
}

// DeltaTMax returns the grid's resolved delta_t_max: the caller-supplied
// value if non-zero, otherwise RefInterval scaled by the CRF row's
// DeltaTMaxMultiplier.
func (g *Grid) DeltaTMax() uint32 { return g.deltaTMax }

// RunningIntensity returns the most recently observed input intensity at
// (x, y, c), for the feature-detector hook and any display sink.
func (g *Grid) RunningIntensity(x, y, c int) float64 {
	return g.runningIntens[g.index(x, y, c)]
}

// SetFeatureDetector installs det over the running-intensities grid. Each
// subsequent IngestFrame scans channel 0 with the CRF's FeatureCRadius
// window and records the frame's flagged coordinate set in tracker.
func (g *Grid) SetFeatureDetector(det feature.Detector, tracker *feature.Tracker) {
	g.detector = det
	g.featureRadius = g.Params.Quality().FeatureCRadius
	g.featureTracker = tracker
}

// FeatureIntervals returns the tracked per-frame feature coordinate sets,
// oldest first, or nil if no detector is installed.
func (g *Grid) FeatureIntervals() []feature.Interval {
	if g.featureTracker == nil {
		return nil
	}
	return g.featureTracker.Intervals()
}

// detectFeatures scans the running-intensities grid (channel 0) with the
// detector's local window and pushes the frame's coordinate set.
func (g *Grid) detectFeatures() {
	r := g.featureRadius
	var coords []feature.Coord
	window := make([]float64, 0, (2*r+1)*(2*r+1))
	for y := r; y < g.Params.Height-r; y++ {
		for x := r; x < g.Params.Width-r; x++ {
			window = window[:0]
			for wy := y - r; wy <= y+r; wy++ {
				for wx := x - r; wx <= x+r; wx++ {
					window = append(window, g.runningIntens[g.index(wx, wy, 0)])
				}
			}
			if g.detector.Detect(window, r) {
				coords = append(coords, feature.Coord{X: x, Y: y})
			}
		}
	}
	g.featureTracker.Push(uint64(g.ticksIngested), coords)
}

// chunkCount returns the number of row-band chunks the grid is divided
// into.
func (g *Grid) chunkCount() int {
	return (g.Params.Height + g.chunkRows - 1) / g.chunkRows
}

// IngestFrame runs one per-frame operation (spec §4.2): on the first
// frame, it seeds every pixel's arena from the input matrix; on every
// subsequent frame, it applies the contrast-threshold policy, integrates,
// and drains any arenas that need popping. matrix is row-major
// [y*width*channels + x*channels + c]. Events produced during the frame
// are appended, in chunk order, to the returned slice: each chunk's events
// keep their in-chunk order and chunks follow one another, so the order
// does not depend on goroutine scheduling (spec §5 "Ordering guarantees").
func (g *Grid) IngestFrame(ctx context.Context, matrix []float64, timeSpanned float64) ([]core.Event, error) {
	if len(matrix) != len(g.arenas) {
		return nil, fmt.Errorf("videocore: %w: matrix size %d, want %d", core.ErrMalformedEncoder, len(matrix), len(g.arenas))
	}

	g.ticksIngested += timeSpanned

	if g.firstFrame {
		g.seedFirstFrame(matrix)
		g.firstFrame = false
		if g.detector != nil {
			g.detectFeatures()
		}
		return nil, nil
	}

	nChunks := g.chunkCount()
	perChunk := make([][]core.Event, nChunks)

	grp, gctx := errgroup.WithContext(ctx)
	for ci := 0; ci < nChunks; ci++ {
		ci := ci
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perChunk[ci] = g.ingestChunk(ci, matrix, timeSpanned)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, c := range perChunk {
		total += len(c)
	}
	out := make([]core.Event, 0, total)
	for _, c := range perChunk {
		out = append(out, c...)
	}

	if g.detector != nil {
		g.detectFeatures()
	}
	return out, nil
}

func (g *Grid) seedFirstFrame(matrix []float64) {
	for y := 0; y < g.Params.Height; y++ {
		for x := 0; x < g.Params.Width; x++ {
			for c := 0; c < g.Params.Channels; c++ {
				idx := g.index(x, y, c)
				val := matrix[idx]
				g.baseVal[idx] = val
				g.runningIntens[idx] = val
				var channel *uint8
				if g.Params.Channels > 1 {
					cc := uint8(c)
					channel = &cc
				}
				a := arena.New(core.Coord{X: uint16(x), Y: uint16(y), C: channel}, val)
				a.SetTimeMode(g.Params.TimeMode)
				a.CThresh = g.cThreshBaseline
				g.arenas[idx] = a
			}
		}
	}
}

// chunkRowRange returns the [start, end) row range owned by chunk ci.
func (g *Grid) chunkRowRange(ci int) (int, int) {
	start := ci * g.chunkRows
	end := start + g.chunkRows
	if end > g.Params.Height {
		end = g.Params.Height
	}
	return start, end
}

func (g *Grid) ingestChunk(ci int, matrix []float64, timeSpanned float64) []core.Event {
	start, end := g.chunkRowRange(ci)
	var events []core.Event
	q := QualityParams{CThreshMax: g.cThreshMax, CIncreaseVelocity: g.cIncreaseVel}

	for y := start; y < end; y++ {
		for x := 0; x < g.Params.Width; x++ {
			for c := 0; c < g.Params.Channels; c++ {
				idx := g.index(x, y, c)
				a := g.arenas[idx]
				val := matrix[idx]
				g.runningIntens[idx] = val

				cThresh := float64(a.CThresh)
				if math.Abs(val-g.baseVal[idx]) > cThresh {
					events = a.PopBestEvents(events, g.Params.PixelMode, g.Params.PixelMultiMode, g.refInterval)
					if ev, ok := a.SetDForContinuous(val, g.refInterval); ok {
						events = append(events, ev)
					}
					g.baseVal[idx] = val
				}

				a.Integrate(val, timeSpanned, g.Params.PixelMode, g.deltaTMax, g.refInterval, q.CThreshMax, q.CIncreaseVelocity, g.Params.PixelMultiMode)
				for a.NeedToPopTop {
					events = append(events, a.PopTopEvent(val, g.Params.PixelMode, g.refInterval))
				}
			}
		}
	}
	return events
}

// Flush drains every arena's remaining speculative events, used at
// end-of-stream so no intensity is lost in a half-built branch.
func (g *Grid) Flush() []core.Event {
	var events []core.Event
	for _, a := range g.arenas {
		if a == nil {
			continue
		}
		events = a.PopBestEvents(events, g.Params.PixelMode, g.Params.PixelMultiMode, g.refInterval)
	}
	return events
}
