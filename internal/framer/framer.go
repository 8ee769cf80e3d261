// Package framer implements the Framer (component C): it reconstructs
// fixed-rate intensity frames from an arbitrary-order event stream,
// guaranteeing forward progress even when events arrive unevenly
// per-pixel (spec §4.3).
//
// Its chunked-deque-of-frame-buffers design is adapted from the teacher's
// animation frame-disposal bookkeeping (animation/frame.go), which tracks,
// per output frame, how much of the canvas a given source frame actually
// covers and fills the rest from the previous frame's canvas. Here, each
// pixel similarly "fills forward" from its last known intensity whenever
// a frame boundary passes without a fresh event for it — the mechanism
// generalizes from one global canvas to per-pixel, per-chunk bookkeeping.
package framer

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/adter/adter/internal/core"
)

// Intensity is the numeric type a Framer reconstructs frames in, matching
// the original driver's generic FrameValue bound (spec §3.4 supplement).
type Intensity interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Mode selects how a filled frame's value is derived from the events
// spanning it (spec §3.4 supplement, recovered from
// original_source/.../driver.rs's FramerMode).
type Mode uint8

const (
	// Instantaneous takes only the last event's value for a pixel's
	// frame slot (the behavior spec.md describes by default).
	Instantaneous Mode = iota
	// Integration sums every event spanning the frame's interval instead
	// of keeping only the last.
	Integration
)

// pixelState is the per-pixel tracker described in spec §3 "Framer state".
type pixelState struct {
	lastFilledFrame   int64
	lastFrameIntensity float64
	accumSinceFlush    float64 // used only in Integration mode
	runningTS          int64
}

// chunk is the per-chunk deque of frame buffers described in spec §3.
type chunk struct {
	rows          int // rows owned by this chunk
	framesWritten int64
	frames        [][]float64 // frames[i] is a rows*width*channels slice
	filledCounts  []int
	pixels        []pixelState // rows*width*channels
}

// Builder configures a Framer before construction, mirroring the
// original's FramerBuilder chained-setter style (SPEC_FULL §1
// "Configuration").
type Builder struct {
	width, height, channels int
	chunkRows               int
	tps                     uint32
	refInterval             uint32
	outputFPS               float64
	timeMode                core.TimeMode
	sourceCamera            core.SourceCamera
	mode                    Mode
	bufferLimit             int64
}

// NewBuilder creates a Builder for a plane of the given dimensions.
func NewBuilder(width, height, channels int) *Builder {
	return &Builder{width: width, height: height, channels: channels, chunkRows: height}
}

func (b *Builder) ChunkRows(n int) *Builder       { b.chunkRows = n; return b }
func (b *Builder) TimeParameters(tps, ref uint32, outputFPS float64) *Builder {
	b.tps, b.refInterval, b.outputFPS = tps, ref, outputFPS
	return b
}
func (b *Builder) TimeMode(m core.TimeMode) *Builder           { b.timeMode = m; return b }
func (b *Builder) SourceCamera(s core.SourceCamera) *Builder   { b.sourceCamera = s; return b }
func (b *Builder) Mode(m Mode) *Builder                        { b.mode = m; return b }
func (b *Builder) BufferLimit(n int64) *Builder                { b.bufferLimit = n; return b }

// Framer reconstructs intensity frames from events, generic over the
// caller's chosen intensity representation (u8, u16, u32, u64, f32, f64).
type Framer[T Intensity] struct {
	width, height, channels int
	chunkRows               int
	tpf                     int64 // ticks per output frame
	refInterval             int64
	timeMode                core.TimeMode
	sourceCamera            core.SourceCamera
	mode                    Mode
	bufferLimit             int64

	chunks []chunk

	fromValue func(float64) T
	toValue   func(T) float64
}

// Build constructs a Framer[T] from the Builder's configuration.
func Build[T Intensity](b *Builder, fromValue func(float64) T, toValue func(T) float64) (*Framer[T], error) {
	if b.width <= 0 || b.height <= 0 || b.channels <= 0 {
		return nil, fmt.Errorf("framer: %w: non-positive plane dimensions", core.ErrMalformedEncoder)
	}
	if b.outputFPS <= 0 || b.tps == 0 {
		return nil, fmt.Errorf("framer: %w: output fps and tps must be set", core.ErrMalformedEncoder)
	}
	chunkRows := b.chunkRows
	if chunkRows <= 0 {
		chunkRows = b.height
	}
	tpf := int64(float64(b.tps) / b.outputFPS)
	if tpf <= 0 {
		tpf = 1
	}
	f := &Framer[T]{
		width: b.width, height: b.height, channels: b.channels,
		chunkRows: chunkRows, tpf: tpf, refInterval: int64(b.refInterval),
		timeMode: b.timeMode, sourceCamera: b.sourceCamera, mode: b.mode,
		bufferLimit: b.bufferLimit,
		fromValue:   fromValue, toValue: toValue,
	}
	nChunks := (b.height + chunkRows - 1) / chunkRows
	f.chunks = make([]chunk, nChunks)
	for i := range f.chunks {
		rows := chunkRows
		if (i+1)*chunkRows > b.height {
			rows = b.height - i*chunkRows
		}
		pixels := make([]pixelState, rows*b.width*b.channels)
		// No frame is complete yet; a pixel's first event must backfill
		// from frame 0, so "complete through" starts one before it.
		for j := range pixels {
			pixels[j].lastFilledFrame = -1
		}
		f.chunks[i] = chunk{
			rows:   rows,
			pixels: pixels,
		}
	}
	return f, nil
}

func (f *Framer[T]) chunkFor(y int) (int, int) {
	ci := y / f.chunkRows
	local := y % f.chunkRows
	return ci, local
}

func (f *Framer[T]) pixelIndex(c *chunk, localY, x, ch int) int {
	return (localY*f.width+x)*f.channels + ch
}

// IngestEvent applies spec §4.3 "ingest_event" for one event.
func (f *Framer[T]) IngestEvent(e core.Event) error {
	ci, localY := f.chunkFor(int(e.Coord.Y))
	if ci < 0 || ci >= len(f.chunks) {
		return fmt.Errorf("framer: %w: y=%d out of range", core.ErrInvalidIndex, e.Coord.Y)
	}
	c := &f.chunks[ci]
	idx := f.pixelIndex(c, localY, int(e.Coord.X), int(e.Coord.Channel()))
	ps := &c.pixels[idx]

	// Step 1: timestamp advance.
	if f.timeMode == core.AbsoluteT {
		t := int64(e.T)
		if t <= ps.runningTS {
			return nil // stale event, drop (spec §4.3 step 1)
		}
		ps.runningTS = t
	} else {
		ps.runningTS += int64(e.T)
	}

	// Step 6: reduction shortcut for framed-camera sources.
	if f.sourceCamera.IsFramed() && f.refInterval > 0 {
		if rem := ps.runningTS % f.refInterval; rem != 0 {
			ps.runningTS += f.refInterval - rem
		}
	}

	// Step 2: frame span.
	newLastFilled := (ps.runningTS - 1) / f.tpf
	if newLastFilled <= ps.lastFilledFrame {
		return nil
	}

	// Step 3: intensity update.
	if e.D != core.DEmpty {
		val := intensityFromEvent(e, f.refInterval)
		switch f.mode {
		case Integration:
			ps.accumSinceFlush += val
			ps.lastFrameIntensity = ps.accumSinceFlush
		default:
			ps.lastFrameIntensity = val
		}
	}

	// Step 4: frame buffer grow.
	for int64(len(c.frames)) <= newLastFilled {
		c.frames = append(c.frames, make([]float64, c.rows*f.width*f.channels))
		c.filledCounts = append(c.filledCounts, 0)
	}

	// Step 5: backfill every frame index not yet filled for this pixel.
	for fi := ps.lastFilledFrame + 1; fi <= newLastFilled; fi++ {
		slot := int64(fi) - c.framesWritten
		if slot < 0 || slot >= int64(len(c.frames)) {
			return fmt.Errorf("framer: %w: frame %d not allocated", core.ErrInvalidIndex, fi)
		}
		c.frames[slot][idx] = ps.lastFrameIntensity
		c.filledCounts[slot]++
		if c.filledCounts[slot] > c.rows*f.width*f.channels {
			return fmt.Errorf("framer: %w: chunk %d frame %d overfilled", core.ErrBadFillCount, ci, fi)
		}
	}
	ps.lastFilledFrame = newLastFilled
	if f.mode == Integration {
		ps.accumSinceFlush = 0
	}

	// Step 7: buffer limit.
	if f.bufferLimit > 0 && newLastFilled > c.framesWritten+f.bufferLimit {
		f.forceFillHead(ci)
	}
	return nil
}

// IngestEvents applies IngestEvent to a batch, fanning the work out one
// worker per chunk (spec §4.3 "Parallelism"). Events for the same pixel
// keep their relative order because chunk ownership is disjoint and each
// worker walks its chunk's events in batch order.
func (f *Framer[T]) IngestEvents(events []core.Event) error {
	perChunk := make([][]core.Event, len(f.chunks))
	for _, e := range events {
		ci := int(e.Coord.Y) / f.chunkRows
		if ci < 0 || ci >= len(f.chunks) {
			return fmt.Errorf("framer: %w: y=%d out of range", core.ErrInvalidIndex, e.Coord.Y)
		}
		perChunk[ci] = append(perChunk[ci], e)
	}

	var grp errgroup.Group
	for ci := range perChunk {
		batch := perChunk[ci]
		if len(batch) == 0 {
			continue
		}
		grp.Go(func() error {
			for _, e := range batch {
				if err := f.IngestEvent(e); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return grp.Wait()
}

// forceFillHead marks the chunk's head frame filled, per spec §4.3 step 7.
func (f *Framer[T]) forceFillHead(ci int) {
	c := &f.chunks[ci]
	if len(c.filledCounts) == 0 {
		return
	}
	c.filledCounts[0] = c.rows * f.width * f.channels
}

// intensityFromEvent derives the frame value from the event's (d, t) pair
// (spec §3 "Intensity-per-event contract"): 2^d / t * ref_interval.
func intensityFromEvent(e core.Event, refInterval int64) float64 {
	if e.D == core.DZeroIntegration || e.T == 0 {
		return 0
	}
	return core.DShift[e.D] / float64(e.T) * float64(refInterval)
}

// IsFrame0Filled reports whether every chunk's head frame is complete, or
// any chunk's deque has grown past the buffer limit (spec §4.3 "Frame
// readiness").
func (f *Framer[T]) IsFrame0Filled() bool {
	for ci := range f.chunks {
		c := &f.chunks[ci]
		if len(c.filledCounts) == 0 {
			return false
		}
		want := c.rows * f.width * f.channels
		if c.filledCounts[0] >= want {
			continue
		}
		if f.bufferLimit > 0 && int64(len(c.frames)) > f.bufferLimit {
			continue
		}
		return false
	}
	return true
}

// PopNextFrame returns the next fully reconstructed frame as a
// height*width*channels array in row-major order, or ok=false if the head
// frame across chunks is not yet filled.
func (f *Framer[T]) PopNextFrame() (frame []T, ok bool) {
	if !f.IsFrame0Filled() {
		return nil, false
	}
	out := make([]T, f.height*f.width*f.channels)
	for ci := range f.chunks {
		c := &f.chunks[ci]
		startY := 0
		for j := 0; j < ci; j++ {
			startY += f.chunks[j].rows
		}
		var src []float64
		if len(c.frames) > 0 {
			src = c.frames[0]
		} else {
			src = make([]float64, c.rows*f.width*f.channels)
		}
		for ly := 0; ly < c.rows; ly++ {
			for x := 0; x < f.width; x++ {
				for ch := 0; ch < f.channels; ch++ {
					si := (ly*f.width+x)*f.channels + ch
					di := ((startY+ly)*f.width+x)*f.channels + ch
					out[di] = f.fromValue(src[si])
				}
			}
		}
		if len(c.frames) > 0 {
			c.frames = c.frames[1:]
			c.filledCounts = c.filledCounts[1:]
		}
		c.framesWritten++
	}
	return out, true
}

// Flush fills every remaining unfilled head slot from each pixel's cached
// last_frame_intensity, guaranteeing the framer terminates even if some
// pixels never received a closing event (spec §4.3 "Flush").
func (f *Framer[T]) Flush() {
	for ci := range f.chunks {
		c := &f.chunks[ci]
		for slot := range c.frames {
			want := c.rows * f.width * f.channels
			if c.filledCounts[slot] >= want {
				continue
			}
			for py := 0; py < c.rows; py++ {
				for x := 0; x < f.width; x++ {
					for ch := 0; ch < f.channels; ch++ {
						idx := f.pixelIndex(c, py, x, ch)
						ps := &c.pixels[idx]
						if ps.lastFilledFrame < c.framesWritten+int64(slot) {
							c.frames[slot][idx] = ps.lastFrameIntensity
						}
					}
				}
			}
			c.filledCounts[slot] = want
		}
	}
}

// FramesWritten reports the total number of frames popped from chunk 0,
// used by callers that want to know how far reconstruction has progressed.
func (f *Framer[T]) FramesWritten() int64 {
	if len(f.chunks) == 0 {
		return 0
	}
	return f.chunks[0].framesWritten
}
