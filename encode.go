package adter

import (
	"context"
	"fmt"
	"io"

	"github.com/adter/adter/internal/codec/compressed"
	"github.com/adter/adter/internal/codec/raw"
	"github.com/adter/adter/internal/container"
	"github.com/adter/adter/internal/core"
	"github.com/adter/adter/internal/videocore"
)

// EncoderOptions controls ADTER encoding parameters (spec §6 "Parameter
// knobs").
type EncoderOptions struct {
	// Width, Height, Channels describe the input intensity plane.
	Width, Height, Channels int

	// ChunkRows is the row-band size Video Core dispatches in parallel
	// (spec §5). Zero means one chunk covering the whole plane.
	ChunkRows int

	// TPS is ticks per second, the stream's time base.
	TPS uint32

	// RefInterval is the nominal frame period, in ticks.
	RefInterval uint32

	// DeltaTMax bounds how long a pixel's branch may integrate before its
	// head is forced to pop (as a D_ZERO_INTEGRATION event when nothing
	// was integrated). Zero resolves to
	// RefInterval scaled by the CRF row's DeltaTMaxMultiplier.
	DeltaTMax uint32

	// TimeMode selects how emitted events' T field is interpreted.
	TimeMode TimeMode

	// PixelMode selects the pixel arena's overshoot policy.
	PixelMode Mode

	// PixelMultiMode selects how multi-event pops are reported.
	PixelMultiMode PixelMultiMode

	// SourceCamera records the upstream producer, carried in the header.
	SourceCamera SourceCamera

	// CRF selects a quality row (0 = highest quality, 9 = lowest),
	// resolving CThreshBaseline/CThreshMax/DeltaTMaxMultiplier.
	CRF int

	// Compressed selects the tiled, arithmetic-coded wire format instead
	// of the fixed-width raw format.
	Compressed bool
}

// DefaultEncoderOptions returns options for a plane of the given
// dimensions with a mid-range CRF, continuous pixel mode, and delta-time
// events, matching the original driver's defaults.
func DefaultEncoderOptions(width, height, channels int) EncoderOptions {
	return EncoderOptions{
		Width:          width,
		Height:         height,
		Channels:       channels,
		TPS:            1_000_000,
		RefInterval:    5_000,
		TimeMode:       DeltaTMode,
		PixelMode:      Continuous,
		PixelMultiMode: Normal,
		CRF:            4,
	}
}

// Encoder transcodes successive intensity frames into an ADTER event
// stream, writing either the raw or compressed wire format depending on
// EncoderOptions.Compressed.
type Encoder struct {
	opts EncoderOptions
	grid *videocore.Grid

	w      io.Writer
	rawW   *raw.Writer
	ticks  uint32
	closed bool
}

// NewEncoder constructs an Encoder writing to w.
func NewEncoder(w io.Writer, opts EncoderOptions) (*Encoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Channels <= 0 {
		return nil, wrap("new encoder", core.ErrMalformedEncoder)
	}

	grid, err := videocore.NewGrid(videocore.Params{
		Width: opts.Width, Height: opts.Height, Channels: opts.Channels,
		ChunkRows:      opts.ChunkRows,
		TPS:            opts.TPS,
		RefInterval:    opts.RefInterval,
		DeltaTMax:      opts.DeltaTMax,
		TimeMode:       opts.TimeMode,
		PixelMode:      opts.PixelMode,
		PixelMultiMode: opts.PixelMultiMode,
		CRF:            opts.CRF,
	})
	if err != nil {
		return nil, wrap("new encoder", err)
	}

	header := container.Header{
		Compressed:   opts.Compressed,
		Version:      container.CurrentVersion,
		Width:        uint16(opts.Width),
		Height:       uint16(opts.Height),
		Channels:     uint8(opts.Channels),
		TPS:          opts.TPS,
		RefInterval:  opts.RefInterval,
		DeltaTMax:    grid.DeltaTMax(),
		SourceCamera: opts.SourceCamera,
		TimeMode:     opts.TimeMode,
	}

	e := &Encoder{opts: opts, grid: grid, w: w}
	if opts.Compressed {
		if err := container.Write(w, header); err != nil {
			return nil, fmt.Errorf("adter: write header: %w", err)
		}
	} else {
		e.rawW = raw.NewWriter(w, header)
		if err := e.rawW.WriteHeader(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetFeatureDetector installs a per-frame feature hook over the encoder's
// running-intensities grid; each subsequent IngestFrame records the
// frame's flagged coordinate set in tracker.
func (e *Encoder) SetFeatureDetector(det FeatureDetector, tracker *FeatureTracker) {
	e.grid.SetFeatureDetector(det, tracker)
}

// FeatureIntervals returns the tracked per-frame feature coordinate sets,
// oldest first, or nil if no detector is installed.
func (e *Encoder) FeatureIntervals() []FeatureInterval {
	return e.grid.FeatureIntervals()
}

// IngestFrame runs one frame through Video Core and writes whatever
// events result to the underlying stream (spec §4.2).
func (e *Encoder) IngestFrame(ctx context.Context, matrix []float64, timeSpanned float64) error {
	if e.closed {
		return wrap("ingest frame", core.ErrUninitializedStream)
	}
	events, err := e.grid.IngestFrame(ctx, matrix, timeSpanned)
	if err != nil {
		return fmt.Errorf("adter: ingest frame: %w", err)
	}
	return e.writeEvents(events)
}

func (e *Encoder) writeEvents(events []core.Event) error {
	defer func() { e.ticks += e.opts.RefInterval }()

	if !e.opts.Compressed {
		for _, ev := range events {
			if err := e.rawW.WriteEvent(ev); err != nil {
				return err
			}
		}
		return nil
	}
	if len(events) == 0 {
		return nil
	}
	return e.writeCompressedFrame(events)
}

func (e *Encoder) writeCompressedFrame(events []core.Event) error {
	adu := &compressed.ADU{Header: compressed.ADUHeader{HeadEventT: e.ticks}}
	n := e.opts.Channels
	if n > 3 {
		n = 3
	}
	if n < 1 {
		n = 1
	}
	for ch := 0; ch < n; ch++ {
		adu.Channels[ch] = compressed.BuildChannelCubes(events, uint8(ch), e.opts.Width, e.opts.Height)
	}
	data, err := compressed.Encode(adu, e.opts.Channels, e.opts.PixelMode, e.opts.RefInterval, e.grid.DeltaTMax())
	if err != nil {
		return fmt.Errorf("adter: encode ADU: %w", err)
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("adter: write ADU: %w", err)
	}
	return nil
}

// Close flushes every arena's remaining speculative events and, for the
// raw format, writes the EOF sentinel.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	events := e.grid.Flush()
	if err := e.writeEvents(events); err != nil {
		return err
	}
	if !e.opts.Compressed {
		return e.rawW.Close()
	}
	return nil
}
