package adter

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/adter/adter/internal/codec/compressed"
	"github.com/adter/adter/internal/codec/raw"
	"github.com/adter/adter/internal/container"
	"github.com/adter/adter/internal/core"
	"github.com/adter/adter/internal/framer"
)

// DecoderOptions controls frame reconstruction parameters (spec §4.3).
type DecoderOptions struct {
	// OutputFPS is the reconstructed frame rate. Required, must be > 0.
	OutputFPS float64

	// ChunkRows is the framer's row-band size (spec §5). Zero means one
	// chunk covering the whole plane.
	ChunkRows int

	// Mode selects how a filled frame's value is derived from the events
	// spanning it.
	Mode FramerMode

	// BufferLimit bounds how many frames a chunk may buffer before its
	// head frame is force-filled (spec §4.3 step 7). Zero disables the
	// limit.
	BufferLimit int64

	// PixelMode must match the EncoderOptions.PixelMode used to produce
	// a compressed-format stream; it is not recoverable from the header
	// and is ignored for the raw format.
	PixelMode Mode
}

// DefaultDecoderOptions returns options reconstructing frames at fps
// using the instantaneous (last-event-wins) framer mode.
func DefaultDecoderOptions(fps float64, pixelMode Mode) DecoderOptions {
	return DecoderOptions{OutputFPS: fps, Mode: Instantaneous, PixelMode: pixelMode}
}

// Decoder reconstructs intensity frames of type T from an ADTER event
// stream, reading either the raw or compressed wire format depending on
// the stream's header.
type Decoder[T Intensity] struct {
	header container.Header
	opts   DecoderOptions
	fr     *framer.Framer[T]

	rawR *raw.Reader // non-nil for the raw format
	body io.Reader   // remaining stream, for the compressed format

	closed bool
	eof    bool
}

// NewDecoder constructs a Decoder reading from r. fromValue/toValue
// convert between T and the framer's internal float64 representation,
// e.g. for T = uint8: func(v float64) uint8 { return uint8(v) },
// func(v uint8) float64 { return float64(v) }.
func NewDecoder[T Intensity](r io.ReadSeeker, opts DecoderOptions, fromValue func(float64) T, toValue func(T) float64) (*Decoder[T], error) {
	if opts.OutputFPS <= 0 {
		return nil, wrap("new decoder", core.ErrMalformedEncoder)
	}

	head := make([]byte, 64)
	n, err := io.ReadFull(r, head)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("adter: %w: %w", ErrBadFile, err)
	}
	h, consumed, err := container.Read(head[:n])
	if err != nil {
		return nil, fmt.Errorf("adter: %w", err)
	}
	if _, err := r.Seek(int64(consumed), io.SeekStart); err != nil {
		return nil, fmt.Errorf("adter: seek past header: %w", err)
	}

	chunkRows := opts.ChunkRows
	if chunkRows <= 0 {
		chunkRows = int(h.Height)
	}
	builder := framer.NewBuilder(int(h.Width), int(h.Height), int(h.Channels)).
		ChunkRows(chunkRows).
		TimeParameters(h.TPS, h.RefInterval, opts.OutputFPS).
		TimeMode(h.TimeMode).
		SourceCamera(h.SourceCamera).
		Mode(opts.Mode).
		BufferLimit(opts.BufferLimit)
	fr, err := framer.Build(builder, fromValue, toValue)
	if err != nil {
		return nil, wrap("new decoder", err)
	}

	d := &Decoder[T]{header: h, opts: opts, fr: fr}
	if h.Compressed {
		d.body = r
		return d, nil
	}
	rawR, err := raw.NewReaderFromHeader(r, h)
	if err != nil {
		return nil, fmt.Errorf("adter: %w", err)
	}
	d.rawR = rawR
	return d, nil
}

// ReadFrame returns the next fully reconstructed frame, or io.EOF once
// the stream and every pixel's final frame have been exhausted.
func (d *Decoder[T]) ReadFrame() ([]T, error) {
	if d.closed {
		return nil, io.EOF
	}
	for {
		if frame, ok := d.fr.PopNextFrame(); ok {
			return frame, nil
		}
		if d.eof {
			return nil, io.EOF
		}

		events, err := d.nextEvents()
		if err == io.EOF {
			d.fr.Flush()
			d.eof = true
			continue
		}
		if err != nil {
			return nil, err
		}
		live := events[:0]
		for _, e := range events {
			if !e.IsEOF() {
				live = append(live, e)
			}
		}
		if err := d.fr.IngestEvents(live); err != nil {
			return nil, wrap("ingest events", err)
		}
	}
}

// nextEvents returns the next batch of events: exactly one for the raw
// format, or every channel's flattened cubes from the next ADU for the
// compressed format.
func (d *Decoder[T]) nextEvents() ([]core.Event, error) {
	if d.rawR != nil {
		e, err := d.rawR.ReadEvent()
		if err != nil {
			return nil, err
		}
		return []core.Event{e}, nil
	}

	adu, err := d.readNextADU()
	if err != nil {
		return nil, err
	}
	n := int(d.header.Channels)
	if n > 3 {
		n = 3
	}
	if n < 1 {
		n = 1
	}
	multiChannel := d.header.Channels > 1
	var events []core.Event
	for ch := 0; ch < n; ch++ {
		events = append(events, compressed.EventsFromChannelCubes(adu.Channels[ch], uint8(ch), multiChannel)...)
	}
	return events, nil
}

func (d *Decoder[T]) readNextADU() (*compressed.ADU, error) {
	hdr := make([]byte, 12)
	n, err := io.ReadFull(d.body, hdr)
	if err != nil {
		if n == 0 && err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("adter: %w: %w", ErrDeserialize, err)
	}
	numBytes := binary.BigEndian.Uint64(hdr[0:8])
	body := make([]byte, numBytes)
	if _, err := io.ReadFull(d.body, body); err != nil {
		return nil, fmt.Errorf("adter: %w: %w", ErrDeserialize, err)
	}
	full := append(hdr, body...)
	return compressed.Decode(full, int(d.header.Channels), d.opts.PixelMode, d.header.RefInterval, d.header.DeltaTMax)
}

// Close marks the Decoder unusable. ReadFrame returns io.EOF afterward.
func (d *Decoder[T]) Close() error {
	d.closed = true
	return nil
}
