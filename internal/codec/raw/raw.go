// Package raw implements the fixed-width ADTER event codec (component D):
// a self-describing header followed by one fixed-size record per event,
// terminated by an EOF sentinel.
//
// It is adapted from the teacher's VP8X container reader/writer
// (internal/container in the webp tree): there, a fixed-size chunk header
// precedes a payload of known size and the reader seeks by chunk boundary;
// here, a fixed-size event precedes the next event of the same size and
// the reader seeks by event boundary instead.
package raw

import (
	"fmt"
	"io"

	"github.com/adter/adter/internal/container"
	"github.com/adter/adter/internal/core"
	"github.com/adter/adter/internal/pool"
)

// Writer serializes events to an io.Writer in the fixed-width wire format
// described in spec §4.4 / §6.
type Writer struct {
	w         io.Writer
	header    container.Header
	eventSize int
	written   bool
}

// NewWriter constructs a Writer; the header is written on the first call
// to WriteEvent or by calling WriteHeader explicitly.
func NewWriter(w io.Writer, h container.Header) *Writer {
	h.Compressed = false
	if h.EventSize == 0 {
		h.EventSize = container.EventSizeFor(h.Channels)
	}
	return &Writer{w: w, header: h, eventSize: int(h.EventSize)}
}

// WriteHeader writes the stream header. It is idempotent: subsequent calls
// are no-ops once the header has been written.
func (wr *Writer) WriteHeader() error {
	if wr.written {
		return nil
	}
	if err := container.Write(wr.w, wr.header); err != nil {
		return fmt.Errorf("raw: write header: %w", err)
	}
	wr.written = true
	return nil
}

// HeaderSize reports the on-disk header size for the writer's configuration.
func (wr *Writer) HeaderSize() int { return wr.header.Size() }

// EventSize reports the fixed per-event wire size for the writer's channel
// configuration (9 or 10 bytes).
func (wr *Writer) EventSize() int { return wr.eventSize }

func (wr *Writer) multiChannel() bool { return wr.header.Channels > 1 }

// WriteEvent serializes one event in the wire order x:u16, y:u16,
// [c:u8 if multi-channel], d:u8, t:u32 (spec §6).
func (wr *Writer) WriteEvent(e core.Event) error {
	if err := wr.WriteHeader(); err != nil {
		return err
	}
	buf := pool.Get(wr.eventSize)
	defer pool.Put(buf)
	encodeEvent(buf, e, wr.multiChannel())
	if _, err := wr.w.Write(buf); err != nil {
		return fmt.Errorf("raw: write event: %w", err)
	}
	return nil
}

// Close writes the EOF sentinel event (x=y=0xFFFF, per spec §4.4).
func (wr *Writer) Close() error {
	if err := wr.WriteHeader(); err != nil {
		return err
	}
	return wr.WriteEvent(core.EOFEvent(0, wr.multiChannel()))
}

func encodeEvent(buf []byte, e core.Event, multiChannel bool) {
	off := 0
	buf[off], buf[off+1] = byte(e.Coord.X>>8), byte(e.Coord.X)
	off += 2
	buf[off], buf[off+1] = byte(e.Coord.Y>>8), byte(e.Coord.Y)
	off += 2
	if multiChannel {
		buf[off] = e.Coord.Channel()
		off++
	}
	buf[off] = e.D
	off++
	buf[off] = byte(e.T >> 24)
	buf[off+1] = byte(e.T >> 16)
	buf[off+2] = byte(e.T >> 8)
	buf[off+3] = byte(e.T)
}

func decodeEvent(buf []byte, multiChannel bool) core.Event {
	var e core.Event
	off := 0
	e.Coord.X = uint16(buf[off])<<8 | uint16(buf[off+1])
	off += 2
	e.Coord.Y = uint16(buf[off])<<8 | uint16(buf[off+1])
	off += 2
	if multiChannel {
		c := buf[off]
		e.Coord.C = &c
		off++
	}
	e.D = buf[off]
	off++
	e.T = uint32(buf[off])<<24 | uint32(buf[off+1])<<16 | uint32(buf[off+2])<<8 | uint32(buf[off+3])
	return e
}

// Reader deserializes events from an io.ReadSeeker in the fixed-width wire
// format. Seeking is permitted only to positions congruent to
// header_size (mod event_size), per spec §4.4.
type Reader struct {
	r            io.ReadSeeker
	Header       container.Header
	eventSize    int
	multiChannel bool
	eofSeen      bool
}

// NewReader reads and validates the stream header, then returns a Reader
// positioned at the first event.
func NewReader(r io.ReadSeeker) (*Reader, error) {
	head := make([]byte, 64)
	n, err := io.ReadFull(r, head)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("raw: %w: %w", core.ErrBadFile, err)
	}
	h, consumed, err := container.Read(head[:n])
	if err != nil {
		return nil, fmt.Errorf("raw: %w", err)
	}
	if h.Compressed {
		return nil, fmt.Errorf("raw: stream is compressed-format: %w", container.ErrHeader)
	}
	if _, err := r.Seek(int64(consumed), io.SeekStart); err != nil {
		return nil, fmt.Errorf("raw: seek past header: %w", err)
	}
	eventSize := int(h.EventSize)
	if eventSize == 0 {
		eventSize = int(container.EventSizeFor(h.Channels))
	}
	return &Reader{
		r:            r,
		Header:       h,
		eventSize:    eventSize,
		multiChannel: h.Channels > 1,
	}, nil
}

// NewReaderFromHeader builds a Reader for a stream whose header has
// already been parsed and consumed by the caller. This lets a caller
// inspect container.Header.Compressed before deciding whether to hand the
// stream to the raw codec or the compressed codec, without requiring two
// independent header parses.
func NewReaderFromHeader(r io.ReadSeeker, h container.Header) (*Reader, error) {
	if h.Compressed {
		return nil, fmt.Errorf("raw: stream is compressed-format: %w", container.ErrHeader)
	}
	eventSize := int(h.EventSize)
	if eventSize == 0 {
		eventSize = int(container.EventSizeFor(h.Channels))
	}
	return &Reader{
		r:            r,
		Header:       h,
		eventSize:    eventSize,
		multiChannel: h.Channels > 1,
	}, nil
}

// HeaderSize reports the on-disk header size actually read.
func (rd *Reader) HeaderSize() int { return rd.Header.Size() }

// ReadEvent reads and decodes the next event. It returns io.EOF once the
// EOF sentinel has been read; subsequent calls continue to return io.EOF
// (the condition is sticky, per spec §7).
func (rd *Reader) ReadEvent() (core.Event, error) {
	if rd.eofSeen {
		return core.Event{}, io.EOF
	}
	buf := pool.Get(rd.eventSize)
	defer pool.Put(buf)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return core.Event{}, fmt.Errorf("raw: %w: %w", core.ErrDeserialize, err)
		}
		return core.Event{}, fmt.Errorf("raw: read event: %w", err)
	}
	e := decodeEvent(buf, rd.multiChannel)
	if e.IsEOF() {
		rd.eofSeen = true
		return core.Event{}, io.EOF
	}
	return e, nil
}

// SeekEvent seeks to the pos'th event (0-indexed) after the header.
// Returns core.ErrSeek if the underlying seek fails or pos is negative.
func (rd *Reader) SeekEvent(pos int64) error {
	if pos < 0 {
		return fmt.Errorf("raw: negative event index: %w", core.ErrSeek)
	}
	target := int64(rd.HeaderSize()) + pos*int64(rd.eventSize)
	return rd.SeekPosition(target)
}

// SeekPosition seeks directly to a byte offset, validating that
// (offset - header_size) % event_size == 0 (spec §4.4 "Seek is permitted
// only to positions congruent to header_size (mod event_size)").
func (rd *Reader) SeekPosition(offset int64) error {
	rel := offset - int64(rd.HeaderSize())
	if rel < 0 || rel%int64(rd.eventSize) != 0 {
		return fmt.Errorf("raw: misaligned seek to %d: %w", offset, core.ErrSeek)
	}
	if _, err := rd.r.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("raw: seek: %w: %w", core.ErrSeek, err)
	}
	rd.eofSeen = false
	return nil
}

// maxEOFScanAttempts bounds the backward scan in SeekToEOF, matching the
// original's bounded retry loop (spec §4.4 "scans backward until the EOF
// sentinel is located").
const maxEOFScanAttempts = 10

// SeekToEOF seeks near the end of the stream and scans backward event by
// event until the EOF sentinel is located, per spec §4.4. It returns the
// byte offset of the sentinel.
func (rd *Reader) SeekToEOF() (int64, error) {
	end, err := rd.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("raw: seek end: %w: %w", core.ErrSeek, err)
	}
	pos := end - int64(rd.eventSize)
	for attempt := 0; attempt < maxEOFScanAttempts && pos >= int64(rd.HeaderSize()); attempt++ {
		if err := rd.SeekPosition(pos); err != nil {
			return 0, err
		}
		e, err := rd.ReadEvent()
		if err == io.EOF {
			return pos, rd.SeekPosition(pos)
		}
		if err != nil {
			return 0, err
		}
		_ = e
		pos -= int64(rd.eventSize)
	}
	return 0, fmt.Errorf("raw: eof sentinel not found: %w", core.ErrSeek)
}
