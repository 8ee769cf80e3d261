// Package container parses and serializes the ADTER event-stream header
// shared by the raw and compressed codecs. It plays the same role as the
// WebP RIFF/VP8X container parser it was adapted from: a single place that
// knows the on-disk framing so the codecs above it only ever see an
// already-validated Header plus a byte offset to start reading events from.
package container

import (
	"encoding/binary"
	"fmt"

	"github.com/adter/adter/internal/core"
)

// Magic values identifying the two on-disk stream flavors.
var (
	MagicRaw        = [5]byte{'a', 'd', 'd', 'e', 'r'}
	MagicCompressed = [5]byte{'a', 'd', 'd', 'e', 'c'}
)

// Endianness byte. The format is always big-endian; the byte is carried on
// disk so a reader can fail fast on an unrecognized producer.
const EndiannessBig byte = 'b'

// Current stream version. V0 carries only the base fields; V1 adds
// SourceCamera; V2 adds TimeMode.
const CurrentVersion uint8 = 2

// Header is the on-disk event-stream header shared by the raw and
// compressed codecs (spec §3, §6).
//
// Field order on the wire: magic[5], version, endianness, width, height,
// tps, ref_interval, delta_t_max, event_size, channels, then the versioned
// extensions (source_camera from V1, time_mode from V2).
type Header struct {
	Compressed   bool // selects MagicCompressed vs MagicRaw on write
	Version      uint8
	Width        uint16
	Height       uint16
	Channels     uint8
	TPS          uint32 // ticks per second
	RefInterval  uint32 // nominal frame period, in ticks
	DeltaTMax    uint32
	EventSize    uint8
	SourceCamera core.SourceCamera
	TimeMode     core.TimeMode
}

// baseHeaderSize is magic[5]+version+endianness+width+height+tps+ref_interval
// +delta_t_max+event_size+channels, before any versioned extension bytes.
const baseHeaderSize = 5 + 1 + 1 + 2 + 2 + 4 + 4 + 4 + 1 + 1

// Size reports the on-disk size of the header for h.Version:
// baseHeaderSize, plus a 4-byte extension from V1 (source_camera) and
// another from V2 (time_mode). The extension tags are written as 4-byte
// values, matching the original stream format (a 33-byte V2 header).
func (h Header) Size() int {
	size := baseHeaderSize
	if h.Version >= 1 {
		size += 4
	}
	if h.Version >= 2 {
		size += 4
	}
	return size
}

// EventSizeFor returns the fixed per-event wire size for the raw codec
// (spec §4.4): 9 bytes for single-channel streams, 10 with a channel byte.
func EventSizeFor(channels uint8) uint8 {
	if channels > 1 {
		return 10
	}
	return 9
}

// Write serializes h to w in the wire order described on Header.
func Write(w writer, h Header) error {
	magic := MagicRaw
	if h.Compressed {
		magic = MagicCompressed
	}
	buf := make([]byte, 0, h.Size())
	buf = append(buf, magic[:]...)
	buf = append(buf, h.Version, EndiannessBig)
	buf = appendU16(buf, h.Width)
	buf = appendU16(buf, h.Height)
	buf = appendU32(buf, h.TPS)
	buf = appendU32(buf, h.RefInterval)
	buf = appendU32(buf, h.DeltaTMax)
	buf = append(buf, h.EventSize, h.Channels)
	if h.Version >= 1 {
		buf = appendU32(buf, uint32(h.SourceCamera))
	}
	if h.Version >= 2 {
		buf = appendU32(buf, uint32(h.TimeMode))
	}
	_, err := w.Write(buf)
	return err
}

// writer is the minimal surface Write needs; satisfied by *bufio.Writer,
// *os.File, *bytes.Buffer, etc.
type writer interface {
	Write(p []byte) (int, error)
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// ErrHeader is returned (wrapped) by Read when the magic, endianness, or
// size of the supplied bytes doesn't describe a valid ADTER header.
var ErrHeader = fmt.Errorf("container: malformed header")

// Read parses a Header from the front of data, returning the header and the
// number of bytes consumed. data must hold at least baseHeaderSize bytes;
// Read itself determines the true size from the version byte and re-checks
// length for the versioned extension bytes.
func Read(data []byte) (Header, int, error) {
	if len(data) < baseHeaderSize {
		return Header{}, 0, fmt.Errorf("container: truncated header: %w", ErrHeader)
	}
	var h Header
	switch {
	case [5]byte(data[0:5]) == MagicRaw:
		h.Compressed = false
	case [5]byte(data[0:5]) == MagicCompressed:
		h.Compressed = true
	default:
		return Header{}, 0, fmt.Errorf("container: bad magic: %w", ErrHeader)
	}
	off := 5
	h.Version = data[off]
	off++
	if data[off] != EndiannessBig {
		return Header{}, 0, fmt.Errorf("container: unsupported endianness: %w", ErrHeader)
	}
	off++
	h.Width = binary.BigEndian.Uint16(data[off:])
	off += 2
	h.Height = binary.BigEndian.Uint16(data[off:])
	off += 2
	h.TPS = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.RefInterval = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.DeltaTMax = binary.BigEndian.Uint32(data[off:])
	off += 4
	h.EventSize = data[off]
	off++
	h.Channels = data[off]
	off++

	want := h.Size()
	if len(data) < want {
		return Header{}, 0, fmt.Errorf("container: truncated header extension: %w", ErrHeader)
	}
	if h.Version >= 1 {
		h.SourceCamera = core.SourceCamera(binary.BigEndian.Uint32(data[off:]))
		off += 4
	}
	if h.Version >= 2 {
		h.TimeMode = core.TimeMode(binary.BigEndian.Uint32(data[off:]))
		off += 4
	}
	return h, off, nil
}
