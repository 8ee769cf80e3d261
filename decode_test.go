package adter

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func u8FromValue(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func u8ToValue(v uint8) float64 { return float64(v) }

// TestDecodeEmptyRawStreamReturnsEOF checks that a stream with no
// ingested frames (header plus the EOF sentinel only) decodes to no
// frames at all.
func TestDecodeEmptyRawStreamReturnsEOF(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultEncoderOptions(2, 2, 1)
	opts.TPS = 20
	opts.RefInterval = 20
	enc, err := NewEncoder(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecoder[uint8](bytes.NewReader(buf.Bytes()), DefaultDecoderOptions(1, Continuous), u8FromValue, u8ToValue)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dec.ReadFrame(); err != io.EOF {
		t.Fatalf("ReadFrame() err = %v, want io.EOF", err)
	}
}

// TestEncodeDecodeRawRoundTrip checks that frames read back from a raw
// stream have the right shape and terminate in io.EOF, for a plane large
// enough to exercise multiple row chunks.
func TestEncodeDecodeRawRoundTrip(t *testing.T) {
	const w, h = 4, 4
	var buf bytes.Buffer
	opts := DefaultEncoderOptions(w, h, 1)
	opts.TPS = 20
	opts.RefInterval = 20
	opts.DeltaTMax = 10000
	opts.ChunkRows = 2

	enc, err := NewEncoder(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, v := range []float64{10, 200, 10, 200, 10} {
		if err := enc.IngestFrame(ctx, constantMatrix(w, h, 1, v), 20); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := NewDecoder[uint8](bytes.NewReader(buf.Bytes()), DefaultDecoderOptions(1, Continuous), u8FromValue, u8ToValue)
	if err != nil {
		t.Fatal(err)
	}
	frames := 0
	for {
		frame, err := dec.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if len(frame) != w*h {
			t.Fatalf("frame %d: len = %d, want %d", frames, len(frame), w*h)
		}
		frames++
		if frames > 10_000 {
			t.Fatal("ReadFrame did not terminate")
		}
	}
}

// TestEncodeDecodeCompressedRoundTrip mirrors the raw round trip for the
// compressed wire format.
func TestEncodeDecodeCompressedRoundTrip(t *testing.T) {
	const w, h = 32, 32
	var buf bytes.Buffer
	opts := DefaultEncoderOptions(w, h, 1)
	opts.TPS = 20
	opts.RefInterval = 20
	opts.DeltaTMax = 10000
	opts.Compressed = true

	enc, err := NewEncoder(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, v := range []float64{10, 200, 10, 200} {
		if err := enc.IngestFrame(ctx, constantMatrix(w, h, 1, v), 20); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	decOpts := DefaultDecoderOptions(1, Continuous)
	dec, err := NewDecoder[uint8](bytes.NewReader(buf.Bytes()), decOpts, u8FromValue, u8ToValue)
	if err != nil {
		t.Fatal(err)
	}
	frames := 0
	for {
		frame, err := dec.ReadFrame()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if len(frame) != w*h {
			t.Fatalf("frame %d: len = %d, want %d", frames, len(frame), w*h)
		}
		frames++
		if frames > 10_000 {
			t.Fatal("ReadFrame did not terminate")
		}
	}
}

// TestNewDecoderRequiresPositiveFPS checks the malformed-encoder guard.
func TestNewDecoderRequiresPositiveFPS(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultEncoderOptions(2, 2, 1)
	opts.TPS, opts.RefInterval = 20, 20
	enc, err := NewEncoder(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	_, err = NewDecoder[uint8](bytes.NewReader(buf.Bytes()), DecoderOptions{OutputFPS: 0}, u8FromValue, u8ToValue)
	if err == nil {
		t.Fatal("expected an error for OutputFPS <= 0")
	}
}
