package adter

import (
	"bytes"
	"context"
	"testing"
)

func constantMatrix(w, h, c int, v float64) []float64 {
	m := make([]float64, w*h*c)
	for i := range m {
		m[i] = v
	}
	return m
}

// TestNewEncoderRejectsBadDimensions checks the malformed-encoder guard
// fires before any frame is ingested.
func TestNewEncoderRejectsBadDimensions(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewEncoder(&buf, EncoderOptions{Width: 0, Height: 4, Channels: 1})
	if err == nil {
		t.Fatal("expected an error for zero width")
	}
}

// TestEncoderWritesHeaderOnConstruction checks that the header is
// flushed immediately so a caller can inspect HeaderSize-equivalent
// framing before ingesting any frame.
func TestEncoderWritesHeaderOnConstruction(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultEncoderOptions(2, 2, 1)
	opts.TPS = 20
	opts.RefInterval = 20
	enc, err := NewEncoder(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected header bytes written before any frame")
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

// TestEncodeRawProducesTerminatedStream checks the raw-format path closes
// with an EOF sentinel event the reader can see.
func TestEncodeRawProducesTerminatedStream(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultEncoderOptions(2, 2, 1)
	opts.TPS = 20
	opts.RefInterval = 20
	opts.DeltaTMax = 10000

	enc, err := NewEncoder(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := enc.IngestFrame(ctx, constantMatrix(2, 2, 1, 50), 20); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a non-empty encoded stream")
	}
	tail := buf.Bytes()[buf.Len()-9:]
	if tail[0] != 0xFF || tail[1] != 0xFF || tail[2] != 0xFF || tail[3] != 0xFF {
		t.Fatalf("stream does not end with the EOF sentinel: last event % x", tail)
	}
}

// TestEncodeCompressedProducesADUs checks the compressed-format path
// writes a header followed by at least one ADU when events are produced.
func TestEncodeCompressedProducesADUs(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultEncoderOptions(32, 32, 1)
	opts.TPS = 20
	opts.RefInterval = 20
	opts.DeltaTMax = 10000
	opts.Compressed = true

	enc, err := NewEncoder(&buf, opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	headerLen := buf.Len()

	// Vary intensity across frames so some pixel crosses its contrast
	// threshold and actually emits events.
	for i, v := range []float64{10, 200, 10, 200} {
		if err := enc.IngestFrame(ctx, constantMatrix(32, 32, 1, v), 20); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() <= headerLen {
		t.Fatal("expected ADU bytes appended after the header")
	}
}
