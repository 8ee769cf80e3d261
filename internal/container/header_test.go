package container

import (
	"bytes"
	"testing"

	"github.com/adter/adter/internal/core"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Compressed:   false,
		Version:      2,
		Width:        50,
		Height:       100,
		Channels:     1,
		TPS:          53000,
		RefInterval:  4000,
		DeltaTMax:    50000,
		EventSize:    EventSizeFor(1),
		SourceCamera: core.FramedU8,
		TimeMode:     core.DeltaT,
	}

	var buf bytes.Buffer
	if err := Write(&buf, h); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, n, err := Read(buf.Bytes())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != h.Size() {
		t.Errorf("consumed %d bytes, want %d", n, h.Size())
	}
	if got != h {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHeaderSizeByVersion(t *testing.T) {
	cases := []struct {
		version uint8
		want    int
	}{
		{0, baseHeaderSize},
		{1, baseHeaderSize + 4},
		{2, baseHeaderSize + 8},
	}
	for _, c := range cases {
		h := Header{Version: c.version}
		if got := h.Size(); got != c.want {
			t.Errorf("Header{Version: %d}.Size() = %d, want %d", c.version, got, c.want)
		}
	}
}

func TestReadBadMagic(t *testing.T) {
	data := make([]byte, baseHeaderSize)
	copy(data, "xxxxx")
	if _, _, err := Read(data); err == nil {
		t.Error("Read with bad magic should fail")
	}
}

func TestReadTruncated(t *testing.T) {
	if _, _, err := Read(MagicRaw[:]); err == nil {
		t.Error("Read with truncated header should fail")
	}
}

func TestEventSizeFor(t *testing.T) {
	if got := EventSizeFor(1); got != 9 {
		t.Errorf("EventSizeFor(1) = %d, want 9", got)
	}
	if got := EventSizeFor(3); got != 10 {
		t.Errorf("EventSizeFor(3) = %d, want 10", got)
	}
}
