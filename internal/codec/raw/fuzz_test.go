package raw

import (
	"bytes"
	"io"
	"testing"

	"github.com/adter/adter/internal/core"
)

// FuzzReadStream feeds arbitrary bytes to the reader, seeded with a valid
// single-event stream. Any input may error but must never panic or loop:
// the reader must stop within len(data)/event_size+2 reads.
func FuzzReadStream(f *testing.F) {
	var seed bytes.Buffer
	w := NewWriter(&seed, testHeader())
	if err := w.WriteEvent(core.Event{Coord: core.Coord{X: 10, Y: 30}, D: 5, T: 1000}); err != nil {
		f.Fatal(err)
	}
	if err := w.Close(); err != nil {
		f.Fatal(err)
	}
	f.Add(seed.Bytes())
	f.Add(seed.Bytes()[:seed.Len()-1]) // truncated mid-sentinel
	f.Add([]byte("adder"))             // magic only

	f.Fuzz(func(t *testing.T, data []byte) {
		r, err := NewReader(bytes.NewReader(data))
		if err != nil {
			return
		}
		// A stream of len(data) bytes can hold at most len(data)/event_size
		// events; one extra read must hit the sentinel or an error.
		max := len(data)/r.eventSize + 2
		for i := 0; i < max; i++ {
			if _, err := r.ReadEvent(); err != nil {
				return
			}
		}
		t.Fatal("reader did not terminate on bounded input")
	})
}

// FuzzEventRoundTrip checks write-then-read field equality for arbitrary
// event field values, in both the 9- and 10-byte wire layouts.
func FuzzEventRoundTrip(f *testing.F) {
	f.Add(uint16(10), uint16(30), uint8(5), uint32(1000), false)
	f.Add(uint16(0), uint16(0), uint8(0xFF), uint32(0), true)

	f.Fuzz(func(t *testing.T, x, y uint16, d uint8, tt uint32, multi bool) {
		if x == core.EOFAddress && y == core.EOFAddress {
			t.Skip("sentinel address")
		}
		h := testHeader()
		if multi {
			h.Channels = 3
		}
		ev := core.Event{Coord: core.Coord{X: x, Y: y}, D: d, T: tt}
		if multi {
			ch := uint8(2)
			ev.Coord.C = &ch
		}

		var buf bytes.Buffer
		w := NewWriter(&buf, h)
		if err := w.WriteEvent(ev); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}

		r, err := NewReader(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatal(err)
		}
		got, err := r.ReadEvent()
		if err != nil {
			t.Fatal(err)
		}
		if got.Coord.X != x || got.Coord.Y != y || got.D != d || got.T != tt {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, ev)
		}
		if multi && got.Coord.Channel() != 2 {
			t.Fatalf("channel = %d, want 2", got.Coord.Channel())
		}
		if _, err := r.ReadEvent(); err != io.EOF {
			t.Fatalf("expected io.EOF after the sentinel, got %v", err)
		}
	})
}
