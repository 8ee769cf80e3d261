package framer

import (
	"testing"

	"github.com/adter/adter/internal/core"
)

// TestFrame0FillsAfterEveryPixel is spec §8 scenario 4: a 5x5
// single-channel grid, ref=1000, tps=50000, fps=50. Feeding one event
// (i,j,d=5,t=5100) for every (i,j) fills frame 0 after the 25th event,
// with every cell set to the value derived from d=5, t=5100 over ref=1000.
func TestFrame0FillsAfterEveryPixel(t *testing.T) {
	b := NewBuilder(5, 5, 1).TimeParameters(50000, 1000, 50)
	f, err := Build[uint8](b, func(v float64) uint8 {
		if v > 255 {
			return 255
		}
		return uint8(v)
	}, func(v uint8) float64 { return float64(v) })
	if err != nil {
		t.Fatal(err)
	}

	for i := uint16(0); i < 5; i++ {
		for j := uint16(0); j < 5; j++ {
			if i == 4 && j == 4 {
				if f.IsFrame0Filled() {
					t.Fatal("frame 0 should not be filled before the 25th event")
				}
			}
			ev := core.Event{Coord: core.Coord{X: j, Y: i}, D: 5, T: 5100}
			if err := f.IngestEvent(ev); err != nil {
				t.Fatalf("IngestEvent(%d,%d): %v", i, j, err)
			}
		}
	}
	if !f.IsFrame0Filled() {
		t.Fatal("frame 0 should be filled after all 25 pixels received an event")
	}

	frame, ok := f.PopNextFrame()
	if !ok {
		t.Fatal("PopNextFrame should succeed once frame 0 is filled")
	}
	want := uint8(core.DShift[5] / 5100 * 1000)
	for i, v := range frame {
		if v != want {
			t.Fatalf("frame[%d] = %d, want %d", i, v, want)
		}
	}
}

// TestFlushGuaranteesTermination is spec §8 "Framer termination": after
// feeding N events and calling flush, every allocated frame becomes
// filled even if some pixels never received a closing event.
func TestFlushGuaranteesTermination(t *testing.T) {
	b := NewBuilder(2, 2, 1).TimeParameters(1000, 100, 10)
	f, err := Build[uint8](b, func(v float64) uint8 { return uint8(v) }, func(v uint8) float64 { return float64(v) })
	if err != nil {
		t.Fatal(err)
	}
	// Only pixel (0,0) ever fires; it alone must not block termination.
	if err := f.IngestEvent(core.Event{Coord: core.Coord{X: 0, Y: 0}, D: 3, T: 500}); err != nil {
		t.Fatal(err)
	}
	f.Flush()
	if !f.IsFrame0Filled() {
		t.Fatal("flush should force every allocated frame to report filled")
	}
	if _, ok := f.PopNextFrame(); !ok {
		t.Fatal("PopNextFrame should succeed after flush")
	}
}

// TestIngestEventsMatchesSequential checks the chunk-parallel batch path
// produces the same reconstruction as one-at-a-time ingest.
func TestIngestEventsMatchesSequential(t *testing.T) {
	build := func() *Framer[uint8] {
		b := NewBuilder(4, 4, 1).ChunkRows(2).TimeParameters(50000, 1000, 50)
		f, err := Build[uint8](b, func(v float64) uint8 {
			if v > 255 {
				return 255
			}
			return uint8(v)
		}, func(v uint8) float64 { return float64(v) })
		if err != nil {
			t.Fatal(err)
		}
		return f
	}

	var events []core.Event
	for y := uint16(0); y < 4; y++ {
		for x := uint16(0); x < 4; x++ {
			events = append(events, core.Event{Coord: core.Coord{X: x, Y: y}, D: core.D(3 + x), T: 2000})
		}
	}

	seq := build()
	for _, e := range events {
		if err := seq.IngestEvent(e); err != nil {
			t.Fatal(err)
		}
	}
	par := build()
	if err := par.IngestEvents(events); err != nil {
		t.Fatal(err)
	}

	seqFrame, ok1 := seq.PopNextFrame()
	parFrame, ok2 := par.PopNextFrame()
	if ok1 != ok2 {
		t.Fatalf("readiness mismatch: sequential=%v parallel=%v", ok1, ok2)
	}
	if !ok1 {
		t.Fatal("frame 0 should be ready after every pixel fired")
	}
	for i := range seqFrame {
		if seqFrame[i] != parFrame[i] {
			t.Fatalf("pixel %d: sequential=%d parallel=%d", i, seqFrame[i], parFrame[i])
		}
	}
}

// TestStaleAbsoluteTDropped is spec §4.3 step 1: under AbsoluteT, an event
// whose t is <= the pixel's running timestamp is dropped as stale.
func TestStaleAbsoluteTDropped(t *testing.T) {
	b := NewBuilder(1, 1, 1).TimeParameters(1000, 100, 10).TimeMode(core.AbsoluteT)
	f, err := Build[uint8](b, func(v float64) uint8 { return uint8(v) }, func(v uint8) float64 { return float64(v) })
	if err != nil {
		t.Fatal(err)
	}
	if err := f.IngestEvent(core.Event{Coord: core.Coord{X: 0, Y: 0}, D: 3, T: 500}); err != nil {
		t.Fatal(err)
	}
	before := f.chunks[0].pixels[0].lastFrameIntensity
	if err := f.IngestEvent(core.Event{Coord: core.Coord{X: 0, Y: 0}, D: 7, T: 400}); err != nil {
		t.Fatal(err)
	}
	after := f.chunks[0].pixels[0].lastFrameIntensity
	if before != after {
		t.Errorf("a stale AbsoluteT event should have been dropped without updating state")
	}
}
