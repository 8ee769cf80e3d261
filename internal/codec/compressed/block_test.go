package compressed

import (
	"math/rand"
	"testing"

	"github.com/adter/adter/internal/core"
)

// TestIntraRoundTrip is spec §8 scenario 5: a random 16x16 block with
// dtm=255, sparam=0 (values small enough that no shift loss is needed).
// Forward then inverse intra prediction reconstructs every event's
// (d, delta_t) exactly.
func TestIntraRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := &Block{}
	for i := 0; i < BlockArea; i++ {
		if rng.Intn(3) == 0 {
			continue // leave some pixels empty
		}
		d := core.D(rng.Intn(40))
		dt := float64(rng.Intn(255))
		b.Set(i%TileSize, i/TileSize, d, dt)
	}

	ic, ok := forwardIntra(b, core.Continuous, 20)
	if !ok {
		t.Fatal("expected a present anchor")
	}
	if ic.Sparam != 0 {
		t.Fatalf("sparam = %d, want 0 for small residuals", ic.Sparam)
	}

	got := inverseIntra(ic, core.Continuous, 20)
	for i := 0; i < BlockArea; i++ {
		want := b.Slots[i]
		gotSlot := got.Slots[i]
		if !want.Present {
			continue
		}
		if !gotSlot.Present {
			t.Fatalf("pos %d: expected present slot", i)
		}
		if gotSlot.D != want.D {
			t.Errorf("pos %d: d = %d, want %d", i, gotSlot.D, want.D)
		}
		if gotSlot.DeltaT != want.DeltaT {
			t.Errorf("pos %d: delta_t = %v, want %v", i, gotSlot.DeltaT, want.DeltaT)
		}
	}
}

// TestIntraShiftLossQuantizes checks that a block whose residuals exceed
// 2^15-1 raises sparam and that the quantized round-trip stays within one
// unit of 2^sparam (spec §4.5 "raise a shift loss parameter sparam").
func TestIntraShiftLossQuantizes(t *testing.T) {
	b := &Block{}
	b.Set(0, 0, 5, 0)
	b.Set(1, 0, 5, 200000)
	ic, ok := forwardIntra(b, core.Continuous, 20)
	if !ok {
		t.Fatal("expected a present anchor")
	}
	if ic.Sparam == 0 {
		t.Fatal("expected sparam > 0 for a residual exceeding 2^15-1")
	}
	got := inverseIntra(ic, core.Continuous, 20)
	diff := got.Slots[1].DeltaT - 200000
	if diff < 0 {
		diff = -diff
	}
	if diff >= float64(int64(1)<<ic.Sparam) {
		t.Errorf("reconstructed delta_t off by %v, want within 2^%d", diff, ic.Sparam)
	}
}

// TestIntraEmptyBlock checks forwardIntra reports ok=false for a block
// with no present pixels.
func TestIntraEmptyBlock(t *testing.T) {
	b := &Block{}
	if _, ok := forwardIntra(b, core.Continuous, 20); ok {
		t.Fatal("expected ok=false for an empty block")
	}
}

// TestFramePerfectRoundsToRefInterval checks the FramePerfect alignment
// path rounds reconstructed times up to the next ref_interval multiple.
func TestFramePerfectRoundsToRefInterval(t *testing.T) {
	b := &Block{}
	b.Set(0, 0, 3, 17)
	ic, _ := forwardIntra(b, core.FramePerfect, 20)
	got := inverseIntra(ic, core.FramePerfect, 20)
	if got.Slots[0].DeltaT != 20 {
		t.Errorf("delta_t = %v, want 20 (rounded up from 17)", got.Slots[0].DeltaT)
	}
}
