package arena

import (
	"math"
	"testing"

	"github.com/adter/adter/internal/core"
)

// TestConstantIntensityBranches exercises spec §8 scenario 1's setup (a
// single pixel at constant intensity 100.0, time-step 20 ticks,
// ref_interval=20, dtm=10000, Continuous mode): the first integrate call
// overshoots the seeded d=floor(log2(100))=6 threshold immediately (since
// 100 >= 2^6) and branches, and the branch's best event records the d the
// node held *before* it advanced past the threshold.
func TestConstantIntensityBranches(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 100.0)
	if a.Len() != 1 {
		t.Fatalf("initial length = %d, want 1", a.Len())
	}
	if a.nodes[0].D != 6 {
		// floor(log2(100)) = 6
		t.Fatalf("seed d = %d, want 6", a.nodes[0].D)
	}

	a.Integrate(100.0, 20, core.Continuous, 10000, 20, 20, 1, core.Normal)
	if a.Len() != 2 {
		t.Fatalf("after first integrate, length = %d, want 2 (100 overshoots d=6's threshold of 64)", a.Len())
	}
	head := a.nodes[0]
	if head.Best == nil {
		t.Fatal("head should have a best event after overshoot")
	}
	if head.Best.D != 6 {
		t.Errorf("head best d = %d, want 6 (the pre-advance d)", head.Best.D)
	}
	if head.D != 7 {
		t.Errorf("head d after advance = %d, want 7 (2^7 > 100)", head.D)
	}
	tail := a.nodes[1]
	if math.Abs(tail.Integration-36) > 1e-6 {
		t.Errorf("branched tail integration = %v, want 36 (the 100-64 remainder)", tail.Integration)
	}
	if math.Abs(tail.DeltaT-7.2) > 1e-6 {
		t.Errorf("branched tail delta_t = %v, want 7.2", tail.DeltaT)
	}
}

// TestSecondOvershootPreservesTailState is a regression test: a node that
// already holds accumulated state from an earlier branch must not be
// clobbered by a fresh seed when an *earlier* node overshoots again (this
// would silently lose the intensity already accumulated in it).
func TestSecondOvershootPreservesTailState(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 100.0)
	a.Integrate(100.0, 20, core.Continuous, 1000000, 20, 20, 1, core.Normal)
	if a.Len() != 2 {
		t.Fatalf("length after first integrate = %d, want 2", a.Len())
	}
	preExisting := a.nodes[1].Integration

	a.Integrate(100.0, 20, core.Continuous, 1000000, 20, 20, 1, core.Normal)
	if a.Len() < 2 {
		t.Fatalf("length after second integrate = %d, want >= 2", a.Len())
	}
	// Whatever happened to node 1 (further overshoot or in-place
	// accumulation), its integration must be >= what it already held;
	// it must never have been reset back to a fresh seed's value.
	if a.nodes[1].Integration < preExisting && a.nodes[1].Best == nil {
		t.Errorf("node 1 integration %v is less than its pre-existing %v with no best event recorded: intensity was lost", a.nodes[1].Integration, preExisting)
	}
}

// TestFramePerfectPopsOnSchedule is spec §8 scenario 2: 48 steps of
// (245.0, 5000 ticks), dtm=240000, ref_interval=5000, FramePerfect mode.
// On step 48 need_to_pop_top triggers, and popping yields a delta_t that
// is a multiple of 5000.
func TestFramePerfectPopsOnSchedule(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 245.0)
	var popped bool
	for i := 0; i < 48; i++ {
		a.Integrate(245.0, 5000, core.FramePerfect, 240000, 5000, 20, 1, core.Normal)
		if a.NeedToPopTop {
			ev := a.PopTopEvent(245.0, core.FramePerfect, 5000)
			popped = true
			if ev.T%5000 != 0 {
				t.Errorf("step %d: popped delta_t = %d, not a multiple of 5000", i, ev.T)
			}
		}
	}
	if !popped {
		t.Fatal("expected need_to_pop_top to trigger within 48 steps")
	}
}

// TestDMaxSaturationForcesPop checks the boundary behavior in spec §8:
// "d saturates at D_MAX=127; once reached, the head must be popped within
// one further integrate call."
func TestDMaxSaturationForcesPop(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, core.DShift[core.DMax])
	for i := 0; i < 4; i++ {
		a.Integrate(core.DShift[core.DMax], 10, core.Continuous, 1<<30, 10, 20, 1, core.Normal)
		if a.nodes[0].D == core.DMax {
			break
		}
	}
	if a.nodes[0].D != core.DMax {
		t.Fatal("expected head to reach DMax")
	}
	if !a.NeedToPopTop {
		t.Fatal("NeedToPopTop should be set once head reaches DMax")
	}
	a.PopTopEvent(1, core.Continuous, 10)
	if a.nodes[0].D == core.DMax && a.NeedToPopTop {
		t.Error("pop should have relieved NeedToPopTop")
	}
}

// TestZeroIntegrationEvent is the spec §8 boundary: "When delta_t_max is
// hit with zero integration, an event with d = D_ZERO_INTEGRATION is
// emitted carrying the elapsed time."
func TestZeroIntegrationEvent(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 0)
	a.nodes[0].DeltaT = 100
	a.nodes[0].Integration = 0
	a.NeedToPopTop = true
	ev := a.PopTopEvent(10, core.Continuous, 1000)
	if ev.D != core.DZeroIntegration {
		t.Errorf("d = %d, want DZeroIntegration (%d)", ev.D, core.DZeroIntegration)
	}
	if ev.T != 100 {
		t.Errorf("t = %d, want 100", ev.T)
	}
}

// TestCollapseMultiMode checks that PopBestEvents under Collapse keeps
// only the first event and replaces the second with a DEmpty event (spec
// §4.1 "Pixel-level multi-mode").
func TestCollapseMultiMode(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 1)
	// Force two branches worth of speculative events.
	a.Integrate(3, 1, core.Continuous, 1000000, 10, 20, 1, core.Normal)
	a.Integrate(3, 1, core.Continuous, 1000000, 10, 20, 1, core.Normal)
	a.Integrate(3, 1, core.Continuous, 1000000, 10, 20, 1, core.Normal)

	events := a.PopBestEvents(nil, core.Continuous, core.Collapse, 10)
	if len(events) < 2 {
		t.Skip("not enough speculative events generated to exercise collapse")
	}
	if events[1].D != core.DEmpty {
		t.Errorf("second collapsed event d = %d, want DEmpty", events[1].D)
	}
}

// TestSetDForContinuousEmitsSingleDEmpty is the spec §8 boundary: moving
// from bright to much dimmer in Continuous mode emits exactly one DEmpty
// event carrying the head's elapsed delta_t, then resets the head.
func TestSetDForContinuousEmitsSingleDEmpty(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 1000) // d = 9
	a.nodes[0].DeltaT = 37
	ev, ok := a.SetDForContinuous(1, 20) // d = 0, much smaller
	if !ok {
		t.Fatal("expected a DEmpty event when dropping to a much smaller d")
	}
	if ev.D != core.DEmpty {
		t.Errorf("d = %d, want DEmpty", ev.D)
	}
	if a.nodes[0].DeltaT != 0 || a.nodes[0].Integration != 0 {
		t.Error("head should reset delta_t/integration after emitting DEmpty")
	}
	if a.nodes[0].D != 0 {
		t.Errorf("head d after reset = %d, want 0", a.nodes[0].D)
	}
}

// TestArenaLengthNeverZero is spec invariant 1.
func TestArenaLengthNeverZero(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 5)
	a.PopBestEvents(nil, core.Continuous, core.Normal, 10)
	if a.Len() < 1 {
		t.Error("arena length must remain >= 1 at all times")
	}
}

// TestRunningTMonotonic is spec invariant 6.
func TestRunningTMonotonic(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 5)
	var last float64
	for i := 0; i < 20; i++ {
		a.Integrate(5, 3, core.Continuous, 1000000, 10, 20, 1, core.Normal)
		if a.RunningT < last {
			t.Fatalf("running_t decreased: %v < %v", a.RunningT, last)
		}
		last = a.RunningT
	}
}

// TestMultiLevelJumpQuantizesAtFinalD is a regression test for a single
// Integrate call whose sample crosses many decimation thresholds at once:
// the committed best_event must be quantized at the d the full post-add
// intensity warrants, not the node's stale pre-add d, and the branch must
// not cascade into a chain of near-empty nodes chasing the real d one
// doubling at a time.
func TestMultiLevelJumpQuantizesAtFinalD(t *testing.T) {
	a := New(core.Coord{X: 0, Y: 0}, 1) // seeds head d = 0
	a.Integrate(1_000_000, 10, core.Continuous, 1_000_000_000, 20, 20, 1, core.Normal)

	head := a.nodes[0]
	if head.Best == nil {
		t.Fatal("expected head to have a best event after a large overshoot")
	}
	wantD := dFromIntensity(1_000_000)
	if head.Best.D != wantD {
		t.Errorf("best event d = %d, want %d (floor(log2(1_000_000)), not the stale seed d)", head.Best.D, wantD)
	}
	if a.Len() > 2 {
		t.Errorf("arena length = %d after a single large jump, want <= 2 (no cascading branch chain)", a.Len())
	}
}
