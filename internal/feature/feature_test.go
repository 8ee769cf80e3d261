package feature

import "testing"

func TestContrastDetectorFlagsSpread(t *testing.T) {
	d := NewContrastDetector(1, 10)

	flat := []float64{50, 50, 50, 50, 50, 50, 50, 50, 50}
	if d.Detect(flat, 1) {
		t.Error("a flat window should not be flagged")
	}

	edge := []float64{50, 50, 50, 50, 200, 50, 50, 50, 50}
	if !d.Detect(edge, 1) {
		t.Error("a high-contrast window should be flagged")
	}
}

func TestContrastDetectorEmptyWindow(t *testing.T) {
	d := NewContrastDetector(1, 10)
	if d.Detect(nil, 1) {
		t.Error("an empty window should never be flagged")
	}
}

func TestTrackerEvictsOldest(t *testing.T) {
	tr := NewTracker(2)
	tr.Push(100, []Coord{{X: 1, Y: 1}})
	tr.Push(200, []Coord{{X: 2, Y: 2}})
	tr.Push(300, []Coord{{X: 3, Y: 3}})

	got := tr.Intervals()
	if len(got) != 2 {
		t.Fatalf("retained %d intervals, want 2", len(got))
	}
	if got[0].EndTS != 200 || got[1].EndTS != 300 {
		t.Errorf("oldest interval should have been evicted: got end_ts %d, %d", got[0].EndTS, got[1].EndTS)
	}
}

func TestTrackerDefaultCapacity(t *testing.T) {
	tr := NewTracker(0)
	for i := 0; i < 100; i++ {
		tr.Push(uint64(i), nil)
	}
	if len(tr.Intervals()) != 64 {
		t.Errorf("retained %d intervals, want the default cap of 64", len(tr.Intervals()))
	}
}
