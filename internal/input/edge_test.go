package input

import "testing"

func TestEdgeTrackerFiresOncePerPress(t *testing.T) {
	edges := NewEdgeTracker()

	if edges.Rising("btn", false) {
		t.Fatal("released control must not fire")
	}

	fired := 0
	for tick := 0; tick < 10; tick++ {
		if edges.Rising("btn", true) {
			fired++
		}
	}
	if fired != 1 {
		t.Fatalf("expected exactly 1 detection for a held control, got %d", fired)
	}
}

func TestEdgeTrackerRearmsAfterRelease(t *testing.T) {
	edges := NewEdgeTracker()

	if !edges.Rising("btn", true) {
		t.Fatal("first press must fire")
	}
	if edges.Rising("btn", true) {
		t.Fatal("held control must not fire again")
	}
	if edges.Rising("btn", false) {
		t.Fatal("release must not fire")
	}
	if !edges.Rising("btn", true) {
		t.Fatal("press after release must fire again")
	}
}

func TestEdgeTrackerTracksControlsIndependently(t *testing.T) {
	edges := NewEdgeTracker()

	if !edges.Rising("a", true) {
		t.Fatal("control a must fire")
	}
	if !edges.Rising("b", true) {
		t.Fatal("control b must fire independently of a")
	}
}
