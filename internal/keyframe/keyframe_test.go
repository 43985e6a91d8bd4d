package keyframe

import (
	"reflect"
	"testing"
)

func TestBuildRejectsEmpty(t *testing.T) {
	if _, err := Build(nil); err == nil {
		t.Fatal("expected error for empty index")
	}
}

func TestBuildRequiresFrameZero(t *testing.T) {
	_, err := Build([]Entry{{Frame: 5, Pos: 0}})
	if err == nil {
		t.Fatal("expected error when first keyframe is not frame 0")
	}
}

func TestBuildRejectsDuplicates(t *testing.T) {
	_, err := Build([]Entry{{Frame: 0, Pos: 0}, {Frame: 0, Pos: 10}})
	if err == nil {
		t.Fatal("expected error for duplicate frame numbers")
	}
}

func TestCovering(t *testing.T) {
	idx, err := Build([]Entry{{Frame: 0, Pos: 0}, {Frame: 10, Pos: 100}, {Frame: 25, Pos: 300}})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		target int
		want   int
	}{
		{0, 0},
		{5, 0},
		{9, 0},
		{10, 10},
		{24, 10},
		{25, 25},
		{999, 25},
	}
	for _, c := range cases {
		got := idx.Covering(c.target)
		if got.Frame != c.want {
			t.Errorf("Covering(%d) = frame %d, want %d", c.target, got.Frame, c.want)
		}
	}
}

func TestPlanSingleRunWithinOneKeyframe(t *testing.T) {
	idx, _ := Build([]Entry{{Frame: 0, Pos: 0}, {Frame: 100, Pos: 1000}})
	runs := idx.Plan([]int{1, 2, 3, 50})
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d: %+v", len(runs), runs)
	}
	if !reflect.DeepEqual(runs[0].Frames, []int{1, 2, 3, 50}) {
		t.Errorf("unexpected run contents: %+v", runs[0].Frames)
	}
}

func TestPlanSplitsAcrossKeyframeBoundary(t *testing.T) {
	idx, _ := Build([]Entry{{Frame: 0, Pos: 0}, {Frame: 10, Pos: 100}, {Frame: 20, Pos: 200}})
	// frame 5 covered by kf@0; frame 15 covered by kf@10 (> 5) -> new run;
	// frame 16 covered by kf@10, same as prev covering but prev target is 15 -> same run.
	runs := idx.Plan([]int{5, 15, 16})
	want := []Run{{Frames: []int{5}}, {Frames: []int{15, 16}}}
	if !reflect.DeepEqual(runs, want) {
		t.Errorf("got %+v, want %+v", runs, want)
	}
}

func TestPlanEmpty(t *testing.T) {
	idx, _ := Build([]Entry{{Frame: 0, Pos: 0}})
	if runs := idx.Plan(nil); runs != nil {
		t.Errorf("expected nil runs for empty input, got %+v", runs)
	}
}
