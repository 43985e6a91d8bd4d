// Package keyframe holds the per-video keyframe index used by
// VideoHandle.GetBatch to plan seeks and decode runs.
//
// The index shape — a sorted list of (frame, position) pairs with a
// covering-keyframe lookup — mirrors the teacher's scene-boundary table
// (internal/chunk.LoadScenes/Chunkify) generalized from "chunk
// boundaries for encoding" to "keyframe boundaries for seeking".
package keyframe

import (
	"fmt"
	"sort"
)

// Entry is one keyframe: Frame is its presentation-order frame number,
// Pos is whatever the decoder adapter needs to seek back to it (a byte
// offset or a container timestamp — opaque to this package).
type Entry struct {
	Frame int
	Pos   int64
}

// Index is a monotonically increasing sequence of keyframe entries
// sufficient to seek to any keyframe at or before a given target frame.
type Index struct {
	entries []Entry
}

// Build constructs an Index from entries discovered while probing a
// video. Entries need not arrive sorted; Build sorts and validates
// monotonicity of frame numbers.
func Build(entries []Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("keyframe: index must have at least one entry")
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Frame == sorted[i-1].Frame {
			return nil, fmt.Errorf("keyframe: duplicate keyframe at frame %d", sorted[i].Frame)
		}
	}
	if sorted[0].Frame != 0 {
		return nil, fmt.Errorf("keyframe: index must start at frame 0, got %d", sorted[0].Frame)
	}
	return &Index{entries: sorted}, nil
}

// Covering returns the largest keyframe entry with Frame <= target.
// target must be non-negative; Build guarantees entries[0].Frame == 0,
// so this always succeeds for valid targets.
func (idx *Index) Covering(target int) Entry {
	// sort.Search finds the first entry with Frame > target; the
	// covering keyframe is the one just before it.
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Frame > target
	})
	return idx.entries[i-1]
}

// Run is a contiguous span of sorted, deduplicated target frames that
// can be served by a single seek followed by sequential decode_next
// calls: no keyframe lies after the run's first frame and at or before
// its last frame.
type Run struct {
	Frames []int // ascending, the targets to capture in this run
}

// Plan partitions a sorted, deduplicated list of target frames into
// runs per spec §4.3 step 3: a new run starts at frame b (following a)
// iff the keyframe covering b is strictly after the keyframe covering a.
func (idx *Index) Plan(sortedTargets []int) []Run {
	if len(sortedTargets) == 0 {
		return nil
	}
	var runs []Run
	cur := Run{Frames: []int{sortedTargets[0]}}
	prev := sortedTargets[0]

	for _, f := range sortedTargets[1:] {
		if idx.Covering(f).Frame > prev {
			runs = append(runs, cur)
			cur = Run{Frames: []int{f}}
		} else {
			cur.Frames = append(cur.Frames, f)
		}
		prev = f
	}
	runs = append(runs, cur)
	return runs
}
