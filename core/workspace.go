package core

import "math"

// Workspace holds the two value buffers of a run. Indices 0 and n+1 are
// boundary sentinels; 1..n are interior values.
type Workspace struct {
	buffers [2][]float64
	current int
	n       int
}

// NewWorkspace copies initial into the interior of a fresh current buffer and
// fixes both boundaries in both buffers.
func NewWorkspace(initial []float64, left, right float64) *Workspace {
	n := len(initial)
	curr := make([]float64, n+2)
	next := make([]float64, n+2)
	copy(curr[1:], initial)
	curr[0], next[0] = left, left
	curr[n+1], next[n+1] = right, right
	return &Workspace{buffers: [2][]float64{curr, next}, n: n}
}

// WorkspaceFromBuffers wraps caller-owned buffers: in becomes the current
// buffer and out the next one. The input sentinels are copied into out once.
func WorkspaceFromBuffers(out, in []float64, n int) (*Workspace, error) {
	if n < 0 {
		return nil, invalidf("n must be >= 0, got %d", n)
	}
	if len(in) != n+2 {
		return nil, invalidf("input buffer has length %d, want %d", len(in), n+2)
	}
	if len(out) != n+2 {
		return nil, invalidf("output buffer has length %d, want %d", len(out), n+2)
	}
	if overlaps(out, in) {
		return nil, invalidf("input and output buffers overlap")
	}
	out[0] = in[0]
	out[n+1] = in[n+1]
	return &Workspace{buffers: [2][]float64{in, out}, n: n}, nil
}

// overlaps reports whether a and b share any element of a backing array.
// Equal-length slices overlap iff one's first element lies inside the other.
func overlaps(a, b []float64) bool {
	for i := range a {
		if &a[i] == &b[0] || &b[i] == &a[0] {
			return true
		}
	}
	return false
}

// N returns the number of interior points.
func (w *Workspace) N() int { return w.n }

// Current returns the buffer holding the latest completed iteration.
func (w *Workspace) Current() []float64 { return w.buffers[w.current] }

// Next returns the scratch buffer the next iteration writes into.
func (w *Workspace) Next() []float64 { return w.buffers[w.current^1] }

// Interior returns a copy of the current interior values.
func (w *Workspace) Interior() []float64 {
	out := make([]float64, w.n)
	copy(out, w.Current()[1:w.n+1])
	return out
}

func (w *Workspace) Left() float64  { return w.buffers[0][0] }
func (w *Workspace) Right() float64 { return w.buffers[0][w.n+1] }

// Clone returns an independent workspace with the same current values.
func (w *Workspace) Clone() *Workspace {
	return NewWorkspace(w.Interior(), w.Left(), w.Right())
}

// advance flips the current buffer once per odd number of completed
// iterations; workers swap their private references the same way.
func (w *Workspace) advance(iterations int) {
	if iterations%2 == 1 {
		w.current ^= 1
	}
}

// ComputeChunk returns the inclusive interior range [left, right] owned by
// worker out of tasks. The range is empty (left > right) when the worker has
// nothing to do.
func ComputeChunk(n, tasks, worker int) (left, right int) {
	chunkSize := (n + tasks - 1) / tasks
	left = worker*chunkSize + 1
	right = left + chunkSize - 1
	if right > n {
		right = n
	}
	return left, right
}

// MaxAbsDiff returns the largest element-wise difference between a and b,
// or +Inf when their lengths differ.
func MaxAbsDiff(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var worst float64
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > worst {
			worst = d
		}
	}
	return worst
}
