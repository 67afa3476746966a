package core

import (
	"encoding/binary"
	"fmt"
	"io"
)

var magic = [4]byte{'S', 'T', 'N', '1'}

// maxSnapshotPoints bounds the point count a header may claim.
const maxSnapshotPoints = 1 << 30

// readChunkValues is how many values ReadSnapshot decodes per read.
const readChunkValues = 1 << 16

// Snapshot is a workspace serialised to disk: the current buffer including
// both sentinels, plus how many iterations produced it.
type Snapshot struct {
	N          uint64
	Iterations uint64
	Values     []float64
}

// SnapshotOf captures the current buffer of w.
func SnapshotOf(w *Workspace, iterations int) *Snapshot {
	values := make([]float64, w.N()+2)
	copy(values, w.Current())
	return &Snapshot{N: uint64(w.N()), Iterations: uint64(iterations), Values: values}
}

// Workspace rebuilds a workspace whose current buffer equals the snapshot.
func (s *Snapshot) Workspace() *Workspace {
	n := int(s.N)
	return NewWorkspace(s.Values[1:n+1], s.Values[0], s.Values[n+1])
}

// WriteSnapshot writes the header followed by the N+2 values to w.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	if uint64(len(s.Values)) != s.N+2 {
		return fmt.Errorf("snapshot value count mismatch: got %d, expected %d", len(s.Values), s.N+2)
	}
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, s.N); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, s.Iterations); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s.Values)
}

// ReadSnapshot reads and validates a snapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, err
	}
	if m != magic {
		return nil, fmt.Errorf("invalid magic")
	}

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxSnapshotPoints {
		return nil, fmt.Errorf("snapshot too large: %d points", n)
	}

	var iterations uint64
	if err := binary.Read(r, binary.LittleEndian, &iterations); err != nil {
		return nil, err
	}

	// The header count is untrusted: grow values only as data arrives.
	total := int(n + 2)
	values := make([]float64, 0, min(total, readChunkValues))
	chunk := make([]float64, min(total, readChunkValues))
	for len(values) < total {
		part := chunk[:min(total-len(values), readChunkValues)]
		if err := binary.Read(r, binary.LittleEndian, part); err != nil {
			return nil, fmt.Errorf("read values: %w", err)
		}
		values = append(values, part...)
	}

	return &Snapshot{N: n, Iterations: iterations, Values: values}, nil
}
