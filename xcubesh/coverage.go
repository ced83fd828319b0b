package xcubesh

import (
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// CoverageTracker is an optional Observer implementation that records
// every fetched chunk's linear index into a compact bitmap, giving O(1)
// "has this chunk been fetched" queries and a cheap cardinality count
// without retaining every ChunkKey. Safe for concurrent use.
type CoverageTracker struct {
	numTilesY, numTilesX int

	mu     sync.Mutex
	bitmap *roaring64.Bitmap
}

// NewCoverageTracker returns a CoverageTracker sized for a cube with the
// given tile grid.
func NewCoverageTracker(numTilesX, numTilesY int) *CoverageTracker {
	return &CoverageTracker{
		numTilesX: numTilesX,
		numTilesY: numTilesY,
		bitmap:    roaring64.New(),
	}
}

// linearIndex flattens (t, y, x) as t*n_ty*n_tx + y*n_tx + x.
func (c *CoverageTracker) linearIndex(k ChunkKey) uint64 {
	return uint64(k.T)*uint64(c.numTilesY)*uint64(c.numTilesX) + uint64(k.Y)*uint64(c.numTilesX) + uint64(k.X)
}

// Observe is an Observer: wire it into Open's observer parameter to
// track every chunk fetched through a VirtualStore.
func (c *CoverageTracker) Observe(rec ObserverRecord) {
	c.mu.Lock()
	c.bitmap.Add(c.linearIndex(rec.ChunkIndex))
	c.mu.Unlock()
}

// Contains reports whether the chunk at (t, y, x) has been observed.
func (c *CoverageTracker) Contains(t, y, x int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitmap.Contains(c.linearIndex(ChunkKey{T: t, Y: y, X: x}))
}

// Cardinality returns the number of distinct chunks observed so far.
func (c *CoverageTracker) Cardinality() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bitmap.GetCardinality()
}
