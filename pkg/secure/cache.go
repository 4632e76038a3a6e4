package secure

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/he/hefloat"
)

// BasisCache holds the basis rows of a fitted model pre-encoded as CKKS
// plaintexts, together with the centering offset mean · w of each row.
// Encoding a row costs as much as the multiplication that follows, so
// caching pays off as soon as a basis serves more than one projection.
type BasisCache struct {
	mu sync.RWMutex

	encoded []*rlwe.Plaintext
	offsets []float64

	// Original rows, kept to detect refits
	originals [][]float64

	version    int64
	lastUpdate time.Time
}

// NewBasisCache creates an empty cache.
func NewBasisCache() *BasisCache {
	return &BasisCache{}
}

// LoadBasis encodes the basis rows at the given level and replaces the
// cache contents. The mean is used to precompute per-row centering offsets
// and may be nil for uncentered projections.
func (c *BasisCache) LoadBasis(rows [][]float64, mean []float64, encoder *hefloat.Encoder, params hefloat.Parameters, level int) error {
	if len(rows) == 0 {
		return errors.New("no basis rows to load")
	}

	encoded := make([]*rlwe.Plaintext, len(rows))
	offsets := make([]float64, len(rows))
	originals := make([][]float64, len(rows))

	for i, row := range rows {
		padded := make([]float64, params.MaxSlots())
		copy(padded, row)

		pt := hefloat.NewPlaintext(params, level)
		if err := encoder.Encode(padded, pt); err != nil {
			return fmt.Errorf("failed to encode basis row %d: %w", i, err)
		}
		encoded[i] = pt

		original := make([]float64, len(row))
		copy(original, row)
		originals[i] = original

		var offset float64
		for j := 0; j < len(mean) && j < len(row); j++ {
			offset += mean[j] * row[j]
		}
		offsets[i] = offset
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.encoded = encoded
	c.offsets = offsets
	c.originals = originals
	c.version++
	c.lastUpdate = time.Now()
	return nil
}

// Get returns the pre-encoded basis row at the given index.
func (c *BasisCache) Get(i int) (*rlwe.Plaintext, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i < 0 || i >= len(c.encoded) {
		return nil, false
	}
	return c.encoded[i], true
}

// Offset returns the centering offset of the basis row at the given index.
func (c *BasisCache) Offset(i int) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i < 0 || i >= len(c.offsets) {
		return 0, false
	}
	return c.offsets[i], true
}

// GetAll returns all pre-encoded rows in component order.
func (c *BasisCache) GetAll() ([]*rlwe.Plaintext, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.encoded) == 0 {
		return nil, errors.New("basis cache is empty")
	}
	out := make([]*rlwe.Plaintext, len(c.encoded))
	copy(out, c.encoded)
	return out, nil
}

// NeedsRefresh reports whether the given rows differ from the cached ones,
// which happens after a refit.
func (c *BasisCache) NeedsRefresh(rows [][]float64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(rows) != len(c.originals) {
		return true
	}
	for i, row := range rows {
		cached := c.originals[i]
		if len(row) != len(cached) {
			return true
		}
		for j := range row {
			if math.Abs(row[j]-cached[j]) > 1e-9 {
				return true
			}
		}
	}
	return false
}

// IsStale reports whether the cache has not been reloaded within maxAge.
func (c *BasisCache) IsStale(maxAge time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastUpdate.IsZero() {
		return true
	}
	return time.Since(c.lastUpdate) > maxAge
}

// Version returns a counter that increments on every reload.
func (c *BasisCache) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// LastUpdate returns the time of the last reload.
func (c *BasisCache) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// Size returns the number of cached basis rows.
func (c *BasisCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoded)
}

// Clear empties the cache.
func (c *BasisCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.encoded = nil
	c.offsets = nil
	c.originals = nil
	c.lastUpdate = time.Time{}
}
