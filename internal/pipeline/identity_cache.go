package pipeline

// BucketKey is the spatial quantization of a bounding-box center used to
// index the identity cache.
type BucketKey struct {
	Col int
	Row int
}

// CachedIdentity is the most recent resolution stored for a bucket.
type CachedIdentity struct {
	Identity   string
	Confidence float64
	Known      bool
}

// IdentityCache maps quantized box-center positions to their most recent
// identity resolution, amortizing expensive verification across frames.
// Entries are overwritten, never merged, and never expire; a stale entry
// persists until a new resolution lands in the same bucket. The cache is
// owned by the scheduler and is not safe for concurrent use.
type IdentityCache struct {
	bucketSize int
	entries    map[BucketKey]CachedIdentity
}

// NewIdentityCache creates a cache with the given bucket size in pixels.
func NewIdentityCache(bucketSize int) *IdentityCache {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	return &IdentityCache{
		bucketSize: bucketSize,
		entries:    make(map[BucketKey]CachedIdentity),
	}
}

// KeyFor returns the bucket key for a bounding box given by its corners.
func (c *IdentityCache) KeyFor(x1, y1, x2, y2 int) BucketKey {
	cx := (x1 + x2) / 2
	cy := (y1 + y2) / 2
	return BucketKey{Col: floorDiv(cx, c.bucketSize), Row: floorDiv(cy, c.bucketSize)}
}

// Lookup returns the cached resolution for a bucket, if any.
func (c *IdentityCache) Lookup(key BucketKey) (CachedIdentity, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Store overwrites the bucket's entry unconditionally.
func (c *IdentityCache) Store(key BucketKey, value CachedIdentity) {
	c.entries[key] = value
}

// Len returns the number of occupied buckets.
func (c *IdentityCache) Len() int {
	return len(c.entries)
}

// floorDiv divides rounding toward negative infinity so negative centers
// (boxes partially off-frame) still map to a stable bucket.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
