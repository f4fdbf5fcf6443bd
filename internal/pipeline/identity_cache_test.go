package pipeline

import "testing"

func TestKeyForQuantization(t *testing.T) {
	cache := NewIdentityCache(50)

	tests := []struct {
		name           string
		x1, y1, x2, y2 int
		want           BucketKey
	}{
		{
			name: "origin box",
			x1:   0, y1: 0, x2: 40, y2: 40,
			want: BucketKey{Col: 0, Row: 0},
		},
		{
			name: "center inside second bucket",
			x1:   80, y1: 80, x2: 120, y2: 120,
			want: BucketKey{Col: 2, Row: 2},
		},
		{
			name: "bucket boundary",
			x1:   40, y1: 40, x2: 60, y2: 60,
			want: BucketKey{Col: 1, Row: 1},
		},
		{
			name: "partially off-frame box",
			x1:   -80, y1: -80, x2: 20, y2: 20,
			want: BucketKey{Col: -1, Row: -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cache.KeyFor(tt.x1, tt.y1, tt.x2, tt.y2)
			if got != tt.want {
				t.Errorf("KeyFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheSameBucketSharesIdentity(t *testing.T) {
	cache := NewIdentityCache(50)

	// Two boxes whose centers land in the same 50px bucket.
	keyA := cache.KeyFor(100, 100, 140, 140) // center (120,120)
	keyB := cache.KeyFor(110, 105, 130, 145) // center (120,125)
	if keyA != keyB {
		t.Fatalf("expected same bucket, got %v and %v", keyA, keyB)
	}

	cache.Store(keyA, CachedIdentity{Identity: "Alice", Confidence: 0.8, Known: true})

	got, ok := cache.Lookup(keyB)
	if !ok {
		t.Fatal("expected cache hit for second box")
	}
	if got.Identity != "Alice" || !got.Known {
		t.Errorf("Lookup() = %+v, want Alice/known", got)
	}
}

func TestCacheBucketMigrationMisses(t *testing.T) {
	cache := NewIdentityCache(50)

	key := cache.KeyFor(100, 100, 140, 140) // center (120,120) -> bucket (2,2)
	cache.Store(key, CachedIdentity{Identity: "Alice", Confidence: 0.8, Known: true})

	// Box moved one bucket to the right: center (170,120) -> bucket (3,2).
	moved := cache.KeyFor(150, 100, 190, 140)
	if moved == key {
		t.Fatal("expected the moved box to map to a different bucket")
	}
	if _, ok := cache.Lookup(moved); ok {
		t.Error("moved box must not read the old bucket's value")
	}
}

func TestCacheOverwrite(t *testing.T) {
	cache := NewIdentityCache(50)
	key := BucketKey{Col: 1, Row: 1}

	cache.Store(key, CachedIdentity{Identity: "Alice", Confidence: 0.8, Known: true})
	cache.Store(key, CachedIdentity{Identity: "UNKNOWN"})

	got, ok := cache.Lookup(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Identity != "UNKNOWN" || got.Known {
		t.Errorf("Lookup() = %+v, want overwritten UNKNOWN entry", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (overwrite, not merge)", cache.Len())
	}
}
