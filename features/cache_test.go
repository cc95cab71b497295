package features

import (
	"bytes"
	"image/png"
	"testing"
)

type recordingSource struct {
	images  map[string][]byte
	fetches map[string]int
}

func newRecordingSource() *recordingSource {
	return &recordingSource{
		images:  make(map[string][]byte),
		fetches: make(map[string]int),
	}
}

func (s *recordingSource) FetchImageBytes(ref string) []byte {
	s.fetches[ref]++
	return s.images[ref]
}

func encodePNG(t *testing.T, seed int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, texturedImage(seed, 128, 128)); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestCacheComputesOnceForValidImage(t *testing.T) {
	src := newRecordingSource()
	src.images["a.png"] = encodePNG(t, 5)
	cache := NewCache(src)

	first := cache.GetOrCompute("a.png")
	if first == nil {
		t.Fatal("expected features for a textured image")
	}
	second := cache.GetOrCompute("a.png")

	if first != second {
		t.Error("second lookup should return the cached set")
	}
	if src.fetches["a.png"] != 1 {
		t.Errorf("image fetched %d times, want 1", src.fetches["a.png"])
	}
	if cache.Len() != 1 {
		t.Errorf("cache holds %d entries, want 1", cache.Len())
	}
}

func TestCacheCachesUnreadableResults(t *testing.T) {
	src := newRecordingSource()
	src.images["bad.png"] = []byte("not an image at all")
	cache := NewCache(src)

	if fs := cache.GetOrCompute("bad.png"); fs != nil {
		t.Fatalf("unreadable image should yield nil, got %d descriptors", fs.Count())
	}
	if fs := cache.GetOrCompute("bad.png"); fs != nil {
		t.Fatalf("cached nil expected on second lookup, got %d descriptors", fs.Count())
	}

	if src.fetches["bad.png"] != 1 {
		t.Errorf("unreadable image fetched %d times, want 1", src.fetches["bad.png"])
	}
	if cache.Len() != 1 {
		t.Errorf("nil result should still occupy a cache slot, got Len %d", cache.Len())
	}
}

func TestCacheMissingImage(t *testing.T) {
	src := newRecordingSource()
	cache := NewCache(src)

	if fs := cache.GetOrCompute("ghost.png"); fs != nil {
		t.Errorf("missing image should yield nil, got %d descriptors", fs.Count())
	}
	cache.GetOrCompute("ghost.png")
	if src.fetches["ghost.png"] != 1 {
		t.Errorf("missing image fetched %d times, want 1", src.fetches["ghost.png"])
	}
}

func TestCacheEmptyRef(t *testing.T) {
	src := newRecordingSource()
	cache := NewCache(src)

	if fs := cache.GetOrCompute(""); fs != nil {
		t.Error("empty reference should yield nil")
	}
	if len(src.fetches) != 0 {
		t.Error("empty reference should not hit the source")
	}
}

func TestCacheInvalidateForcesRecompute(t *testing.T) {
	src := newRecordingSource()
	src.images["a.png"] = encodePNG(t, 6)
	cache := NewCache(src)

	cache.GetOrCompute("a.png")
	cache.Invalidate("a.png")

	if cache.Len() != 0 {
		t.Errorf("cache should be empty after invalidation, got Len %d", cache.Len())
	}

	if fs := cache.GetOrCompute("a.png"); fs == nil {
		t.Fatal("expected features after recompute")
	}
	if src.fetches["a.png"] != 2 {
		t.Errorf("image fetched %d times, want 2 after invalidation", src.fetches["a.png"])
	}
}

func TestCacheInvalidateUnknownRef(t *testing.T) {
	cache := NewCache(newRecordingSource())
	cache.Invalidate("never-seen.png")
	cache.Invalidate("")
	if cache.Len() != 0 {
		t.Errorf("cache should stay empty, got Len %d", cache.Len())
	}
}
