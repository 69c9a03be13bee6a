package crossref

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMemoryCacheTTL(t *testing.T) {
	now := fixedNow
	c := NewMemoryCache(time.Hour)
	c.now = func() time.Time { return now }

	c.Put(1, []CDM{{PC: 0.1}}, now)
	c.Put(2, nil, now.Add(-2*time.Hour))

	if e, ok := c.Get(1); !ok || len(e.CDMs) != 1 {
		t.Fatalf("Get(1) = %v, %v", e, ok)
	}
	if _, ok := c.Get(2); ok {
		t.Error("expired entry visible")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1 after read eviction", c.Len())
	}

	now = now.Add(2 * time.Hour)
	if n := c.EvictExpired(); n != 1 {
		t.Errorf("EvictExpired = %d, want 1", n)
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d/%d, want 1/1", hits, misses)
	}
}

func TestMemoryCacheNilStoredEmpty(t *testing.T) {
	c := NewMemoryCache(0)
	c.Put(5, nil, time.Now())
	e, ok := c.Get(5)
	if !ok || e.CDMs == nil || len(e.CDMs) != 0 {
		t.Errorf("Get(5) = %#v, %v; want empty non-nil", e.CDMs, ok)
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c, err := NewFileCache(dir, 2, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	c.Put(44713, []CDM{{TCA: "2025-03-13T04:11:22", PC: 4e-4, MissDistanceKm: 0.212}}, time.Now())
	if err := c.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reopened, err := NewFileCache(dir, 2, time.Hour)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	e, ok := reopened.Get(44713)
	if !ok || len(e.CDMs) != 1 || e.CDMs[0].MissDistanceKm != 0.212 {
		t.Fatalf("reloaded entry = %#v, %v", e, ok)
	}
}

func TestFileCachePrunes(t *testing.T) {
	dir := t.TempDir()
	c, err := NewFileCache(dir, 2, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	base := time.Now()
	for i := range 4 {
		ts := base.Add(time.Duration(i) * time.Second)
		c.now = func() time.Time { return ts }
		c.Put(i, nil, ts)
		if err := c.Flush(); err != nil {
			t.Fatalf("Flush %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var snapshots int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "cdm_") && strings.HasSuffix(e.Name(), ".json") {
			snapshots++
		}
	}
	if snapshots != 2 {
		t.Errorf("snapshots = %d, want 2", snapshots)
	}
}

func TestFileCacheSkipsExpiredAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)
	fresh := time.Now().UTC().Format(time.RFC3339)
	body := `{"1":{"cdms":[],"cached_at":"` + old + `"},"2":{"cdms":[],"cached_at":"` + fresh + `"}}`
	if err := os.WriteFile(filepath.Join(dir, "cdm_100.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := NewFileCache(dir, 5, time.Hour)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	if _, ok := c.Get(1); ok {
		t.Error("expired snapshot entry loaded")
	}
	if _, ok := c.Get(2); !ok {
		t.Error("fresh snapshot entry missing")
	}

	if err := os.WriteFile(filepath.Join(dir, "cdm_200.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	c2, err := NewFileCache(dir, 5, time.Hour)
	if err != nil {
		t.Fatalf("corrupt snapshot: %v", err)
	}
	if c2.Len() != 0 {
		t.Errorf("corrupt snapshot produced %d entries", c2.Len())
	}
}
