package crossref

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FileCache is a MemoryCache persisted as timestamped JSON snapshots in a
// directory. The newest snapshot is loaded on creation; Flush writes a new
// one and prunes the oldest beyond maxFiles.
type FileCache struct {
	*MemoryCache
	dir      string
	maxFiles int
}

// NewFileCache opens dir, loading the newest snapshot if one exists.
// Expired entries in the snapshot are dropped.
func NewFileCache(dir string, maxFiles int, ttl time.Duration) (*FileCache, error) {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	c := &FileCache{
		MemoryCache: NewMemoryCache(ttl),
		dir:         dir,
		maxFiles:    maxFiles,
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Flush writes the live entries to a new snapshot file.
func (c *FileCache) Flush() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.MarshalIndent(c.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache snapshot: %w", err)
	}

	ts := c.now()
	// Nanosecond names keep rapid successive flushes distinct.
	name := fmt.Sprintf("cdm_%d.json", ts.UnixNano())
	tmp := filepath.Join(c.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cache snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(c.dir, name)); err != nil {
		return fmt.Errorf("renaming cache snapshot: %w", err)
	}
	return c.prune()
}

func (c *FileCache) load() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return fmt.Errorf("reading cache snapshot: %w", err)
	}

	var entries map[int]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt snapshot is treated as an empty cache.
		return nil
	}
	for id, e := range entries {
		if c.expired(e) {
			continue
		}
		c.Put(id, e.CDMs, e.CachedAt)
	}
	return nil
}

type snapshotFile struct {
	name string
	ts   int64
}

func (c *FileCache) listFiles() ([]snapshotFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []snapshotFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, "cdm_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "cdm_"), ".json"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{name: name, ts: ts})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts < files[j].ts
	})
	return files, nil
}

func (c *FileCache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}
	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
