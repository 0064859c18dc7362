package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/intellect4all/smerge/btree"
	"github.com/intellect4all/smerge/common"
)

// DirCatalog materializes run relations as files in a single directory,
// the way the teacher's LSM engine lays out "L%d-%06d.sst" files —
// run files here are named "run-%06d.smr".
type DirCatalog struct {
	dir       string
	cacheSize int
	nextID    atomic.Uint64

	mu      sync.Mutex
	open    map[common.RunID]*btreeRun
	bloomFP float64
}

// NewDirCatalog opens (or creates) a catalog rooted at dir.
func NewDirCatalog(dir string, cacheSize int) (*DirCatalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("catalog: mkdir %s: %w", dir, err)
	}
	c := &DirCatalog{
		dir:       dir,
		cacheSize: cacheSize,
		open:      make(map[common.RunID]*btreeRun),
		bloomFP:   0.01,
	}
	if err := c.loadNextID(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadNextID restores the run-id counter after a restart. The teacher's
// lsm.LSM keeps this counter purely in memory and recomputes it by
// scanning segment files on recovery; SM does the same.
func (c *DirCatalog) loadNextID() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	var max uint64
	for _, e := range entries {
		if n, ok := parseRunFileName(e.Name()); ok && n > max {
			max = n
		}
	}
	c.nextID.Store(max)
	return nil
}

// parseRunFileName extracts the run id from a "run-%06d.smr" file name,
// rejecting sibling files like its ".wal" log or ".spec.json" sidecar.
func parseRunFileName(name string) (uint64, bool) {
	if !strings.HasSuffix(name, ".smr") {
		return 0, false
	}
	var n uint64
	if _, err := fmt.Sscanf(name, "run-%06d.smr", &n); err != nil {
		return 0, false
	}
	return n, true
}

func (c *DirCatalog) runPath(id common.RunID) string {
	return filepath.Join(c.dir, fmt.Sprintf("run-%06d.smr", uint64(id)))
}

// specPath names the sidecar file CreateRun writes the run's RunSpec to,
// beside its B-tree file. OpenRun does not read it: it rebuilds the
// run's Bloom filter and entry count by scanning the tree.
func (c *DirCatalog) specPath(id common.RunID) string {
	return filepath.Join(c.dir, fmt.Sprintf("run-%06d.spec.json", uint64(id)))
}

// CreateRun allocates a fresh run id and an empty backing B-tree for it.
func (c *DirCatalog) CreateRun(spec RunSpec) (Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := common.RunID(c.nextID.Add(1))

	if err := writeSpec(c.specPath(id), spec); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRunCreateFailed, err)
	}

	cfg := btree.Config{DataDir: c.runPath(id), CacheSize: c.cacheSize}
	tree, err := btree.New(cfg)
	if err != nil {
		os.Remove(c.specPath(id))
		return nil, fmt.Errorf("%w: %v", common.ErrRunCreateFailed, err)
	}

	run := &btreeRun{id: id, tree: tree, bloom: btree.NewBloom(4096, c.bloomFP), dir: c.dir}
	c.open[id] = run
	return run, nil
}

// OpenRun reopens an existing run relation by id.
func (c *DirCatalog) OpenRun(id common.RunID) (Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run, ok := c.open[id]; ok {
		return run, nil
	}

	cfg := btree.Config{DataDir: c.runPath(id), CacheSize: c.cacheSize}
	tree, err := btree.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRunNotFound, err)
	}

	run := &btreeRun{id: id, tree: tree, bloom: btree.NewBloom(4096, c.bloomFP), dir: c.dir}
	if err := rebuildBloom(run); err != nil {
		tree.Close()
		return nil, err
	}
	c.open[id] = run
	return run, nil
}

// rebuildBloom replays a reopened run's entries into a fresh filter,
// since the filter itself is not persisted with the run file.
func rebuildBloom(run *btreeRun) error {
	cur, err := run.NewCursor()
	if err != nil {
		return err
	}
	defer cur.Close()
	var n int64
	for cur.Next() {
		run.bloom.Add(cur.Key())
		n++
	}
	run.count.Store(n)
	return cur.Err()
}

// DropRun closes and deletes a run's backing files. Per the supplemented
// deletion design (see manifest/merge), this is only ever called once
// the manifest no longer references the run.
func (c *DirCatalog) DropRun(id common.RunID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if run, ok := c.open[id]; ok {
		run.Close()
		delete(c.open, id)
	}
	os.Remove(c.runPath(id))
	os.Remove(c.runPath(id) + ".wal")
	os.Remove(c.specPath(id))
	log.Printf("catalog: dropped run %s", id)
	return nil
}

// ListRunIDs scans the catalog directory for every run file present,
// regardless of whether any manifest still references it.
func (c *DirCatalog) ListRunIDs() ([]common.RunID, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	var ids []common.RunID
	for _, e := range entries {
		if n, ok := parseRunFileName(e.Name()); ok {
			ids = append(ids, common.RunID(n))
		}
	}
	return ids, nil
}

func (c *DirCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, run := range c.open {
		if err := run.Close(); err != nil {
			log.Printf("catalog: error closing run %s: %v", id, err)
		}
	}
	c.open = make(map[common.RunID]*btreeRun)
	return nil
}

func writeSpec(path string, spec RunSpec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
