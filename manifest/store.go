package manifest

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/intellect4all/smerge/common"
	"github.com/intellect4all/smerge/pageio"
)

// Store is the crash-atomic load/store collaborator for one index's
// manifest page, backed by a single file plus its own small WAL (the
// page I/O shim, component C).
type Store struct {
	pagePath string
	walPath  string
}

// Open returns a Store rooted at dir. The manifest file itself is
// "<dir>/manifest.page"; its WAL is "<dir>/manifest.wal".
func Open(dir string) *Store {
	return &Store{
		pagePath: filepath.Join(dir, "manifest.page"),
		walPath:  filepath.Join(dir, "manifest.wal"),
	}
}

// Load reads and decodes the manifest page, replaying its WAL if the
// page file itself was never durably overwritten after a crash.
func (s *Store) Load() (*Manifest, error) {
	p, err := pageio.ReadPage(s.pagePath, s.walPath)
	if errors.Is(err, pageio.ErrChecksumMismatch) {
		return nil, fmt.Errorf("manifest: load: %w: %v", common.ErrCorruptMetadata, err)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: load: %w", err)
	}
	return Decode(p)
}

// Store persists m: WAL-log the encoded page, then overwrite the single
// page file in place, then fsync, exactly as pageio.WritePage defines.
// This is the one write path every insert and merge commits through, so
// a crash never leaves the manifest partially written.
func (s *Store) Store(m *Manifest) error {
	if err := pageio.WritePage(s.pagePath, s.walPath, Encode(m)); err != nil {
		return fmt.Errorf("manifest: store: %w", err)
	}
	return nil
}
