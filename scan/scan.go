// Package scan implements the cross-run scan engine. Unlike the merge
// engine it performs no merging at all: per the access method contract,
// a scan yields the concatenation of each live run's own sorted output,
// not a globally ordered stream. Runs are visited curr, then every
// levelled run in level/slot order, then root.
package scan

import (
	"bytes"
	"fmt"

	"github.com/intellect4all/smerge/catalog"
	"github.com/intellect4all/smerge/common"
)

// Scanner is the AM facade's ambeginscan/amgettuple/amendscan state
// machine, tracking which run it is currently draining.
type Scanner struct {
	cat     catalog.Catalog
	runIDs  []common.RunID
	key     []byte // nil means an unqualified full-index scan

	runIdx  int
	run     catalog.Run
	cursor  catalog.Cursor
}

// New opens a scanner over runIDs (in the order the caller wants them
// visited), optionally filtered to entries matching key.
func New(cat catalog.Catalog, runIDs []common.RunID, key []byte) *Scanner {
	return &Scanner{cat: cat, runIDs: append([]common.RunID(nil), runIDs...), key: key}
}

// Rescan resets the scanner to its first run with a (possibly new) key,
// releasing whatever run/cursor it currently holds first — runs are
// released before being reacquired, avoiding the cyclic ownership the
// original's bare btrescan delegation risked.
func (s *Scanner) Rescan(key []byte) error {
	s.closeCurrent()
	s.key = key
	s.runIdx = 0
	return nil
}

func (s *Scanner) closeCurrent() {
	if s.cursor != nil {
		s.cursor.Close()
		s.cursor = nil
	}
	s.run = nil
}

// advance opens the next run in sequence, skipping runs the catalog can
// no longer find (a run superseded by a concurrent merge after the scan
// started loses its claim silently, the way a dropped heap page would).
func (s *Scanner) advance() (bool, error) {
	s.closeCurrent()
	for s.runIdx < len(s.runIDs) {
		id := s.runIDs[s.runIdx]
		s.runIdx++

		run, err := s.cat.OpenRun(id)
		if err != nil {
			continue
		}
		cur, err := run.NewCursor()
		if err != nil {
			return false, fmt.Errorf("scan: open cursor on run %s: %w", id, err)
		}
		s.run, s.cursor = run, cur
		return true, nil
	}
	return false, nil
}

// Next advances to the next matching (key, TID) pair, moving to
// successive runs as each is exhausted. It returns false once every run
// has been drained.
func (s *Scanner) Next() (key []byte, tid common.TID, ok bool, err error) {
	for {
		if s.cursor == nil {
			has, err := s.advance()
			if err != nil {
				return nil, common.TID{}, false, err
			}
			if !has {
				return nil, common.TID{}, false, nil
			}
		}

		if !s.cursor.Next() {
			if err := s.cursor.Err(); err != nil {
				return nil, common.TID{}, false, err
			}
			s.closeCurrent()
			continue
		}

		k := s.cursor.Key()
		if s.key != nil && !bytes.Equal(k, s.key) {
			continue
		}
		return k, s.cursor.TID(), true, nil
	}
}

// Close releases whatever run and cursor the scanner currently holds.
func (s *Scanner) Close() error {
	s.closeCurrent()
	return nil
}
