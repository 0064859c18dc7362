// Package pageio implements the fixed-size, checksummed, WAL-logged page
// I/O shim that the manifest (and any other single-page record) is built
// on. It plays the role the host buffer manager and smgr layer play for a
// full relation, narrowed to files that are always exactly one page.
package pageio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
)

// PageSize matches the host page size (4KB), the unit every write and
// WAL record is framed in.
const PageSize = 4096

const (
	headerOffsetChecksum = 0 // 4 bytes
	headerOffsetKind     = 4 // 1 byte
	HeaderSize           = 8
)

var (
	// ErrChecksumMismatch is returned by ReadPage when the stored CRC32
	// does not match the page body.
	ErrChecksumMismatch = errors.New("pageio: checksum mismatch")
	// ErrShortPage is returned when a file does not contain a full page.
	ErrShortPage = errors.New("pageio: short page read")
)

// Page is one fixed PageSize block: an 8-byte header (checksum, kind)
// followed by a body the caller interprets.
type Page struct {
	Kind byte
	Body [PageSize - HeaderSize]byte
}

// checksum computes the CRC32 of the page kind and body, the same fields
// that get verified on read.
func (p *Page) checksum() uint32 {
	h := crc32.NewIEEE()
	h.Write([]byte{p.Kind})
	h.Write(p.Body[:])
	return h.Sum32()
}

// Encode serializes the page with its checksum set in-place, mirroring
// the host's PageSetChecksumInplace-before-write convention.
func (p *Page) Encode() []byte {
	buf := make([]byte, PageSize)
	binary.LittleEndian.PutUint32(buf[headerOffsetChecksum:], p.checksum())
	buf[headerOffsetKind] = p.Kind
	copy(buf[HeaderSize:], p.Body[:])
	return buf
}

// Decode parses a page previously produced by Encode, verifying its
// checksum.
func Decode(buf []byte) (*Page, error) {
	if len(buf) != PageSize {
		return nil, ErrShortPage
	}
	p := &Page{Kind: buf[headerOffsetKind]}
	copy(p.Body[:], buf[HeaderSize:])
	want := binary.LittleEndian.Uint32(buf[headerOffsetChecksum:])
	if p.checksum() != want {
		return nil, ErrChecksumMismatch
	}
	return p, nil
}

// WritePage performs the crash-atomic write contract every component C
// caller relies on: log the fully checksummed page to the WAL, then
// overwrite the whole-block file in place, then fsync.
func WritePage(path string, walPath string, p *Page) error {
	encoded := p.Encode()

	wal, err := OpenWAL(walPath)
	if err != nil {
		return fmt.Errorf("pageio: open wal: %w", err)
	}
	defer wal.Close()

	if err := wal.LogPageImage(encoded); err != nil {
		return fmt.Errorf("pageio: log page image: %w", err)
	}
	if err := wal.Sync(); err != nil {
		return fmt.Errorf("pageio: sync wal: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("pageio: open page file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteAt(encoded, 0); err != nil {
		return fmt.Errorf("pageio: write page: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("pageio: sync page file: %w", err)
	}

	return wal.Truncate()
}

// ReadPage loads and validates the single page stored at path. If the
// page file is missing or short but the WAL holds a logged image (a
// crash between WAL write and the in-place overwrite), the WAL image is
// replayed and returned instead.
func ReadPage(path string, walPath string) (*Page, error) {
	data, err := os.ReadFile(path)
	var derr error
	if err == nil && len(data) == PageSize {
		var p *Page
		if p, derr = Decode(data); derr == nil {
			return p, nil
		}
	}

	wal, werr := OpenWAL(walPath)
	if werr != nil {
		if err != nil {
			return nil, err
		}
		if derr != nil {
			return nil, derr
		}
		return nil, werr
	}
	defer wal.Close()

	image, werr := wal.LastPageImage()
	if werr != nil {
		if err != nil {
			return nil, err
		}
		if derr != nil {
			return nil, derr
		}
		return nil, werr
	}
	return Decode(image)
}
