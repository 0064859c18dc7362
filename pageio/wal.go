package pageio

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// WAL is a minimal physical write-ahead log for single-page records,
// adapted from the host B-tree's page WAL: a four-byte magic header
// followed by [length(4)][data(length)][crc32(4)] records.
type WAL struct {
	file     *os.File
	filePath string
}

const (
	walMagic      = "SMWL"
	walHeaderSize = 4
)

// OpenWAL creates or opens the WAL file at path.
func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &WAL{file: f, filePath: path}
	if stat.Size() == 0 {
		if _, err := f.WriteAt([]byte(walMagic), 0); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		header := make([]byte, walHeaderSize)
		if _, err := f.ReadAt(header, 0); err != nil {
			f.Close()
			return nil, err
		}
		if string(header) != walMagic {
			f.Close()
			return nil, fmt.Errorf("pageio: bad wal magic in %s", path)
		}
	}
	return w, nil
}

// LogPageImage appends a full page image record to the log.
func (w *WAL) LogPageImage(data []byte) error {
	buf := make([]byte, 4+len(data)+4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(data)))
	copy(buf[4:], data)
	binary.LittleEndian.PutUint32(buf[4+len(data):], crc32.ChecksumIEEE(data))

	offset, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	_, err = w.file.WriteAt(buf, offset)
	return err
}

// LastPageImage returns the most recently logged page image, the one a
// crash-recovery replay would apply.
func (w *WAL) LastPageImage() ([]byte, error) {
	offset := int64(walHeaderSize)
	var last []byte

	for {
		lenBuf := make([]byte, 4)
		if _, err := w.file.ReadAt(lenBuf, offset); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		length := binary.LittleEndian.Uint32(lenBuf)
		record := make([]byte, 4+int(length)+4)
		if _, err := w.file.ReadAt(record, offset); err != nil {
			break
		}
		data := record[4 : 4+length]
		crc := binary.LittleEndian.Uint32(record[4+length:])
		if crc32.ChecksumIEEE(data) != crc {
			break
		}
		last = data
		offset += int64(len(record))
	}

	if last == nil {
		return nil, fmt.Errorf("pageio: no logged page image in %s", w.filePath)
	}
	return last, nil
}

// Sync flushes the WAL file to disk.
func (w *WAL) Sync() error {
	return w.file.Sync()
}

// Truncate clears the log after its contents have been durably applied
// to the page file.
func (w *WAL) Truncate() error {
	if err := w.file.Truncate(walHeaderSize); err != nil {
		return err
	}
	_, err := w.file.Seek(0, io.SeekEnd)
	return err
}

// Close closes the WAL file.
func (w *WAL) Close() error {
	return w.file.Close()
}
