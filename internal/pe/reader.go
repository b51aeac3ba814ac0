// Package pe provides read-only decoding of Portable Executable images:
// headers, section table, exports and imports.
package pe

import (
	"bytes"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// Reader is a random-access byte source for one image, either a read-only
// memory mapping of a file or an in-memory buffer.
type Reader struct {
	data     mmap.MMap
	r        *bytes.Reader
	filepath string
	filesize int64
}

// Open maps a file for reading.
func Open(filepath string) (*Reader, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开PE文件失败: %w", err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("获取文件信息失败: %w", err)
	}

	// Zero-length files cannot be mapped.
	if stat.Size() == 0 {
		r := NewReaderBytes(nil)
		r.filepath = filepath
		return r, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("映射文件失败: %w", err)
	}

	return &Reader{
		data:     data,
		r:        bytes.NewReader(data),
		filepath: filepath,
		filesize: int64(len(data)),
	}, nil
}

// NewReaderBytes wraps an in-memory image.
func NewReaderBytes(b []byte) *Reader {
	return &Reader{
		r:        bytes.NewReader(b),
		filesize: int64(len(b)),
	}
}

// Close releases the mapping. Values returned by Parse stay valid.
func (r *Reader) Close() error {
	if r.data == nil {
		return nil
	}
	err := r.data.Unmap()
	r.data = nil
	return err
}

// ReadAt implements io.ReaderAt.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	return r.r.ReadAt(p, off)
}

// Cursor returns a new cursor over the whole source.
func (r *Reader) Cursor() *Cursor {
	return NewCursor(r, r.filesize)
}

// FilePath returns the file path, empty for in-memory images.
func (r *Reader) FilePath() string {
	return r.filepath
}

// FileSize returns the source size in bytes.
func (r *Reader) FileSize() int64 {
	return r.filesize
}
