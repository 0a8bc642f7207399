// Package window provides bounded, independently-cursored views over a
// byte source. Sub-windows share the underlying source but never share a
// read cursor, so sibling recursion frames cannot disturb each other.
package window

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrRange is returned when a requested byte range falls outside the
// parent window.
var ErrRange = errors.New("window: byte range out of bounds")

// Window is a view over [base, base+size) of an underlying io.ReaderAt
// with its own read cursor. The root window obtained from Open owns the
// file handle; sub-windows borrow it and their Close is a no-op.
type Window struct {
	src    io.ReaderAt
	base   int64
	size   int64
	pos    int64
	closer io.Closer
	closed bool
}

// Open maps an entire file as the root window. The caller must Close it.
func Open(path string) (*Window, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &Window{src: f, size: info.Size(), closer: f}, nil
}

// FromBytes wraps an in-memory buffer as a window.
func FromBytes(data []byte) *Window {
	return &Window{src: bytesReaderAt(data), size: int64(len(data))}
}

// New wraps an arbitrary io.ReaderAt of known size.
func New(r io.ReaderAt, size int64) *Window {
	return &Window{src: r, size: size}
}

// Sub opens an independent window over [off, off+length) of w. The range
// must lie entirely within w.
func (w *Window) Sub(off, length int64) (*Window, error) {
	if w.closed {
		return nil, fmt.Errorf("window: sub of closed window")
	}
	if off < 0 || length < 0 || off+length > w.size {
		return nil, fmt.Errorf("[%d, %d) of %d-byte window: %w", off, off+length, w.size, ErrRange)
	}
	return &Window{src: w.src, base: w.base + off, size: length}, nil
}

// Size returns the window length in bytes.
func (w *Window) Size() int64 {
	return w.size
}

// Read advances the window's cursor.
func (w *Window) Read(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("window: read of closed window")
	}
	if w.pos >= w.size {
		return 0, io.EOF
	}
	if max := w.size - w.pos; int64(len(p)) > max {
		p = p[:max]
	}
	n, err := w.src.ReadAt(p, w.base+w.pos)
	w.pos += int64(n)
	if err == io.EOF && w.pos < w.size {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// ReadAt reads at an offset relative to the window start without moving
// the cursor. It satisfies io.ReaderAt within the window bounds.
func (w *Window) ReadAt(p []byte, off int64) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("window: read of closed window")
	}
	if off < 0 {
		return 0, ErrRange
	}
	if off >= w.size {
		return 0, io.EOF
	}
	short := false
	if max := w.size - off; int64(len(p)) > max {
		p = p[:max]
		short = true
	}
	n, err := w.src.ReadAt(p, w.base+off)
	if err == nil && short {
		err = io.EOF
	}
	return n, err
}

// Seek repositions the read cursor.
func (w *Window) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = w.pos + offset
	case io.SeekEnd:
		abs = w.size + offset
	default:
		return 0, fmt.Errorf("window: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("window: negative seek position %d", abs)
	}
	w.pos = abs
	return abs, nil
}

// Bytes reads the entire window contents.
func (w *Window) Bytes() ([]byte, error) {
	buf := make([]byte, w.size)
	if _, err := w.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// Close releases the underlying source if this window owns it. Closing
// is idempotent; closing a sub-window only marks it unusable.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// bytesReaderAt adapts a byte slice to io.ReaderAt without the cursor
// state of bytes.Reader.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
