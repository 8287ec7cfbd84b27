// Package offsetreader wraps an io.Reader, tracking how many bytes have
// been consumed so far and producing length-bounded sub-readers whose
// offsets stay in the outer stream's coordinate system.
package offsetreader

import "io"

// Reader counts bytes read through it and can produce bounded sub-readers.
type Reader struct {
	r      io.Reader
	offset int64
}

// New wraps r, starting at offset 0.
func New(r io.Reader) *Reader {
	return &Reader{r: r}
}

// After wraps r, but reports offsets biased by offset — used so a
// sub-reader's Offset() continues to read in the outer stream's coordinate
// system rather than restarting at 0.
func After(offset int64, r io.Reader) *Reader {
	return &Reader{r: r, offset: offset}
}

// Read implements io.Reader, advancing the tracked offset by the number of
// bytes actually read.
func (r *Reader) Read(buf []byte) (int, error) {
	n, err := r.r.Read(buf)
	r.offset += int64(n)
	return n, err
}

// Offset reports the number of bytes read so far (biased, for sub-readers
// created via After).
func (r *Reader) Offset() int64 { return r.offset }

// Take returns a reader limited to at most n further bytes from r, with its
// Offset() continuing from r's current offset.
func (r *Reader) Take(n int64) *Reader {
	return After(r.offset, io.LimitReader(r, n))
}

// Discard reads and drops any bytes remaining in r, so that a bounded
// sub-reader's unread tail never leaks into whatever reads the underlying
// stream next.
func (r *Reader) Discard() error {
	_, err := io.Copy(io.Discard, r)
	return err
}
