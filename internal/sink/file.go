package sink

import (
	"bufio"
	"fmt"
	"os"
)

// File is a Sink backed by a regular *os.File, with a bufio.Writer
// absorbing the "flush userspace buffer" step so Write calls from the
// flush worker (already batched at the buflog.Buffer level) don't each
// incur a syscall before Flush is explicitly requested.
type File struct {
	f *os.File
	w *bufio.Writer
}

// OpenFile opens path for appending, creating it if necessary, and wraps
// it as a Sink. The caller owns the returned *File and must call Close
// when the buflog.Manager writing through it has stopped.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	return &File{f: f, w: bufio.NewWriterSize(f, 64*1024)}, nil
}

// NewFile wraps an already-open *os.File as a Sink. Ownership of f stays
// with the caller.
func NewFile(f *os.File) *File {
	return &File{f: f, w: bufio.NewWriterSize(f, 64*1024)}
}

func (s *File) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("sink: write: %w", err)
	}
	return n, nil
}

// Flush pushes the bufio.Writer's contents to the underlying *os.File.
func (s *File) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: flush: %w", err)
	}
	return nil
}

// Close flushes any buffered bytes and closes the underlying file. It is
// the caller's responsibility to call Close only after the Manager
// writing through this Sink has stopped.
func (s *File) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}
