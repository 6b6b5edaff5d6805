//go:build !linux

package sink

import "fmt"

// Sync commits the file's data to stable storage. Non-Linux platforms
// fall back to (*os.File).Sync (fsync), since fdatasync is not exposed
// uniformly across them.
func (s *File) Sync() error {
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sink: sync: %w", err)
	}
	return nil
}
