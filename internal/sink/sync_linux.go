//go:build linux

package sink

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Sync commits the file's data to stable storage. On Linux this uses
// fdatasync(2) via golang.org/x/sys/unix rather than (*os.File).Sync's
// fsync(2), since the log file's metadata (size, mtime) does not need to
// be durable before the producer is released — only its data does.
func (s *File) Sync() error {
	if err := unix.Fdatasync(int(s.f.Fd())); err != nil {
		return fmt.Errorf("sink: fdatasync: %w", err)
	}
	return nil
}
