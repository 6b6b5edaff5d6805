package buflog

import "errors"

// Sentinel errors surfaced to producers by Manager.Write. Wrap with %w
// when attaching an underlying I/O cause so callers can still
// errors.Is against these.
var (
	// ErrNoFile is returned when Write is called before SetSink.
	ErrNoFile = errors.New("buflog: no sink set")

	// ErrRecordTooLarge is returned when a record can never fit in the
	// configured buffer capacity, which would otherwise back-pressure
	// the caller forever.
	ErrRecordTooLarge = errors.New("buflog: record larger than buffer capacity")

	// ErrFsyncFailed is returned to a full-durability-mode producer
	// whose flush cycle's I/O attempt failed. The record remains
	// buffered and will be retried by the worker; this error reports
	// only that durability was not confirmed for this call.
	ErrFsyncFailed = errors.New("buflog: flush cycle failed before sync")

	// ErrShutdownDuringWrite is returned when Stop is called while a
	// producer is blocked in Write.
	ErrShutdownDuringWrite = errors.New("buflog: manager stopped during write")
)
