package buflog

import (
	"time"

	"go.uber.org/zap"

	"github.com/corelog/auditbuf/internal/sink"
)

// runWorker is the flush worker's loop. It runs as the Manager's sole
// background goroutine until Stop sets m.stopped. A wake caused by Stop's
// broadcast still runs this iteration's swap-and-flush-if-non-empty to
// completion; when the next iteration observes m.stopped, the worker makes
// one last flush attempt of whatever either buffer still holds before it
// returns, so a record that already returned as accepted from Write is not
// silently dropped. A failed final attempt is logged and not retried.
func (m *Manager) runWorker() {
	defer m.wg.Done()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if m.stopped {
			// Stop can land before this goroutine's first wait or while
			// a flush has mu released, leaving records in either buffer.
			if out := m.db.outgoing(); out.NumRecords() > 0 {
				m.flushOutgoingLocked(out)
			}
			if m.db.outgoing().NumRecords() == 0 && m.db.incoming().NumRecords() > 0 {
				m.flushOutgoingLocked(m.swapLocked())
			}
			return
		}

		out := m.db.outgoing()
		retry := out.NumRecords() > 0

		if !retry {
			m.waitForWork()
			in := m.db.incoming()
			if in.NumRecords() == 0 {
				continue
			}
			out = m.swapLocked()
		}

		m.flushOutgoingLocked(out)
	}
}

// waitForWork blocks on writerCond for one wake, with mu held, using an
// absolute deadline appropriate to the current durability mode. Unlike
// the producer-side waits, this wait has no predicate: any wake —
// notification or timeout — is treated as a prompt to re-inspect buffer
// state, matching the source worker's shape.
func (m *Manager) waitForWork() {
	deadline := m.nextWaitDeadline()
	timer := time.AfterFunc(time.Until(deadline), func() {
		m.mu.Lock()
		m.writerCond.Broadcast()
		m.mu.Unlock()
	})
	defer timer.Stop()
	m.writerCond.Wait()
}

func (m *Manager) nextWaitDeadline() time.Time {
	if m.fullDurability {
		return m.nextGroupFsync
	}
	return time.Now().Add(bestEffortPollInterval)
}

// swapLocked performs the role swap, assigns the outgoing buffer's
// generation, and releases any producers waiting on a full incoming
// buffer. Called with mu held.
func (m *Manager) swapLocked() *Buffer {
	gen := m.generation
	m.generation++
	m.db.swap()

	m.bufferReady = true
	m.writerCond.Broadcast()

	out := m.db.outgoing()
	m.log.Info("buffer swapped", zap.Uint64("generation", gen), zap.Int("bytes", out.Size()), zap.Int("records", out.NumRecords()))
	// pendingGeneration carries gen to flushOutgoingLocked, including
	// across retries of this same cycle where no further swap happens.
	m.pendingGeneration = gen
	return out
}

// flushOutgoingLocked runs one flush attempt against the outgoing
// buffer. It releases mu for the duration of the sink I/O so producers
// can keep appending to the (now empty) incoming buffer concurrently,
// then re-acquires mu to record the outcome and broadcast fsyncCond.
// Called with mu held; returns with mu held.
func (m *Manager) flushOutgoingLocked(out *Buffer) {
	gen := m.pendingGeneration
	data := out.Bytes()
	snk := m.snk

	m.mu.Unlock()
	success, ioErr := flushToSink(snk, data)
	m.mu.Lock()

	// A retry of a generation whose earlier attempt failed keeps that
	// failure on record, so the generation's producers see ErrFsyncFailed
	// even if they only wake after the retry has succeeded.
	if gen != m.completedGeneration {
		m.completedSuccess = success
	} else {
		m.completedSuccess = m.completedSuccess && success
	}
	m.completedGeneration = gen
	m.fsyncCond.Broadcast()

	if success {
		if m.fullDurability {
			m.nextGroupFsync = time.Now().Add(m.groupFsyncPeriod)
		}
		m.metrics.flushes.Inc()
		m.metrics.bytesWritten.Add(float64(len(data)))
		m.metrics.incomingBytes.Set(float64(m.db.incoming().Size()))
		m.log.Info("flush succeeded", zap.Uint64("generation", gen), zap.Int("bytes", len(data)))
		out.Clear()
		return
	}

	m.metrics.flushErrors.Inc()
	m.log.Error("flush failed, will retry next cycle", zap.Uint64("generation", gen), zap.Error(ioErr))
}

// flushToSink runs the write -> flush -> sync sequence a group-fsync
// cycle performs. An empty buffer trivially succeeds without touching
// the sink.
func flushToSink(s sink.Sink, data []byte) (success bool, err error) {
	if len(data) == 0 {
		return true, nil
	}
	if _, err = s.Write(data); err != nil {
		return false, err
	}
	if err = s.Flush(); err != nil {
		return false, err
	}
	if err = s.Sync(); err != nil {
		return false, err
	}
	return true, nil
}
