// Package buflog implements the concurrent double-buffer batching engine
// that sits between many producer goroutines and a single durable audit
// log file: producers append records into an in-memory buffer, a single
// background worker periodically (or, in full-durability mode,
// synchronously) swaps that buffer out and flushes it to a sink.Sink.
package buflog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/corelog/auditbuf/internal/sink"
)

// Defaults mirror the values observed in the source implementation this
// package generalizes.
const (
	DefaultGroupFsyncPeriod = 10 * time.Millisecond
	bestEffortPollInterval  = 2 * time.Second
)

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithGroupFsyncPeriod overrides the default 10ms group-fsync period used
// in full-durability mode.
func WithGroupFsyncPeriod(d time.Duration) Option {
	return func(m *Manager) { m.groupFsyncPeriod = d }
}

// WithLogger attaches a zap logger for diagnostics. The default is
// zap.NewNop(), so a Manager never forces logging configuration on its
// caller.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics attaches a Metrics instance. The default is a fresh
// NewMetrics() with its own private registry.
func WithMetrics(ms *Metrics) Option {
	return func(m *Manager) { m.metrics = ms }
}

// WithID overrides the Manager's correlation UUID, useful for tests that
// want deterministic log output.
func WithID(id uuid.UUID) Option {
	return func(m *Manager) { m.id = id }
}

// WithFullDurability sets the initial durability mode.
func WithFullDurability(enabled bool) Option {
	return func(m *Manager) { m.fullDurability = enabled }
}

// Manager is the public façade over the batching engine: it owns the
// double buffer, the flush worker, and the mutex/condvar pair that
// coordinate producers with the worker.
type Manager struct {
	mu         sync.Mutex
	writerCond *sync.Cond
	fsyncCond  *sync.Cond

	db  *doubleBuffer
	snk sink.Sink

	fullDurability   bool
	groupFsyncPeriod time.Duration
	nextGroupFsync   time.Time

	// bufferReady is the predicate producers blocked on a full incoming
	// buffer wait for: the worker sets it true and broadcasts
	// writerCond once a swap has made a fresh, empty buffer incoming.
	bufferReady bool

	// generation identifies the flush cycle that will eventually flush
	// whatever is currently in the incoming buffer. It is assigned to
	// the outgoing buffer (and then incremented) at swap time.
	// completedGeneration/completedSuccess record the outcome of the
	// most recently completed (successful or failed) flush attempt; a
	// generation that failed once stays recorded as failed across its
	// retries, so
	// a producer waiting on fsyncCond can tell whether ITS generation's
	// attempt has finished and how it went, rather than racing on a
	// single shared flag.
	generation          uint64
	completedGeneration uint64
	completedSuccess    bool

	// pendingGeneration is the generation number of the outgoing buffer
	// currently being flushed (or retried), set by swapLocked and read
	// by flushOutgoingLocked. It is also what a retry (outgoing buffer
	// still non-empty from a previous failed attempt) reuses, since no
	// swap occurs between retries of the same cycle.
	pendingGeneration uint64

	started bool
	stopped bool
	wg      sync.WaitGroup

	log     *zap.Logger
	id      uuid.UUID
	metrics *Metrics
}

// NewManager creates a Manager with the given incoming/outgoing buffer
// capacity (bytes). The worker is not started; call Start once a Sink has
// been attached via SetSink.
func NewManager(capacity int, opts ...Option) *Manager {
	m := &Manager{
		db:                  newDoubleBuffer(capacity),
		groupFsyncPeriod:    DefaultGroupFsyncPeriod,
		generation:          1,
		completedGeneration: 0,
		log:                 zap.NewNop(),
		id:                  uuid.New(),
		metrics:             NewMetrics(),
	}
	m.writerCond = sync.NewCond(&m.mu)
	m.fsyncCond = sync.NewCond(&m.mu)
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(zap.String("manager_id", m.id.String()))
	return m
}

// SetSink records the sink records are flushed to. It must be called
// before the first Write, and must not be changed while the worker is
// running.
func (m *Manager) SetSink(s sink.Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snk = s
}

// SetBufferSize raises both buffers' reserved capacity to at least n
// bytes. Safe only before Start or while stopped.
func (m *Manager) SetBufferSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db.reserve(n)
}

// BufferCapacity returns the shared reserved capacity of both buffers.
func (m *Manager) BufferCapacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.capacity()
}

// SetFullDurabilityMode switches between best-effort and full-durability
// regimes. Transitioning from false to true resets the group-fsync
// deadline to now so the worker flushes promptly. Calling it twice with
// the same value is a no-op beyond the flag write itself.
func (m *Manager) SetFullDurabilityMode(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if enabled && !m.fullDurability {
		m.nextGroupFsync = time.Now()
	}
	m.fullDurability = enabled
}

// IsFullDurabilityMode reports the current durability mode.
func (m *Manager) IsFullDurabilityMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullDurability
}

// Start spawns the flush worker goroutine. It is a no-op if already
// started.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopped = false
	if m.fullDurability {
		m.nextGroupFsync = time.Now()
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runWorker()
}

// Stop signals the worker to exit, releases any producers blocked in
// Write, and waits for the worker goroutine to finish. It is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.writerCond.Broadcast()
	m.fsyncCond.Broadcast()
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
}

// Write submits a record. It returns nil once the record is accepted:
// in best-effort mode that means it is buffered; in full-durability mode
// it means the record has been written, flushed, and synced to the
// sink. A canceled ctx unblocks a producer waiting for buffer capacity or
// for its flush cycle, returning ctx.Err().
func (m *Manager) Write(ctx context.Context, record []byte) error {
	m.mu.Lock()
	if m.snk == nil {
		m.mu.Unlock()
		m.log.Error("write rejected, no sink set")
		return ErrNoFile
	}
	capacity := m.db.capacity()
	m.mu.Unlock()

	if len(record) >= capacity {
		return ErrRecordTooLarge
	}

	stopWatch := m.watchCancel(ctx)
	defer stopWatch()

	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.stopped {
			return ErrShutdownDuringWrite
		}

		in := m.db.incoming()
		if in.Fits(len(record)) {
			in.Append(record)
			m.metrics.recordsAccepted.Inc()
			m.metrics.incomingBytes.Set(float64(in.Size()))
			m.log.Debug("record admitted", zap.Int("bytes", len(record)), zap.Int("buffered", in.Size()))

			if !m.fullDurability {
				return nil
			}
			return m.awaitGeneration(ctx, m.generation)
		}

		m.log.Info("incoming buffer full, signaling worker", zap.Int("buffered", in.Size()))
		m.bufferReady = false
		m.writerCond.Signal()
		for !m.bufferReady && !m.stopped && ctx.Err() == nil {
			m.writerCond.Wait()
		}
	}
}

// awaitGeneration blocks, with mu held, until the flush cycle identified
// by myGen has completed, then reports its outcome. Called only in
// full-durability mode, immediately after a successful Append.
func (m *Manager) awaitGeneration(ctx context.Context, myGen uint64) error {
	for m.completedGeneration < myGen && !m.stopped && ctx.Err() == nil {
		m.fsyncCond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.completedGeneration < myGen {
		return ErrShutdownDuringWrite
	}
	// A later generation is only swapped in once this one's outgoing
	// buffer has been flushed successfully and cleared.
	if m.completedGeneration > myGen || m.completedSuccess {
		return nil
	}
	m.metrics.fsyncFailures.Inc()
	return ErrFsyncFailed
}

// watchCancel starts (if ctx can be canceled) a goroutine that broadcasts
// both condition variables when ctx.Done fires, so a producer parked in
// Write notices the cancellation instead of waiting forever. The returned
// func must be called once the caller is done waiting.
func (m *Manager) watchCancel(ctx context.Context) func() {
	if ctx == nil || ctx.Done() == nil {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.writerCond.Broadcast()
			m.fsyncCond.Broadcast()
			m.mu.Unlock()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}
