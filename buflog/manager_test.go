package buflog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, capacity int, opts ...Option) (*Manager, *fakeSink) {
	t.Helper()
	fs := newFakeSink()
	m := NewManager(capacity, opts...)
	m.SetSink(fs)
	m.Start()
	t.Cleanup(m.Stop)
	return m, fs
}

// S1 — best-effort single record.
func TestWriteBestEffortSingleRecord(t *testing.T) {
	m, fs := newTestManager(t, 1024, WithGroupFsyncPeriod(10*time.Millisecond))

	err := m.Write(context.Background(), []byte("abc"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return string(fs.bytes()) == "abc"
	}, 2*time.Second, 5*time.Millisecond)
}

// S2 — full-durability single record.
func TestWriteFullDurabilitySingleRecord(t *testing.T) {
	m, fs := newTestManager(t, 1024, WithGroupFsyncPeriod(10*time.Millisecond), WithFullDurability(true))

	start := time.Now()
	err := m.Write(context.Background(), []byte("xyz"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Less(t, elapsed, 2*time.Second)
	require.Equal(t, "xyz", string(fs.bytes()))
}

// S3 — back-pressure: capacity 16, best-effort, 10-byte records A then B.
func TestWriteBackPressureDrainsBeforeSecondWrite(t *testing.T) {
	m, fs := newTestManager(t, 16, WithGroupFsyncPeriod(5*time.Millisecond))

	a := []byte("AAAAAAAAAA")
	b := []byte("BBBBBBBBBB")

	require.NoError(t, m.Write(context.Background(), a))

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- m.Write(context.Background(), b)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("write of B did not return within 2s")
	}

	// B is flushed by the worker's next best-effort poll, which starts
	// its 2s wait at about the moment B's Write returns.
	require.Eventually(t, func() bool {
		return string(fs.bytes()) == "AAAAAAAAAABBBBBBBBBB"
	}, 3*time.Second, 5*time.Millisecond)
}

// S4 — burst ordering from a single producer.
func TestWriteBurstOrderingSingleProducer(t *testing.T) {
	m, fs := newTestManager(t, 1<<20, WithGroupFsyncPeriod(5*time.Millisecond), WithFullDurability(true))

	require.NoError(t, m.Write(context.Background(), []byte("L1\n")))
	require.NoError(t, m.Write(context.Background(), []byte("L2\n")))
	require.NoError(t, m.Write(context.Background(), []byte("L3\n")))

	require.Equal(t, "L1\nL2\nL3\n", string(fs.bytes()))
}

// S5 — shutdown drains: a record already accepted by Write reaches the
// sink before Stop returns, rather than being silently dropped.
func TestStopDrainsAcceptedRecord(t *testing.T) {
	m, fs := newTestManager(t, 1024, WithGroupFsyncPeriod(5*time.Millisecond))

	require.NoError(t, m.Write(context.Background(), []byte("tail")))
	m.Stop()

	require.Equal(t, "tail", string(fs.bytes()))
}

// S6 — I/O failure then success in full-durability mode: the failing
// producer gets ErrFsyncFailed and no producer hangs forever; the record
// is eventually durable via worker retry.
func TestFullDurabilityIOFailureThenRetrySucceeds(t *testing.T) {
	m, fs := newTestManager(t, 1024, WithGroupFsyncPeriod(5*time.Millisecond), WithFullDurability(true))
	fs.failNextWrites(1)

	err := m.Write(context.Background(), []byte("retry-me"))
	require.ErrorIs(t, err, ErrFsyncFailed)

	require.Eventually(t, func() bool {
		return string(fs.bytes()) == "retry-me"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWriteReturnsNoFileBeforeSinkSet(t *testing.T) {
	m := NewManager(1024)
	err := m.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrNoFile)
}

func TestWriteReturnsRecordTooLarge(t *testing.T) {
	m, _ := newTestManager(t, 16)
	err := m.Write(context.Background(), make([]byte, 16))
	require.ErrorIs(t, err, ErrRecordTooLarge)

	err = m.Write(context.Background(), make([]byte, 100))
	require.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestSetFullDurabilityModeIdempotent(t *testing.T) {
	m, _ := newTestManager(t, 1024)

	m.SetFullDurabilityMode(true)
	first := m.nextGroupFsyncSnapshot()
	time.Sleep(2 * time.Millisecond)
	m.SetFullDurabilityMode(true)
	second := m.nextGroupFsyncSnapshot()

	require.Equal(t, first, second, "setting the same mode twice must not re-arm the deadline")
	require.True(t, m.IsFullDurabilityMode())
}

func (m *Manager) nextGroupFsyncSnapshot() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextGroupFsync
}

func TestWriteContextCancellationUnblocksCapacityWait(t *testing.T) {
	m, _ := newTestManager(t, 16)

	require.NoError(t, m.Write(context.Background(), []byte("0123456789"))) // 10 bytes, fits < 16

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		// This record alone fits (8 < 16) but combined with the 10
		// already buffered it does not (18 not < 16), so this call
		// blocks on capacity. Its own signal usually wakes the worker,
		// which swaps before the cancel and lets the write succeed, so
		// a nil error is tolerated; otherwise it must be the
		// cancellation.
		done <- m.Write(ctx, []byte("01234567"))
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("canceled write did not return")
	}
}

func TestConcurrentProducersNoLoss(t *testing.T) {
	m, fs := newTestManager(t, 256, WithGroupFsyncPeriod(2*time.Millisecond))

	const producers = 20
	const perProducer = 25
	var wg sync.WaitGroup
	wg.Add(producers)
	for i := 0; i < producers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				require.NoError(t, m.Write(context.Background(), []byte("x")))
			}
		}()
	}
	wg.Wait()

	// The last records are flushed by the worker's next best-effort
	// poll, which starts its 2s wait at about the moment wg.Wait returns.
	require.Eventually(t, func() bool {
		return len(fs.bytes()) == producers*perProducer
	}, 3*time.Second, 5*time.Millisecond)
}

func TestAwaitGenerationReturnsShutdownIfNeverCompleted(t *testing.T) {
	// A manager that is never Started: its worker never runs, so a
	// full-durability write's generation never completes; Stop (called
	// concurrently) must still release the waiter rather than hang.
	fs := newFakeSink()
	m := NewManager(1024, WithFullDurability(true))
	m.SetSink(fs)
	m.started = true // pretend started without spawning the worker, so no swap ever happens

	done := make(chan error, 1)
	go func() {
		done <- m.Write(context.Background(), []byte("stuck"))
	}()

	time.Sleep(5 * time.Millisecond)
	m.Stop()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrShutdownDuringWrite)
	case <-time.After(2 * time.Second):
		t.Fatal("write did not unblock on shutdown")
	}
}
