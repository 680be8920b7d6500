package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEvery_Fires(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.Every("tick", 20*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) >= 3
	}, time.Second, 10*time.Millisecond)
}

func TestEvery_Replaces(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count1, count2 int32
	s.Every("job", 20*time.Millisecond, func() { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.Every("job", 20*time.Millisecond, func() { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "replaced job must stop")
	assert.Positive(t, atomic.LoadInt32(&count2))
}

func TestOnce_FiresOnce(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.Once("once", 30*time.Millisecond, func() {
		atomic.AddInt32(&count, 1)
	})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestOnce_ReplaceCancelsOld(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.Once("d", 500*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	s.Once("d", 30*time.Millisecond, func() { atomic.AddInt32(&count, 10) })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestCancel(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.Every("job", 20*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Cancel("job")
	snap := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count), "job must stop after Cancel")

	s.Cancel("nope") // unknown name is a no-op
}

func TestCancel_Once(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var count int32
	s.Once("d", 100*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	s.Cancel("d")
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&count))
}

func TestStop_StopsEverything(t *testing.T) {
	s := New(zap.NewNop())

	var c1, c2 int32
	s.Every("a", 20*time.Millisecond, func() { atomic.AddInt32(&c1, 1) })
	s.Every("b", 20*time.Millisecond, func() { atomic.AddInt32(&c2, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	// Give the loops time to observe the stop before snapping counts.
	time.Sleep(30 * time.Millisecond)
	snap1, snap2 := atomic.LoadInt32(&c1), atomic.LoadInt32(&c2)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&c1))
	assert.Equal(t, snap2, atomic.LoadInt32(&c2))

	s.Stop() // must not panic on double-stop
}

func TestStop_Concurrent(t *testing.T) {
	s := New(zap.NewNop())
	s.Every("tick", time.Hour, func() {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()
}

func TestNames(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	require.Empty(t, s.Names())
	s.Every("beta", time.Hour, func() {})
	s.Every("alpha", time.Hour, func() {})
	assert.Equal(t, []string{"alpha", "beta"}, s.Names())

	s.Cancel("alpha")
	assert.Equal(t, []string{"beta"}, s.Names())
}

func TestRun_PanicIsolated(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	var after int32
	s.Every("panic", 20*time.Millisecond, func() {
		atomic.AddInt32(&after, 1)
		panic("oops")
	})
	// The loop keeps firing after a panicking run.
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&after) >= 2
	}, time.Second, 10*time.Millisecond)
}
