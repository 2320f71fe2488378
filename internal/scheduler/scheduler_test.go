package scheduler

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("uses the given limit", func(t *testing.T) {
		s := New(3)
		defer s.Close()

		assert.Equal(t, 3, s.MaxConcurrentTasks())
	})

	t.Run("defaults to the number of CPUs", func(t *testing.T) {
		s := New(0)
		defer s.Close()

		assert.Equal(t, runtime.NumCPU(), s.MaxConcurrentTasks())
	})
}

func TestShared(t *testing.T) {
	first := Shared(2)
	second := Shared(16)

	assert.Same(t, first, second)
	assert.Equal(t, first.MaxConcurrentTasks(), second.MaxConcurrentTasks())
}

func TestSubmit_NeverExceedsLimit(t *testing.T) {
	const limit = 3
	s := New(limit)
	defer s.Close()

	var current, peak atomic.Int64
	executor := func(int) (int, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
		return 0, nil
	}

	futures := make([]*Future[int], 0, 40)
	for i := 0; i < 40; i++ {
		futures = append(futures, Submit(s, i, executor))
	}
	for _, f := range futures {
		_, err := f.Await()
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Greater(t, peak.Load(), int64(0))
}

func TestSubmit_StartsInFIFOOrder(t *testing.T) {
	s := New(1)
	defer s.Close()

	var mu sync.Mutex
	var started []int
	executor := func(i int) (int, error) {
		mu.Lock()
		started = append(started, i)
		mu.Unlock()
		return i, nil
	}

	var futures []*Future[int]
	for i := 0; i < 10; i++ {
		futures = append(futures, Submit(s, i, executor))
	}
	for _, f := range futures {
		_, _ = f.Await()
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, started)
}

func TestSubmit_FailureOnlyRejectsThatTask(t *testing.T) {
	s := New(2)
	defer s.Close()

	bad := Submit(s, 1, func(int) (string, error) { return "", errors.New("boom") })
	good := Submit(s, 2, func(int) (string, error) { return "ok", nil })

	_, err := bad.Await()
	assert.EqualError(t, err, "boom")

	value, err := good.Await()
	assert.NoError(t, err)
	assert.Equal(t, "ok", value)
}

func TestSubmit_RecoversPanics(t *testing.T) {
	s := New(1)
	defer s.Close()

	f := Submit(s, 0, func(int) (int, error) { panic("kaboom") })
	_, err := f.Await()

	assert.ErrorContains(t, err, "kaboom")
	s.Wait()
	assert.Equal(t, int64(1), s.Stats().Failed)
}

func TestSubmit_AfterClose(t *testing.T) {
	s := New(1)
	s.Close()

	_, err := Submit(s, 0, func(int) (int, error) { return 1, nil }).Await()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int64(0), s.Stats().Total)
}

func TestSubmitAll_PreservesInputOrder(t *testing.T) {
	s := New(4)
	defer s.Close()

	tasks := []int{40, 30, 20, 10, 0}
	results, err := SubmitAll(s, tasks, func(ms int) (int, error) {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return ms * 2, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{80, 60, 40, 20, 0}, results)
}

func TestSubmitAll_Empty(t *testing.T) {
	s := New(1)
	defer s.Close()

	results, err := SubmitAll(s, []int{}, func(int) (int, error) { return 0, nil })
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestSubmitAll_FailsFastWhileSiblingsKeepRunning(t *testing.T) {
	s := New(3)
	defer s.Close()

	release := make(chan struct{})
	var finished atomic.Int64

	executor := func(i int) (int, error) {
		if i == 1 {
			return 0, errors.New("task one failed")
		}
		<-release
		finished.Add(1)
		return i, nil
	}

	results, err := SubmitAll(s, []int{0, 1, 2, 3}, executor)
	assert.Nil(t, results)
	assert.ErrorContains(t, err, "task one failed")
	assert.Equal(t, int64(0), finished.Load(), "siblings should still be blocked when the caller sees the failure")

	close(release)
	s.Wait()

	assert.Equal(t, int64(3), finished.Load())
	stats := s.Stats()
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(0), stats.Running)
	assert.Equal(t, int64(0), stats.Queued)
}

func TestStats_ReportsQueuedAndRunning(t *testing.T) {
	s := New(1)
	defer s.Close()

	started := make(chan struct{})
	release := make(chan struct{})

	Submit(s, 0, func(int) (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	Submit(s, 1, func(int) (int, error) { return 0, nil })
	Submit(s, 2, func(int) (int, error) { return 0, nil })

	<-started
	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Running)
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(3), stats.Total)

	close(release)
	s.Wait()

	assert.Equal(t, Stats{Completed: 3, Total: 3}, s.Stats())
}
