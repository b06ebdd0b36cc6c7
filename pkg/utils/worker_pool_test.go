package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_ExecutesJobs(t *testing.T) {
	pool := NewWorkerPool(4, 16)
	pool.Start()
	defer pool.Stop()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		pool.Submit(func() {
			atomic.AddInt64(&counter, 1)
			wg.Done()
		})
	}
	wg.Wait()
	assert.Equal(t, int64(100), atomic.LoadInt64(&counter))
}

func TestWorkerPool_FullQueueRunsInline(t *testing.T) {
	// single worker, tiny queue, jobs blocked -> submit must not block
	pool := NewWorkerPool(1, 1)
	pool.Start()
	defer pool.Stop()

	block := make(chan struct{})
	pool.Submit(func() { <-block })
	pool.Submit(func() {}) // parks in the queue

	done := make(chan struct{})
	go func() {
		pool.Submit(func() {}) // queue is full, runs inline
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit blocked on a full queue")
	}
	close(block)
}

func TestWorkerPool_RecoversFromPanic(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	pool.Start()
	defer pool.Stop()

	pool.Submit(func() { panic("boom") })

	// the worker survives and keeps draining
	done := make(chan struct{})
	pool.Submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker died after a panicking job")
	}
}
