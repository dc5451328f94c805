package eventpipe

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_TicksUntilStopped(t *testing.T) {
	var cycles atomic.Int32
	submit := func(fn func(context.Context)) bool {
		go fn(context.Background())
		return true
	}
	s := newScheduler(5*time.Millisecond, submit, func(context.Context) { cycles.Add(1) })

	s.start()
	s.start()
	assert.True(t, s.isRunning())

	assert.Eventually(t, func() bool { return cycles.Load() >= 3 }, time.Second, time.Millisecond)

	s.stop()
	assert.False(t, s.isRunning())
	time.Sleep(20 * time.Millisecond)
	settled := cycles.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, cycles.Load())
}

func TestScheduler_StopsWhenSubmitFails(t *testing.T) {
	var cycles atomic.Int32
	s := newScheduler(time.Millisecond, func(func(context.Context)) bool { return false }, func(context.Context) {
		cycles.Add(1)
	})

	s.start()
	assert.Eventually(t, func() bool { return !s.isRunning() }, time.Second, time.Millisecond)
	assert.Zero(t, cycles.Load())
}
