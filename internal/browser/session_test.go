package browser

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSessionCloseRunsOnce(t *testing.T) {
	var calls, cancels atomic.Int32
	s := newSession("s1", zap.NewNop(), time.Second, func() error {
		calls.Add(1)
		return nil
	})
	s.addCancel(func() { cancels.Add(1) })
	s.addCancel(func() { cancels.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close(context.Background())
		}()
	}
	wg.Wait()
	s.Close(context.Background())

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(2), cancels.Load())
}

func TestSessionCloseSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := newSession("s2", zap.New(core), time.Second, func() error {
		return errors.New("websocket already closed")
	})

	assert.NotPanics(t, func() { s.Close(context.Background()) })
	entries := logs.FilterMessage("Failed to close browser session cleanly.").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "websocket already closed", entries[0].ContextMap()["error"])
	}
}

func TestSessionCloseIgnoresCanceled(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := newSession("s3", zap.New(core), time.Second, func() error { return context.Canceled })
	s.Close(context.Background())
	assert.Zero(t, logs.Len())
}

func TestSessionCloseTimesOut(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	release := make(chan struct{})
	defer close(release)
	var cancelled atomic.Bool

	s := newSession("s4", zap.New(core), 50*time.Millisecond, func() error {
		<-release
		return nil
	})
	s.addCancel(func() { cancelled.Store(true) })

	start := time.Now()
	s.Close(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, logs.FilterMessage("Timed out closing browser session.").Len())
	assert.True(t, cancelled.Load(), "contexts are released even when the browser does not answer")
}

func TestSessionCloseWithExpiredContext(t *testing.T) {
	var calls atomic.Int32
	s := newSession("s5", zap.NewNop(), time.Second, func() error {
		calls.Add(1)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.Close(ctx)
	assert.Equal(t, int32(1), calls.Load(), "teardown must not be skipped because the request context is done")
}
