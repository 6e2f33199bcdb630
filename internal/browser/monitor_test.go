package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func staticBody(body string, err error) bodyFetcher {
	return func(ctx context.Context, id network.RequestID) ([]byte, error) {
		return []byte(body), err
	}
}

func request(id, url string, headers network.Headers) *network.EventRequestWillBeSent {
	return &network.EventRequestWillBeSent{
		RequestID: network.RequestID(id),
		Request:   &network.Request{URL: url, Method: "GET", Headers: headers},
	}
}

func response(id, url string, status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Response:  &network.Response{URL: url, Status: status, Headers: network.Headers{"content-type": "application/json"}},
	}
}

func finished(id string) *network.EventLoadingFinished {
	return &network.EventLoadingFinished{RequestID: network.RequestID(id)}
}

func waitFor(t *testing.T, w ResponseWaiter) *CapturedResponse {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := w.Wait(ctx)
	require.NoError(t, err)
	return got
}

func TestMonitorResolvesMatchingResponse(t *testing.T) {
	m := newMonitor(zap.NewNop(), staticBody(`{"token":"t"}`, nil))
	w := m.arm(URLContainsOK("/payments/profile/getUserProfile"))

	m.handleEvent(request("1", "https://app.test/other", nil))
	m.handleEvent(response("1", "https://app.test/other", 200))
	m.handleEvent(finished("1"))

	m.handleEvent(request("2", "https://app.test/payments/profile/getUserProfile", network.Headers{"Authorization": "Bearer abc"}))
	m.handleEvent(&network.EventRequestWillBeSentExtraInfo{
		RequestID: "2",
		Headers:   network.Headers{":authority": "app.test", "cookie": "sid=1"},
	})
	m.handleEvent(response("2", "https://app.test/payments/profile/getUserProfile?x=1", 200))
	m.handleEvent(finished("2"))

	got := waitFor(t, w)
	assert.Equal(t, 200, got.Status)
	assert.Equal(t, `{"token":"t"}`, string(got.Body))
	assert.NoError(t, got.BodyErr)
	auth, ok := got.RequestHeader("authorization")
	assert.True(t, ok)
	assert.Equal(t, "Bearer abc", auth)
	assert.Equal(t, "sid=1", got.RequestHeaders["cookie"])
	assert.NotContains(t, got.RequestHeaders, ":authority")
	assert.Equal(t, 0, m.active())
}

func TestMonitorSkipsUnsuccessfulStatus(t *testing.T) {
	m := newMonitor(zap.NewNop(), staticBody("{}", nil))
	w := m.arm(URLContainsOK("/getUserProfile"))

	m.handleEvent(request("1", "https://app.test/getUserProfile", nil))
	m.handleEvent(response("1", "https://app.test/getUserProfile", 401))
	m.handleEvent(finished("1"))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err := w.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.waiters, "a waiter that gave up is disarmed")
}

func TestMonitorBodyFailures(t *testing.T) {
	t.Run("fetch error", func(t *testing.T) {
		m := newMonitor(zap.NewNop(), staticBody("", errors.New("No resource with given identifier found")))
		w := m.arm(URLContainsOK("/profile"))
		m.handleEvent(request("1", "https://a.test/profile", nil))
		m.handleEvent(response("1", "https://a.test/profile", 200))
		m.handleEvent(finished("1"))

		got := waitFor(t, w)
		require.Error(t, got.BodyErr)
		assert.Contains(t, got.BodyErr.Error(), "failed to fetch response body")
	})

	t.Run("loading failed", func(t *testing.T) {
		m := newMonitor(zap.NewNop(), staticBody("unused", nil))
		w := m.arm(URLContainsOK("/profile"))
		m.handleEvent(request("1", "https://a.test/profile", nil))
		m.handleEvent(response("1", "https://a.test/profile", 200))
		m.handleEvent(&network.EventLoadingFailed{RequestID: "1", ErrorText: "net::ERR_ABORTED"})

		got := waitFor(t, w)
		require.Error(t, got.BodyErr)
		assert.Contains(t, got.BodyErr.Error(), "ERR_ABORTED")
		assert.Empty(t, got.Body)
	})
}

func TestMonitorOneResponsePerWaiter(t *testing.T) {
	m := newMonitor(zap.NewNop(), staticBody("b", nil))
	first := m.arm(URLContainsOK("/p"))
	second := m.arm(URLContainsOK("/p"))

	m.handleEvent(request("1", "https://a.test/p", nil))
	m.handleEvent(response("1", "https://a.test/p", 200))
	m.handleEvent(finished("1"))
	m.handleEvent(request("2", "https://a.test/p", nil))
	m.handleEvent(response("2", "https://a.test/p", 204))
	m.handleEvent(finished("2"))

	assert.Equal(t, 200, waitFor(t, first).Status)
	assert.Equal(t, 204, waitFor(t, second).Status)
}

func TestMonitorWaitIdle(t *testing.T) {
	t.Run("idle page", func(t *testing.T) {
		m := newMonitor(zap.NewNop(), staticBody("", nil))
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, m.waitIdle(ctx, 50*time.Millisecond))
	})

	t.Run("busy page never settles", func(t *testing.T) {
		m := newMonitor(zap.NewNop(), staticBody("", nil))
		m.handleEvent(request("long-poll", "https://a.test/stream", nil))
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, m.waitIdle(ctx, 50*time.Millisecond), context.DeadlineExceeded)
	})

	t.Run("settles once requests finish", func(t *testing.T) {
		m := newMonitor(zap.NewNop(), staticBody("", nil))
		m.handleEvent(request("1", "https://a.test/app.js", nil))
		go func() {
			time.Sleep(150 * time.Millisecond)
			m.handleEvent(finished("1"))
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		start := time.Now()
		require.NoError(t, m.waitIdle(ctx, 50*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	})
}

func TestMonitorNoFetchAfterDrain(t *testing.T) {
	var fetches atomic.Int32
	m := newMonitor(zap.NewNop(), func(ctx context.Context, id network.RequestID) ([]byte, error) {
		fetches.Add(1)
		return []byte("late"), nil
	})
	w := m.arm(URLContainsOK("/profile"))
	m.handleEvent(request("1", "https://a.test/profile", nil))
	m.handleEvent(response("1", "https://a.test/profile", 200))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.drain(ctx)
	m.handleEvent(finished("1"))

	got := waitFor(t, w)
	assert.ErrorIs(t, got.BodyErr, errSessionClosing)
	assert.Empty(t, got.Body)
	assert.Zero(t, fetches.Load())
}

func TestMonitorDrainWaitsForStartedFetch(t *testing.T) {
	release := make(chan struct{})
	m := newMonitor(zap.NewNop(), func(ctx context.Context, id network.RequestID) ([]byte, error) {
		<-release
		return []byte("body"), nil
	})
	w := m.arm(URLContainsOK("/profile"))
	m.handleEvent(request("1", "https://a.test/profile", nil))
	m.handleEvent(response("1", "https://a.test/profile", 200))
	m.handleEvent(finished("1"))

	drained := make(chan struct{})
	go func() {
		m.drain(context.Background())
		close(drained)
	}()
	select {
	case <-drained:
		t.Fatal("drain returned while a fetch was outstanding")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-drained
	assert.Equal(t, "body", string(waitFor(t, w).Body))
}
