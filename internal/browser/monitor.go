// internal/browser/monitor.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

const (
	idleCheckFrequency = 100 * time.Millisecond
	bodyFetchTimeout   = 30 * time.Second
)

var errSessionClosing = errors.New("response finished while the session was closing")

// bodyFetcher retrieves a finished response body from the browser.
type bodyFetcher func(ctx context.Context, id network.RequestID) ([]byte, error)

// exchange is the request half of an in-flight request.
type exchange struct {
	url     string
	headers map[string]string
}

// monitor follows the page's network events. It keeps the in-flight count used
// for idle detection and resolves armed response waiters.
type monitor struct {
	logger    *zap.Logger
	fetchBody bodyFetcher

	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	exchanges map[network.RequestID]*exchange
	waiters   []*responseWaiter
	// closing stops new body fetches once drain has begun.
	closing bool

	wg sync.WaitGroup
}

func newMonitor(logger *zap.Logger, fetch bodyFetcher) *monitor {
	return &monitor{
		logger:    logger.Named("network"),
		fetchBody: fetch,
		inflight:  make(map[network.RequestID]struct{}),
		exchanges: make(map[network.RequestID]*exchange),
	}
}

// handleEvent is registered with chromedp.ListenTarget. It runs on the event
// loop, so any CDP call it needs is made from a separate goroutine.
func (m *monitor) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		m.onRequest(ev)
	case *network.EventRequestWillBeSentExtraInfo:
		m.onRequestExtraInfo(ev)
	case *network.EventResponseReceived:
		m.onResponse(ev)
	case *network.EventLoadingFinished:
		m.onFinished(ev.RequestID, nil)
	case *network.EventLoadingFailed:
		m.onFinished(ev.RequestID, fmt.Errorf("request failed: %s", ev.ErrorText))
	}
}

func (m *monitor) exchangeFor(id network.RequestID) *exchange {
	ex, ok := m.exchanges[id]
	if !ok {
		ex = &exchange{headers: make(map[string]string)}
		m.exchanges[id] = ex
	}
	return ex
}

func (m *monitor) onRequest(ev *network.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Redirects reuse the request ID, so the set keeps the count honest.
	m.inflight[ev.RequestID] = struct{}{}
	ex := m.exchangeFor(ev.RequestID)
	ex.url = ev.Request.URL
	mergeHeaders(ex.headers, ev.Request.Headers)
}

// onRequestExtraInfo merges the headers actually put on the wire, which
// include ones the renderer does not see. It may arrive before onRequest.
func (m *monitor) onRequestExtraInfo(ev *network.EventRequestWillBeSentExtraInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mergeHeaders(m.exchangeFor(ev.RequestID).headers, ev.Headers)
}

func (m *monitor) onResponse(ev *network.EventResponseReceived) {
	if ev.Response == nil {
		return
	}
	status := int(ev.Response.Status)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.waiters {
		if w.claimed || !w.match(ev.Response.URL, status) {
			continue
		}
		reqHeaders := make(map[string]string)
		if ex, ok := m.exchanges[ev.RequestID]; ok {
			for k, v := range ex.headers {
				reqHeaders[k] = v
			}
		}
		respHeaders := make(map[string]string)
		mergeHeaders(respHeaders, ev.Response.Headers)

		w.claimed = true
		w.requestID = ev.RequestID
		w.result = &CapturedResponse{
			URL:             ev.Response.URL,
			Status:          status,
			RequestHeaders:  reqHeaders,
			ResponseHeaders: respHeaders,
		}
		m.logger.Debug("Matched awaited response.", zap.String("url", ev.Response.URL), zap.Int("status", status))
		// First waiter wins; one response resolves one waiter.
		return
	}
}

func (m *monitor) onFinished(id network.RequestID, failure error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
	delete(m.exchanges, id)

	var owned []*responseWaiter
	for _, w := range m.waiters {
		if w.claimed && w.requestID == id && !w.fetching {
			owned = append(owned, w)
		}
	}
	for _, w := range owned {
		w.fetching = true
		if failure != nil {
			w.result.BodyErr = failure
			m.resolveLocked(w)
			continue
		}
		if m.closing {
			w.result.BodyErr = errSessionClosing
			m.resolveLocked(w)
			continue
		}
		m.wg.Add(1)
		go m.fetch(w)
	}
}

func (m *monitor) fetch(w *responseWaiter) {
	defer m.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), bodyFetchTimeout)
	defer cancel()
	body, err := m.fetchBody(ctx, w.requestID)

	m.mu.Lock()
	defer m.mu.Unlock()
	w.result.Body = body
	if err != nil {
		w.result.BodyErr = fmt.Errorf("failed to fetch response body: %w", err)
	}
	m.resolveLocked(w)
}

// resolveLocked completes w and forgets it. Callers hold m.mu.
func (m *monitor) resolveLocked(w *responseWaiter) {
	w.resolve()
	m.removeLocked(w)
}

func (m *monitor) removeLocked(w *responseWaiter) {
	for i, other := range m.waiters {
		if other == w {
			m.waiters = append(m.waiters[:i], m.waiters[i+1:]...)
			return
		}
	}
}

// arm registers a new waiter.
func (m *monitor) arm(match ResponseMatcher) *responseWaiter {
	w := &responseWaiter{match: match, done: make(chan struct{}), owner: m}
	m.mu.Lock()
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()
	return w
}

func (m *monitor) disarm(w *responseWaiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(w)
}

func (m *monitor) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// waitIdle blocks until no request has been in flight for quiet.
func (m *monitor) waitIdle(ctx context.Context, quiet time.Duration) error {
	timer := time.NewTimer(quiet)
	timer.Stop()
	defer timer.Stop()
	idle := false

	ticker := time.NewTicker(idleCheckFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			busy := m.active() > 0
			switch {
			case busy && idle:
				timer.Stop()
				idle = false
			case !busy && !idle:
				timer.Reset(quiet)
				idle = true
			}
		case <-timer.C:
			m.logger.Debug("Network is idle.")
			return nil
		}
	}
}

// drain waits for outstanding body fetches. No fetch starts after it is
// called.
func (m *monitor) drain(ctx context.Context) {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Debug("Stopped waiting for response body fetches.", zap.Error(ctx.Err()))
	}
}

// responseWaiter is one armed ExpectResponse. Its fields are guarded by the
// owning monitor's mutex.
type responseWaiter struct {
	owner     *monitor
	match     ResponseMatcher
	claimed   bool
	fetching  bool
	requestID network.RequestID
	result    *CapturedResponse

	done chan struct{}
	once sync.Once
}

func (w *responseWaiter) resolve() {
	w.once.Do(func() { close(w.done) })
}

// Wait blocks until the matched response body is available or ctx is done.
// A waiter that gives up is disarmed.
func (w *responseWaiter) Wait(ctx context.Context) (*CapturedResponse, error) {
	select {
	case <-w.done:
		w.owner.mu.Lock()
		defer w.owner.mu.Unlock()
		return w.result, nil
	case <-ctx.Done():
		w.owner.disarm(w)
		return nil, ctx.Err()
	}
}

// mergeHeaders copies src into dst, skipping HTTP/2 pseudo-headers.
func mergeHeaders(dst map[string]string, src network.Headers) {
	for k, v := range src {
		if strings.HasPrefix(k, ":") {
			continue
		}
		dst[k] = fmt.Sprint(v)
	}
}
