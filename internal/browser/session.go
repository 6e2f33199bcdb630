// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultCloseTimeout = 10 * time.Second

// Session owns the browser connection, browsing context and page of one
// request.
type Session struct {
	id     string
	logger *zap.Logger
	page   *Page

	closeTimeout time.Duration
	// closeTop closes or disconnects the top-level browser handle.
	closeTop func() error
	cancels  []context.CancelFunc

	closeOnce sync.Once
}

var _ Handle = (*Session)(nil)

func newSession(id string, logger *zap.Logger, closeTimeout time.Duration, closeTop func() error) *Session {
	if closeTimeout <= 0 {
		closeTimeout = defaultCloseTimeout
	}
	return &Session{
		id:           id,
		logger:       logger,
		closeTimeout: closeTimeout,
		closeTop:     closeTop,
	}
}

func (s *Session) addCancel(c context.CancelFunc) {
	s.cancels = append(s.cancels, c)
}

func (s *Session) ID() string { return s.id }

func (s *Session) Page() PageDriver { return s.page }

// Close tears the session down. Only the first call does anything; failures
// are logged and never returned.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		closeCtx, cancel := context.WithTimeout(Detach(ctx), s.closeTimeout)
		defer cancel()

		if s.page != nil {
			s.page.monitor.drain(closeCtx)
		}

		if s.closeTop != nil {
			done := make(chan error, 1)
			go func() { done <- s.closeTop() }()
			select {
			case err := <-done:
				if err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
				}
			case <-closeCtx.Done():
				s.logger.Warn("Timed out closing browser session.", zap.Duration("timeout", s.closeTimeout))
			}
		}

		// Innermost first: page, browser, allocator.
		for i := len(s.cancels) - 1; i >= 0; i-- {
			s.cancels[i]()
		}
		s.logger.Debug("Browser session closed.")
	})
}
