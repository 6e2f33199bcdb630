// File: internal/service/service.go
package service

import (
	"context"

	"github.com/xkilldash9x/merchant-enroll/internal/browser"
)

// SessionBroker hands out one browser session per flow.
type SessionBroker interface {
	Acquire(ctx context.Context) (browser.Handle, error)
}

// Store is the persistence collaborator. Failures never change a flow's
// outcome; they are only logged.
type Store interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	SaveEmail(ctx context.Context, email string, data map[string]any) (string, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	SavePhone(ctx context.Context, email, phone string, data map[string]any) (string, error)
}

// Outcome labels for flow metrics.
const (
	outcomeSuccess      = "success"
	outcomeFailure      = "failure"
	outcomeSessionError = "session_error"
	outcomeInvalid      = "invalid"
)
