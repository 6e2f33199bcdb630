package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", &Error{Kind: KindConnection}, "ConnectionError"},
		{"kind and op", &Error{Kind: KindConnection, Op: "connect"}, "ConnectionError: connect"},
		{"kind and err", &Error{Kind: KindNavigation, Err: errors.New("no link")}, "NavigationError: no link"},
		{"full", New(KindResponseTimeout, "await profile response", context.DeadlineExceeded), "ResponseTimeoutError: await profile response: context deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorsIsAndAs(t *testing.T) {
	base := New(KindResponseTimeout, "await", context.DeadlineExceeded)
	wrapped := fmt.Errorf("register: %w", base)

	assert.True(t, errors.Is(wrapped, ErrResponseTimeout))
	assert.False(t, errors.Is(wrapped, ErrNavigation))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded), "the cause stays reachable")

	var e *Error
	assert.True(t, errors.As(wrapped, &e))
	assert.Equal(t, "await", e.Op)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConfiguration, KindOf(Newf(KindConfiguration, "acquire", "token missing")))
	assert.Equal(t, KindValidation, KindOf(fmt.Errorf("ctx: %w", ErrValidation)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}
