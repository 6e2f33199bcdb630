package service

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/browser"
	"github.com/xkilldash9x/merchant-enroll/internal/config"
	"github.com/xkilldash9x/merchant-enroll/internal/enroll"
	"github.com/xkilldash9x/merchant-enroll/internal/errs"
	"github.com/xkilldash9x/merchant-enroll/internal/mocks"
	"github.com/xkilldash9x/merchant-enroll/internal/observability"
)

type registrarFixture struct {
	cfg       *config.Config
	broker    *mocks.MockBroker
	handle    *mocks.MockHandle
	page      *mocks.MockPage
	waiter    *mocks.MockWaiter
	requester *mocks.MockRequester
	store     *mocks.MockStore
	metrics   *observability.Metrics
}

func newRegistrarFixture() *registrarFixture {
	return &registrarFixture{
		cfg:       config.NewDefaultConfig(),
		broker:    new(mocks.MockBroker),
		handle:    new(mocks.MockHandle),
		page:      new(mocks.MockPage),
		waiter:    new(mocks.MockWaiter),
		requester: new(mocks.MockRequester),
		store:     new(mocks.MockStore),
		metrics:   observability.NewMetrics(prometheus.NewRegistry()),
	}
}

func (f *registrarFixture) registrar(withStore bool) *Registrar {
	var st Store
	if withStore {
		st = f.store
	}
	logger := zap.NewNop()
	r := NewRegistrar(f.broker, enroll.NewController(f.cfg.Portal, logger, f.metrics), st, f.cfg.Generator, f.metrics, logger)
	r.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return r
}

func (f *registrarFixture) sessionOK() {
	f.broker.On("Acquire", mock.Anything).Return(f.handle, nil).Once()
	f.handle.On("ID").Return("session-1")
	f.handle.On("Page").Return(f.page)
	f.handle.On("Close", mock.Anything).Return().Once()
}

// portalSignsUp scripts a page on which the sign-up succeeds and the
// verification code is sent.
func (f *registrarFixture) portalSignsUp() {
	f.page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	f.page.On("TextVisible", mock.Anything, "Sign Up").Return(true, nil)
	f.page.On("ClickText", mock.Anything, "Sign Up").Return(nil)
	f.page.On("Fill", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.page.On("ExpectResponse", mock.Anything).Return(f.waiter)
	f.page.On("Click", mock.Anything, mock.Anything).Return(nil)
	f.page.On("Requester").Return(f.requester)
	f.waiter.On("Wait", mock.Anything).Return(&browser.CapturedResponse{
		Status:         http.StatusOK,
		RequestHeaders: map[string]string{"authorization": "Bearer abc"},
		Body:           []byte(`{"token":"abc"}`),
	}, nil)
	f.requester.On("Do", mock.Anything, mock.Anything).Return(&browser.APIResponse{Status: http.StatusOK, Body: []byte(`{}`)}, nil)
}

func TestRegisterSuccess(t *testing.T) {
	f := newRegistrarFixture()
	f.sessionOK()
	f.portalSignsUp()
	f.store.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
	f.store.On("PhoneExists", mock.Anything, mock.Anything).Return(false, nil)
	f.store.On("SaveEmail", mock.Anything, "john.doe+1700000000000@example.com", mock.Anything).Return("id-1", nil).Once()
	f.store.On("SavePhone", mock.Anything, "john.doe+1700000000000@example.com", mock.Anything, map[string]any{"verified": false}).Return("id-2", nil).Once()

	res, err := f.registrar(true).Register(context.Background(), RegistrationRequest{})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "john.doe+1700000000000@example.com", res.EmailUsed)
	assert.Regexp(t, regexp.MustCompile(`^401[0-5]{6}$`), res.PhoneNumberUsed)
	f.handle.AssertNumberOfCalls(t, "Close", 1)
	f.store.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FlowsTotal.WithLabelValues(observability.FlowRegister, outcomeSuccess)))

	// The generated password fills both password fields.
	var password string
	for _, c := range f.page.Calls {
		if c.Method == "Fill" && c.Arguments.String(1) == f.cfg.Portal.Fields.Password {
			password = c.Arguments.String(2)
		}
	}
	assert.Len(t, password, f.cfg.Generator.PasswordLength)
	f.page.AssertCalled(t, "Fill", mock.Anything, f.cfg.Portal.Fields.ConfirmPassword, password)
}

func TestRegisterSessionFailure(t *testing.T) {
	f := newRegistrarFixture()
	acquireErr := errs.Newf(errs.KindConnection, "connect to browser", "dial tcp: connection refused")
	f.broker.On("Acquire", mock.Anything).Return(nil, acquireErr).Once()

	res, err := f.registrar(true).Register(context.Background(), RegistrationRequest{
		Email:       "given@example.com",
		PhoneNumber: "0400000000",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrConnection)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, errs.KindConnection, res.ErrorKind)
	assert.Equal(t, "given@example.com", res.EmailUsed)
	f.handle.AssertNotCalled(t, "Close", mock.Anything)
	f.store.AssertNotCalled(t, "SaveEmail", mock.Anything, mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionFailures))
}

func TestRegisterFlowFailureClosesOnce(t *testing.T) {
	f := newRegistrarFixture()
	f.sessionOK()
	f.page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	f.page.On("TextVisible", mock.Anything, mock.Anything).Return(false, nil)

	res, err := f.registrar(false).Register(context.Background(), RegistrationRequest{})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNavigation)
	assert.False(t, res.Success)
	f.handle.AssertNumberOfCalls(t, "Close", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FlowsTotal.WithLabelValues(observability.FlowRegister, outcomeFailure)))
}

func TestRegisterPersistenceFailureDoesNotFail(t *testing.T) {
	f := newRegistrarFixture()
	f.sessionOK()
	f.portalSignsUp()
	f.store.On("SaveEmail", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("db down"))
	f.store.On("SavePhone", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("db down"))

	res, err := f.registrar(true).Register(context.Background(), RegistrationRequest{
		Email:       "given@example.com",
		PhoneNumber: "0400000000",
	})

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PersistenceErrors.WithLabelValues("save_email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PersistenceErrors.WithLabelValues("save_phone")))
}

func TestResolveDefaults(t *testing.T) {
	t.Run("caller values are used as given", func(t *testing.T) {
		f := newRegistrarFixture()
		id, err := f.registrar(true).resolve(context.Background(), RegistrationRequest{
			FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "pw", PhoneNumber: "0411111111",
		})
		require.NoError(t, err)
		assert.Equal(t, enroll.Identity{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "pw", PhoneNumber: "0411111111"}, id)
		f.store.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
		f.store.AssertNotCalled(t, "PhoneExists", mock.Anything, mock.Anything)
	})

	t.Run("used generated values are regenerated", func(t *testing.T) {
		f := newRegistrarFixture()
		f.store.On("EmailExists", mock.Anything, "john.doe+1700000000000@example.com").Return(true, nil).Once()
		f.store.On("EmailExists", mock.Anything, "john.doe+1700000000001@example.com").Return(false, nil).Once()
		f.store.On("PhoneExists", mock.Anything, mock.Anything).Return(true, nil).Once()
		f.store.On("PhoneExists", mock.Anything, mock.Anything).Return(false, nil).Once()

		id, err := f.registrar(true).resolve(context.Background(), RegistrationRequest{})
		require.NoError(t, err)
		assert.Equal(t, "John", id.FirstName)
		assert.Equal(t, "Doe", id.LastName)
		assert.Equal(t, "john.doe+1700000000001@example.com", id.Email)
		f.store.AssertNumberOfCalls(t, "PhoneExists", 2)
	})

	t.Run("attempts are bounded", func(t *testing.T) {
		f := newRegistrarFixture()
		f.cfg.Generator.UniqueAttempts = 3
		f.store.On("EmailExists", mock.Anything, mock.Anything).Return(true, nil)
		f.store.On("PhoneExists", mock.Anything, mock.Anything).Return(false, nil)

		id, err := f.registrar(true).resolve(context.Background(), RegistrationRequest{})
		require.NoError(t, err)
		assert.Equal(t, "john.doe+1700000000002@example.com", id.Email)
		f.store.AssertNumberOfCalls(t, "EmailExists", 3)
	})

	t.Run("store errors keep the generated value", func(t *testing.T) {
		f := newRegistrarFixture()
		f.store.On("EmailExists", mock.Anything, mock.Anything).Return(false, errors.New("timeout"))
		f.store.On("PhoneExists", mock.Anything, mock.Anything).Return(false, errors.New("timeout"))

		id, err := f.registrar(true).resolve(context.Background(), RegistrationRequest{})
		require.NoError(t, err)
		assert.Equal(t, "john.doe+1700000000000@example.com", id.Email)
		f.store.AssertNumberOfCalls(t, "EmailExists", 1)
	})

	t.Run("no store", func(t *testing.T) {
		f := newRegistrarFixture()
		id, err := f.registrar(false).resolve(context.Background(), RegistrationRequest{})
		require.NoError(t, err)
		assert.NotEmpty(t, id.PhoneNumber)
		assert.Len(t, id.Password, 16)
	})
}
