// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/merchant-enroll/internal/browser"
)

// -- Browser Mocks --

// MockBroker mocks the session acquisition used by the service layer.
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Acquire(ctx context.Context) (browser.Handle, error) {
	args := m.Called(ctx)
	if h := args.Get(0); h != nil {
		return h.(browser.Handle), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockHandle mocks browser.Handle.
type MockHandle struct {
	mock.Mock
}

func (m *MockHandle) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockHandle) Page() browser.PageDriver {
	args := m.Called()
	if p := args.Get(0); p != nil {
		return p.(browser.PageDriver)
	}
	return nil
}

func (m *MockHandle) Close(ctx context.Context) {
	m.Called(ctx)
}

// MockPage mocks browser.PageDriver.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockPage) TextVisible(ctx context.Context, text string) (bool, error) {
	args := m.Called(ctx, text)
	return args.Bool(0), args.Error(1)
}

func (m *MockPage) ClickText(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockPage) Fill(ctx context.Context, selector, value string) error {
	args := m.Called(ctx, selector, value)
	return args.Error(0)
}

func (m *MockPage) Click(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

func (m *MockPage) ExpectResponse(match browser.ResponseMatcher) browser.ResponseWaiter {
	args := m.Called(match)
	return args.Get(0).(browser.ResponseWaiter)
}

func (m *MockPage) Requester() browser.Requester {
	args := m.Called()
	return args.Get(0).(browser.Requester)
}

// MockWaiter mocks browser.ResponseWaiter.
type MockWaiter struct {
	mock.Mock
}

func (m *MockWaiter) Wait(ctx context.Context) (*browser.CapturedResponse, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*browser.CapturedResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRequester mocks browser.Requester.
type MockRequester struct {
	mock.Mock
}

func (m *MockRequester) Do(ctx context.Context, req browser.APIRequest) (*browser.APIResponse, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*browser.APIResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

// -- Store Mock --

// MockStore mocks the persistence collaborator.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SaveEmail(ctx context.Context, email string, data map[string]any) (string, error) {
	args := m.Called(ctx, email, data)
	return args.String(0), args.Error(1)
}

func (m *MockStore) PhoneExists(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) SavePhone(ctx context.Context, email, phone string, data map[string]any) (string, error) {
	args := m.Called(ctx, email, phone, data)
	return args.String(0), args.Error(1)
}
