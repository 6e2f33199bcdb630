// internal/browser/interfaces.go
package browser

import (
	"context"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
)

// Handle is one acquired browser session: the connection, its browsing
// context and a single page. Close must be safe to call more than once.
type Handle interface {
	ID() string
	Page() PageDriver
	Close(ctx context.Context)
}

// PageDriver is the set of page interactions the flows need.
type PageDriver interface {
	// Navigate loads url and returns once the network has been quiet.
	Navigate(ctx context.Context, url string) error
	// TextVisible reports whether an element whose normalized text equals
	// text exactly is currently rendered and visible.
	TextVisible(ctx context.Context, text string) (bool, error)
	// ClickText clicks the first visible element whose text equals text.
	ClickText(ctx context.Context, text string) error
	// Fill replaces the value of the input matched by selector.
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the element matched by selector.
	Click(ctx context.Context, selector string) error
	// ExpectResponse arms a waiter for the first response accepted by match.
	// Arm it before the action that triggers the request.
	ExpectResponse(match ResponseMatcher) ResponseWaiter
	// Requester returns the page's authenticated request channel.
	Requester() Requester
}

// ResponseMatcher decides whether an observed response is the awaited one.
type ResponseMatcher func(url string, status int) bool

// URLContainsOK matches 2xx responses whose URL contains fragment.
func URLContainsOK(fragment string) ResponseMatcher {
	return func(url string, status int) bool {
		return status >= 200 && status < 300 && strings.Contains(url, fragment)
	}
}

// ResponseWaiter resolves once the armed response and its body are available.
type ResponseWaiter interface {
	Wait(ctx context.Context) (*CapturedResponse, error)
}

// CapturedResponse is a response observed on the page's network channel
// together with the headers of the request that produced it.
type CapturedResponse struct {
	URL             string
	Status          int
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	Body            []byte
	// BodyErr is set when the body could not be retrieved from the browser.
	BodyErr error
}

// RequestHeader looks up a request header case-insensitively.
func (c *CapturedResponse) RequestHeader(name string) (string, bool) {
	for k, v := range c.RequestHeaders {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// Requester issues API calls that share the page's cookies.
type Requester interface {
	Do(ctx context.Context, req APIRequest) (*APIResponse, error)
}

// APIRequest is a JSON API call. JSON, when non-nil, is encoded as the body.
type APIRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	JSON    any
}

// APIResponse is the raw outcome of an APIRequest.
type APIResponse struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// DecodeJSON unmarshals the body into v.
func (r *APIResponse) DecodeJSON(v any) error {
	return json.Unmarshal(r.Body, v)
}
