// internal/browser/requester.go
package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	enrollnet "github.com/xkilldash9x/merchant-enroll/internal/browser/network"
)

const maxResponseBody = 8 << 20

// CookieSource returns the browser cookies that apply to a URL.
type CookieSource func(ctx context.Context, rawURL string) ([]*network.Cookie, error)

// RequestChannel sends API calls on behalf of a page. Each call first copies
// the page's cookies for the target URL into its jar, so requests carry the
// same session state the page has.
type RequestChannel struct {
	client    *http.Client
	jar       http.CookieJar
	cookies   CookieSource
	userAgent string
	logger    *zap.Logger
}

// NewRequestChannel builds a channel with its own cookie jar. cookies may be
// nil, in which case only cookies set by previous responses are sent.
func NewRequestChannel(timeout time.Duration, cookies CookieSource, logger *zap.Logger) (*RequestChannel, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &RequestChannel{
		client: &http.Client{
			Transport: enrollnet.NewDecodingTransport(transport),
			Jar:       jar,
			Timeout:   timeout,
		},
		jar:     jar,
		cookies: cookies,
		logger:  logger.Named("requester"),
	}, nil
}

// Do sends req and reads the full response body.
func (c *RequestChannel) Do(ctx context.Context, req APIRequest) (*APIResponse, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL: %w", err)
	}
	c.syncCookies(ctx, target)

	var body io.Reader
	if req.JSON != nil {
		payload, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json, text/plain, */*")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.logger.Debug("API call completed.",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("status", resp.StatusCode),
	)
	return &APIResponse{Status: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// syncCookies copies the browser's cookies for target into the jar. Failure is
// not fatal: the call proceeds with whatever the jar already holds.
func (c *RequestChannel) syncCookies(ctx context.Context, target *url.URL) {
	if c.cookies == nil {
		return
	}
	browserCookies, err := c.cookies(ctx, target.String())
	if err != nil {
		c.logger.Debug("Could not read browser cookies.", zap.Error(err))
		return
	}
	if len(browserCookies) == 0 {
		return
	}
	jarCookies := make([]*http.Cookie, 0, len(browserCookies))
	for _, bc := range browserCookies {
		jarCookies = append(jarCookies, toHTTPCookie(bc))
	}
	c.jar.SetCookies(target, jarCookies)
}

func toHTTPCookie(bc *network.Cookie) *http.Cookie {
	hc := &http.Cookie{
		Name:     bc.Name,
		Value:    bc.Value,
		Path:     bc.Path,
		Secure:   bc.Secure,
		HttpOnly: bc.HTTPOnly,
	}
	// Host-only cookies carry no leading dot and must not set Domain.
	if len(bc.Domain) > 0 && bc.Domain[0] == '.' {
		hc.Domain = bc.Domain
	}
	if bc.Expires > 0 {
		hc.Expires = time.Unix(int64(bc.Expires), 0)
	}
	return hc
}
