// internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// visibleTextScript resolves an XPath snapshot and finds the first matched
// node rendered with a non-empty box. When mark is non-empty that node is
// tagged with clickMarkAttr so a later click targets exactly that node.
const visibleTextScript = `(function(xpath, mark) {
	const snap = document.evaluate(xpath, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < snap.snapshotLength; i++) {
		const el = snap.snapshotItem(i);
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		if (style.visibility !== 'hidden' && style.display !== 'none' && rect.width > 0 && rect.height > 0) {
			if (mark) {
				el.setAttribute(%s, mark);
			}
			return true;
		}
	}
	return false;
})(%s, %s)`

const clickMarkAttr = "data-enroll-click"

// PageOptions bounds the individual page interactions.
type PageOptions struct {
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	IdleQuietPeriod   time.Duration
}

// Page drives a single chromedp target.
type Page struct {
	ctx       context.Context
	logger    *zap.Logger
	opts      PageOptions
	monitor   *monitor
	requester *RequestChannel
}

var _ PageDriver = (*Page)(nil)

func newPage(ctx context.Context, logger *zap.Logger, opts PageOptions, requester *RequestChannel) *Page {
	p := &Page{
		ctx:       ctx,
		logger:    logger.Named("page"),
		opts:      opts,
		requester: requester,
	}
	p.monitor = newMonitor(p.logger, p.fetchBody)
	return p
}

// start enables the network domain and begins following its events.
func (p *Page) start() error {
	chromedp.ListenTarget(p.ctx, p.monitor.handleEvent)
	return chromedp.Run(p.ctx, network.Enable())
}

// run executes actions on the page bounded by both ctx and timeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))
	if err := p.run(ctx, p.opts.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	idleCtx, cancel := context.WithTimeout(ctx, p.opts.NavigationTimeout)
	defer cancel()
	if err := p.monitor.waitIdle(idleCtx, p.opts.IdleQuietPeriod); err != nil {
		return fmt.Errorf("network did not settle after navigating to %s: %w", url, err)
	}
	return nil
}

func (p *Page) TextVisible(ctx context.Context, text string) (bool, error) {
	visible, err := p.firstVisibleText(ctx, text, "")
	if err != nil {
		return false, fmt.Errorf("failed to probe for %q: %w", text, err)
	}
	return visible, nil
}

// ClickText clicks the first visible element whose text is text, the same
// element TextVisible reports on. Hidden duplicates are ignored.
func (p *Page) ClickText(ctx context.Context, text string) error {
	mark := uuid.NewString()
	visible, err := p.firstVisibleText(ctx, text, mark)
	if err != nil {
		return fmt.Errorf("failed to click %q: %w", text, err)
	}
	if !visible {
		return fmt.Errorf("failed to click %q: no visible element", text)
	}
	sel := fmt.Sprintf(`[%s=%s]`, clickMarkAttr, jsString(mark))
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %q: %w", text, err)
	}
	return nil
}

func (p *Page) firstVisibleText(ctx context.Context, text, mark string) (bool, error) {
	var visible bool
	script := visibleTextTarget(text, mark)
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Evaluate(script, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

func visibleTextTarget(text, mark string) string {
	return fmt.Sprintf(visibleTextScript, jsString(clickMarkAttr), jsString(exactTextXPath(text)), jsString(mark))
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx, p.opts.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx, p.opts.ActionTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

func (p *Page) ExpectResponse(match ResponseMatcher) ResponseWaiter {
	return p.monitor.arm(match)
}

func (p *Page) Requester() Requester {
	return p.requester
}

// fetchBody reads a response body off the page. It is called from monitor
// goroutines, never from the event loop, and must outlive request contexts.
func (p *Page) fetchBody(ctx context.Context, id network.RequestID) ([]byte, error) {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	var body []byte
	err := chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(c)
		return err
	}))
	return body, err
}

// cookies returns the browser cookies that apply to url.
func (p *Page) cookies(ctx context.Context, url string) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithURLs([]string{url}).Do(c)
		return err
	}))
	return cookies, err
}

// exactTextXPath matches elements whose own normalized text is exactly text.
func exactTextXPath(text string) string {
	return fmt.Sprintf("//*[normalize-space(text())=%s]", xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if part != "" {
			quoted = append(quoted, `"`+part+`"`)
		}
	}
	if len(quoted) == 1 {
		// concat() takes at least two arguments.
		quoted = append(quoted, `""`)
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
