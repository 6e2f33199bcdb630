// internal/browser/broker.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/config"
	"github.com/xkilldash9x/merchant-enroll/internal/errs"
)

// Broker hands out one fresh browser session per call.
type Broker struct {
	cfg    config.BrowserConfig
	logger *zap.Logger
}

// NewBroker creates a broker for the configured backend.
func NewBroker(cfg config.BrowserConfig, logger *zap.Logger) *Broker {
	return &Broker{cfg: cfg, logger: logger.Named("broker")}
}

// Acquire connects to the backend, picks a browsing context and opens a page
// in it. The returned handle must be closed by the caller; on error there is
// nothing to close.
func (b *Broker) Acquire(ctx context.Context) (Handle, error) {
	id := uuid.NewString()
	log := b.logger.With(zap.String("session_id", id))

	// The session must survive the caller's deadline long enough to be torn
	// down, so the browser hangs off a detached parent.
	allocCtx, allocCancel, err := b.allocator(Detach(ctx), log)
	if err != nil {
		return nil, err
	}

	sugar := log.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)
	s := newSession(id, log, b.cfg.CloseTimeout, func() error { return chromedp.Cancel(browserCtx) })
	s.addCancel(allocCancel)
	s.addCancel(browserCancel)

	if err := b.connect(ctx, browserCtx); err != nil {
		s.Close(ctx)
		return nil, err
	}

	pageCtx, pageCancel := chromedp.NewContext(browserCtx, b.contextOption(browserCtx, log))
	s.addCancel(pageCancel)

	requester, err := NewRequestChannel(b.cfg.RequestTimeout, nil, log)
	if err != nil {
		s.Close(ctx)
		return nil, errs.New(errs.KindInternal, "create request channel", err)
	}
	page := newPage(pageCtx, log, PageOptions{
		ActionTimeout:     b.cfg.ActionTimeout,
		NavigationTimeout: b.cfg.NavigationTimeout,
		IdleQuietPeriod:   b.cfg.IdleQuietPeriod,
	}, requester)
	requester.cookies = page.cookies

	if err := page.start(); err != nil {
		s.Close(ctx)
		return nil, errs.New(errs.KindConnection, "open page", err)
	}
	var ua string
	if err := page.run(ctx, b.cfg.ActionTimeout, chromedp.Evaluate(`navigator.userAgent`, &ua)); err == nil {
		requester.userAgent = ua
	}

	s.page = page
	log.Info("Browser session ready.", zap.String("mode", b.cfg.Mode))
	return s, nil
}

// allocator picks the acquisition strategy. Remote mode fails fast, before
// any network activity, when credentials are missing.
func (b *Broker) allocator(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc, error) {
	switch b.cfg.Mode {
	case config.BrowserModeRemote:
		if b.cfg.Endpoint == "" {
			return nil, nil, errs.Newf(errs.KindConfiguration, "acquire session", "browser.endpoint is required in remote mode")
		}
		if b.cfg.Token == "" {
			return nil, nil, errs.Newf(errs.KindConfiguration, "acquire session", "browser token is required in remote mode (set BROWSERLESS_TOKEN)")
		}
		wsURL := RemoteURL(b.cfg.Endpoint, b.cfg.Token)
		log.Info("Connecting to remote browser.", zap.String("endpoint", RedactURL(wsURL)))
		ctx, cancel := chromedp.NewRemoteAllocator(parent, wsURL, chromedp.NoModifyURL)
		return ctx, cancel, nil
	case config.BrowserModeLocal:
		log.Info("Launching local browser.", zap.Bool("headless", b.cfg.Headless))
		ctx, cancel := chromedp.NewExecAllocator(parent, execOptions(b.cfg)...)
		return ctx, cancel, nil
	}
	return nil, nil, errs.Newf(errs.KindConfiguration, "acquire session", "unknown browser mode %q", b.cfg.Mode)
}

// connect performs the first Run on browserCtx, which launches or dials the
// browser. It is not bounded by ctx directly because chromedp ties the
// browser's lifetime to the first Run's context; ctx only stops the wait.
func (b *Broker) connect(ctx context.Context, browserCtx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx) }()

	select {
	case err := <-done:
		if err != nil {
			return errs.New(errs.KindConnection, "connect to browser", err)
		}
	case <-ctx.Done():
		return errs.New(errs.KindConnection, "connect to browser", ctx.Err())
	}

	if c := chromedp.FromContext(browserCtx); c == nil || c.Browser == nil {
		return errs.Newf(errs.KindConnection, "connect to browser", "browser handle is not connected")
	}
	return nil
}

// contextOption reuses the first browser context already present on the
// browser, or asks for a fresh one.
func (b *Broker) contextOption(browserCtx context.Context, log *zap.Logger) chromedp.ContextOption {
	c := chromedp.FromContext(browserCtx)
	ids, err := target.GetBrowserContexts().Do(cdp.WithExecutor(browserCtx, c.Browser))
	if err != nil {
		log.Debug("Could not list browser contexts; creating a new one.", zap.Error(err))
		return chromedp.WithNewBrowserContext()
	}
	if len(ids) > 0 {
		log.Debug("Reusing existing browser context.", zap.String("browser_context_id", string(ids[0])))
		return chromedp.WithExistingBrowserContext(ids[0])
	}
	return chromedp.WithNewBrowserContext()
}

// execOptions builds the local launch flags.
func execOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// String describes the broker without exposing credentials.
func (b *Broker) String() string {
	if b.cfg.Mode == config.BrowserModeRemote {
		return fmt.Sprintf("remote(%s)", RedactURL(RemoteURL(b.cfg.Endpoint, b.cfg.Token)))
	}
	return fmt.Sprintf("local(headless=%t)", b.cfg.Headless)
}
