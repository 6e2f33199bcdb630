// internal/enroll/controller.go
package enroll

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/browser"
	"github.com/xkilldash9x/merchant-enroll/internal/config"
	"github.com/xkilldash9x/merchant-enroll/internal/errs"
	"github.com/xkilldash9x/merchant-enroll/internal/observability"
	"github.com/xkilldash9x/merchant-enroll/internal/portal"
)

type state int

const (
	stateNotStarted state = iota
	stateOnLoginPage
	stateOnRegisterPage
	stateFormFilled
	stateSubmitted
	stateAwaitingProfile
	stateCredentialExtracted
	stateVerificationTriggered
	stateDone
)

func (s state) String() string {
	switch s {
	case stateNotStarted:
		return "not_started"
	case stateOnLoginPage:
		return "on_login_page"
	case stateOnRegisterPage:
		return "on_register_page"
	case stateFormFilled:
		return "form_filled"
	case stateSubmitted:
		return "submitted"
	case stateAwaitingProfile:
		return "awaiting_profile_response"
	case stateCredentialExtracted:
		return "credential_extracted"
	case stateVerificationTriggered:
		return "verification_triggered"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// affordance is one way of reaching the sign-up form.
type affordance struct {
	label   string
	visible func(ctx context.Context, page browser.PageDriver) bool
	open    func(ctx context.Context, page browser.PageDriver) error
}

func textAffordance(label string) affordance {
	return affordance{
		label: label,
		visible: func(ctx context.Context, page browser.PageDriver) bool {
			ok, err := page.TextVisible(ctx, label)
			return err == nil && ok
		},
		open: func(ctx context.Context, page browser.PageDriver) error {
			return page.ClickText(ctx, label)
		},
	}
}

// Controller drives the sign-up form of the merchant portal.
type Controller struct {
	cfg         config.PortalConfig
	affordances []affordance
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// NewController builds a controller for the portal described by cfg. metrics
// may be nil.
func NewController(cfg config.PortalConfig, logger *zap.Logger, metrics *observability.Metrics) *Controller {
	affordances := make([]affordance, 0, len(cfg.SignUpLabels))
	for _, label := range cfg.SignUpLabels {
		affordances = append(affordances, textAffordance(label))
	}
	return &Controller{
		cfg:         cfg,
		affordances: affordances,
		logger:      logger.Named("enroll"),
		metrics:     metrics,
	}
}

// run tracks the progress of one registration.
type run struct {
	c     *Controller
	page  browser.PageDriver
	id    Identity
	state state
	log   *zap.Logger
}

func (r *run) advance(s state) {
	r.state = s
	r.log.Debug("Registration advanced.", zap.Stringer("state", s))
}

// Run signs up id on page. It never returns an error or panics: failures are
// reported on the result, along with whatever was recovered before them.
func (c *Controller) Run(ctx context.Context, page browser.PageDriver, id Identity) (res *Result) {
	res = &Result{EmailUsed: id.Email, PhoneNumberUsed: id.PhoneNumber}
	r := &run{c: c, page: page, id: id, log: c.logger.With(zap.String("email", id.Email))}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Registration panicked.", zap.Any("panic", p), zap.Stringer("state", r.state))
			res.fail(errs.Newf(errs.KindInternal, "register", "unexpected failure: %v", p))
		}
	}()

	if err := r.execute(ctx, res); err != nil {
		r.log.Warn("Registration failed.", zap.Error(err), zap.Stringer("state", r.state))
		return res.fail(err)
	}
	res.Success = true
	r.advance(stateDone)
	r.log.Info("Registration completed.",
		zap.Bool("auth_header_found", res.AuthHeader != nil),
		zap.Bool("token_found", res.DetectedToken != nil),
		zap.Bool("verification_sent", res.VerificationSent()),
	)
	return res
}

func (r *run) execute(ctx context.Context, res *Result) error {
	cfg := r.c.cfg

	if err := r.page.Navigate(ctx, cfg.LoginURL); err != nil {
		return errs.New(errs.KindNavigation, "open login page", err)
	}
	r.advance(stateOnLoginPage)

	if err := r.openSignUp(ctx); err != nil {
		return err
	}
	r.advance(stateOnRegisterPage)

	fields := []struct{ name, selector, value string }{
		{"first name", cfg.Fields.FirstName, r.id.FirstName},
		{"last name", cfg.Fields.LastName, r.id.LastName},
		{"email", cfg.Fields.Email, r.id.Email},
		{"password", cfg.Fields.Password, r.id.Password},
		{"confirm password", cfg.Fields.ConfirmPassword, r.id.Password},
	}
	for _, f := range fields {
		if err := r.page.Fill(ctx, f.selector, f.value); err != nil {
			return errs.New(errs.KindNavigation, "fill "+f.name, err)
		}
	}
	r.advance(stateFormFilled)

	// Armed before the click so the profile fetch cannot be missed.
	waiter := r.page.ExpectResponse(browser.URLContainsOK(cfg.ProfileResponseMatch))
	if err := r.page.Click(ctx, cfg.Fields.Submit); err != nil {
		return errs.New(errs.KindNavigation, "submit registration", err)
	}
	r.advance(stateSubmitted)

	r.advance(stateAwaitingProfile)
	waitCtx, cancel := context.WithTimeout(ctx, cfg.ResponseTimeout)
	profile, err := waiter.Wait(waitCtx)
	cancel()
	if err != nil {
		return errs.New(errs.KindResponseTimeout, "await profile response",
			fmt.Errorf("no successful response matching %q within %s: %w", cfg.ProfileResponseMatch, cfg.ResponseTimeout, err))
	}

	r.extract(profile, res)
	r.advance(stateCredentialExtracted)

	if credential, ok := res.Credential(); ok && cfg.SendVerificationCode {
		res.VerificationResponse = r.sendVerificationCode(ctx, credential)
		r.advance(stateVerificationTriggered)
	}
	return nil
}

// openSignUp clicks the first visible sign-up affordance, in order.
func (r *run) openSignUp(ctx context.Context) error {
	for _, a := range r.c.affordances {
		if !a.visible(ctx, r.page) {
			continue
		}
		r.log.Debug("Found sign-up affordance.", zap.String("label", a.label))
		if err := a.open(ctx, r.page); err != nil {
			return errs.New(errs.KindNavigation, "open sign-up form", err)
		}
		return nil
	}
	return errs.Newf(errs.KindNavigation, "open sign-up form",
		"could not automatically find a Sign Up / Register link; tried %q", r.c.cfg.SignUpLabels)
}

func (r *run) extract(profile *browser.CapturedResponse, res *Result) {
	res.RequestHeaders = profile.RequestHeaders
	if auth, ok := profile.RequestHeader("authorization"); ok && auth != "" {
		res.AuthHeader = &auth
	}

	if profile.BodyErr != nil {
		r.log.Debug("Profile response body unavailable.", zap.Error(profile.BodyErr))
		return
	}
	res.ResponseJSON = parseProfileBody(profile.Body)
	res.DetectedToken = findToken(res.ResponseJSON, r.c.cfg.TokenAliases)

	switch {
	case res.DetectedToken != nil:
		res.TokenExpiresAt = tokenExpiry(*res.DetectedToken)
	case res.AuthHeader != nil:
		res.TokenExpiresAt = tokenExpiry(*res.AuthHeader)
	}
}

func (r *run) sendVerificationCode(ctx context.Context, credential string) map[string]any {
	step, err := portal.Do(ctx, r.page.Requester(), portal.Call{
		Name:          "send_verification_code",
		Action:        "send verification code",
		OKMessage:     "Verification code sent",
		Method:        http.MethodPost,
		URL:           r.c.cfg.VerificationCodeURL,
		Authorization: credential,
		Body:          map[string]string{"phoneNumber": r.id.PhoneNumber},
	}, r.log)
	if err != nil || step.Failed() {
		r.c.metrics.RemoteCallFailed("send_verification_code")
	}
	return step
}
