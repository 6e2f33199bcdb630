// internal/otp/otp.go
package otp

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/browser"
	"github.com/xkilldash9x/merchant-enroll/internal/config"
	"github.com/xkilldash9x/merchant-enroll/internal/observability"
	"github.com/xkilldash9x/merchant-enroll/internal/portal"
)

// Request carries everything the caller kept from registration. No server
// side state links the two flows.
type Request struct {
	OTPCode        string `json:"otpCode" validate:"required"`
	PhoneNumber    string `json:"phoneNumber" validate:"required"`
	NewPhoneNumber string `json:"newPhoneNumber" validate:"required"`
	AuthToken      string `json:"authToken" validate:"required"`
	// Email optionally links the stored phone record to an account.
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// Outcome reports both steps. UpdateProfileResponse is nil when the update
// was skipped.
type Outcome struct {
	Success               bool              `json:"success"`
	OTPCode               string            `json:"otpCode"`
	PhoneNumber           string            `json:"phoneNumber"`
	NewPhoneNumber        string            `json:"newPhoneNumber"`
	VerifyPhoneResponse   portal.StepResult `json:"verifyPhoneResponse"`
	UpdateProfileResponse portal.StepResult `json:"updateProfileResponse"`
}

// StatusCode maps the outcome to its HTTP status.
func (o *Outcome) StatusCode() int {
	if o.Success {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// Controller confirms a phone number with its one-time code and then moves
// the profile to the new number.
type Controller struct {
	cfg     config.PortalConfig
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewController creates an OTP controller. metrics may be nil.
func NewController(cfg config.PortalConfig, logger *zap.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{cfg: cfg, logger: logger.Named("otp"), metrics: metrics}
}

// Run performs verification then, only if it did not fail, the profile
// update. Step failures are reported in the outcome, not as errors.
func (c *Controller) Run(ctx context.Context, requester browser.Requester, req Request) *Outcome {
	out := &Outcome{
		OTPCode:        req.OTPCode,
		PhoneNumber:    req.PhoneNumber,
		NewPhoneNumber: req.NewPhoneNumber,
	}
	auth := "Bearer " + req.AuthToken

	c.logger.Info("Verifying phone number.", zap.String("phone_number", req.PhoneNumber))
	out.VerifyPhoneResponse = c.step(ctx, requester, portal.Call{
		Name:          "verify_phone",
		Action:        "verify phone number",
		OKMessage:     "Phone number verified",
		Method:        http.MethodPost,
		URL:           c.cfg.VerifyPhoneURL,
		Authorization: auth,
		Body:          map[string]string{"code": req.OTPCode, "phoneNumber": req.PhoneNumber},
	})

	if !c.proceed(out.VerifyPhoneResponse) {
		c.logger.Warn("Skipping profile update because phone verification failed.")
		return out
	}

	c.logger.Info("Updating profile phone number.", zap.String("new_phone_number", req.NewPhoneNumber))
	out.UpdateProfileResponse = c.step(ctx, requester, portal.Call{
		Name:          "update_profile",
		Action:        "update user profile",
		OKMessage:     "User profile updated",
		Method:        http.MethodPut,
		URL:           c.cfg.UpdateProfileURL,
		Authorization: auth,
		Body:          map[string]string{"mobileNumber": req.NewPhoneNumber},
	})

	out.Success = !out.UpdateProfileResponse.Failed()
	return out
}

// proceed decides whether the profile update may run after verify.
func (c *Controller) proceed(verify portal.StepResult) bool {
	if verify.Failed() {
		return false
	}
	if verify.HasSuccessIndicator() {
		return true
	}
	if c.cfg.RequireSuccessIndicator {
		return false
	}
	c.logger.Warn("Verify response carries neither an error nor a success indicator; continuing.")
	return true
}

func (c *Controller) step(ctx context.Context, r browser.Requester, call portal.Call) portal.StepResult {
	res, err := portal.Do(ctx, r, call, c.logger)
	if err != nil || res.Failed() {
		c.metrics.RemoteCallFailed(call.Name)
	}
	return res
}
