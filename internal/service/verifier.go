// File: internal/service/verifier.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/observability"
	"github.com/xkilldash9x/merchant-enroll/internal/otp"
)

// Verifier runs the OTP verification flow end to end.
type Verifier struct {
	broker     SessionBroker
	controller *otp.Controller
	store      Store
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewVerifier wires a verifier. store and metrics may be nil.
func NewVerifier(broker SessionBroker, controller *otp.Controller, store Store, metrics *observability.Metrics, logger *zap.Logger) *Verifier {
	return &Verifier{
		broker:     broker,
		controller: controller,
		store:      store,
		metrics:    metrics,
		logger:     logger.Named("verifier"),
	}
}

// VerifyOTP validates req before touching the browser backend, then verifies
// the phone number and updates the profile. Step failures are reported on
// the outcome; an error means the flow could not run at all.
func (v *Verifier) VerifyOTP(ctx context.Context, req otp.Request) (*otp.Outcome, error) {
	start := time.Now()
	if err := validateRequest("verify otp", req); err != nil {
		v.metrics.ObserveFlow(observability.FlowVerifyOTP, outcomeInvalid, start)
		return nil, err
	}

	handle, err := v.broker.Acquire(ctx)
	if err != nil {
		v.metrics.SessionFailed()
		v.metrics.ObserveFlow(observability.FlowVerifyOTP, outcomeSessionError, start)
		v.logger.Error("Could not acquire a browser session.", zap.Error(err))
		return nil, err
	}
	v.metrics.SessionOpened()
	defer handle.Close(ctx)

	log := v.logger.With(zap.String("session_id", handle.ID()))
	out := v.controller.Run(ctx, handle.Page().Requester(), req)

	if !out.Success {
		log.Warn("OTP verification did not complete.")
		v.metrics.ObserveFlow(observability.FlowVerifyOTP, outcomeFailure, start)
		return out, nil
	}

	if v.store != nil {
		doc := map[string]any{"verified": true, "previousPhoneNumber": req.PhoneNumber}
		if _, err := v.store.SavePhone(ctx, req.Email, req.NewPhoneNumber, doc); err != nil {
			v.metrics.PersistenceFailed("save_phone")
			log.Error("Failed to save verified phone number.", zap.Error(err))
		}
	}
	log.Info("OTP verification completed.")
	v.metrics.ObserveFlow(observability.FlowVerifyOTP, outcomeSuccess, start)
	return out, nil
}
