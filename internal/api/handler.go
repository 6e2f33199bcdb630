// internal/api/handler.go
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/enroll"
	"github.com/xkilldash9x/merchant-enroll/internal/errs"
	"github.com/xkilldash9x/merchant-enroll/internal/otp"
	"github.com/xkilldash9x/merchant-enroll/internal/service"
)

// Registrar runs registrations.
type Registrar interface {
	Register(ctx context.Context, req service.RegistrationRequest) (*enroll.Result, error)
}

// Verifier runs OTP verifications.
type Verifier interface {
	VerifyOTP(ctx context.Context, req otp.Request) (*otp.Outcome, error)
}

// Handler serves the enrollment endpoints.
type Handler struct {
	registrar Registrar
	verifier  Verifier
	logger    *zap.Logger
}

// NewHandler creates the enrollment handler.
func NewHandler(registrar Registrar, verifier Verifier, logger *zap.Logger) *Handler {
	return &Handler{registrar: registrar, verifier: verifier, logger: logger.Named("api")}
}

func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	return h.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req service.RegistrationRequest
	if err := h.decodeBody(r, registrationFields(&req)); err != nil {
		respondWithError(w, http.StatusBadRequest, service.ValidationMessage(err), "")
		return
	}

	res, err := h.registrar.Register(r.Context(), req)
	if err != nil {
		h.requestLogger(r).Error("Registration failed.", zap.Error(err), zap.String("error_kind", string(errs.KindOf(err))))
		if res == nil {
			respondWithError(w, http.StatusInternalServerError, err.Error(), string(errs.KindOf(err)))
			return
		}
		respondWithJSON(w, http.StatusInternalServerError, res)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otp.Request
	if err := h.decodeBody(r, verificationFields(&req)); err != nil {
		respondWithError(w, http.StatusBadRequest, service.ValidationMessage(err), "")
		return
	}

	out, err := h.verifier.VerifyOTP(r.Context(), req)
	if err != nil {
		kind := errs.KindOf(err)
		if kind == errs.KindValidation {
			respondWithError(w, http.StatusBadRequest, service.ValidationMessage(err), "")
			return
		}
		h.requestLogger(r).Error("OTP verification failed.", zap.Error(err), zap.String("error_kind", string(kind)))
		respondWithError(w, http.StatusInternalServerError, err.Error(), string(kind))
		return
	}
	respondWithJSON(w, out.StatusCode(), out)
}
