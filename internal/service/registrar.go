// File: internal/service/registrar.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/config"
	"github.com/xkilldash9x/merchant-enroll/internal/enroll"
	"github.com/xkilldash9x/merchant-enroll/internal/errs"
	"github.com/xkilldash9x/merchant-enroll/internal/generate"
	"github.com/xkilldash9x/merchant-enroll/internal/observability"
)

// RegistrationRequest is the caller's input. Empty fields are generated.
type RegistrationRequest struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	Password    string `json:"password,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Registrar runs the registration flow end to end.
type Registrar struct {
	broker     SessionBroker
	controller *enroll.Controller
	store      Store
	gen        config.GeneratorConfig
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewRegistrar wires a registrar. store and metrics may be nil.
func NewRegistrar(broker SessionBroker, controller *enroll.Controller, store Store, gen config.GeneratorConfig, metrics *observability.Metrics, logger *zap.Logger) *Registrar {
	return &Registrar{
		broker:     broker,
		controller: controller,
		store:      store,
		gen:        gen,
		metrics:    metrics,
		logger:     logger.Named("registrar"),
		now:        time.Now,
	}
}

// Register signs up a new merchant account. A non-nil error means the
// result describes a failure; the result is never nil.
func (r *Registrar) Register(ctx context.Context, req RegistrationRequest) (*enroll.Result, error) {
	start := time.Now()
	id, err := r.resolve(ctx, req)
	if err != nil {
		r.metrics.ObserveFlow(observability.FlowRegister, outcomeFailure, start)
		return enroll.Failed(id, err), err
	}

	handle, err := r.broker.Acquire(ctx)
	if err != nil {
		r.metrics.SessionFailed()
		r.metrics.ObserveFlow(observability.FlowRegister, outcomeSessionError, start)
		r.logger.Error("Could not acquire a browser session.", zap.Error(err))
		return enroll.Failed(id, err), err
	}
	r.metrics.SessionOpened()
	defer handle.Close(ctx)

	log := r.logger.With(zap.String("session_id", handle.ID()))
	log.Info("Starting registration.", zap.String("email", id.Email))
	res := r.controller.Run(ctx, handle.Page(), id)

	r.persist(ctx, log, res)

	if !res.Success {
		r.metrics.ObserveFlow(observability.FlowRegister, outcomeFailure, start)
		return res, res.Err
	}
	r.metrics.ObserveFlow(observability.FlowRegister, outcomeSuccess, start)
	return res, nil
}

// resolve fills in defaults. Generated emails and phone numbers are
// regenerated while the store reports them as used; caller values are
// taken as given.
func (r *Registrar) resolve(ctx context.Context, req RegistrationRequest) (enroll.Identity, error) {
	id := enroll.Identity{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	}
	if id.FirstName == "" {
		id.FirstName = generate.DefaultFirstName
	}
	if id.LastName == "" {
		id.LastName = generate.DefaultLastName
	}
	if id.Password == "" {
		opts := generate.DefaultPasswordOptions()
		opts.Length = r.gen.PasswordLength
		pw, err := generate.Password(opts)
		if err != nil {
			return id, errs.New(errs.KindInternal, "generate password", err)
		}
		id.Password = pw
	}

	if id.Email == "" {
		now := r.now()
		attempt := 0
		id.Email = r.unique(ctx, "email", func() (string, error) {
			// Step the clock so a retry within the same millisecond differs.
			email := generate.Email(now.Add(time.Duration(attempt) * time.Millisecond))
			attempt++
			return email, nil
		}, r.emailExists)
	}
	if id.PhoneNumber == "" {
		var genErr error
		id.PhoneNumber = r.unique(ctx, "phone", func() (string, error) {
			phone, err := generate.PhoneNumber()
			genErr = err
			return phone, err
		}, r.phoneExists)
		if genErr != nil {
			return id, errs.New(errs.KindInternal, "generate phone number", genErr)
		}
	}
	return id, nil
}

func (r *Registrar) emailExists(ctx context.Context, v string) (bool, error) {
	return r.store.EmailExists(ctx, v)
}

func (r *Registrar) phoneExists(ctx context.Context, v string) (bool, error) {
	return r.store.PhoneExists(ctx, v)
}

// unique draws values until one is unused or the attempts run out. Without
// a store, or when the store cannot answer, the first value is used.
func (r *Registrar) unique(ctx context.Context, what string, next func() (string, error), exists func(context.Context, string) (bool, error)) string {
	var value string
	for i := 0; i < max(r.gen.UniqueAttempts, 1); i++ {
		v, err := next()
		if err != nil {
			return value
		}
		value = v
		if r.store == nil {
			return value
		}
		used, err := exists(ctx, value)
		if err != nil {
			r.metrics.PersistenceFailed(what + "_exists")
			r.logger.Warn("Could not check generated value for reuse.", zap.String("kind", what), zap.Error(err))
			return value
		}
		if !used {
			return value
		}
		r.logger.Debug("Generated value already used; regenerating.", zap.String("kind", what))
	}
	r.logger.Warn("Could not generate an unused value; using the last one.", zap.String("kind", what))
	return value
}

// persist records the email of a completed registration and, when a code
// was sent, its phone number.
func (r *Registrar) persist(ctx context.Context, log *zap.Logger, res *enroll.Result) {
	if r.store == nil || !res.Success {
		return
	}
	doc := map[string]any{
		"phoneNumber":      res.PhoneNumberUsed,
		"authHeaderFound":  res.AuthHeader != nil,
		"tokenFound":       res.DetectedToken != nil,
		"verificationSent": res.VerificationSent(),
	}
	if res.TokenExpiresAt != nil {
		doc["tokenExpiresAt"] = res.TokenExpiresAt.Format(time.RFC3339)
	}
	if _, err := r.store.SaveEmail(ctx, res.EmailUsed, doc); err != nil {
		r.metrics.PersistenceFailed("save_email")
		log.Error("Failed to save email.", zap.Error(err))
	}

	if !res.VerificationSent() {
		return
	}
	if _, err := r.store.SavePhone(ctx, res.EmailUsed, res.PhoneNumberUsed, map[string]any{"verified": false}); err != nil {
		r.metrics.PersistenceFailed("save_phone")
		log.Error("Failed to save phone number.", zap.Error(err))
	}
}
