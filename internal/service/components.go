// File: internal/service/components.go
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/browser"
	"github.com/xkilldash9x/merchant-enroll/internal/config"
	"github.com/xkilldash9x/merchant-enroll/internal/enroll"
	"github.com/xkilldash9x/merchant-enroll/internal/observability"
	"github.com/xkilldash9x/merchant-enroll/internal/otp"
	"github.com/xkilldash9x/merchant-enroll/internal/store"
)

// Components holds everything the flows need, built once per process.
type Components struct {
	Broker    *browser.Broker
	Stores    *store.Provider
	Metrics   *observability.Metrics
	Registrar *Registrar
	Verifier  *Verifier

	logger *zap.Logger
}

// NewComponents builds the components from cfg. Metrics are registered on
// reg; a nil reg disables them. Persistence is off when no database URL is
// configured.
func NewComponents(cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) *Components {
	c := &Components{
		Broker: browser.NewBroker(cfg.Browser, logger),
		logger: logger,
	}
	if reg != nil {
		c.Metrics = observability.NewMetrics(reg)
	}

	// Left as a nil interface when disabled so the flows skip persistence.
	var st Store
	if cfg.Database.URL != "" {
		c.Stores = store.NewProvider(store.PoolConnector(cfg.Database), logger)
		st = c.Stores
	} else {
		logger.Info("No database configured; enrollments will not be persisted.")
	}

	c.Registrar = NewRegistrar(c.Broker,
		enroll.NewController(cfg.Portal, logger, c.Metrics),
		st, cfg.Generator, c.Metrics, logger)
	c.Verifier = NewVerifier(c.Broker,
		otp.NewController(cfg.Portal, logger, c.Metrics),
		st, c.Metrics, logger)
	return c
}

// Shutdown releases shared resources. Browser sessions are per request and
// already closed by the flows.
func (c *Components) Shutdown() {
	if c.Stores != nil {
		c.Stores.Close()
		c.logger.Debug("Database connection pool closed.")
	}
	c.logger.Info("All components shut down.")
}
