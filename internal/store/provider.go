package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/config"
)

// ErrNotConfigured is returned when no database URL is set.
var ErrNotConfigured = errors.New("database.url is not configured")

// Connector opens a pool and returns a function that releases it.
type Connector func(ctx context.Context) (DBPool, func(), error)

// PoolConnector connects with pgxpool using cfg.
func PoolConnector(cfg config.DatabaseConfig) Connector {
	return func(ctx context.Context) (DBPool, func(), error) {
		if cfg.URL == "" {
			return nil, nil, ErrNotConfigured
		}
		poolConfig, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
		}
		if cfg.MaxConns > 0 {
			poolConfig.MaxConns = cfg.MaxConns
		}
		poolConfig.MaxConnLifetime = 1 * time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
		}
		return pool, pool.Close, nil
	}
}

// Provider hands out a lazily connected Store. The first successful Get is
// reused; a failed one is forgotten so the next call tries again.
type Provider struct {
	connect Connector
	logger  *zap.Logger

	mu      sync.Mutex
	store   *Store
	release func()
}

// NewProvider creates a provider. Nothing is dialed until first use.
func NewProvider(connect Connector, logger *zap.Logger) *Provider {
	return &Provider{connect: connect, logger: logger}
}

// Get returns the shared store, connecting on first use.
func (p *Provider) Get(ctx context.Context) (*Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil {
		return p.store, nil
	}

	pool, release, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, pool, p.logger)
	if err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	p.store, p.release = s, release
	p.logger.Info("Connected to database.")
	return s, nil
}

// Close releases the pool, if one was opened.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.release != nil {
		p.release()
	}
	p.store, p.release = nil, nil
}

func (p *Provider) EmailExists(ctx context.Context, email string) (bool, error) {
	s, err := p.Get(ctx)
	if err != nil {
		return false, err
	}
	return s.EmailExists(ctx, email)
}

func (p *Provider) PhoneExists(ctx context.Context, phone string) (bool, error) {
	s, err := p.Get(ctx)
	if err != nil {
		return false, err
	}
	return s.PhoneExists(ctx, phone)
}

func (p *Provider) SaveEmail(ctx context.Context, email string, data map[string]any) (string, error) {
	s, err := p.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.SaveEmail(ctx, email, data)
}

func (p *Provider) SavePhone(ctx context.Context, email, phone string, data map[string]any) (string, error) {
	s, err := p.Get(ctx)
	if err != nil {
		return "", err
	}
	return s.SavePhone(ctx, email, phone, data)
}
