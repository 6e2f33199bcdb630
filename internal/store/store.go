package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store keeps the emails and phone numbers used by enrollments in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const (
	sqlEmailExists = `SELECT EXISTS (SELECT 1 FROM emails WHERE email = $1)`
	sqlPhoneExists = `SELECT EXISTS (SELECT 1 FROM phones WHERE phone = $1)`

	// A repeated email keeps its id and merges the new document into the old one.
	sqlSaveEmail = `
        INSERT INTO emails (id, email, data)
        VALUES ($1, $2, $3)
        ON CONFLICT (email) DO UPDATE SET data = emails.data || EXCLUDED.data
        RETURNING id;
    `
	sqlSavePhone = `
        INSERT INTO phones (id, phone, email, data)
        VALUES ($1, $2, $3, $4);
    `
)

// EmailExists reports whether email was already used by an enrollment.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, sqlEmailExists, email)
}

// PhoneExists reports whether phone was already used by an enrollment.
func (s *Store) PhoneExists(ctx context.Context, phone string) (bool, error) {
	return s.exists(ctx, sqlPhoneExists, phone)
}

func (s *Store) exists(ctx context.Context, query, value string) (bool, error) {
	var found bool
	if err := s.pool.QueryRow(ctx, query, value).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to query existence: %w", err)
	}
	return found, nil
}

// SaveEmail records email with an arbitrary document and returns its id.
func (s *Store) SaveEmail(ctx context.Context, email string, data map[string]any) (string, error) {
	doc, err := encodeDocument(data)
	if err != nil {
		return "", err
	}
	var id uuid.UUID
	if err := s.pool.QueryRow(ctx, sqlSaveEmail, uuid.New(), email, doc).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to save email: %w", err)
	}
	s.log.Debug("Email saved.", zap.String("id", id.String()))
	return id.String(), nil
}

// SavePhone records phone, optionally linked to email, and returns its id.
func (s *Store) SavePhone(ctx context.Context, email, phone string, data map[string]any) (string, error) {
	doc, err := encodeDocument(data)
	if err != nil {
		return "", err
	}
	var linked *string
	if email != "" {
		linked = &email
	}
	id := uuid.New()
	if _, err := s.pool.Exec(ctx, sqlSavePhone, id, phone, linked, doc); err != nil {
		return "", fmt.Errorf("failed to save phone: %w", err)
	}
	s.log.Debug("Phone saved.", zap.String("id", id.String()))
	return id.String(), nil
}

func encodeDocument(data map[string]any) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	doc, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}
