package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/escrow-client/internal/common"
	"github.com/Veraticus/escrow-client/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage is the local payment journal.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage opens (and creates if needed) the database at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer, and :memory: databases are per-connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// RecordAttempt stores a new payment attempt, replacing any earlier entry
// for the same reference.
func (s *SQLiteStorage) RecordAttempt(ctx context.Context, attempt model.PaymentAttempt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAttempt(attempt); err != nil {
		return err
	}

	now := time.Now().UTC()
	started := attempt.StartedAt
	if started.IsZero() {
		started = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO payment_attempts
			(reference, transaction_id, phone_number, provider, amount, status, outcome, polls, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.Reference,
		attempt.TransactionID,
		attempt.PhoneNumber,
		string(attempt.Provider),
		attempt.Amount.Float(),
		string(attempt.Status),
		attempt.Outcome,
		attempt.Polls,
		started.UTC(),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to record payment attempt: %w", err)
	}
	return nil
}

// UpdateAttempt records poll progress. Empty status or outcome leave the
// stored value unchanged; the poll count never decreases.
func (s *SQLiteStorage) UpdateAttempt(ctx context.Context, reference string, status model.PaymentStatus, outcome string, polls int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(reference, "reference"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payment_attempts SET
			status = COALESCE(NULLIF(?, ''), status),
			outcome = COALESCE(NULLIF(?, ''), outcome),
			polls = MAX(polls, ?),
			updated_at = ?
		WHERE reference = ?`,
		string(status), outcome, polls, time.Now().UTC(), reference)
	if err != nil {
		return fmt.Errorf("failed to update payment attempt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("payment attempt %s: %w", reference, common.ErrNotFound)
	}
	return nil
}

// GetAttempt returns the attempt stored under reference.
func (s *SQLiteStorage) GetAttempt(ctx context.Context, reference string) (*model.PaymentAttempt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(reference, "reference"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectAttempts+` WHERE reference = ?`, reference)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment attempt %s: %w", reference, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// ListAttempts returns the most recent attempts first. limit <= 0 returns
// them all.
func (s *SQLiteStorage) ListAttempts(ctx context.Context, limit int) ([]model.PaymentAttempt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	return s.queryAttempts(ctx, selectAttempts+` ORDER BY started_at DESC, reference LIMIT ?`, limit)
}

// UnresolvedAttempts returns attempts whose poll never reached a terminal
// status, oldest first.
func (s *SQLiteStorage) UnresolvedAttempts(ctx context.Context) ([]model.PaymentAttempt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryAttempts(ctx,
		selectAttempts+` WHERE outcome NOT IN ('completed', 'failed') ORDER BY started_at, reference`)
}

const selectAttempts = `
	SELECT reference, transaction_id, phone_number, provider, amount, status, outcome, polls, started_at, updated_at
	FROM payment_attempts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*model.PaymentAttempt, error) {
	var (
		a        model.PaymentAttempt
		provider string
		status   string
		amount   float64
	)
	if err := row.Scan(&a.Reference, &a.TransactionID, &a.PhoneNumber, &provider, &amount,
		&status, &a.Outcome, &a.Polls, &a.StartedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Provider = model.Provider(provider)
	a.Status = model.PaymentStatus(status)
	a.Amount = model.Amount(amount)
	return &a, nil
}

func (s *SQLiteStorage) queryAttempts(ctx context.Context, query string, args ...any) ([]model.PaymentAttempt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attempts []model.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment attempts: %w", err)
	}
	return attempts, nil
}
