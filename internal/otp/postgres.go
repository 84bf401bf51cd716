package otp

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGStore persists codes in the otp_codes table.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Replace(ctx context.Context, email, code string, expiresAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from otp_codes where email=$1`, email); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into otp_codes(email, code, expires_at) values ($1,$2,$3)`,
		email, code, expiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) Find(ctx context.Context, email, code string) (*Code, error) {
	var rec Code
	err := s.db.QueryRowContext(ctx,
		`select email, code, expires_at from otp_codes where email=$1 and code=$2`,
		email, code).Scan(&rec.Email, &rec.Code, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errCodeMissing
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PGStore) DeleteByEmail(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `delete from otp_codes where email=$1`, email)
	return err
}
