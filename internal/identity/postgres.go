package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/metizror/marketforce-api/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL. The *sql.DB pool is constructed
// once at startup and shared by every component.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Admins() AdminStore       { return &adminStore{db: s.db} }
func (s *PGStore) Customers() CustomerStore { return &customerStore{db: s.db} }

func (s *PGStore) EmailExists(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists(select 1 from admins where email=$1)
		    or exists(select 1 from customers where email=$1)
	`, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// isUniqueViolation detects PostgreSQL error 23505. The unique email index
// is the authoritative duplicate guard; pre-checks are read-then-write and
// race-prone.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Admin store ---------------------------------------------------------------

type adminStore struct{ db *sql.DB }

func (s *adminStore) Create(ctx context.Context, a *Admin) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.Email = NormalizeEmail(a.Email)
	err := s.db.QueryRowContext(ctx, `
		insert into admins(id, name, email, password_hash, role)
		values ($1,$2,$3,$4,$5)
		returning created_at, updated_at
	`, a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role)).Scan(&a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *adminStore) Upsert(ctx context.Context, a *Admin) error {
	if a.ID == "" {
		a.ID = ids.New()
	}
	a.Email = NormalizeEmail(a.Email)
	return s.db.QueryRowContext(ctx, `
		insert into admins(id, name, email, password_hash, role)
		values ($1,$2,$3,$4,$5)
		on conflict (email) do update
		set name = excluded.name,
		    password_hash = excluded.password_hash,
		    role = excluded.role,
		    updated_at = now()
		returning id, created_at, updated_at
	`, a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role)).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

const adminColumns = `id, name, email, password_hash, role, created_at, updated_at`

func scanAdmin(row *sql.Row) (*Admin, error) {
	var a Admin
	var role string
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Role = Kind(role)
	return &a, nil
}

func (s *adminStore) Find(ctx context.Context, id string) (*Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx,
		`select `+adminColumns+` from admins where id=$1`, id))
}

func (s *adminStore) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	return scanAdmin(s.db.QueryRowContext(ctx,
		`select `+adminColumns+` from admins where email=$1`, NormalizeEmail(email)))
}

func (s *adminStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update admins set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Customer store ------------------------------------------------------------

type customerStore struct{ db *sql.DB }

const customerColumns = `id, first_name, last_name, email, company_name, password_hash,
	email_verified, is_active, reviewed_by, rejection_reason, created_at, updated_at`

func (s *customerStore) Create(ctx context.Context, c *Customer) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	c.Email = NormalizeEmail(c.Email)
	err := s.db.QueryRowContext(ctx, `
		insert into customers(id, first_name, last_name, email, company_name, password_hash)
		values ($1,$2,$3,$4,$5,$6)
		returning created_at, updated_at
	`, c.ID, c.FirstName, c.LastName, c.Email, c.CompanyName, c.PasswordHash).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.CompanyName,
		&c.PasswordHash, &c.EmailVerified, &c.Admitted, &c.ReviewedBy,
		&c.RejectionReason, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *customerStore) Find(ctx context.Context, id string) (*Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx,
		`select `+customerColumns+` from customers where id=$1`, id))
}

func (s *customerStore) FindByEmail(ctx context.Context, email string) (*Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx,
		`select `+customerColumns+` from customers where email=$1`, NormalizeEmail(email)))
}

func (s *customerStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update customers set password_hash=$2, updated_at=now() where id=$1`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *customerStore) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update customers set email_verified=true, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *customerStore) UpdateAdmission(ctx context.Context, id string, admitted bool, reviewedBy, rejectionReason string) error {
	res, err := s.db.ExecContext(ctx, `
		update customers
		set is_active=$2, reviewed_by=$3, rejection_reason=$4, updated_at=now()
		where id=$1
	`, id, admitted, reviewedBy, rejectionReason)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func statusPredicate(status ApprovalStatus) string {
	switch status {
	case ApprovalApproved:
		return `is_active and rejection_reason = ''`
	case ApprovalRejected:
		return `rejection_reason <> ''`
	default:
		return `not is_active and rejection_reason = ''`
	}
}

func (s *customerStore) ListByStatus(ctx context.Context, status ApprovalStatus, limit, offset int) ([]*Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+customerColumns+` from customers where `+statusPredicate(status)+`
		 order by created_at desc limit $1 offset $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *customerStore) CountByStatus(ctx context.Context) (ApprovalCounts, error) {
	var counts ApprovalCounts
	err := s.db.QueryRowContext(ctx, `
		select
			count(*) filter (where not is_active and rejection_reason = ''),
			count(*) filter (where is_active and rejection_reason = ''),
			count(*) filter (where rejection_reason <> '')
		from customers
	`).Scan(&counts.Pending, &counts.Approved, &counts.Rejected)
	return counts, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
