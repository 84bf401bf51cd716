package identity

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return NewPGStore(db), mock
}

func TestEmailExists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select exists`).
		WithArgs("jane@acme.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.EmailExists(context.Background(), " Jane@Acme.com ")
	if err != nil {
		t.Fatalf("EmailExists: %v", err)
	}
	if !exists {
		t.Fatal("want exists=true")
	}
}

func TestAdminCreateUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`insert into admins`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "admins_email_key"})

	err := store.Admins().Create(context.Background(), &Admin{
		Name: "Ops", Email: "ops@acme.com", PasswordHash: "x", Role: KindAdmin,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestAdminFindByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "role", "created_at", "updated_at",
	}).AddRow("adm-1", "Ops", "ops@acme.com", "hash", "superadmin", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`from admins where email=$1`)).
		WithArgs("ops@acme.com").
		WillReturnRows(rows)

	admin, err := store.Admins().FindByEmail(context.Background(), "OPS@acme.com")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if admin.ID != "adm-1" || admin.Role != KindSuperadmin {
		t.Fatalf("unexpected admin %+v", admin)
	}
}

func TestAdminFindNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`from admins where id=$1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Admins().Find(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCustomerCreateReturnsTimestamps(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`insert into customers`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	customer := &Customer{
		FirstName: "Jane", LastName: "Doe",
		Email: "jane@acme.com", CompanyName: "Acme", PasswordHash: "hash",
	}
	if err := store.Customers().Create(context.Background(), customer); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if customer.ID == "" {
		t.Fatal("id must be assigned")
	}
	if !customer.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", customer.CreatedAt, now)
	}
}

func TestCustomerUpdateAdmission(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update customers`).
		WithArgs("cus-1", true, "Ops Reviewer", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Customers().UpdateAdmission(context.Background(), "cus-1", true, "Ops Reviewer", "")
	if err != nil {
		t.Fatalf("UpdateAdmission: %v", err)
	}
}

func TestCustomerUpdateAdmissionNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`update customers`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Customers().UpdateAdmission(context.Background(), "missing", false, "Ops", "reason")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestCustomerListByStatus(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "first_name", "last_name", "email", "company_name", "password_hash",
		"email_verified", "is_active", "reviewed_by", "rejection_reason",
		"created_at", "updated_at",
	}).AddRow("cus-1", "Jane", "Doe", "jane@acme.com", "Acme", "hash",
		true, false, "", "", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`not is_active and rejection_reason = ''`)).
		WithArgs(20, 0).
		WillReturnRows(rows)

	items, err := store.Customers().ListByStatus(context.Background(), ApprovalPending, 20, 0)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(items) != 1 || items[0].ID != "cus-1" {
		t.Fatalf("unexpected items %+v", items)
	}
	if items[0].ApprovalStatus() != ApprovalPending {
		t.Fatalf("status = %s, want pending", items[0].ApprovalStatus())
	}
}

func TestCustomerCountByStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`count\(\*\) filter`).
		WillReturnRows(sqlmock.NewRows([]string{"pending", "approved", "rejected"}).
			AddRow(3, 5, 2))

	counts, err := store.Customers().CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	want := ApprovalCounts{Pending: 3, Approved: 5, Rejected: 2}
	if counts != want {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}
}
