package identity

import "context"

// Store describes persistence for both principal partitions. The email
// registry query spans them: an address may belong to at most one account
// anywhere in the system.
type Store interface {
	Admins() AdminStore
	Customers() CustomerStore

	// EmailExists reports whether any principal, administrative or customer,
	// owns the normalized address. Callers still treat a unique-index
	// violation at create time as the authoritative conflict signal; this
	// pre-check only improves error reporting.
	EmailExists(ctx context.Context, email string) (bool, error)
}

// AdminStore manages administrative principals. Records are never deleted.
type AdminStore interface {
	Create(ctx context.Context, a *Admin) error
	// Upsert inserts or updates in place, keyed on email. Provisioning the
	// same admin twice is a no-op apart from refreshed fields.
	Upsert(ctx context.Context, a *Admin) error
	Find(ctx context.Context, id string) (*Admin, error)
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// CustomerStore manages customer principals. Records are never deleted.
type CustomerStore interface {
	Create(ctx context.Context, c *Customer) error
	Find(ctx context.Context, id string) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	// UpdateAdmission records an admission decision. Approval clears any
	// prior rejection reason; rejection stores one.
	UpdateAdmission(ctx context.Context, id string, admitted bool, reviewedBy, rejectionReason string) error
	ListByStatus(ctx context.Context, status ApprovalStatus, limit, offset int) ([]*Customer, error)
	CountByStatus(ctx context.Context) (ApprovalCounts, error)
}
