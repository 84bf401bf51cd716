package identity

import (
	"strings"
	"time"
)

// Kind discriminates the three fixed principal kinds. There is no general
// RBAC here: capabilities are attached to the kind itself.
type Kind string

const (
	KindAdmin      Kind = "admin"
	KindSuperadmin Kind = "superadmin"
	KindCustomer   Kind = "customer"
)

// IsAdministrative reports whether the kind may call admin-guarded operations.
func (k Kind) IsAdministrative() bool {
	return k == KindAdmin || k == KindSuperadmin
}

// Admin is an administrative principal (admin or superadmin), provisioned by
// an idempotent upsert keyed on email.
type Admin struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Kind      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Customer is a self-registered principal. It starts unverified and
// unadmitted; OTP verification and an admin decision move it forward.
type Customer struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Email           string    `json:"email"`
	CompanyName     string    `json:"company_name"`
	PasswordHash    string    `json:"-"`
	EmailVerified   bool      `json:"email_verified"`
	Admitted        bool      `json:"is_active"`
	ReviewedBy      string    `json:"reviewed_by,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ApprovalStatus is a read model derived from the customer record, never
// stored independently.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// ApprovalStatus computes the derived admission state: a rejection reason
// wins over the admitted flag.
func (c *Customer) ApprovalStatus() ApprovalStatus {
	switch {
	case c.RejectionReason != "":
		return ApprovalRejected
	case c.Admitted:
		return ApprovalApproved
	default:
		return ApprovalPending
	}
}

// ApprovalCounts carries per-status totals for the admission dashboard.
type ApprovalCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Principal is the resolved caller exposed to guarded operations and login
// responses.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Kind  Kind   `json:"kind"`
}

// Principal projects the admin record for auditing and responses.
func (a *Admin) Principal() Principal {
	return Principal{ID: a.ID, Name: a.Name, Email: a.Email, Kind: a.Role}
}

// Principal projects the customer record for login responses.
func (c *Customer) Principal() Principal {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	return Principal{ID: c.ID, Name: name, Email: c.Email, Kind: KindCustomer}
}
