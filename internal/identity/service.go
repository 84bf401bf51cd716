package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metizror/marketforce-api/internal/obs"
	"github.com/metizror/marketforce-api/internal/otp"
)

// Service orchestrates the registration, login, password-reset and admission
// workflows over the credential store, the OTP ledger and the token issuer.
type Service struct {
	store  Store
	codes  *otp.Ledger
	tokens *TokenIssuer
}

func NewService(store Store, codes *otp.Ledger, tokens *TokenIssuer) *Service {
	return &Service{store: store, codes: codes, tokens: tokens}
}

// Session is the result of a successful login: a stateless bearer credential
// plus the resolved principal.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Principal Principal `json:"principal"`
}

// RegisterInput carries the self-registration form.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	CompanyName string
	Password    string
}

// ParseRole maps the wire-level role discriminator onto a principal kind.
func ParseRole(role string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "customer":
		return KindCustomer, nil
	case "admin":
		return KindAdmin, nil
	case "superadmin":
		return KindSuperadmin, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
}

// Register creates an unverified, unadmitted customer and emails a
// verification code. A notifier failure fails the whole call; the created
// record is kept so the resend action can recover.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Customer, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateBusinessEmail(email); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	// Read-then-write pre-check for a friendlier error; the unique index at
	// create time remains the authoritative guard under races.
	taken, err := s.store.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrConflict
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	customer := &Customer{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		CompanyName:  strings.TrimSpace(in.CompanyName),
		PasswordHash: hash,
	}
	if err := s.store.Customers().Create(ctx, customer); err != nil {
		return nil, err
	}
	if _, err := s.codes.Issue(ctx, email, otp.PurposeVerifyEmail); err != nil {
		return nil, fmt.Errorf("send verification code: %w", err)
	}
	return customer, nil
}

// SendVerificationOTP re-issues the email verification code for an existing
// customer (the manual resend path).
func (s *Service) SendVerificationOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if _, err := s.store.Customers().FindByEmail(ctx, email); err != nil {
		return err
	}
	_, err := s.codes.Issue(ctx, email, otp.PurposeVerifyEmail)
	return err
}

// VerifyEmail consumes the code and marks the customer's email verified.
// The account still needs admission before it can authenticate.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*Customer, error) {
	email = NormalizeEmail(email)
	customer, err := s.store.Customers().FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.codes.Verify(ctx, email, code); err != nil {
		return nil, err
	}
	if err := s.store.Customers().MarkEmailVerified(ctx, customer.ID); err != nil {
		return nil, err
	}
	customer.EmailVerified = true
	return customer, nil
}

// Login authenticates any principal kind on the shared surface and mints a
// session token. "No such account" and "wrong password" are deliberately
// indistinguishable. Customers must be verified and admitted.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if admin, err := s.store.Admins().FindByEmail(ctx, email); err == nil {
		if VerifyPassword(admin.PasswordHash, password) != nil {
			obs.ObserveLogin(string(admin.Role), "invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		session, err := s.mintSession(admin.Principal())
		if err != nil {
			return nil, err
		}
		obs.ObserveLogin(string(admin.Role), "ok")
		return session, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	customer, err := s.store.Customers().FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		obs.ObserveLogin(string(KindCustomer), "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if VerifyPassword(customer.PasswordHash, password) != nil {
		obs.ObserveLogin(string(KindCustomer), "invalid_credentials")
		return nil, ErrInvalidCredentials
	}
	if !customer.EmailVerified || !customer.Admitted {
		obs.ObserveLogin(string(KindCustomer), "pending")
		return nil, ErrAccountPending
	}
	session, err := s.mintSession(customer.Principal())
	if err != nil {
		return nil, err
	}
	obs.ObserveLogin(string(KindCustomer), "ok")
	return session, nil
}

func (s *Service) mintSession(principal Principal) (*Session, error) {
	token, expiresAt, err := s.tokens.Mint(principal.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Principal: principal}, nil
}

// RequestPasswordReset issues a reset code for an existing principal in the
// selected partition.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, role Kind) error {
	email = NormalizeEmail(email)
	if err := s.requirePrincipal(ctx, email, role); err != nil {
		return err
	}
	_, err := s.codes.Issue(ctx, email, otp.PurposeResetPassword)
	return err
}

// VerifyPasswordResetOTP consumes the reset code. The password mutation is a
// separate step; no reset ticket bridges the two (the OTP window bounds
// exposure).
func (s *Service) VerifyPasswordResetOTP(ctx context.Context, email, code string) error {
	return s.codes.Verify(ctx, NormalizeEmail(email), code)
}

// ResetPassword overwrites the password in the selected partition and clears
// any lingering codes for the email.
func (s *Service) ResetPassword(ctx context.Context, email string, role Kind, newPassword string) error {
	email = NormalizeEmail(email)
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if role == KindCustomer {
		customer, err := s.store.Customers().FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if err := s.store.Customers().UpdatePassword(ctx, customer.ID, hash); err != nil {
			return err
		}
	} else {
		admin, err := s.store.Admins().FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if err := s.store.Admins().UpdatePassword(ctx, admin.ID, hash); err != nil {
			return err
		}
	}
	return s.codes.Clear(ctx, email)
}

func (s *Service) requirePrincipal(ctx context.Context, email string, role Kind) error {
	if role == KindCustomer {
		_, err := s.store.Customers().FindByEmail(ctx, email)
		return err
	}
	_, err := s.store.Admins().FindByEmail(ctx, email)
	return err
}

// Decide records an admission decision by the resolved administrative
// reviewer. Re-deciding is idempotent in effect, but reviewed_by is always
// overwritten. Approval clears a prior rejection reason.
func (s *Service) Decide(ctx context.Context, reviewer Principal, customerID string, approve bool, rejectionReason string) (*Customer, error) {
	rejectionReason = strings.TrimSpace(rejectionReason)
	if !approve && rejectionReason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	if approve {
		rejectionReason = ""
	}
	if err := s.store.Customers().UpdateAdmission(ctx, customerID, approve, reviewer.Name, rejectionReason); err != nil {
		return nil, err
	}
	return s.store.Customers().Find(ctx, customerID)
}

// ApprovalPage is one page of the admission queue plus dashboard counts.
type ApprovalPage struct {
	Items   []*Customer    `json:"items"`
	Counts  ApprovalCounts `json:"counts"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Total   int            `json:"total"`
}

// ListApprovals pages through customers in the given derived status.
func (s *Service) ListApprovals(ctx context.Context, status ApprovalStatus, page, perPage int) (*ApprovalPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	counts, err := s.store.Customers().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Customers().ListByStatus(ctx, status, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	total := counts.Pending
	switch status {
	case ApprovalApproved:
		total = counts.Approved
	case ApprovalRejected:
		total = counts.Rejected
	}
	return &ApprovalPage{
		Items:   items,
		Counts:  counts,
		Page:    page,
		PerPage: perPage,
		Total:   total,
	}, nil
}

// ProvisionAdmin upserts an administrative principal keyed on email. The
// email must not already belong to a customer.
func (s *Service) ProvisionAdmin(ctx context.Context, name, email, password string, role Kind) (*Admin, error) {
	email = NormalizeEmail(email)
	if !role.IsAdministrative() {
		return nil, fmt.Errorf("%w: role must be admin or superadmin", ErrValidation)
	}
	if _, err := s.store.Customers().FindByEmail(ctx, email); err == nil {
		return nil, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &Admin{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Admins().Upsert(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

// ChangePassword rotates an administrative principal's password after
// re-checking the current one.
func (s *Service) ChangePassword(ctx context.Context, adminID, currentPassword, newPassword string) error {
	admin, err := s.store.Admins().Find(ctx, adminID)
	if err != nil {
		return err
	}
	if VerifyPassword(admin.PasswordHash, currentPassword) != nil {
		return ErrInvalidCredentials
	}
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.Admins().UpdatePassword(ctx, adminID, hash)
}

// AuthenticateToken resolves a bearer token to an administrative principal.
// A customer token validates cryptographically but must never authorize an
// admin operation, so a subject outside the admins partition is rejected.
func (s *Service) AuthenticateToken(ctx context.Context, token string) (*Admin, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	admin, err := s.store.Admins().Find(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// Admin returns the stored record for a resolved administrative principal.
func (s *Service) Admin(ctx context.Context, id string) (*Admin, error) {
	return s.store.Admins().Find(ctx, id)
}
