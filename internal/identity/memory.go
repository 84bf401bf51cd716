package identity

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/metizror/marketforce-api/internal/ids"
)

// MemoryStore is an in-memory Store used by the HTTP test suites and local
// development without a database. Safe for concurrent use.
type MemoryStore struct {
	mu        sync.Mutex
	admins    map[string]*Admin    // by id
	customers map[string]*Customer // by id
}

var _ Store = (*MemoryStore)(nil)

func NewInMemory() *MemoryStore {
	return &MemoryStore{
		admins:    make(map[string]*Admin),
		customers: make(map[string]*Customer),
	}
}

func (m *MemoryStore) Admins() AdminStore       { return &memAdminStore{m: m} }
func (m *MemoryStore) Customers() CustomerStore { return &memCustomerStore{m: m} }

func (m *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emailTakenLocked(email), nil
}

func (m *MemoryStore) emailTakenLocked(email string) bool {
	for _, a := range m.admins {
		if a.Email == email {
			return true
		}
	}
	for _, c := range m.customers {
		if c.Email == email {
			return true
		}
	}
	return false
}

type memAdminStore struct{ m *MemoryStore }

func (s *memAdminStore) Create(_ context.Context, a *Admin) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a.Email = NormalizeEmail(a.Email)
	if s.m.emailTakenLocked(a.Email) {
		return ErrConflict
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	clone := *a
	s.m.admins[a.ID] = &clone
	return nil
}

func (s *memAdminStore) Upsert(_ context.Context, a *Admin) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a.Email = NormalizeEmail(a.Email)
	for _, existing := range s.m.admins {
		if existing.Email == a.Email {
			existing.Name = a.Name
			existing.PasswordHash = a.PasswordHash
			existing.Role = a.Role
			existing.UpdatedAt = time.Now().UTC()
			*a = *existing
			return nil
		}
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	clone := *a
	s.m.admins[a.ID] = &clone
	return nil
}

func (s *memAdminStore) Find(_ context.Context, id string) (*Admin, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.admins[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *memAdminStore) FindByEmail(_ context.Context, email string) (*Admin, error) {
	email = NormalizeEmail(email)
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, a := range s.m.admins {
		if a.Email == email {
			clone := *a
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memAdminStore) UpdatePassword(_ context.Context, id, hash string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	a, ok := s.m.admins[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

type memCustomerStore struct{ m *MemoryStore }

func (s *memCustomerStore) Create(_ context.Context, c *Customer) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c.Email = NormalizeEmail(c.Email)
	if s.m.emailTakenLocked(c.Email) {
		return ErrConflict
	}
	if c.ID == "" {
		c.ID = ids.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	clone := *c
	s.m.customers[c.ID] = &clone
	return nil
}

func (s *memCustomerStore) Find(_ context.Context, id string) (*Customer, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *memCustomerStore) FindByEmail(_ context.Context, email string) (*Customer, error) {
	email = NormalizeEmail(email)
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.customers {
		if c.Email == email {
			clone := *c
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memCustomerStore) UpdatePassword(_ context.Context, id, hash string) error {
	return s.mutate(id, func(c *Customer) {
		c.PasswordHash = hash
	})
}

func (s *memCustomerStore) MarkEmailVerified(_ context.Context, id string) error {
	return s.mutate(id, func(c *Customer) {
		c.EmailVerified = true
	})
}

func (s *memCustomerStore) UpdateAdmission(_ context.Context, id string, admitted bool, reviewedBy, rejectionReason string) error {
	return s.mutate(id, func(c *Customer) {
		c.Admitted = admitted
		c.ReviewedBy = reviewedBy
		c.RejectionReason = rejectionReason
	})
}

func (s *memCustomerStore) mutate(id string, fn func(*Customer)) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c, ok := s.m.customers[id]
	if !ok {
		return ErrNotFound
	}
	fn(c)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memCustomerStore) ListByStatus(_ context.Context, status ApprovalStatus, limit, offset int) ([]*Customer, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []*Customer
	for _, c := range s.m.customers {
		if c.ApprovalStatus() == status {
			clone := *c
			matched = append(matched, &clone)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return strings.Compare(matched[i].ID, matched[j].ID) > 0
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *memCustomerStore) CountByStatus(_ context.Context) (ApprovalCounts, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var counts ApprovalCounts
	for _, c := range s.m.customers {
		switch c.ApprovalStatus() {
		case ApprovalApproved:
			counts.Approved++
		case ApprovalRejected:
			counts.Rejected++
		default:
			counts.Pending++
		}
	}
	return counts, nil
}
