package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

// MemoryStore keeps users, beneficiaries and transactions in process memory
// behind one mutex. It backs STORE_DRIVER=memory and the end-to-end tests and
// enforces the same uniqueness and conditional-transition rules as Postgres.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]*domain.User
	beneficiaries map[string]*domain.Beneficiary
	transactions  map[string]*domain.Transaction
	now           func() time.Time
	last          time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         map[string]*domain.User{},
		beneficiaries: map[string]*domain.Beneficiary{},
		transactions:  map[string]*domain.Transaction{},
		now:           time.Now,
	}
}

// Users returns the store's domain.UserRepository view.
func (s *MemoryStore) Users() *MemoryUsers { return &MemoryUsers{s: s} }

// Beneficiaries returns the store's domain.BeneficiaryRepository view.
func (s *MemoryStore) Beneficiaries() *MemoryBeneficiaries { return &MemoryBeneficiaries{s: s} }

// Transactions returns the store's domain.TransactionRepository view.
func (s *MemoryStore) Transactions() *MemoryTransactions { return &MemoryTransactions{s: s} }

// Ping always succeeds; it lets the store stand in for a database in readiness checks.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// tick returns a strictly increasing timestamp so creation order is total.
// Callers hold s.mu.
func (s *MemoryStore) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func copyUser(u *domain.User) *domain.User {
	cp := *u
	if u.Employee != nil {
		emp := *u.Employee
		cp.Employee = &emp
	}
	return &cp
}

func copyTransaction(tx *domain.Transaction) *domain.Transaction {
	cp := *tx
	return &cp
}

func paginate[T any](items []T, page, limit int) []T {
	start := pageOffset(page, limit)
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// MemoryUsers implements domain.UserRepository.
type MemoryUsers struct{ s *MemoryStore }

func (m *MemoryUsers) Create(_ context.Context, user *domain.User) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(user.Username)
	for _, existing := range s.users {
		switch {
		case existing.IDNumber == user.IDNumber:
			return domain.NewConflict("idNumber")
		case existing.Username == username:
			return domain.NewConflict("username")
		case existing.AccountNumber == user.AccountNumber:
			return domain.NewConflict("accountNumber")
		case existing.Employee != nil && user.Employee != nil && existing.Employee.StaffID == user.Employee.StaffID:
			return domain.NewConflict("staffId")
		}
	}
	now := s.tick()
	user.Username = username
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = copyUser(user)
	return nil
}

func (m *MemoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return copyUser(u), nil
}

func (m *MemoryUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	username = strings.ToLower(username)
	for _, u := range m.s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
}

func (m *MemoryUsers) GetAuthInfo(_ context.Context, id string) (domain.AuthInfo, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return domain.AuthInfo{}, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return domain.AuthInfo{Role: u.Role, Active: !u.Disabled()}, nil
}

func (m *MemoryUsers) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return m.update(id, false, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (m *MemoryUsers) SetEmployeeActive(_ context.Context, id string, active bool) (*domain.User, error) {
	var out *domain.User
	err := m.update(id, true, func(u *domain.User) {
		u.Employee.Active = active
		out = copyUser(u)
	})
	return out, err
}

func (m *MemoryUsers) SetEmployeePassword(_ context.Context, id string, passwordHash string) error {
	return m.update(id, true, func(u *domain.User) { u.PasswordHash = passwordHash })
}

func (m *MemoryUsers) update(id string, employeeOnly bool, apply func(*domain.User)) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || employeeOnly && (u.Role != domain.RoleEmployee || u.Employee == nil) {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	u.UpdatedAt = s.tick()
	apply(u)
	return nil
}

func (m *MemoryUsers) ListEmployees(_ context.Context) ([]*domain.User, error) {
	return m.filter(func(u *domain.User) bool { return u.Role == domain.RoleEmployee }), nil
}

func (m *MemoryUsers) List(_ context.Context, filter domain.UserFilter) ([]*domain.User, int, error) {
	all := m.filter(func(u *domain.User) bool { return filter.Role == "" || u.Role == filter.Role })
	return paginate(all, filter.Page, filter.Limit), len(all), nil
}

func (m *MemoryUsers) ListCustomersBefore(_ context.Context, before *time.Time, limit int) ([]*domain.User, error) {
	all := m.filter(func(u *domain.User) bool {
		return u.Role == domain.RoleCustomer && (before == nil || u.CreatedAt.Before(*before))
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// filter returns matching users newest first.
func (m *MemoryUsers) filter(keep func(*domain.User) bool) []*domain.User {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []*domain.User{}
	for _, u := range m.s.users {
		if keep(u) {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// MemoryBeneficiaries implements domain.BeneficiaryRepository.
type MemoryBeneficiaries struct{ s *MemoryStore }

func (m *MemoryBeneficiaries) Create(_ context.Context, b *domain.Beneficiary) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := b.NaturalKey()
	for _, existing := range s.beneficiaries {
		if existing.UserID == b.UserID && existing.Type() == b.Type() && existing.NaturalKey() == key {
			return domain.NewConflict("beneficiary")
		}
	}
	now := s.tick()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	s.beneficiaries[b.ID] = &cp
	return nil
}

func (m *MemoryBeneficiaries) ListByOwner(_ context.Context, ownerID string, filter domain.BeneficiaryFilter) ([]*domain.Beneficiary, int, error) {
	m.s.mu.Lock()
	all := []*domain.Beneficiary{}
	for _, b := range m.s.beneficiaries {
		if b.UserID == ownerID && (filter.Type == "" || b.Type() == filter.Type) {
			cp := *b
			all = append(all, &cp)
		}
	}
	m.s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, filter.Page, filter.Limit), len(all), nil
}

// MemoryTransactions implements domain.TransactionRepository. Each Mark*
// call checks and updates under the store mutex, giving the same
// exactly-one-winner guarantee as the conditional UPDATE in Postgres.
type MemoryTransactions struct{ s *MemoryStore }

func (m *MemoryTransactions) Create(_ context.Context, tx *domain.Transaction) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.transactions {
		if existing.Reference == tx.Reference {
			return domain.NewConflict("reference")
		}
	}
	if tx.CreatedAt.IsZero() || !tx.CreatedAt.After(s.last) {
		tx.CreatedAt = s.tick()
	} else {
		s.last = tx.CreatedAt
	}
	tx.UpdatedAt = tx.CreatedAt
	s.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

func (m *MemoryTransactions) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tx, ok := m.s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return copyTransaction(tx), nil
}

func (m *MemoryTransactions) GetForOwner(ctx context.Context, id, ownerID string) (*domain.Transaction, error) {
	tx, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != ownerID {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrNotFound)
	}
	return tx, nil
}

func (m *MemoryTransactions) ListByOwner(_ context.Context, ownerID string, filter domain.TransactionFilter) ([]*domain.Transaction, int, error) {
	all := m.filter(func(tx *domain.Transaction) bool {
		return tx.UserID == ownerID && (filter.Status == "" || tx.Status == filter.Status)
	})
	return paginate(all, filter.Page, filter.Limit), len(all), nil
}

func (m *MemoryTransactions) ListByStatus(_ context.Context, status domain.TransactionStatus, before *time.Time, limit int) ([]*domain.Transaction, error) {
	all := m.filter(func(tx *domain.Transaction) bool {
		return tx.Provider == domain.ProviderSWIFT && tx.Status == status && (before == nil || tx.CreatedAt.Before(*before))
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *MemoryTransactions) MarkVerified(_ context.Context, id, actorID string, swiftBIC string, at time.Time) (*domain.Transaction, error) {
	return m.transition(id, domain.StatusPending, func(tx *domain.Transaction) {
		tx.Status = domain.StatusVerified
		tx.VerifiedBy, tx.VerifiedAt = &actorID, &at
		if swiftBIC != "" {
			tx.SwiftBIC = swiftBIC
		}
		tx.UpdatedAt = at
	})
}

func (m *MemoryTransactions) MarkQueued(_ context.Context, id, actorID string, at time.Time) (*domain.Transaction, error) {
	return m.transition(id, domain.StatusVerified, func(tx *domain.Transaction) {
		tx.Status = domain.StatusQueued
		tx.SubmittedBy, tx.SubmittedAt = &actorID, &at
		tx.UpdatedAt = at
	})
}

func (m *MemoryTransactions) transition(id string, from domain.TransactionStatus, apply func(*domain.Transaction)) (*domain.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	tx, ok := m.s.transactions[id]
	if !ok || tx.Provider != domain.ProviderSWIFT || tx.Status != from {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrInvalidTransition)
	}
	apply(tx)
	return copyTransaction(tx), nil
}

func (m *MemoryTransactions) MarkQueuedBulk(_ context.Context, ids []string, actorID string, at time.Time) (domain.BulkResult, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var res domain.BulkResult
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		tx, ok := m.s.transactions[id]
		if !ok || tx.Provider != domain.ProviderSWIFT {
			continue
		}
		res.Matched++
		if tx.Status != domain.StatusVerified {
			continue
		}
		actor, when := actorID, at
		tx.Status = domain.StatusQueued
		tx.SubmittedBy, tx.SubmittedAt = &actor, &when
		tx.UpdatedAt = at
		res.Modified++
	}
	return res, nil
}

func (m *MemoryTransactions) CountByStatus(_ context.Context) (map[domain.TransactionStatus]int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	counts := make(map[domain.TransactionStatus]int, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		counts[s] = 0
	}
	for _, tx := range m.s.transactions {
		if tx.Provider == domain.ProviderSWIFT {
			counts[tx.Status]++
		}
	}
	return counts, nil
}

// filter returns matching transactions newest first.
func (m *MemoryTransactions) filter(keep func(*domain.Transaction) bool) []*domain.Transaction {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := []*domain.Transaction{}
	for _, tx := range m.s.transactions {
		if keep(tx) {
			out = append(out, copyTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

var (
	_ domain.UserRepository        = (*MemoryUsers)(nil)
	_ domain.BeneficiaryRepository = (*MemoryBeneficiaries)(nil)
	_ domain.TransactionRepository = (*MemoryTransactions)(nil)
	_ domain.UserRepository        = (*PostgresUserRepository)(nil)
	_ domain.BeneficiaryRepository = (*PostgresBeneficiaryRepository)(nil)
	_ domain.TransactionRepository = (*PostgresTransactionRepository)(nil)
)
