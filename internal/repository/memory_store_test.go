package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
)

func seedTransaction(t *testing.T, txs *MemoryTransactions, id string, status domain.TransactionStatus) {
	t.Helper()
	err := txs.Create(context.Background(), &domain.Transaction{
		ID:          id,
		UserID:      "owner",
		Reference:   "SBK-20250101-" + id,
		Amount:      domain.MustAmount("10.00"),
		Currency:    "USD",
		Provider:    domain.ProviderSWIFT,
		SwiftBIC:    "DEUTDEFF",
		Beneficiary: domain.PayeeSnapshot{Name: "Jane", IBANOrAccount: "DE89370400440532013000"},
		Status:      status,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestConcurrentVerifyHasExactlyOneWinner(t *testing.T) {
	txs := NewMemoryStore().Transactions()
	seedTransaction(t, txs, "t1", domain.StatusPending)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := txs.MarkVerified(context.Background(), "t1", fmt.Sprintf("emp-%d", i), "", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrInvalidTransition):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || rejected != workers-1 {
		t.Fatalf("wins=%d rejected=%d", wins, rejected)
	}
}

func TestTransitionsFollowTheLifecycle(t *testing.T) {
	ctx := context.Background()
	txs := NewMemoryStore().Transactions()
	seedTransaction(t, txs, "t1", domain.StatusPending)

	if _, err := txs.MarkQueued(ctx, "t1", "emp", time.Now()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pending -> queued must be rejected, got %v", err)
	}
	verified, err := txs.MarkVerified(ctx, "t1", "emp", "COBADEFFXXX", time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if verified.SwiftBIC != "COBADEFFXXX" || verified.VerifiedBy == nil || *verified.VerifiedBy != "emp" {
		t.Fatalf("verify did not record correction and actor: %+v", verified)
	}
	queued, err := txs.MarkQueued(ctx, "t1", "emp2", time.Now())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if queued.Status != domain.StatusQueued || *queued.SubmittedBy != "emp2" {
		t.Fatalf("unexpected %+v", queued)
	}
	if _, err := txs.MarkVerified(ctx, "t1", "emp", "", time.Now()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("queued -> verified must be rejected, got %v", err)
	}
	if _, err := txs.MarkVerified(ctx, "missing", "emp", "", time.Now()); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("unknown ids are indistinguishable from wrong state, got %v", err)
	}
}

func TestBulkQueueCounts(t *testing.T) {
	ctx := context.Background()
	txs := NewMemoryStore().Transactions()
	seedTransaction(t, txs, "a", domain.StatusVerified)
	seedTransaction(t, txs, "b", domain.StatusVerified)
	seedTransaction(t, txs, "c", domain.StatusPending)

	res, err := txs.MarkQueuedBulk(ctx, []string{"a", "b", "c", "a", "missing"}, "emp", time.Now())
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if res != (domain.BulkResult{Matched: 3, Modified: 2}) {
		t.Fatalf("unexpected %+v", res)
	}

	res, _ = txs.MarkQueuedBulk(ctx, []string{"a", "b"}, "emp", time.Now())
	if res != (domain.BulkResult{Matched: 2, Modified: 0}) {
		t.Fatalf("second run should move nothing, got %+v", res)
	}
}

func TestListByStatusCursor(t *testing.T) {
	ctx := context.Background()
	txs := NewMemoryStore().Transactions()
	for i := 0; i < 5; i++ {
		seedTransaction(t, txs, fmt.Sprintf("t%d", i), domain.StatusPending)
	}

	first, _ := txs.ListByStatus(ctx, domain.StatusPending, nil, 2)
	if len(first) != 2 || first[0].ID != "t4" || first[1].ID != "t3" {
		t.Fatalf("unexpected first page %v", ids(first))
	}
	cursor := first[len(first)-1].CreatedAt
	second, _ := txs.ListByStatus(ctx, domain.StatusPending, &cursor, 10)
	if len(second) != 3 || second[0].ID != "t2" {
		t.Fatalf("unexpected second page %v", ids(second))
	}
	for _, tx := range second {
		if !tx.CreatedAt.Before(cursor) {
			t.Fatalf("item %s is not strictly older than the cursor", tx.ID)
		}
	}
}

func ids(txs []*domain.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	txs := NewMemoryStore().Transactions()
	seedTransaction(t, txs, "t1", domain.StatusPending)

	if _, err := txs.GetForOwner(ctx, "t1", "owner"); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := txs.GetForOwner(ctx, "t1", "intruder"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign read should be not found, got %v", err)
	}
	items, total, _ := txs.ListByOwner(ctx, "intruder", domain.TransactionFilter{Page: 1, Limit: 10})
	if total != 0 || len(items) != 0 {
		t.Fatalf("intruder sees %d items", total)
	}
}

func TestFarPageIsEmpty(t *testing.T) {
	ctx := context.Background()
	txs := NewMemoryStore().Transactions()
	seedTransaction(t, txs, "t1", domain.StatusPending)

	items, total, err := txs.ListByOwner(ctx, "owner", domain.TransactionFilter{Page: 100000000000000000, Limit: 100})
	if err != nil || total != 1 || len(items) != 0 {
		t.Fatalf("far page: items=%d total=%d err=%v", len(items), total, err)
	}
}

func TestPageOffsetSaturates(t *testing.T) {
	cases := []struct {
		page, limit, want int
	}{
		{0, 10, 0},
		{1, 10, 0},
		{3, 10, 20},
		{2, 0, 0},
		{100000000000000000, 100, math.MaxInt32},
	}
	for _, tc := range cases {
		if got := pageOffset(tc.page, tc.limit); got != tc.want {
			t.Errorf("pageOffset(%d, %d) = %d, want %d", tc.page, tc.limit, got, tc.want)
		}
	}
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryStore().Users()
	base := domain.User{ID: "u1", IDNumber: "9001015009087", Username: "Alice_1", AccountNumber: "1111111111", Role: domain.RoleCustomer}
	if err := users.Create(ctx, &base); err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := map[string]domain.User{
		"idNumber":      {ID: "u2", IDNumber: "9001015009087", Username: "other", AccountNumber: "2222222222"},
		"username":      {ID: "u3", IDNumber: "9001015009088", Username: "ALICE_1", AccountNumber: "3333333333"},
		"accountNumber": {ID: "u4", IDNumber: "9001015009089", Username: "third", AccountNumber: "1111111111"},
	}
	for field, u := range cases {
		u := u
		var conflict *domain.ConflictError
		if err := users.Create(ctx, &u); !errors.As(err, &conflict) || conflict.Field != field {
			t.Errorf("%s: expected conflict, got %v", field, err)
		}
	}

	got, err := users.GetByUsername(ctx, "ALICE_1")
	if err != nil || got.ID != "u1" {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}
}

func TestEmployeeActivation(t *testing.T) {
	ctx := context.Background()
	users := NewMemoryStore().Users()
	emp := &domain.User{ID: "e1", IDNumber: "8001015009087", Username: "emp1", AccountNumber: "4444444444",
		Role: domain.RoleEmployee, Employee: &domain.EmployeeRecord{StaffID: "EMP-1", Active: true}}
	cust := &domain.User{ID: "c1", IDNumber: "8001015009088", Username: "cust1", AccountNumber: "5555555555", Role: domain.RoleCustomer}
	for _, u := range []*domain.User{emp, cust} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	updated, err := users.SetEmployeeActive(ctx, "e1", false)
	if err != nil || updated.Employee.Active {
		t.Fatalf("disable: %+v %v", updated, err)
	}
	info, _ := users.GetAuthInfo(ctx, "e1")
	if info.Active {
		t.Fatal("disabled employee reported active")
	}
	if _, err := users.SetEmployeeActive(ctx, "c1", false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("customers are not employees, got %v", err)
	}
}

func TestBeneficiaryNaturalKey(t *testing.T) {
	ctx := context.Background()
	bens := NewMemoryStore().Beneficiaries()
	mk := func(id, owner string) *domain.Beneficiary {
		return &domain.Beneficiary{ID: id, UserID: owner, Name: "Jane",
			Account: domain.ForeignAccount{Country: "DE", SwiftBIC: "DEUTDEFF", IBANOrAccount: "DE89370400440532013000"}}
	}
	if err := bens.Create(ctx, mk("b1", "alice")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bens.Create(ctx, mk("b2", "alice")); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate should conflict, got %v", err)
	}
	if err := bens.Create(ctx, mk("b3", "bob")); err != nil {
		t.Fatalf("other owner may save the same payee: %v", err)
	}
	items, total, _ := bens.ListByOwner(ctx, "alice", domain.BeneficiaryFilter{Page: 1, Limit: 10})
	if total != 1 || len(items) != 1 || items[0].ID != "b1" {
		t.Fatalf("unexpected listing %d", total)
	}
}

func TestMemoryRevocationStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRevocationStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.entries.WithClock(func() time.Time { return now })

	if err := s.Revoke(ctx, "jti-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if won, _ := s.RevokeOnce(ctx, "jti-1", now.Add(time.Hour)); won {
		t.Fatal("jti-1 is already revoked")
	}
	if won, _ := s.RevokeOnce(ctx, "jti-2", now.Add(time.Hour)); !won {
		t.Fatal("jti-2 should be revoked by the first call")
	}
	if won, _ := s.RevokeOnce(ctx, "jti-2", now.Add(time.Hour)); won {
		t.Fatal("jti-2 revoked twice")
	}
	// A token at the edge of expiry still stays spent for a while.
	if won, _ := s.RevokeOnce(ctx, "jti-edge", now.Add(-time.Second)); !won {
		t.Fatal("jti-edge should be revoked")
	}
	if won, _ := s.RevokeOnce(ctx, "jti-edge", now.Add(-time.Second)); won {
		t.Fatal("jti-edge revoked twice")
	}

	now = now.Add(2 * time.Hour)
	if n := s.Prune(); n != 3 {
		t.Fatalf("expected every lapsed entry to be pruned, got %d", n)
	}
}

func TestRevokeOnceConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryRevocationStore()
	until := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if won, err := s.RevokeOnce(ctx, "jti-shared", until); err == nil && won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}
