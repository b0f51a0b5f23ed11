package password

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T, pepper string) *Hasher {
	t.Helper()
	h, err := NewHasher(pepper, bcrypt.MinCost, 2)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

func TestCheckPolicy(t *testing.T) {
	cases := []struct {
		pw   string
		want PolicyReport
	}{
		{"Str0ng!Passw0rd", PolicyReport{true, true, true, true, true, true}},
		{"short1!A", PolicyReport{false, true, true, true, true, false}},
		{"alllowercase1!", PolicyReport{true, false, true, true, true, false}},
		{"ALLUPPERCASE1!", PolicyReport{true, true, false, true, true, false}},
		{"NoDigitsHere!!", PolicyReport{true, true, true, false, true, false}},
		{"NoSymbols12345", PolicyReport{true, true, true, true, false, false}},
		{"", PolicyReport{}},
	}
	for _, tc := range cases {
		if got := CheckPolicy(tc.pw); got != tc.want {
			t.Errorf("CheckPolicy(%q) = %+v, want %+v", tc.pw, got, tc.want)
		}
	}
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, "server-pepper")
	ctx := context.Background()

	for _, pw := range []string{"Str0ng!Passw0rd", "An0ther$ecretValue", strings.Repeat("Ab1!", 30)} {
		hash, err := h.Hash(ctx, pw)
		if err != nil {
			t.Fatalf("Hash: %v", err)
		}
		if !strings.HasPrefix(hash, "$2a$") {
			t.Fatalf("expected self-describing bcrypt hash, got %q", hash)
		}
		ok, err := h.Verify(ctx, pw, hash)
		if err != nil || !ok {
			t.Fatalf("Verify(%q) = %v, %v; want true", pw, ok, err)
		}
		mutated := pw[:len(pw)-1] + "x"
		if ok, _ := h.Verify(ctx, mutated, hash); ok {
			t.Fatalf("Verify accepted a password differing in one character")
		}
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t, "server-pepper")
	ctx := context.Background()

	a, _ := h.Hash(ctx, "Str0ng!Passw0rd")
	b, _ := h.Hash(ctx, "Str0ng!Passw0rd")
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestPepperIsRequiredToVerify(t *testing.T) {
	ctx := context.Background()
	hash, err := newTestHasher(t, "pepper-one").Hash(ctx, "Str0ng!Passw0rd")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ok, _ := newTestHasher(t, "pepper-two").Verify(ctx, "Str0ng!Passw0rd", hash); ok {
		t.Fatal("hash verified under a different pepper")
	}
}

func TestLongPasswordsDifferBeyondBcryptLimit(t *testing.T) {
	h := newTestHasher(t, "pepper")
	ctx := context.Background()
	base := strings.Repeat("Aa1!", 20)

	hash, err := h.Hash(ctx, base+"tail-one")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ok, _ := h.Verify(ctx, base+"tail-two", hash); ok {
		t.Fatal("characters past byte 72 must still affect verification")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t, "pepper")
	ok, err := h.Verify(context.Background(), "Str0ng!Passw0rd", "not-a-hash")
	if err != nil || ok {
		t.Fatalf("Verify on malformed hash = %v, %v; want false, nil", ok, err)
	}
}

func TestHashHonoursCancellation(t *testing.T) {
	h, err := NewHasher("pepper", bcrypt.MinCost, 1)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	h.slots <- struct{}{}
	defer h.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Hash(ctx, "Str0ng!Passw0rd"); err == nil {
		t.Fatal("expected context error while all slots are busy")
	}
}

func TestNewHasherValidation(t *testing.T) {
	if _, err := NewHasher("", 12, 1); err == nil {
		t.Fatal("expected error for empty pepper")
	}
	if _, err := NewHasher("pepper", 99, 1); err == nil {
		t.Fatal("expected error for out-of-range cost")
	}
}
