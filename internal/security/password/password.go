// Package password implements the password policy and the peppered bcrypt
// hashing used for every stored credential.
package password

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinLength is the minimum number of characters in an acceptable password.
const MinLength = 12

// bcrypt ignores input beyond this many bytes.
const bcryptInputLimit = 72

// PolicyReport is the per-rule outcome of CheckPolicy.
type PolicyReport struct {
	Length  bool `json:"length"`
	Upper   bool `json:"upper"`
	Lower   bool `json:"lower"`
	Digit   bool `json:"digit"`
	Special bool `json:"special"`
	OK      bool `json:"ok"`
}

// CheckPolicy evaluates every strength rule independently so callers can
// render field-level guidance.
func CheckPolicy(pw string) PolicyReport {
	r := PolicyReport{Length: utf8.RuneCountInString(pw) >= MinLength}
	for _, c := range pw {
		switch {
		case c >= 'A' && c <= 'Z':
			r.Upper = true
		case c >= 'a' && c <= 'z':
			r.Lower = true
		case c >= '0' && c <= '9':
			r.Digit = true
		default:
			r.Special = true
		}
	}
	r.OK = r.Length && r.Upper && r.Lower && r.Digit && r.Special
	return r
}

// Hasher hashes and verifies passwords with a server-side pepper. The number
// of concurrent bcrypt computations is bounded so a burst of logins cannot
// starve the rest of the process.
type Hasher struct {
	pepper string
	cost   int
	slots  chan struct{}
}

// NewHasher returns a Hasher. cost must be a valid bcrypt cost; workers
// bounds concurrent hash computations.
func NewHasher(pepper string, cost, workers int) (*Hasher, error) {
	if pepper == "" {
		return nil, errors.New("password pepper is required")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	if workers <= 0 {
		workers = 1
	}
	return &Hasher{pepper: pepper, cost: cost, slots: make(chan struct{}, workers)}, nil
}

// Hash returns a self-describing bcrypt hash of the peppered password with a
// fresh salt. Failures are returned, never masked.
func (h *Hasher) Hash(ctx context.Context, pw string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	out, err := bcrypt.GenerateFromPassword(h.peppered(pw), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(out), nil
}

// Verify reports whether pw matches hash. Malformed hashes yield false.
func (h *Hasher) Verify(ctx context.Context, pw, hash string) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release()

	err := bcrypt.CompareHashAndPassword([]byte(hash), h.peppered(pw))
	return err == nil, nil
}

// peppered appends the pepper. Inputs longer than bcrypt reads are
// pre-hashed so that every byte of password and pepper still counts.
func (h *Hasher) peppered(pw string) []byte {
	in := []byte(pw + h.pepper)
	if len(in) <= bcryptInputLimit {
		return in
	}
	sum := sha256.Sum256(in)
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}

func (h *Hasher) acquire(ctx context.Context) error {
	select {
	case h.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hasher) release() {
	<-h.slots
}
