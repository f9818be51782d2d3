// Package redemption validates premium redemption codes against a
// server-held allow-list.
package redemption

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// builtinCodes is the zero-config fallback when no codes are configured.
// Known weak point: without single-use tracking enabled these are
// redeemable indefinitely.
var builtinCodes = []string{"SUMMARI2024", "KOSKELO123", "TESTCODE"}

// DefaultExpiryDays is the premium duration granted by a redeemed code.
const DefaultExpiryDays = 30

// Result is the outcome of a redemption attempt. Messages are user-facing.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ExpiryDays int    `json:"expiry_days,omitempty"`
}

// UsedCodeStore tracks redeemed codes when single-use mode is enabled.
type UsedCodeStore interface {
	IsUsed(ctx context.Context, code string) (bool, error)
	MarkUsed(ctx context.Context, code string) error
}

// Verifier checks codes case-insensitively against the configured list.
// It holds no entitlement state itself; the caller grants premium on a
// successful result.
type Verifier struct {
	codes      []string
	expiryDays int
	singleUse  bool
	used       UsedCodeStore
}

// NewVerifier creates a verifier. An empty code list falls back to the
// builtin codes.
func NewVerifier(codes []string, expiryDays int) *Verifier {
	if len(codes) == 0 {
		codes = builtinCodes
	}
	if expiryDays <= 0 {
		expiryDays = DefaultExpiryDays
	}

	normalized := make([]string, 0, len(codes))
	for _, c := range codes {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			normalized = append(normalized, strings.ToLower(trimmed))
		}
	}

	return &Verifier{codes: normalized, expiryDays: expiryDays}
}

// WithSingleUse enables single-use enforcement backed by the given store.
func (v *Verifier) WithSingleUse(store UsedCodeStore) *Verifier {
	v.singleUse = store != nil
	v.used = store
	return v
}

// Redeem validates a code. Empty or whitespace-only input is a no-match,
// not an error. A store failure in single-use mode fails closed: no grant.
func (v *Verifier) Redeem(ctx context.Context, code string) (*Result, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if normalized == "" {
		return &Result{Success: false, Message: "Koodi puuttuu"}, nil
	}

	match := false
	for _, valid := range v.codes {
		if valid == normalized {
			match = true
			break
		}
	}
	if !match {
		return &Result{Success: false, Message: "Virheellinen koodi"}, nil
	}

	if v.singleUse {
		used, err := v.used.IsUsed(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("failed to check code usage: %w", err)
		}
		if used {
			return &Result{Success: false, Message: "Koodi on jo käytetty"}, nil
		}
		if err := v.used.MarkUsed(ctx, normalized); err != nil {
			return nil, fmt.Errorf("failed to mark code as used: %w", err)
		}
	}

	log.Printf("[redemption] Code redeemed (expiry_days=%d)", v.expiryDays)

	return &Result{
		Success:    true,
		Message:    "Koodi hyväksytty!",
		ExpiryDays: v.expiryDays,
	}, nil
}
