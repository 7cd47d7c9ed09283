// Package naming picks collision-free API names of the form base, base-1,
// base-2, and so on.
package naming

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/apigen/apigen/internal/observability"
)

var ErrNameExhausted = errors.New("naming: no free api name within attempt limit")

const DefaultMaxAttempts = 1000

// Lookup reports whether a name is already taken.
type Lookup interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// InsertFunc writes under name unless it is taken and reports whether it did.
type InsertFunc func(ctx context.Context, name string) (bool, error)

type Allocator struct {
	lookup      Lookup
	maxAttempts int
}

func NewAllocator(lookup Lookup, maxAttempts int) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{lookup: lookup, maxAttempts: maxAttempts}
}

// Candidate returns the attempt-th name for base. Attempt 0 is base itself.
func Candidate(base string, attempt int) string {
	if attempt <= 0 {
		return base
	}
	return base + "-" + strconv.Itoa(attempt)
}

// Allocate returns the first candidate with no existing record. It only reads;
// the caller must still reserve the name with Reserve.
func (a *Allocator) Allocate(ctx context.Context, base string) (string, error) {
	base, err := normalizeBase(base)
	if err != nil {
		return "", err
	}
	if a.lookup == nil {
		return "", fmt.Errorf("name lookup is not configured")
	}
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := Candidate(base, attempt)
		exists, err := a.lookup.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("probe api name %q: %w", candidate, err)
		}
		if !exists {
			observability.ObserveNameProbeAttempts(attempt + 1)
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: base %q after %d attempts", ErrNameExhausted, base, a.maxAttempts)
}

// Reserve walks the same candidate sequence as Allocate but claims the name
// through insert, which must be an atomic insert-if-absent. A lost race simply
// moves on to the next suffix.
func (a *Allocator) Reserve(ctx context.Context, base string, insert InsertFunc) (string, error) {
	base, err := normalizeBase(base)
	if err != nil {
		return "", err
	}
	if insert == nil {
		return "", fmt.Errorf("insert function is required")
	}
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := Candidate(base, attempt)
		inserted, err := insert(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("reserve api name %q: %w", candidate, err)
		}
		if inserted {
			observability.ObserveNameProbeAttempts(attempt + 1)
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: base %q after %d attempts", ErrNameExhausted, base, a.maxAttempts)
}

func normalizeBase(base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", fmt.Errorf("base name is required")
	}
	return base, nil
}
