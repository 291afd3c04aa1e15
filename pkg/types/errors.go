package types

import (
	"errors"
	"fmt"
)

// Liquidity and fill failures are expected, frequent outcomes. They are
// sentinels so callers can branch with errors.Is without counting them
// toward any failure streak.
var (
	// ErrInsufficientLiquidity means the visible ladder cannot fill the
	// full requested size.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrNoFill means the fill model produced a zero or negative filled
	// size. It is a realistic no-fill, not a fault.
	ErrNoFill = errors.New("no fill")
)

// PermissionReason enumerates why the ledger refused an authorization.
type PermissionReason string

const (
	PermissionNoGrant      PermissionReason = "NO_GRANT"
	PermissionRevoked      PermissionReason = "REVOKED"
	PermissionExpired      PermissionReason = "EXPIRED"
	PermissionInsufficient PermissionReason = "INSUFFICIENT_ALLOWANCE"
)

// PermissionError is returned by the spend ledger's authorization gate.
type PermissionError struct {
	Reason    PermissionReason
	Required  float64
	Remaining float64
}

func (e *PermissionError) Error() string {
	if e.Reason == PermissionInsufficient {
		return fmt.Sprintf("permission denied (%s): required %.4f, remaining %.4f",
			e.Reason, e.Required, e.Remaining)
	}

	return fmt.Sprintf("permission denied (%s)", e.Reason)
}

// IsPermissionDenied reports whether err is a ledger authorization
// rejection of any reason.
func IsPermissionDenied(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// FetchError is a data-layer failure from the market-data client. These
// count toward the engine's consecutive-failure streak.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Endpoint, e.StatusCode)
	}

	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
