package allowance

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/oddslab/parity-arb/pkg/types"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()

	ledger, err := New(&Config{Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return ledger
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid-config",
			config:  &Config{Logger: zaptest.NewLogger(t)},
			wantErr: false,
		},
		{
			name:    "nil-config",
			config:  nil,
			wantErr: true,
			errMsg:  "config cannot be nil",
		},
		{
			name:    "nil-logger",
			config:  &Config{},
			wantErr: true,
			errMsg:  "logger cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestLedger_AuthorizeWithoutGrant(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)

	err := ledger.Authorize(1.0)
	if err == nil {
		t.Fatal("expected error with no grant, got nil")
	}

	var permErr *types.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %T", err)
	}
	if permErr.Reason != types.PermissionNoGrant {
		t.Errorf("expected reason %q, got %q", types.PermissionNoGrant, permErr.Reason)
	}
}

func TestLedger_CommitWithinLimit(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	ledger.Grant(10.0, 24*time.Hour)

	if err := ledger.Authorize(5.0); err != nil {
		t.Fatalf("Authorize(5.0) error: %v", err)
	}
	if err := ledger.Commit(5.0); err != nil {
		t.Fatalf("Commit(5.0) error: %v", err)
	}

	st := ledger.Status()
	if st.SpentToday != 5.0 {
		t.Errorf("SpentToday = %f, want 5.0", st.SpentToday)
	}

	// 5 + 6 > 10: denial must not change the spent counter.
	err := ledger.Authorize(6.0)
	if err == nil {
		t.Fatal("expected denial for 6.0, got nil")
	}

	var permErr *types.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %T", err)
	}
	if permErr.Reason != types.PermissionInsufficient {
		t.Errorf("expected reason %q, got %q", types.PermissionInsufficient, permErr.Reason)
	}
	if permErr.Required != 6.0 || permErr.Remaining != 5.0 {
		t.Errorf("expected required 6.0 remaining 5.0, got %f / %f", permErr.Required, permErr.Remaining)
	}

	if st := ledger.Status(); st.SpentToday != 5.0 {
		t.Errorf("SpentToday after denial = %f, want 5.0", st.SpentToday)
	}
}

func TestLedger_ExactLimitAllowed(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	ledger.Grant(10.0, 24*time.Hour)

	if err := ledger.Commit(5.0); err != nil {
		t.Fatalf("first Commit error: %v", err)
	}
	if err := ledger.Commit(5.0); err != nil {
		t.Fatalf("second Commit error: %v", err)
	}

	st := ledger.Status()
	if st.SpentToday != 10.0 {
		t.Errorf("SpentToday = %f, want 10.0", st.SpentToday)
	}
	if st.Remaining != 0.0 {
		t.Errorf("Remaining = %f, want 0.0", st.Remaining)
	}

	if err := ledger.Authorize(0.01); err == nil {
		t.Error("expected denial at exhausted limit, got nil")
	}
}

func TestLedger_RevokedAuthorizesNothing(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	ledger.Grant(10.0, 24*time.Hour)

	if !ledger.Revoke() {
		t.Fatal("Revoke() = false, want true")
	}
	if ledger.Revoke() {
		t.Error("second Revoke() = true, want false")
	}

	err := ledger.Authorize(0.01)
	if err == nil {
		t.Fatal("expected denial after revocation, got nil")
	}

	var permErr *types.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %T", err)
	}
	if permErr.Reason != types.PermissionRevoked {
		t.Errorf("expected reason %q, got %q", types.PermissionRevoked, permErr.Reason)
	}

	if ledger.Active() {
		t.Error("Active() = true after revocation")
	}
}

func TestLedger_ExpiredAuthorizesNothing(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return current }

	ledger.Grant(10.0, 24*time.Hour)

	// One hour past expiry.
	current = current.Add(25 * time.Hour)

	err := ledger.Authorize(1.0)
	if err == nil {
		t.Fatal("expected denial after expiry, got nil")
	}

	var permErr *types.PermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("expected PermissionError, got %T", err)
	}
	if permErr.Reason != types.PermissionExpired {
		t.Errorf("expected reason %q, got %q", types.PermissionExpired, permErr.Reason)
	}
}

func TestLedger_WindowReset(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return current }

	ledger.Grant(10.0, 30*24*time.Hour)

	if err := ledger.Commit(9.0); err != nil {
		t.Fatalf("Commit(9.0) error: %v", err)
	}
	if err := ledger.Authorize(2.0); err == nil {
		t.Fatal("expected denial before window reset, got nil")
	}

	// Exactly 24h later the window rolls and the full limit is available.
	current = current.Add(24 * time.Hour)

	if err := ledger.Authorize(10.0); err != nil {
		t.Errorf("Authorize(10.0) after reset error: %v", err)
	}

	st := ledger.Status()
	if st.SpentToday != 0.0 {
		t.Errorf("SpentToday after reset = %f, want 0.0", st.SpentToday)
	}
}

func TestLedger_ConcurrentCommitsNeverExceedLimit(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	ledger.Grant(10.0, 24*time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Commit(1.0); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 10 {
		t.Errorf("successes = %d, want 10", successes)
	}

	st := ledger.Status()
	if st.SpentToday > st.DailyLimit {
		t.Errorf("SpentToday %f exceeds DailyLimit %f", st.SpentToday, st.DailyLimit)
	}
	if st.SpentToday != 10.0 {
		t.Errorf("SpentToday = %f, want 10.0", st.SpentToday)
	}
}

func TestLedger_GrantReplacesPrevious(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)

	first := ledger.Grant(5.0, 24*time.Hour)
	if err := ledger.Commit(5.0); err != nil {
		t.Fatalf("Commit error: %v", err)
	}

	second := ledger.Grant(20.0, 24*time.Hour)
	if second.PermissionID == first.PermissionID {
		t.Error("expected a fresh permission id on replacement")
	}

	st := ledger.Status()
	if st.DailyLimit != 20.0 {
		t.Errorf("DailyLimit = %f, want 20.0", st.DailyLimit)
	}
	if st.SpentToday != 0.0 {
		t.Errorf("SpentToday = %f, want 0.0 on fresh grant", st.SpentToday)
	}
}

func TestLedger_InstallValidation(t *testing.T) {
	t.Parallel()

	expiry := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name    string
		grant   Grant
		wantErr string
	}{
		{
			name:    "missing-permission-id",
			grant:   Grant{DailyLimit: 10.0, ExpiresAt: expiry},
			wantErr: "permission id cannot be empty",
		},
		{
			name:    "zero-daily-limit",
			grant:   Grant{PermissionID: "perm-1", ExpiresAt: expiry},
			wantErr: "daily limit must be positive, got 0.000000",
		},
		{
			name:    "missing-expiry",
			grant:   Grant{PermissionID: "perm-1", DailyLimit: 10.0},
			wantErr: "expiry must be set",
		},
		{
			name:  "valid-document",
			grant: Grant{PermissionID: "perm-1", DailyLimit: 10.0, ExpiresAt: expiry},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newTestLedger(t)

			err := ledger.Install(tt.grant)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if err.Error() != tt.wantErr {
					t.Errorf("expected error %q, got %q", tt.wantErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			st := ledger.Status()
			if !st.Active {
				t.Error("expected installed grant to be active")
			}
			if st.PermissionID != "perm-1" {
				t.Errorf("PermissionID = %q, want perm-1", st.PermissionID)
			}
		})
	}
}

func TestLedger_ReinstallSameIDKeepsSpend(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)
	expiry := time.Now().Add(24 * time.Hour)

	doc := Grant{PermissionID: "perm-7", DailyLimit: 10.0, ExpiresAt: expiry}
	if err := ledger.Install(doc); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if err := ledger.Commit(4.0); err != nil {
		t.Fatalf("Commit error: %v", err)
	}

	// Replaying the same document must not clear the spent counter.
	if err := ledger.Install(doc); err != nil {
		t.Fatalf("reinstall error: %v", err)
	}

	st := ledger.Status()
	if st.SpentToday != 4.0 {
		t.Errorf("SpentToday = %f, want 4.0 after reinstall", st.SpentToday)
	}

	// A different permission id replaces the grant wholesale.
	fresh := Grant{PermissionID: "perm-8", DailyLimit: 25.0, ExpiresAt: expiry}
	if err := ledger.Install(fresh); err != nil {
		t.Fatalf("Install fresh error: %v", err)
	}

	st = ledger.Status()
	if st.PermissionID != "perm-8" {
		t.Errorf("PermissionID = %q, want perm-8", st.PermissionID)
	}
	if st.SpentToday != 0.0 {
		t.Errorf("SpentToday = %f, want 0.0 on new permission", st.SpentToday)
	}
	if st.DailyLimit != 25.0 {
		t.Errorf("DailyLimit = %f, want 25.0", st.DailyLimit)
	}
}

func TestLedger_InstallRevokedGrantDeniesSpending(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t)

	err := ledger.Install(Grant{
		PermissionID: "perm-9",
		DailyLimit:   10.0,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
		Revoked:      true,
	})
	if err != nil {
		t.Fatalf("Install error: %v", err)
	}

	authErr := ledger.Authorize(1.0)
	if authErr == nil {
		t.Fatal("expected revoked grant to deny spending")
	}

	var permErr *types.PermissionError
	if !errors.As(authErr, &permErr) {
		t.Fatalf("expected PermissionError, got %T", authErr)
	}
	if permErr.Reason != types.PermissionRevoked {
		t.Errorf("expected reason %q, got %q", types.PermissionRevoked, permErr.Reason)
	}
}
