package allowance

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oddslab/parity-arb/pkg/types"
)

// spendWindow is the fixed rolling window over which the daily limit applies.
const spendWindow = 24 * time.Hour

// Grant is one spending permission. A grant caps how much notional the agent
// may commit inside each 24 hour window until it expires or is revoked.
type Grant struct {
	PermissionID string    `json:"permission_id"`
	Token        string    `json:"token"`
	DailyLimit   float64   `json:"daily_limit"`
	SpentToday   float64   `json:"spent_today"`
	WindowStart  time.Time `json:"window_start"`
	GrantedAt    time.Time `json:"granted_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Revoked      bool      `json:"revoked"`
}

// Status is a point-in-time view of the ledger for HTTP handlers and the
// engine gate.
type Status struct {
	Active       bool      `json:"active"`
	PermissionID string    `json:"permission_id,omitempty"`
	DailyLimit   float64   `json:"daily_limit"`
	SpentToday   float64   `json:"spent_today"`
	Remaining    float64   `json:"remaining"`
	ExpiresAt    time.Time `json:"expires_at"`
	Revoked      bool      `json:"revoked"`
}

// Ledger owns the spending permission state. Every simulated expenditure must
// pass Authorize before the spend is recorded with Commit; the spent counter
// is only ever incremented by Commit. The 24 hour window resets lazily on
// access.
type Ledger struct {
	logger *zap.Logger
	now    func() time.Time

	mu    sync.RWMutex
	grant *Grant
}

// Config holds ledger configuration.
type Config struct {
	Logger *zap.Logger
}

// New creates an empty ledger with no active grant.
func New(cfg *Config) (*Ledger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &Ledger{
		logger: cfg.Logger,
		now:    time.Now,
	}, nil
}

// Grant installs a fresh spending permission, replacing any existing one.
func (l *Ledger) Grant(dailyLimit float64, duration time.Duration) Grant {
	now := l.now()
	g := Grant{
		PermissionID: uuid.NewString(),
		Token:        uuid.NewString(),
		DailyLimit:   dailyLimit,
		WindowStart:  now,
		GrantedAt:    now,
		ExpiresAt:    now.Add(duration),
	}

	l.mu.Lock()
	replaced := l.grant != nil
	l.grant = &g
	l.mu.Unlock()

	if replaced {
		l.logger.Warn("permission-replaced",
			zap.String("permission_id", g.PermissionID))
	}
	l.logger.Info("permission-granted",
		zap.String("permission_id", g.PermissionID),
		zap.Float64("daily_limit", dailyLimit),
		zap.Time("expires_at", g.ExpiresAt))

	GrantsTotal.Inc()
	DailyLimitUSD.Set(dailyLimit)
	SpentTodayUSD.Set(0)

	return g
}

// Install replaces the ledger's grant with an externally supplied document.
// Re-installing the permission id currently held keeps the accumulated spend
// and window, so replaying a grant cannot clear the allowance.
func (l *Ledger) Install(g Grant) error {
	if g.PermissionID == "" {
		return fmt.Errorf("permission id cannot be empty")
	}
	if g.DailyLimit <= 0 {
		return fmt.Errorf("daily limit must be positive, got %f", g.DailyLimit)
	}
	if g.ExpiresAt.IsZero() {
		return fmt.Errorf("expiry must be set")
	}

	now := l.now()
	if g.GrantedAt.IsZero() {
		g.GrantedAt = now
	}
	if g.WindowStart.IsZero() {
		g.WindowStart = now
	}

	l.mu.Lock()
	if l.grant != nil && l.grant.PermissionID == g.PermissionID {
		g.SpentToday = l.grant.SpentToday
		g.WindowStart = l.grant.WindowStart
	}
	l.grant = &g
	spent := g.SpentToday
	l.mu.Unlock()

	l.logger.Info("permission-installed",
		zap.String("permission_id", g.PermissionID),
		zap.Float64("daily_limit", g.DailyLimit),
		zap.Time("expires_at", g.ExpiresAt),
		zap.Bool("revoked", g.Revoked))

	GrantsTotal.Inc()
	DailyLimitUSD.Set(g.DailyLimit)
	SpentTodayUSD.Set(spent)

	return nil
}

// Revoke marks the current grant revoked. Returns false when there is no
// grant or it is already revoked.
func (l *Ledger) Revoke() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.grant == nil || l.grant.Revoked {
		return false
	}

	l.grant.Revoked = true
	l.logger.Warn("permission-revoked",
		zap.String("permission_id", l.grant.PermissionID),
		zap.Float64("spent_today", l.grant.SpentToday))

	RevocationsTotal.Inc()

	return true
}

// Authorize checks whether the given amount may be spent. It mutates nothing
// except the lazy window reset. A nil return means the spend is currently
// within the allowance.
func (l *Ledger) Authorize(amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.authorizeLocked(amount)
}

// Commit records an authorized spend. The headroom check is repeated under
// the write lock so that spent_today can never exceed daily_limit even when
// commits race.
func (l *Ledger) Commit(amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.authorizeLocked(amount); err != nil {
		return err
	}

	l.grant.SpentToday += amount
	SpentTodayUSD.Set(l.grant.SpentToday)

	l.logger.Debug("allowance-committed",
		zap.Float64("amount", amount),
		zap.Float64("spent_today", l.grant.SpentToday),
		zap.Float64("daily_limit", l.grant.DailyLimit))

	return nil
}

// Status returns a snapshot of the current grant. The lazy window reset runs
// first so spent_today reflects the active window.
func (l *Ledger) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.grant == nil {
		return Status{}
	}

	l.resetWindowLocked()

	g := l.grant
	now := l.now()
	active := !g.Revoked && !now.After(g.ExpiresAt)

	return Status{
		Active:       active,
		PermissionID: g.PermissionID,
		DailyLimit:   g.DailyLimit,
		SpentToday:   g.SpentToday,
		Remaining:    g.DailyLimit - g.SpentToday,
		ExpiresAt:    g.ExpiresAt,
		Revoked:      g.Revoked,
	}
}

// Active reports whether a usable grant is installed.
func (l *Ledger) Active() bool {
	return l.Status().Active
}

// authorizeLocked applies the window reset and then the denial checks in
// order: missing grant, revoked, expired, insufficient headroom. Callers must
// hold the write lock.
func (l *Ledger) authorizeLocked(amount float64) error {
	g := l.grant
	if g == nil {
		AuthDenialsTotal.WithLabelValues(string(types.PermissionNoGrant)).Inc()
		return &types.PermissionError{Reason: types.PermissionNoGrant}
	}

	l.resetWindowLocked()

	now := l.now()
	if g.Revoked {
		AuthDenialsTotal.WithLabelValues(string(types.PermissionRevoked)).Inc()
		return &types.PermissionError{Reason: types.PermissionRevoked}
	}
	if now.After(g.ExpiresAt) {
		AuthDenialsTotal.WithLabelValues(string(types.PermissionExpired)).Inc()
		return &types.PermissionError{Reason: types.PermissionExpired}
	}
	if g.SpentToday+amount > g.DailyLimit {
		AuthDenialsTotal.WithLabelValues(string(types.PermissionInsufficient)).Inc()
		return &types.PermissionError{
			Reason:    types.PermissionInsufficient,
			Required:  amount,
			Remaining: g.DailyLimit - g.SpentToday,
		}
	}

	return nil
}

// resetWindowLocked zeroes the spent counter once the window has elapsed.
// Callers must hold the write lock and have checked the grant is non-nil.
func (l *Ledger) resetWindowLocked() {
	g := l.grant
	now := l.now()
	if now.Sub(g.WindowStart) < spendWindow {
		return
	}

	g.SpentToday = 0
	g.WindowStart = now
	SpentTodayUSD.Set(0)
	WindowResetsTotal.Inc()

	l.logger.Info("allowance-window-reset",
		zap.String("permission_id", g.PermissionID),
		zap.Time("window_start", now))
}
