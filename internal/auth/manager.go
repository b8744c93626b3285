// Package auth orchestrates token refresh: it validates token shape and
// expiry, serializes concurrent refresh attempts per platform, and dispatches
// to per-platform refresh strategies.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/ratelimit"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

// RefreshStrategy performs one platform's token refresh. The account it
// receives carries decrypted tokens.
type RefreshStrategy interface {
	Refresh(ctx context.Context, account *models.Account) (*transfer.RefreshedToken, error)
}

type Manager struct {
	tokens     store.TokenStore
	strategies map[models.Platform]RefreshStrategy

	// Guards the in-flight set. Check-and-set must be atomic relative to
	// other refresh calls for the same platform.
	mu       sync.Mutex
	inflight map[models.Platform]struct{}
}

func NewManager(tokens store.TokenStore, strategies map[models.Platform]RefreshStrategy) *Manager {
	return &Manager{
		tokens:     tokens,
		strategies: strategies,
		inflight:   make(map[models.Platform]struct{}),
	}
}

// RefreshToken refreshes the platform's default account token. Concurrent
// calls for a platform collapse into one: a call that finds a refresh already
// in flight returns immediately without performing work.
func (m *Manager) RefreshToken(ctx context.Context, platform models.Platform) error {
	if !platform.Valid() {
		return models.ErrUnknownPlatform
	}

	m.mu.Lock()
	if _, busy := m.inflight[platform]; busy {
		m.mu.Unlock()
		return nil
	}
	m.inflight[platform] = struct{}{}
	m.mu.Unlock()

	// The in-flight mark must clear on every path, including panics in a
	// strategy; a stuck mark would block all future refreshes.
	defer func() {
		m.mu.Lock()
		delete(m.inflight, platform)
		m.mu.Unlock()
	}()

	account, err := m.tokens.LoadToken(ctx, platform, "")
	if err != nil {
		return err
	}

	strategy, ok := m.strategies[platform]
	if !ok {
		return fmt.Errorf("no refresh strategy registered for %s", platform)
	}

	refreshed, err := strategy.Refresh(ctx, account)
	if err != nil {
		return err
	}

	opts := &store.SaveOptions{RefreshToken: refreshed.RefreshToken}
	if opts.RefreshToken == "" {
		opts.RefreshToken = account.RefreshToken
	}
	if refreshed.ExpiresIn > 0 {
		expiresIn := refreshed.ExpiresIn
		opts.ExpiresIn = &expiresIn
	}
	if account.AccountID != "" && account.AccountID != models.LegacyAccountID {
		opts.AccountInfo = &store.AccountInfo{
			AccountID:   account.AccountID,
			AccountName: account.AccountName,
			Username:    account.Username,
		}
	}

	if err := m.tokens.SaveToken(ctx, platform, refreshed.AccessToken, opts); err != nil {
		return err
	}

	slog.Info("token refreshed", "platform", platform, "account", account.AccountID)
	return nil
}

// Refreshing reports whether a refresh is currently in flight for the
// platform.
func (m *Manager) Refreshing(platform models.Platform) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.inflight[platform]
	return busy
}

// GetRateLimit returns the hourly quota for a platform operation. Kept here
// because refresh scheduling is rate-limit-aware.
func (m *Manager) GetRateLimit(platform models.Platform, operation string) int {
	return ratelimit.LimitFor(platform, operation)
}

// RefreshInterval returns the advisory minimum interval between refreshes for
// the platform per its published policy.
func (m *Manager) RefreshInterval(platform models.Platform) time.Duration {
	if interval, ok := ratelimit.RefreshIntervals[platform]; ok {
		return interval
	}
	return time.Hour
}
