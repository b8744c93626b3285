package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilotapp/postpilot/internal/auth"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
)

// expiryHorizon is how far ahead the sweep looks for tokens worth refreshing.
const expiryHorizon = 30 * time.Minute

// TokenRefreshJob periodically refreshes tokens that are expired or about to
// expire. De-duplication of concurrent refreshes is handled by the manager.
type TokenRefreshJob struct {
	tokens store.TokenStore
	am     *auth.Manager
}

func NewTokenRefreshJob(tokens store.TokenStore, am *auth.Manager) *TokenRefreshJob {
	return &TokenRefreshJob{
		tokens: tokens,
		am:     am,
	}
}

func (j *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()
	cutoff := time.Now().Add(expiryHorizon).UnixMilli()

	var wg sync.WaitGroup

	concurrencyLimit := 4
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, platform := range models.Platforms() {
		accounts, err := j.tokens.LoadAllAccounts(ctx, platform)
		if err != nil {
			slog.Info(err.Error())
			continue
		}

		if !anyExpiring(accounts, cutoff) {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(platform models.Platform) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := j.am.RefreshToken(ctx, platform); err != nil {
				slog.Info("unable to refresh tokens", "platform", platform, "error", err)
			}
		}(platform)
	}

	wg.Wait()
}

func anyExpiring(accounts []*models.Account, cutoff int64) bool {
	for _, acc := range accounts {
		if acc.ExpiresAt != nil && *acc.ExpiresAt <= cutoff {
			return true
		}
	}
	return false
}
