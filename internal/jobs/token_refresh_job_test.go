package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/postpilotapp/postpilot/internal/auth"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type memTokenStore struct {
	mu       sync.Mutex
	accounts map[models.Platform][]*models.Account
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{accounts: make(map[models.Platform][]*models.Account)}
}

func (s *memTokenStore) SaveToken(ctx context.Context, platform models.Platform, token string, opts *store.SaveOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts := s.accounts[platform]
	if len(accounts) == 0 {
		accounts = []*models.Account{{}}
		s.accounts[platform] = accounts
	}
	accounts[0].AccessToken = token
	return nil
}

func (s *memTokenStore) LoadToken(ctx context.Context, platform models.Platform, accountID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts := s.accounts[platform]
	if len(accounts) == 0 {
		return nil, models.ErrNoTokenFound
	}
	copied := *accounts[0]
	return &copied, nil
}

func (s *memTokenStore) LoadAllAccounts(ctx context.Context, platform models.Platform) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accounts, ok := s.accounts[platform]
	if !ok {
		return nil, models.ErrNoTokenFound
	}
	return accounts, nil
}

func (s *memTokenStore) DeleteToken(ctx context.Context, platform models.Platform, accountID string) (bool, error) {
	return false, nil
}

func (s *memTokenStore) SetDefaultAccount(ctx context.Context, platform models.Platform, accountID string) (bool, error) {
	return false, nil
}

type countingStrategy struct {
	mu    sync.Mutex
	calls int
}

func (s *countingStrategy) Refresh(ctx context.Context, account *models.Account) (*transfer.RefreshedToken, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return &transfer.RefreshedToken{AccessToken: "refreshed", ExpiresIn: 3600}, nil
}

func (s *countingStrategy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func millisFromNow(d time.Duration) *int64 {
	at := time.Now().Add(d).UnixMilli()
	return &at
}

func TestRefreshTokensSweepsOnlyExpiringPlatforms(t *testing.T) {
	tokens := newMemTokenStore()
	tokens.accounts[models.PlatformInstagram] = []*models.Account{
		{AccountID: "a1", AccessToken: "t", ExpiresAt: millisFromNow(10 * time.Minute)},
	}
	tokens.accounts[models.PlatformYoutube] = []*models.Account{
		{AccountID: "a2", AccessToken: "t", ExpiresAt: millisFromNow(2 * time.Hour)},
	}
	tokens.accounts[models.PlatformTiktok] = []*models.Account{
		{AccountID: "a3", AccessToken: "t"}, // non-expiring
	}
	// twitter has no stored account at all

	strategies := map[models.Platform]*countingStrategy{}
	table := map[models.Platform]auth.RefreshStrategy{}
	for _, platform := range models.Platforms() {
		s := &countingStrategy{}
		strategies[platform] = s
		table[platform] = s
	}

	j := NewTokenRefreshJob(tokens, auth.NewManager(tokens, table))
	j.RefreshTokens()

	assert.Equal(t, 1, strategies[models.PlatformInstagram].count(), "token inside the horizon is refreshed")
	assert.Equal(t, 0, strategies[models.PlatformYoutube].count(), "token outside the horizon is left alone")
	assert.Equal(t, 0, strategies[models.PlatformTiktok].count(), "non-expiring token is left alone")
	assert.Equal(t, 0, strategies[models.PlatformTwitter].count(), "platform without accounts is skipped")
}

func TestRefreshTokensSweepsAlreadyExpiredTokens(t *testing.T) {
	tokens := newMemTokenStore()
	tokens.accounts[models.PlatformInstagram] = []*models.Account{
		{AccountID: "a1", AccessToken: "t", RefreshToken: "r", ExpiresAt: millisFromNow(-time.Hour)},
	}

	strategy := &countingStrategy{}
	j := NewTokenRefreshJob(tokens, auth.NewManager(tokens, map[models.Platform]auth.RefreshStrategy{
		models.PlatformInstagram: strategy,
	}))
	j.RefreshTokens()

	assert.Equal(t, 1, strategy.count())

	acc, err := tokens.LoadToken(context.Background(), models.PlatformInstagram, "")
	assert.NoError(t, err)
	assert.Equal(t, "refreshed", acc.AccessToken)
}

func TestAnyExpiring(t *testing.T) {
	cutoff := time.Now().Add(30 * time.Minute).UnixMilli()

	assert.False(t, anyExpiring(nil, cutoff))
	assert.False(t, anyExpiring([]*models.Account{{}}, cutoff), "nil expiry never triggers the sweep")
	assert.False(t, anyExpiring([]*models.Account{
		{ExpiresAt: millisFromNow(time.Hour)},
	}, cutoff))
	assert.True(t, anyExpiring([]*models.Account{
		{ExpiresAt: millisFromNow(time.Hour)},
		{ExpiresAt: millisFromNow(time.Minute)},
	}, cutoff), "one expiring account is enough")
	assert.True(t, anyExpiring([]*models.Account{
		{ExpiresAt: millisFromNow(-time.Minute)},
	}, cutoff), "already expired counts as expiring")
}
