package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/pkg/cryptobox"
)

func newTestTokenStore(t *testing.T) (TokenStore, string) {
	t.Helper()
	box, err := cryptobox.NewWithKey([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tokens.json")
	return NewTokenStore(path, box), path
}

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }

func saveAccount(t *testing.T, ts TokenStore, platform models.Platform, token, accountID string, isDefault *bool) {
	t.Helper()
	err := ts.SaveToken(context.Background(), platform, token, &SaveOptions{
		RefreshToken: "refresh-" + accountID,
		AccountInfo: &AccountInfo{
			AccountID:   accountID,
			AccountName: "name-" + accountID,
			Username:    "user-" + accountID,
			IsDefault:   isDefault,
		},
	})
	require.NoError(t, err)
}

func TestSaveAndLoadLegacyToken(t *testing.T) {
	ts, path := newTestTokenStore(t)
	ctx := context.Background()

	err := ts.SaveToken(ctx, models.PlatformInstagram, "legacy-token", &SaveOptions{
		ExpiresIn:    int64Ptr(3600),
		RefreshToken: "legacy-refresh",
	})
	require.NoError(t, err)

	acc, err := ts.LoadToken(ctx, models.PlatformInstagram, "")
	require.NoError(t, err)
	assert.Equal(t, models.LegacyAccountID, acc.AccountID)
	assert.Equal(t, "legacy-token", acc.AccessToken)
	assert.Equal(t, "legacy-refresh", acc.RefreshToken)
	require.NotNil(t, acc.ExpiresAt)

	// Plaintext never reaches the disk.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "legacy-token")
	assert.NotContains(t, string(raw), "legacy-refresh")

	// Legacy wire shape uses the token/expiresAt keys.
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	_, hasToken := doc["instagram"]["token"]
	assert.True(t, hasToken)
}

func TestMultiAccountIsolation(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformTiktok, "token-a", "acc-a", nil)
	saveAccount(t, ts, models.PlatformTiktok, "token-b", "acc-b", nil)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformTiktok)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// The first account for a platform becomes default.
	def, err := ts.LoadToken(ctx, models.PlatformTiktok, "")
	require.NoError(t, err)
	assert.Equal(t, "acc-a", def.AccountID)
	assert.True(t, def.IsDefault)
	assert.Equal(t, "token-a", def.AccessToken)

	b, err := ts.LoadToken(ctx, models.PlatformTiktok, "acc-b")
	require.NoError(t, err)
	assert.Equal(t, "token-b", b.AccessToken)
	assert.False(t, b.IsDefault)
}

func TestSaveTokenUpsertsExistingAccount(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformYoutube, "old-token", "acc-1", nil)
	saveAccount(t, ts, models.PlatformYoutube, "new-token", "acc-1", nil)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformYoutube)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "new-token", accounts[0].AccessToken)
	assert.True(t, accounts[0].IsDefault)
}

func TestSaveTokenNewDefaultClearsSiblings(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformTwitter, "token-a", "acc-a", nil)
	saveAccount(t, ts, models.PlatformTwitter, "token-b", "acc-b", boolPtr(true))

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformTwitter)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	defaults := 0
	for _, acc := range accounts {
		if acc.IsDefault {
			defaults++
			assert.Equal(t, "acc-b", acc.AccountID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestDeleteTokenPromotesNewDefault(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformInstagram, "token-a", "acc-a", nil)
	saveAccount(t, ts, models.PlatformInstagram, "token-b", "acc-b", nil)

	removed, err := ts.DeleteToken(ctx, models.PlatformInstagram, "acc-a")
	require.NoError(t, err)
	assert.True(t, removed)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-b", accounts[0].AccountID)
	assert.True(t, accounts[0].IsDefault)
}

func TestDeleteLastAccountRemovesPlatform(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformTiktok, "token-a", "acc-a", nil)

	removed, err := ts.DeleteToken(ctx, models.PlatformTiktok, "acc-a")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = ts.LoadToken(ctx, models.PlatformTiktok, "")
	assert.ErrorIs(t, err, models.ErrNoTokenFound)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformTiktok)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestDeleteWholePlatform(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformYoutube, "token-a", "acc-a", nil)
	saveAccount(t, ts, models.PlatformYoutube, "token-b", "acc-b", nil)

	removed, err := ts.DeleteToken(ctx, models.PlatformYoutube, "")
	require.NoError(t, err)
	assert.True(t, removed)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformYoutube)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	removed, err = ts.DeleteToken(ctx, models.PlatformYoutube, "")
	require.NoError(t, err)
	assert.False(t, removed, "second delete finds nothing")
}

func TestDeleteMissingAccount(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformTwitter, "token-a", "acc-a", nil)

	removed, err := ts.DeleteToken(ctx, models.PlatformTwitter, "nope")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestLegacyMigration(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	err := ts.SaveToken(ctx, models.PlatformInstagram, "t1", &SaveOptions{RefreshToken: "r1"})
	require.NoError(t, err)

	saveAccount(t, ts, models.PlatformInstagram, "t2", "acc-x", nil)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	var migrated, added *models.Account
	for _, acc := range accounts {
		if acc.AccountID == "acc-x" {
			added = acc
		} else {
			migrated = acc
		}
	}
	require.NotNil(t, migrated, "legacy token must survive migration")
	require.NotNil(t, added)

	assert.Equal(t, "t1", migrated.AccessToken)
	assert.Equal(t, "r1", migrated.RefreshToken)
	assert.True(t, migrated.IsDefault)
	assert.NotEmpty(t, migrated.AccountID)

	assert.Equal(t, "t2", added.AccessToken)
	assert.False(t, added.IsDefault)
}

func TestLoadAllAccountsSurfacesLegacyRecord(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	err := ts.SaveToken(ctx, models.PlatformYoutube, "t1", nil)
	require.NoError(t, err)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformYoutube)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, models.LegacyAccountID, accounts[0].AccountID)
	assert.Equal(t, "t1", accounts[0].AccessToken)
}

func TestSetDefaultAccount(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	saveAccount(t, ts, models.PlatformTiktok, "token-a", "acc-a", nil)
	saveAccount(t, ts, models.PlatformTiktok, "token-b", "acc-b", nil)

	ok, err := ts.SetDefaultAccount(ctx, models.PlatformTiktok, "acc-b")
	require.NoError(t, err)
	assert.True(t, ok)

	def, err := ts.LoadToken(ctx, models.PlatformTiktok, "")
	require.NoError(t, err)
	assert.Equal(t, "acc-b", def.AccountID)

	a, err := ts.LoadToken(ctx, models.PlatformTiktok, "acc-a")
	require.NoError(t, err)
	assert.False(t, a.IsDefault)

	ok, err = ts.SetDefaultAccount(ctx, models.PlatformTiktok, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ts.SetDefaultAccount(ctx, models.PlatformTwitter, "acc-a")
	require.NoError(t, err)
	assert.False(t, ok, "unknown platform entry")
}

func TestUnknownPlatformIsHardError(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	err := ts.SaveToken(ctx, models.Platform("myspace"), "t", nil)
	assert.ErrorIs(t, err, models.ErrUnknownPlatform)

	_, err = ts.LoadToken(ctx, models.Platform("myspace"), "")
	assert.ErrorIs(t, err, models.ErrUnknownPlatform)

	_, err = ts.LoadAllAccounts(ctx, models.Platform("myspace"))
	assert.ErrorIs(t, err, models.ErrUnknownPlatform)

	_, err = ts.DeleteToken(ctx, models.Platform("myspace"), "")
	assert.ErrorIs(t, err, models.ErrUnknownPlatform)
}

func TestMissingFileReadsAsEmptyStore(t *testing.T) {
	ts, _ := newTestTokenStore(t)
	ctx := context.Background()

	_, err := ts.LoadToken(ctx, models.PlatformInstagram, "")
	assert.ErrorIs(t, err, models.ErrNoTokenFound)

	accounts, err := ts.LoadAllAccounts(ctx, models.PlatformInstagram)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestPreEncryptionPlaintextPassesThrough(t *testing.T) {
	box, err := cryptobox.NewWithKey([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tokens.json")

	// A store written before encryption was introduced.
	doc := map[string]any{
		"twitter": map[string]any{"token": "plain-token", "expiresAt": nil},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	ts := NewTokenStore(path, box)
	acc, err := ts.LoadToken(context.Background(), models.PlatformTwitter, "")
	require.NoError(t, err)
	assert.Equal(t, "plain-token", acc.AccessToken)
}
