package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/pkg/cryptobox"
)

// AccountInfo carries the identity part of a credential hand-off. A non-nil
// AccountInfo selects multi-account mode in SaveToken.
type AccountInfo struct {
	AccountID   string
	AccountName string
	Username    string
	IsDefault   *bool // nil = not supplied by the caller
}

type SaveOptions struct {
	ExpiresIn    *int64 // seconds until expiry, nil = non-expiring
	RefreshToken string
	AccountInfo  *AccountInfo
}

// TokenStore is the persistent, encrypted, multi-account credential store.
// An empty accountID selects the default account on reads and the whole
// platform entry on deletes.
type TokenStore interface {
	SaveToken(ctx context.Context, platform models.Platform, token string, opts *SaveOptions) error
	LoadToken(ctx context.Context, platform models.Platform, accountID string) (*models.Account, error)
	LoadAllAccounts(ctx context.Context, platform models.Platform) ([]*models.Account, error)
	DeleteToken(ctx context.Context, platform models.Platform, accountID string) (bool, error)
	SetDefaultAccount(ctx context.Context, platform models.Platform, accountID string) (bool, error)
}

type tokenDocument map[models.Platform]*models.PlatformRecord

type tokenStore struct {
	path string
	box  *cryptobox.Box

	// Guards the read-modify-write cycle on the backing file. The document
	// itself has last-write-wins semantics across processes.
	mu  sync.Mutex
	now func() time.Time
}

func NewTokenStore(path string, box *cryptobox.Box) TokenStore {
	return &tokenStore{
		path: path,
		box:  box,
		now:  time.Now,
	}
}

// read loads the backing document. A missing or unreadable file is an empty
// store, not an error.
func (s *tokenStore) read() tokenDocument {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return tokenDocument{}
	}

	var doc tokenDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("token store unreadable, treating as empty", "path", s.path)
		return tokenDocument{}
	}
	if doc == nil {
		doc = tokenDocument{}
	}
	return doc
}

func (s *tokenStore) write(doc tokenDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("persist token store: %w", err)
	}
	return nil
}

func (s *tokenStore) SaveToken(ctx context.Context, platform models.Platform, token string, opts *SaveOptions) error {
	if !platform.Valid() {
		return models.ErrUnknownPlatform
	}
	if opts == nil {
		opts = &SaveOptions{}
	}

	encryptedToken, err := s.box.Encrypt(token)
	if err != nil {
		return err
	}
	encryptedRefresh, err := s.box.Encrypt(opts.RefreshToken)
	if err != nil {
		return err
	}

	var expiresAt *int64
	if opts.ExpiresIn != nil {
		at := s.now().UnixMilli() + *opts.ExpiresIn*1000
		expiresAt = &at
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()

	if opts.AccountInfo == nil {
		doc[platform] = &models.PlatformRecord{Legacy: &models.LegacyRecord{
			Token:        encryptedToken,
			ExpiresAt:    expiresAt,
			RefreshToken: encryptedRefresh,
		}}
		return s.write(doc)
	}

	info := opts.AccountInfo
	if info.AccountID == "" {
		return errors.New("accountId is required for multi-account save")
	}

	rec := doc[platform]
	if rec == nil {
		rec = &models.PlatformRecord{}
		doc[platform] = rec
	}

	if rec.Legacy != nil {
		migrated, err := s.migrateLegacy(rec.Legacy)
		if err != nil {
			return err
		}
		rec.Accounts = append(rec.Accounts, migrated)
		rec.Legacy = nil
	}

	updated := &models.Account{
		AccountID:    info.AccountID,
		AccountName:  info.AccountName,
		Username:     info.Username,
		AccessToken:  encryptedToken,
		RefreshToken: encryptedRefresh,
		ExpiresAt:    expiresAt,
	}

	if existing := findAccount(rec.Accounts, info.AccountID); existing != nil {
		if updated.AccountName == "" {
			updated.AccountName = existing.AccountName
		}
		if updated.Username == "" {
			updated.Username = existing.Username
		}
		updated.ConnectedAt = existing.ConnectedAt
		updated.IsDefault = existing.IsDefault
		if info.IsDefault != nil {
			updated.IsDefault = *info.IsDefault
		}
		*existing = *updated
	} else {
		updated.ConnectedAt = s.now().UTC().Format(time.RFC3339)
		if len(rec.Accounts) == 0 {
			updated.IsDefault = true
		} else if info.IsDefault != nil {
			updated.IsDefault = *info.IsDefault
		}
		rec.Accounts = append(rec.Accounts, updated)
	}

	normalizeDefault(rec.Accounts, info.AccountID)

	return s.write(doc)
}

// migrateLegacy lifts a legacy record into a multi-account entry with a
// generated id. Ciphertext carries over untouched so the legacy token is
// never lost or re-encrypted.
func (s *tokenStore) migrateLegacy(legacy *models.LegacyRecord) (*models.Account, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &models.Account{
		AccountID:    id,
		AccessToken:  legacy.Token,
		RefreshToken: legacy.RefreshToken,
		ExpiresAt:    legacy.ExpiresAt,
		IsDefault:    true,
		ConnectedAt:  s.now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *tokenStore) LoadToken(ctx context.Context, platform models.Platform, accountID string) (*models.Account, error) {
	if !platform.Valid() {
		return nil, models.ErrUnknownPlatform
	}

	s.mu.Lock()
	doc := s.read()
	s.mu.Unlock()

	rec := doc[platform]
	if rec == nil {
		return nil, models.ErrNoTokenFound
	}

	if rec.IsLegacy() {
		if accountID != "" && accountID != models.LegacyAccountID {
			return nil, models.ErrAccountNotFound
		}
		return s.decryptAccount(legacyAccount(rec.Legacy))
	}

	if len(rec.Accounts) == 0 {
		return nil, models.ErrNoTokenFound
	}

	if accountID == "" {
		return s.decryptAccount(defaultAccount(rec.Accounts))
	}

	acc := findAccount(rec.Accounts, accountID)
	if acc == nil {
		return nil, models.ErrAccountNotFound
	}
	return s.decryptAccount(acc)
}

func (s *tokenStore) LoadAllAccounts(ctx context.Context, platform models.Platform) ([]*models.Account, error) {
	if !platform.Valid() {
		return nil, models.ErrUnknownPlatform
	}

	s.mu.Lock()
	doc := s.read()
	s.mu.Unlock()

	rec := doc[platform]
	if rec == nil {
		return []*models.Account{}, nil
	}

	if rec.IsLegacy() {
		acc, err := s.decryptAccount(legacyAccount(rec.Legacy))
		if err != nil {
			return nil, err
		}
		return []*models.Account{acc}, nil
	}

	accounts := make([]*models.Account, 0, len(rec.Accounts))
	for _, acc := range rec.Accounts {
		decrypted, err := s.decryptAccount(acc)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, decrypted)
	}
	return accounts, nil
}

func (s *tokenStore) DeleteToken(ctx context.Context, platform models.Platform, accountID string) (bool, error) {
	if !platform.Valid() {
		return false, models.ErrUnknownPlatform
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	rec := doc[platform]
	if rec == nil {
		return false, nil
	}

	if accountID == "" || (rec.IsLegacy() && accountID == models.LegacyAccountID) {
		delete(doc, platform)
		return true, s.write(doc)
	}

	if rec.IsLegacy() {
		return false, nil
	}

	idx := -1
	for i, acc := range rec.Accounts {
		if acc.AccountID == accountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	wasDefault := rec.Accounts[idx].IsDefault
	rec.Accounts = append(rec.Accounts[:idx], rec.Accounts[idx+1:]...)

	if len(rec.Accounts) == 0 {
		delete(doc, platform)
	} else if wasDefault {
		rec.Accounts[0].IsDefault = true
	}

	return true, s.write(doc)
}

func (s *tokenStore) SetDefaultAccount(ctx context.Context, platform models.Platform, accountID string) (bool, error) {
	if !platform.Valid() {
		return false, models.ErrUnknownPlatform
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	rec := doc[platform]
	if rec == nil || rec.IsLegacy() {
		return false, nil
	}
	if findAccount(rec.Accounts, accountID) == nil {
		return false, nil
	}

	for _, acc := range rec.Accounts {
		acc.IsDefault = acc.AccountID == accountID
	}

	return true, s.write(doc)
}

func (s *tokenStore) decryptAccount(acc *models.Account) (*models.Account, error) {
	out := *acc

	token, err := s.box.Decrypt(acc.AccessToken)
	if err != nil && !errors.Is(err, cryptobox.ErrNotCiphertext) {
		return nil, err
	}
	out.AccessToken = token

	refresh, err := s.box.Decrypt(acc.RefreshToken)
	if err != nil && !errors.Is(err, cryptobox.ErrNotCiphertext) {
		return nil, err
	}
	out.RefreshToken = refresh

	return &out, nil
}

func legacyAccount(legacy *models.LegacyRecord) *models.Account {
	return &models.Account{
		AccountID:    models.LegacyAccountID,
		AccessToken:  legacy.Token,
		RefreshToken: legacy.RefreshToken,
		ExpiresAt:    legacy.ExpiresAt,
		IsDefault:    true,
	}
}

func findAccount(accounts []*models.Account, accountID string) *models.Account {
	for _, acc := range accounts {
		if acc.AccountID == accountID {
			return acc
		}
	}
	return nil
}

func defaultAccount(accounts []*models.Account) *models.Account {
	for _, acc := range accounts {
		if acc.IsDefault {
			return acc
		}
	}
	return accounts[0]
}

// normalizeDefault keeps the at-most-one-default invariant: if the named
// account is flagged default, all siblings are cleared; if nothing is flagged,
// the first account becomes default.
func normalizeDefault(accounts []*models.Account, accountID string) {
	target := findAccount(accounts, accountID)
	if target != nil && target.IsDefault {
		for _, acc := range accounts {
			if acc.AccountID != accountID {
				acc.IsDefault = false
			}
		}
		return
	}
	for _, acc := range accounts {
		if acc.IsDefault {
			return
		}
	}
	if len(accounts) > 0 {
		accounts[0].IsDefault = true
	}
}
