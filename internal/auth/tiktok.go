package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	config "github.com/postpilotapp/postpilot/configs"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

const tiktokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"

// TiktokStrategy exchanges a TikTok refresh token for a fresh access token.
type TiktokStrategy struct {
	cfg    config.Config
	client *http.Client
}

func NewTiktokStrategy(cfg config.Config) *TiktokStrategy {
	return &TiktokStrategy{cfg: cfg, client: http.DefaultClient}
}

func (s *TiktokStrategy) Refresh(ctx context.Context, account *models.Account) (*transfer.RefreshedToken, error) {
	if account.RefreshToken == "" {
		return nil, errors.New("tiktok account has no refresh token")
	}

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", account.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tiktokTokenURL, bytes.NewBufferString(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tiktok refresh failed with status %d", resp.StatusCode)
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, err
	}
	if tokenResponse.Error != "" {
		return nil, fmt.Errorf("tiktok refresh error: %s: %s", tokenResponse.Error, tokenResponse.ErrorDescription)
	}
	if tokenResponse.AccessToken == "" {
		return nil, errors.New("tiktok refresh returned an empty token")
	}

	return &transfer.RefreshedToken{
		AccessToken:  tokenResponse.AccessToken,
		RefreshToken: tokenResponse.RefreshToken,
		ExpiresIn:    tokenResponse.ExpiresIn,
	}, nil
}
