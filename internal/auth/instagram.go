package auth

import (
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

const instagramRefreshURL = "https://graph.instagram.com/refresh_access_token"

// InstagramStrategy refreshes a long-lived Instagram token with the
// ig_refresh_token grant. Instagram has no separate refresh token; the access
// token refreshes itself while still valid.
type InstagramStrategy struct {
	cfg    config.Config
	client *http.Client
}

func NewInstagramStrategy(cfg config.Config) *InstagramStrategy {
	return &InstagramStrategy{cfg: cfg, client: http.DefaultClient}
}

func (s *InstagramStrategy) Refresh(ctx context.Context, account *models.Account) (*transfer.RefreshedToken, error) {
	if account.AccessToken == "" {
		return nil, errors.New("instagram account has no access token")
	}

	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", account.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instagramRefreshURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

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
		return nil, fmt.Errorf("instagram refresh failed with status %d", resp.StatusCode)
	}

	var refreshed transfer.InstagramRefreshResponse
	if err := json.Unmarshal(body, &refreshed); err != nil {
		return nil, err
	}
	if refreshed.AccessToken == "" {
		return nil, errors.New("instagram refresh returned an empty token")
	}

	return &transfer.RefreshedToken{
		AccessToken: refreshed.AccessToken,
		ExpiresIn:   refreshed.ExpiresIn,
	}, nil
}
