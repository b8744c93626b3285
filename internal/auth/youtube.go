package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	config "github.com/postpilotapp/postpilot/configs"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// YoutubeStrategy refreshes a Google OAuth token through the standard
// refresh-token grant.
type YoutubeStrategy struct {
	cfg config.Config
}

func NewYoutubeStrategy(cfg config.Config) *YoutubeStrategy {
	return &YoutubeStrategy{cfg: cfg}
}

func (s *YoutubeStrategy) Refresh(ctx context.Context, account *models.Account) (*transfer.RefreshedToken, error) {
	if account.RefreshToken == "" {
		return nil, errors.New("youtube account has no refresh token")
	}

	conf := &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}

	tokenSource := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken})

	token, err := tokenSource.Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	refreshed := &transfer.RefreshedToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		refreshed.ExpiresIn = int64(time.Until(token.Expiry) / time.Second)
	}
	return refreshed, nil
}
