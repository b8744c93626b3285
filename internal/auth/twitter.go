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
)

var twitterEndpoint = oauth2.Endpoint{
	AuthURL:  "https://twitter.com/i/oauth2/authorize",
	TokenURL: "https://api.twitter.com/2/oauth2/token",
}

// TwitterStrategy refreshes a Twitter OAuth2 token through the refresh-token
// grant. Twitter rotates the refresh token on every use.
type TwitterStrategy struct {
	cfg config.Config
}

func NewTwitterStrategy(cfg config.Config) *TwitterStrategy {
	return &TwitterStrategy{cfg: cfg}
}

func (s *TwitterStrategy) Refresh(ctx context.Context, account *models.Account) (*transfer.RefreshedToken, error) {
	if account.RefreshToken == "" {
		return nil, errors.New("twitter account has no refresh token")
	}

	conf := &oauth2.Config{
		ClientID:     s.cfg.TwitterClientID,
		ClientSecret: s.cfg.TwitterClientSecret,
		Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		Endpoint:     twitterEndpoint,
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

// Strategies builds the default strategy table for all supported platforms.
func Strategies(cfg config.Config) map[models.Platform]RefreshStrategy {
	return map[models.Platform]RefreshStrategy{
		models.PlatformInstagram: NewInstagramStrategy(cfg),
		models.PlatformTiktok:    NewTiktokStrategy(cfg),
		models.PlatformYoutube:   NewYoutubeStrategy(cfg),
		models.PlatformTwitter:   NewTwitterStrategy(cfg),
	}
}
