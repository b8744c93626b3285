package transfer

// ConnectAccountRequest is the credential sink payload: the token hand-off
// from a completed OAuth exchange.
type ConnectAccountRequest struct {
	Platform     string `json:"platform"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    *int64 `json:"expires_in"` // seconds
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	Username     string `json:"username"`
	IsDefault    *bool  `json:"is_default"`
}

// AccountInfoResponse is an account stripped of token material.
type AccountInfoResponse struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Username    string `json:"username"`
	Platform    string `json:"platform"`
	IsDefault   bool   `json:"is_default"`
	ExpiresAt   *int64 `json:"expires_at"`
	ConnectedAt string `json:"connected_at"`
}

type CreatePostRequest struct {
	Content      string   `json:"content"`
	ScheduleTime string   `json:"schedule_time"` // RFC 3339
	Platforms    []string `json:"platforms"`
	Draft        bool     `json:"draft"`
}
