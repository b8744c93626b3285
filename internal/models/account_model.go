package models

import "encoding/json"

// Account is one authenticated identity on a platform. Token fields hold
// ciphertext on disk; they are decrypted by the store before being handed out.
type Account struct {
	AccountID    string `json:"accountId"`
	AccountName  string `json:"accountName,omitempty"`
	Username     string `json:"username,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    *int64 `json:"expires_at"` // epoch millis, nil = non-expiring
	IsDefault    bool   `json:"isDefault"`
	ConnectedAt  string `json:"connectedAt,omitempty"` // RFC 3339
}

// LegacyAccountID is the synthetic account id under which a legacy
// single-account record is surfaced by LoadAllAccounts.
const LegacyAccountID = "legacy"

// LegacyRecord is the pre-multi-account platform record: a single implicit
// account without an accountId.
type LegacyRecord struct {
	Token        string `json:"token"`
	ExpiresAt    *int64 `json:"expiresAt"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// PlatformRecord is the tagged variant stored per platform in the token file:
// either a legacy single-account shape or a multi-account shape. Exactly one
// of the two fields is populated.
type PlatformRecord struct {
	Legacy   *LegacyRecord
	Accounts []*Account
}

func (r *PlatformRecord) IsLegacy() bool {
	return r.Legacy != nil
}

type multiAccountWire struct {
	Accounts []*Account `json:"accounts"`
}

func (r PlatformRecord) MarshalJSON() ([]byte, error) {
	if r.Legacy != nil {
		return json.Marshal(r.Legacy)
	}
	return json.Marshal(multiAccountWire{Accounts: r.Accounts})
}

func (r *PlatformRecord) UnmarshalJSON(data []byte) error {
	var probe struct {
		Accounts []*Account `json:"accounts"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Accounts != nil {
		r.Accounts = probe.Accounts
		r.Legacy = nil
		return nil
	}

	var legacy LegacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return err
	}
	r.Legacy = &legacy
	r.Accounts = nil
	return nil
}
