package types

import "time"

// Provider identifies an upstream OAuth provider.
type Provider string

const (
	ProviderFitbit       Provider = "fitbit"
	ProviderHealthPlanet Provider = "healthplanet"
)

func (p Provider) String() string { return string(p) }

// Credential is the stored OAuth token material for one (provider, user) pair.
// ExpiresAt is the authoritative expiry of AccessToken, in epoch seconds.
type Credential struct {
	Provider     Provider
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresAt    int64
	UpdatedAt    time.Time
}

// ValidAt reports whether the access token is still usable at now with the given safety margin.
func (c *Credential) ValidAt(now time.Time, skew time.Duration) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return c.ExpiresAt > now.Add(skew).Unix()
}

// Expiry returns ExpiresAt as a time.
func (c *Credential) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}
