package valueobject

import "time"

// TokenPair is the access/refresh bearer pair handed out at login.
// Neither token is tracked server-side; both simply expire.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func NewTokenPair(accessToken, refreshToken string, accessExpiresAt, refreshExpiresAt time.Time) *TokenPair {
	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}
}

// AccessExpiresIn returns the remaining access token lifetime in whole seconds.
func (p *TokenPair) AccessExpiresIn(now time.Time) int {
	return secondsUntil(p.AccessExpiresAt, now)
}

func (p *TokenPair) RefreshExpiresIn(now time.Time) int {
	return secondsUntil(p.RefreshExpiresAt, now)
}

func secondsUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d.Seconds())
}
