package domain

import "time"

// RefreshToken is the server-side record of an opaque refresh token. Only the token's hash is stored.
// A row with RevokedAt set has been rotated away; presenting its token again is reuse.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Revoked reports whether the token has been rotated away.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}
