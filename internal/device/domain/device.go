package domain

import "time"

// Device is a client installation identified by its pinned Ed25519 public key.
// UserID is set on first sight and never changes.
type Device struct {
	ID         string
	UserID     string
	PublicKey  string // 32-byte Ed25519 key, lower-case hex
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// OwnedBy reports whether the device is bound to userID.
func (d *Device) OwnedBy(userID string) bool {
	return d != nil && d.UserID == userID
}
