package models

import (
	"time"

	"nutriplan/api/internal/security"
)

// User is an account in the user directory. PasswordDigest and PasswordSalt
// are opaque hex strings produced by the credential hasher; nothing else
// writes them.
type User struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	PasswordDigest string        `json:"passwordDigest,omitempty"`
	PasswordSalt   string        `json:"passwordSalt,omitempty"`
	FirstName      string        `json:"firstName"`
	LastName       string        `json:"lastName"`
	Role           security.Role `json:"role"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastLoginAt    *time.Time    `json:"lastLoginAt,omitempty"`
}

// Redacted returns a copy safe to hand outside the session store: the
// credential material is stripped.
func (u User) Redacted() User {
	u.PasswordDigest = ""
	u.PasswordSalt = ""
	return u
}

// SessionRecord is the persisted login session: a redacted user snapshot plus
// its validity window.
type SessionRecord struct {
	User      User      `json:"user"`
	LoginTime time.Time `json:"loginTime"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s SessionRecord) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
