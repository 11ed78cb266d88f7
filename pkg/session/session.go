package session

import (
	"fmt"
	"time"
)

// Origin tells how a session came to exist in this process.
type Origin string

const (
	// OriginLive marks a session backed by a live provider account.
	OriginLive Origin = "live"
	// OriginRestored marks a session synthesized from the durable backup
	// because the provider had no current user at startup.
	OriginRestored Origin = "restored"
)

// Session is the last-known authenticated identity. It is recreated on
// every launch from either the live provider or the durable backup.
type Session struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	DisplayName   string    `json:"displayName,omitempty"`
	PhotoRef      string    `json:"photoRef,omitempty"`
	UserType      string    `json:"userType,omitempty"`
	SavedAt       time.Time `json:"savedAt"`
	RememberMe    bool      `json:"rememberMe"`
	AutoSignIn    bool      `json:"autoSignInEnabled"`
	Origin        Origin    `json:"origin"`
}

// IsRestored reports whether the session was synthesized from the durable
// backup rather than a live provider account.
func (s *Session) IsRestored() bool {
	return s != nil && s.Origin == OriginRestored
}

// Token returns a credential token for the session. For restored sessions
// this is a synthetic placeholder with no cryptographic meaning; it exists
// only so downstream read paths that label requests with a token can treat
// restored and live sessions uniformly. It must never be sent to a verifier.
func (s *Session) Token() string {
	if s.IsRestored() {
		return fmt.Sprintf("restored-session-token-%s-%d", s.UID, s.SavedAt.UnixMilli())
	}
	return ""
}
