// Package session owns the authenticated session: one user identity
// plus one token pair, persisted across restarts, with single-flight
// token refresh. Every other authorization component reads from here.
package session

import (
	"time"

	"github.com/mentorlink/mentorlink-client/internal/domain/user"
)

// Session is the composition of exactly one user and one token pair.
// Callers receive copies; the store's internal value is never shared.
type Session struct {
	User            user.Identity
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// FreshAt reports whether the access token is still usable at t under
// the given skew margin. A token within skew of its expiry counts as
// stale so a request started now does not die mid-flight.
func (s *Session) FreshAt(t time.Time, skew time.Duration) bool {
	if s.AccessExpiresAt.IsZero() {
		return false
	}
	return t.Add(skew).Before(s.AccessExpiresAt)
}

// Record is the serialized form of a Session: the shared persisted
// slot. It carries just enough identity to answer role checks after a
// reload without a network round trip.
type Record struct {
	User            user.Identity `json:"user"`
	AccessToken     string        `json:"accessToken"`
	RefreshToken    string        `json:"refreshToken,omitempty"`
	AccessExpiresAt time.Time     `json:"accessExpiresAt"`
}

func (s *Session) record() Record {
	return Record{
		User:            s.User,
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		AccessExpiresAt: s.AccessExpiresAt,
	}
}

func sessionFromRecord(rec Record) *Session {
	return &Session{
		User:            rec.User,
		AccessToken:     rec.AccessToken,
		RefreshToken:    rec.RefreshToken,
		AccessExpiresAt: rec.AccessExpiresAt,
	}
}
