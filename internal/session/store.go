package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mentorlink/mentorlink-client/internal/auth"
	"github.com/mentorlink/mentorlink-client/internal/authclient"
	"github.com/mentorlink/mentorlink-client/internal/domain/user"
	"github.com/mentorlink/mentorlink-client/internal/observability"
)

// Exchanger is the slice of the credential exchange client the store
// needs. Kept small so tests can fake it.
type Exchanger interface {
	Login(ctx context.Context, email, password string) (authclient.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (authclient.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

type Options struct {
	Logger  *slog.Logger
	Metrics *observability.Prom

	// AccessTTLFallback applies when the server reports no lifetime at
	// all; RefreshSkew treats a nearly-expired token as already stale.
	AccessTTLFallback time.Duration
	RefreshSkew       time.Duration

	// LogoutTimeout bounds the best-effort server-side invalidation.
	LogoutTimeout time.Duration
}

// Store is the single authoritative holder of the session. All
// mutation happens under one mutex and commits in memory before it is
// persisted, so no reader ever observes a half-torn-down session.
type Store struct {
	client Exchanger
	slot   Slot
	log    *slog.Logger
	prom   *observability.Prom

	fallbackTTL   time.Duration
	skew          time.Duration
	logoutTimeout time.Duration

	mu   sync.Mutex
	sess *Session

	// collapses concurrent refresh attempts into one exchange
	refreshGroup singleflight.Group
}

func NewStore(client Exchanger, slot Slot, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AccessTTLFallback <= 0 {
		opts.AccessTTLFallback = 15 * time.Minute
	}
	if opts.RefreshSkew <= 0 {
		opts.RefreshSkew = 30 * time.Second
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = 3 * time.Second
	}

	s := &Store{
		client:        client,
		slot:          slot,
		log:           opts.Logger,
		prom:          opts.Metrics,
		fallbackTTL:   opts.AccessTTLFallback,
		skew:          opts.RefreshSkew,
		logoutTimeout: opts.LogoutTimeout,
	}

	// reload a persisted session from a previous run, if any
	if slot != nil {
		rec, err := slot.Load()

		if err != nil {
			s.log.Warn("could not load persisted session", "err", err)
		} else if rec != nil {
			s.sess = sessionFromRecord(*rec)
		}
	}

	return s
}

// Current returns a snapshot of the session, or nil when
// unauthenticated. Synchronous; never triggers network I/O.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadIfDirtyLocked()

	if s.sess == nil {
		return nil
	}

	copy := *s.sess
	return &copy
}

// Login exchanges credentials and, on success, commits and persists
// the new session. On failure the prior state is left untouched and
// the failure kind is reported to the caller.
func (s *Store) Login(ctx context.Context, email, password string) error {
	result, err := s.client.Login(ctx, email, password)

	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sess = &Session{
		User:            result.User.Identity(),
		AccessToken:     result.TokenPair.AccessToken,
		RefreshToken:    result.TokenPair.RefreshToken,
		AccessExpiresAt: s.expiryFor(result.TokenPair),
	}

	s.persistLocked()

	return nil
}

// EnsureFreshAccessToken returns an access token that is fresh by
// policy, refreshing it first if needed. Concurrent callers that find
// the token stale at the same time share a single refresh exchange and
// its outcome; a failed refresh destroys the session for all of them.
func (s *Store) EnsureFreshAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.reloadIfDirtyLocked()

	if s.sess == nil {
		s.mu.Unlock()
		return "", &authclient.Error{Kind: authclient.KindAuth, Code: "unauthenticated", Message: "no active session"}
	}

	if s.sess.FreshAt(time.Now(), s.skew) {
		token := s.sess.AccessToken
		s.mu.Unlock()
		return token, nil
	}

	hasRefresh := s.sess.RefreshToken != ""
	s.mu.Unlock()

	if !hasRefresh {
		// cannot be silently renewed; the caller must re-authenticate
		s.teardown("refresh_failed")
		return "", &authclient.Error{Kind: authclient.KindAuth, Code: "session_expired", Message: "access token expired and no refresh token is available"}
	}

	v, err, shared := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		return s.doRefresh(ctx)
	})

	if shared && s.prom != nil {
		s.prom.RefreshShared.Inc()
	}

	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// doRefresh runs at most once per in-flight refresh. Any failure,
// including a malformed response, tears the session down rather than
// leaving an unvalidated token in play.
func (s *Store) doRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()

	if s.sess == nil {
		s.mu.Unlock()
		return "", &authclient.Error{Kind: authclient.KindAuth, Code: "unauthenticated", Message: "no active session"}
	}

	// re-check freshness: an earlier flight may have renewed the token
	// between our caller's staleness check and this one
	if s.sess.FreshAt(time.Now(), s.skew) {
		token := s.sess.AccessToken
		s.mu.Unlock()
		return token, nil
	}

	refreshToken := s.sess.RefreshToken
	s.mu.Unlock()

	pair, err := s.client.Refresh(ctx, refreshToken)

	if err != nil {
		if errors.Is(err, authclient.ErrProtocol) {
			s.log.Error("refresh response failed shape validation, destroying session", "err", err)
		} else {
			s.log.Info("refresh rejected, destroying session", "err", err)
		}

		s.teardown("refresh_failed")

		var e *authclient.Error
		if errors.As(err, &e) && (e.Kind == authclient.KindAuth || e.Kind == authclient.KindTimeout) {
			return "", err
		}
		return "", &authclient.Error{Kind: authclient.KindAuth, Code: "refresh_failed", Message: "session could not be renewed", Cause: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		// logged out while the exchange was in flight; do not resurrect
		return "", &authclient.Error{Kind: authclient.KindAuth, Code: "unauthenticated", Message: "session was closed during refresh"}
	}

	s.sess.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		s.sess.RefreshToken = pair.RefreshToken
	}
	s.sess.AccessExpiresAt = s.expiryFor(pair)

	s.persistLocked()

	return pair.AccessToken, nil
}

// Logout clears the in-memory and persisted state unconditionally and
// synchronously; the server-side invalidation runs in the background
// and its failure is logged, never surfaced.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()

	var accessToken string

	if s.sess != nil {
		accessToken = s.sess.AccessToken
	}

	s.sess = nil
	s.clearSlotLocked()
	s.mu.Unlock()

	if s.prom != nil {
		s.prom.SessionTeardowns.WithLabelValues("logout").Inc()
	}

	if accessToken == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logoutTimeout)
		defer cancel()

		if err := s.client.Logout(ctx, accessToken); err != nil {
			s.log.Warn("server-side logout failed", "err", err)
		}
	}()
}

// Invalidate destroys the session in response to an authenticated
// request the server rejected as having invalid credentials.
func (s *Store) Invalidate() {
	s.teardown("rejected")
}

// ReconcileUser compares a server-reported user against the session.
// A changed role invalidates the session rather than updating it.
// Reports whether the session survived.
func (s *Store) ReconcileUser(u user.User) bool {
	s.mu.Lock()

	if s.sess == nil {
		s.mu.Unlock()
		return false
	}

	if s.sess.User.ID == u.ID && s.sess.User.Role == u.Role {
		s.mu.Unlock()
		return true
	}

	s.log.Warn("server-reported identity diverges from session, destroying session",
		"session_role", s.sess.User.Role, "reported_role", u.Role)

	s.sess = nil
	s.clearSlotLocked()
	s.mu.Unlock()

	if s.prom != nil {
		s.prom.SessionTeardowns.WithLabelValues("role_changed").Inc()
	}

	return false
}

// IsAuthenticated reports whether a usable session is present: a
// fresh-by-policy access token, or a refresh token to renew with.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadIfDirtyLocked()

	if s.sess == nil {
		return false
	}

	return s.sess.FreshAt(time.Now(), s.skew) || s.sess.RefreshToken != ""
}

// CanAccess reports whether the session's role is in the given set.
// An empty set means "any authenticated user".
func (s *Store) CanAccess(roles ...user.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloadIfDirtyLocked()

	if s.sess == nil {
		return false
	}

	if len(roles) == 0 {
		return true
	}

	for _, r := range roles {
		if s.sess.User.Role == r {
			return true
		}
	}

	return false
}

// Role capability resolvers: convenience views over the same state as
// CanAccess, never an independent source of truth.

func (s *Store) IsAdmin() bool   { return s.CanAccess(user.RoleAdmin) }
func (s *Store) IsMentor() bool  { return s.CanAccess(user.RoleMentor) }
func (s *Store) IsLearner() bool { return s.CanAccess(user.RoleLearner) }

func (s *Store) HasRole(roles ...user.Role) bool { return s.CanAccess(roles...) }

// expiryFor derives the access token expiry: the token's own
// self-reported exp claim when it parses as a JWT, else the payload's
// expiresIn, else the configured fallback TTL.
func (s *Store) expiryFor(pair authclient.TokenPair) time.Time {
	if exp, ok := auth.ExpiryOf(pair.AccessToken); ok {
		return exp
	}

	if pair.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(pair.ExpiresIn) * time.Second)
	}

	return time.Now().Add(s.fallbackTTL)
}

func (s *Store) teardown(reason string) {
	s.mu.Lock()
	s.sess = nil
	s.clearSlotLocked()
	s.mu.Unlock()

	if s.prom != nil {
		s.prom.SessionTeardowns.WithLabelValues(reason).Inc()
	}
}

// reloadIfDirtyLocked re-reads the shared slot when another writer
// touched it. An externally cleared slot is an external logout.
func (s *Store) reloadIfDirtyLocked() {
	if s.slot == nil || !s.slot.TakeDirty() {
		return
	}

	rec, err := s.slot.Load()

	if err != nil {
		s.log.Warn("could not reload session slot", "err", err)
		return
	}

	if rec == nil {
		if s.sess != nil {
			s.log.Info("session slot cleared externally, logging out")
			s.sess = nil

			if s.prom != nil {
				s.prom.SessionTeardowns.WithLabelValues("external").Inc()
			}
		}
		return
	}

	s.sess = sessionFromRecord(*rec)
}

// persistLocked writes the committed in-memory state out. A write
// failure loses durability, not correctness, so it is only logged.
func (s *Store) persistLocked() {
	if s.slot == nil || s.sess == nil {
		return
	}

	if err := s.slot.Save(s.sess.record()); err != nil {
		s.log.Warn("could not persist session", "err", err)
	}

	// our own write marked the slot dirty; a reload would only read
	// back what we just committed
	s.slot.TakeDirty()
}

func (s *Store) clearSlotLocked() {
	if s.slot == nil {
		return
	}

	if err := s.slot.Clear(); err != nil {
		s.log.Warn("could not clear persisted session", "err", err)
	}

	s.slot.TakeDirty()
}
