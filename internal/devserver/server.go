// Package devserver is an in-memory stand-in for the platform's auth
// API. It exists so the client, session store, and guards can be
// exercised end to end without a real backend: same routes, same
// payload envelopes, same refresh-token rotation rules.
package devserver

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mentorlink/mentorlink-client/internal/auth"
	"github.com/mentorlink/mentorlink-client/internal/config"
	"github.com/mentorlink/mentorlink-client/internal/domain/user"
	"github.com/mentorlink/mentorlink-client/internal/observability"
)

type refreshRow struct {
	userID    int64
	revoked   bool
	expiresAt time.Time
}

type Server struct {
	log   *slog.Logger
	jwt   *auth.Manager
	users *userStore

	accessTTL time.Duration

	mu            sync.Mutex
	refreshTokens map[string]refreshRow // keyed by jti
}

func New(cfg config.Config, log *slog.Logger) *Server {
	accessTTL := time.Duration(cfg.JWTAccessTTLMinutes) * time.Minute
	refreshTTL := time.Duration(cfg.JWTRefreshTTLDays) * 24 * time.Hour

	s := &Server{
		log:           log,
		jwt:           auth.NewManager(cfg.JWTSecret, accessTTL, refreshTTL),
		users:         newUserStore(),
		accessTTL:     accessTTL,
		refreshTokens: make(map[string]refreshRow),
	}

	s.seed(cfg)

	return s
}

// seed provisions one account per role so every flow is reachable out
// of the box.
func (s *Server) seed(cfg config.Config) {
	if _, err := s.users.create(cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword, user.RoleAdmin); err != nil {
		s.log.Error("could not seed admin user", "err", err)
	}

	if _, err := s.users.create("mentor@mentorlink.local", "Mia Mentor", "mentor-pass-1", user.RoleMentor); err != nil {
		s.log.Error("could not seed mentor user", "err", err)
	}

	if _, err := s.users.create("learner@mentorlink.local", "Leo Learner", "learner-pass-1", user.RoleLearner); err != nil {
		s.log.Error("could not seed learner user", "err", err)
	}
}

func (s *Server) Router(prom *observability.Prom) *gin.Engine {
	if os.Getenv("APP_ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(otelgin.Middleware("mentorlink-stub"))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	r.POST("/auth/login", s.login)
	r.POST("/auth/register", s.register)
	r.POST("/auth/refresh", s.refresh)
	r.POST("/auth/logout", requireAuth(s.jwt), s.logout)

	authed := r.Group("/", requireAuth(s.jwt))
	authed.GET("/users/me", s.me)
	authed.GET("/admin/users", requireRole(user.RoleAdmin), s.adminUsers)

	return r
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) login(ctx *gin.Context) {
	var req loginRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	u, err := s.users.authenticate(req.Email, req.Password)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(u)

	if err != nil {
		respondError(ctx, http.StatusInternalServerError, "internal_error", "Could not create session")
		return
	}

	// auth payloads are wrapped once; the client is expected to peel
	// the envelope before validating the inner shape
	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"user":         u,
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
			"expiresIn":    int64(s.accessTTL.Seconds()),
		},
	})
}

func (s *Server) register(ctx *gin.Context) {
	var req registerRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		respondError(ctx, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	// self-service registration always creates learners
	u, err := s.users.create(req.Email, req.Name, req.Password, user.RoleLearner)

	if err != nil {
		if err == ErrEmailAlreadyUsed {
			respondError(ctx, http.StatusBadRequest, "email_taken", "Email is already in use.")
			return
		}

		respondError(ctx, http.StatusInternalServerError, "internal_error", "Could not create user")
		return
	}

	// registration does not establish a session, so no envelope and no
	// tokens: just the created record
	ctx.JSON(http.StatusCreated, u)
}

func (s *Server) refresh(ctx *gin.Context) {
	raw := ctx.Query("refreshToken")

	if raw == "" {
		respondError(ctx, http.StatusUnauthorized, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := s.jwt.VerifyRefreshToken(raw)

	if err != nil {
		respondError(ctx, http.StatusUnauthorized, "invalid_refresh", "Invalid refresh token")
		return
	}

	s.mu.Lock()
	row, ok := s.refreshTokens[claims.JTI]

	if !ok || row.revoked || time.Now().After(row.expiresAt) {
		s.mu.Unlock()
		respondError(ctx, http.StatusUnauthorized, "invalid_refresh", "Invalid refresh token")
		return
	}

	// rotation: the presented token is spent whether or not issuing the
	// replacement succeeds
	row.revoked = true
	s.refreshTokens[claims.JTI] = row
	s.mu.Unlock()

	u, ok := s.users.getByID(row.userID)

	if !ok {
		respondError(ctx, http.StatusUnauthorized, "invalid_refresh", "Invalid refresh token")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(u)

	if err != nil {
		respondError(ctx, http.StatusInternalServerError, "internal_error", "Could not refresh session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
			"expiresIn":    int64(s.accessTTL.Seconds()),
		},
	})
}

func (s *Server) logout(ctx *gin.Context) {
	// revoke every refresh token of the caller (idempotent)
	userID, ok := userIDFromContext(ctx)

	if ok {
		s.mu.Lock()
		for jti, row := range s.refreshTokens {
			if row.userID == userID {
				row.revoked = true
				s.refreshTokens[jti] = row
			}
		}
		s.mu.Unlock()
	}

	ctx.Status(http.StatusNoContent)
}

func (s *Server) me(ctx *gin.Context) {
	userID, ok := userIDFromContext(ctx)

	if !ok {
		respondError(ctx, http.StatusUnauthorized, "unauthorized", "Missing identity context")
		return
	}

	u, found := s.users.getByID(userID)

	if !found {
		respondError(ctx, http.StatusNotFound, "not_found", "User not found")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": u})
}

func (s *Server) adminUsers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"data": s.users.list()})
}

func (s *Server) issueTokens(u user.User) (accessToken, refreshToken string, err error) {
	accessToken, err = s.jwt.GenerateAccessToken(u)

	if err != nil {
		return "", "", err
	}

	raw, jti, expiresAt, err := s.jwt.GenerateRefreshToken(u)

	if err != nil {
		return "", "", err
	}

	s.mu.Lock()
	s.refreshTokens[jti] = refreshRow{userID: u.ID, expiresAt: expiresAt}
	s.mu.Unlock()

	return accessToken, raw, nil
}

// PromoteUser changes an existing account's role. Test hook for
// exercising the client's role-divergence handling.
func (s *Server) PromoteUser(id int64, role user.Role) bool {
	s.users.mu.Lock()
	defer s.users.mu.Unlock()

	rec, ok := s.users.byID[id]

	if !ok {
		return false
	}

	rec.Role = role
	rec.UpdatedAt = time.Now().UTC()

	return true
}
