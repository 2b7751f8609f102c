package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mentorlink/mentorlink-client/internal/auth"
	"github.com/mentorlink/mentorlink-client/internal/domain/user"
)

const (
	ctxUserIDKey = "auth.userID"
	ctxRoleKey   = "auth.role"

	requestIDHeader = "X-Request-Id"
)

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondError(ctx *gin.Context, status int, code, message string) {
	ctx.JSON(status, gin.H{
		"error": apiError{
			Code:    code,
			Message: message,
		},
	})
}

func respondUnauthorized(ctx *gin.Context, code, message string) {
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": apiError{Code: code, Message: message},
	})
}

func requestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)

		if id == "" {
			id = uuid.NewString()
		}

		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Set("request_id", id)

		ctx.Next()
	}
}

type tokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

func requireAuth(jwt tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			respondUnauthorized(c, "unauthorized", "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			respondUnauthorized(c, "unauthorized", "Missing or invalid access token")
			return
		}

		claims, err := jwt.VerifyAccessToken(raw)
		if err != nil {
			respondUnauthorized(c, "unauthorized", "Invalid or expired access token")
			return
		}

		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxRoleKey, claims.Role)

		c.Next()
	}
}

func requireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ctxRoleKey)

		role, castOK := v.(user.Role)

		if !ok || !castOK || role == "" {
			respondUnauthorized(c, "unauthorized", "Missing identity context")
			return
		}

		if role != required {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": apiError{Code: "forbidden", Message: string(required) + " role required"},
			})
			return
		}
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
