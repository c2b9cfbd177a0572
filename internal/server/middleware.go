package server

import (
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sesimlab/counselvoice/internal/apperrors"
	"github.com/sesimlab/counselvoice/internal/logger"
)

// Context keys set by middleware.
const (
	ctxUserID    = "user_id"
	ctxRequestID = "request_id"
)

// Recovery recovers from handler panics, logs the stack, and returns a
// structured 500.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				))
				appErr := apperrors.Internal(fmt.Errorf("%v", r))
				c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
			}
		}()
		c.Next()
	}
}

// RequestID injects a unique X-Request-Id header into every request/response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// CORS sets CORS headers for allowed origins and answers OPTIONS preflight.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(origin, allowedOrigins) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// RequestLogger logs every request with method, path, status, and latency.
// Health checks are skipped.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			logger.FieldDuration, time.Since(start).Milliseconds(),
			ctxRequestID, c.GetString(ctxRequestID),
		)
		switch {
		case status >= 500:
			log.Error("request completed", fields)
		case status >= 400:
			log.Warn("request completed", fields)
		default:
			log.Info("request completed", fields)
		}
	}
}

// Auth validates the Bearer token as an HS256 JWT signed with secret and
// stores the user id claim on the context. Tokens are issued elsewhere; this
// service only verifies them.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, apperrors.Unauthorized("Authorization header required."))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.Unauthorized("Invalid authorization header format."))
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abortWithError(c, apperrors.Unauthorized("Invalid token."))
			return
		}

		userID, ok := userIDClaim(claims)
		if !ok {
			abortWithError(c, apperrors.Unauthorized("Token is missing a user id."))
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

// userIDClaim extracts the user id from either "user_id" or "sub". JSON
// numbers arrive as float64.
func userIDClaim(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"user_id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			if v > 0 {
				return uint(v), true
			}
		case string:
			var id uint
			if _, err := fmt.Sscanf(v, "%d", &id); err == nil && id > 0 {
				return id, true
			}
		}
	}
	return 0, false
}

// UserID returns the authenticated user id from the context.
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func abortWithError(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err.ToResponse())
}
