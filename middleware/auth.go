package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	config "github.com/phillip/newvision-backend/config"
	services "github.com/phillip/newvision-backend/services"
)

// Context keys set for authenticated requests.
const (
	KeyUserID    = "user_id"
	KeyUserName  = "user_name"
	KeyRole      = "role"
	KeySessionID = "session_id"
)

// AuthMiddleware requires a bearer token backed by a live session.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	auth := services.NewAuth(cfg.Store, cfg.JWTSecret, cfg.JWTTTL)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		ctx, cancel := cfg.Timeout(c.Request.Context())
		defer cancel()

		session, err := auth.Authenticate(ctx, strings.TrimSpace(token))
		if err != nil {
			if !errors.Is(err, services.ErrSessionExpired) {
				log.Printf("[auth] session lookup failed: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not verify session"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(KeyUserID, session.AdminID.Hex())
		c.Set(KeyUserName, session.AdminName)
		c.Set(KeyRole, session.Role)
		c.Set(KeySessionID, session.ID)
		c.Next()
	}
}

// CurrentActor returns the admin bound to the request by AuthMiddleware.
func CurrentActor(c *gin.Context) services.Actor {
	return services.Actor{ID: c.GetString(KeyUserID), Name: c.GetString(KeyUserName)}
}
