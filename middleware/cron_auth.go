package middleware

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"stockwatch_backend/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// CronAuthMiddleware guards the scheduler-invoked endpoints with a shared
// secret bearer credential. In production a credential is mandatory; outside
// production an unconfigured secret allows unauthenticated calls for local
// development.
func CronAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := config.AppConfig

		secretConfigured := cfg != nil && (cfg.CronSecret != "" || cfg.CronSecretHash != "")
		if !secretConfigured {
			if cfg != nil && cfg.Environment == "production" {
				log.Println("CRON_SECRET not configured in production, rejecting scheduler request")
				unauthorized(c)
				return
			}
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c)
			return
		}

		// Extract token from "Bearer <token>" format
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			unauthorized(c)
			return
		}

		if !secretMatches(cfg, token) {
			unauthorized(c)
			return
		}

		c.Next()
	}
}

// secretMatches compares the presented credential against the configured
// secret. A bcrypt hash takes precedence so the plaintext secret need not
// live in the environment.
func secretMatches(cfg *config.Config, token string) bool {
	if cfg.CronSecretHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.CronSecretHash), []byte(token)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(cfg.CronSecret), []byte(token)) == 1
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "unauthorized",
	})
	c.Abort()
}
