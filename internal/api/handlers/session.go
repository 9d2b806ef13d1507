package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/masaplay/backend/internal/config"
	"github.com/masaplay/backend/internal/match"
)

const sessionKey = "session"

// IssueToken signs a session JWT for a username.
func IssueToken(cfg *config.Config, username string) (string, error) {
	exp := time.Now().Add(time.Duration(cfg.SessionTimeoutMin) * time.Minute)
	custom := jwt.MapClaims{"username": username, "exp": exp.Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, custom)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// VerifyToken parses a session JWT and returns the username.
func VerifyToken(cfg *config.Config, token string) (string, error) {
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token")
	}
	username, ok := claims["username"].(string)
	if !ok || strings.TrimSpace(username) == "" {
		return "", fmt.Errorf("invalid token")
	}
	return username, nil
}

// AuthMiddleware validates the bearer token and loads the actor's current
// record (balance, check-in scope) into the request context.
func AuthMiddleware(store match.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		username, err := VerifyToken(cfg, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		u, mErr := store.LookupUser(c.Request.Context(), username)
		if mErr != nil {
			c.AbortWithStatusJSON(mErr.HTTPStatus(), gin.H{"error": mErr.Message})
			return
		}

		c.Set(sessionKey, match.Session{
			Username:  u.Username,
			Points:    u.Points,
			CafeID:    u.CafeID,
			TableCode: u.TableCode,
			Admin:     u.Admin,
		})
		c.Next()
	}
}

// sessionFrom returns the session stored by AuthMiddleware.
func sessionFrom(c *gin.Context) match.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(match.Session); ok {
			return s
		}
	}
	return match.Session{}
}

// respondError writes the engine error with its mapped status code.
func respondError(c *gin.Context, err *match.Error) {
	body := gin.H{"error": err.Message}
	if err.Code != "" {
		body["code"] = err.Code
	}
	if err.From != "" {
		body["fromStatus"] = err.From
	}
	if err.To != "" {
		body["toStatus"] = err.To
	}
	c.JSON(err.HTTPStatus(), body)
}
