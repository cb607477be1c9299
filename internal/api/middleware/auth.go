package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"macman/internal/config"
)

const adminSubjectContextKey = "adminSubject"

// AdminSubject returns the "sub" claim of the admin token that authorized
// the request, if any.
func AdminSubject(c *gin.Context) *string {
	v, ok := c.Get(adminSubjectContextKey)
	if !ok {
		return nil
	}
	sub, ok := v.(string)
	if !ok || sub == "" {
		return nil
	}
	return &sub
}

// JWTAuth accepts "Authorization: Bearer <token>" where the token is HS256
// signed with the configured admin secret.
func JWTAuth(cfg config.Config) gin.HandlerFunc {
	secret := []byte(cfg.AdminSecret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || len(secret) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			c.Set(adminSubjectContextKey, sub)
		}
		c.Next()
	}
}
