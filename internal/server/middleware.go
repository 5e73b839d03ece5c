package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	svcErr "github.com/amberapp/amber-core/internal/errors"
)

const userIDKey = "user_id"

// Claims carried by session tokens. The subject is the numeric user id.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the caller from a Bearer token. Requests without a
// valid session fail with the AuthenticationRequired mapping.
func AuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			c.Abort()
			return
		}
		userID, err := strconv.ParseUint(claims.UserID, 10, 64)
		if err != nil || userID == 0 {
			svcErr.JSON(c, svcErr.ErrAuthenticationRequired)
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated caller's id from the request context.
func UserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// IssueToken signs a session token for the given user. The session layer
// calls this on sign-in; tests use it to authenticate requests.
func IssueToken(secret string, userID uint64, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: strconv.FormatUint(userID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
