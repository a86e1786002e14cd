package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AuthContextKey = "operator"
)

// Claims identifies the operator calling the API
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// JWTAuth validates HS256 bearer tokens signed with secret
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			return
		}

		claims, err := ParseToken(key, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(AuthContextKey, claims.Operator)
		c.Next()
	}
}

// ParseToken validates a token and returns its claims
func ParseToken(key []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// GenerateToken issues a token for operator valid for expiresIn
func GenerateToken(secret, operator string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GetOperator retrieves the authenticated operator from the context
func GetOperator(c *gin.Context) (string, bool) {
	v, exists := c.Get(AuthContextKey)
	if !exists {
		return "", false
	}

	operator, ok := v.(string)
	return operator, ok
}
