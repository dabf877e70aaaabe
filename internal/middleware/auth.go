package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mander92/syuso-chat/internal/models"
)

const principalContextKey = "principal"

var errInvalidToken = errors.New("invalid token")

// Verifier validates the HS256 tokens issued by the scheduling app. Claims
// carry the user id, role and display name.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type principalClaims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Verify parses the token and returns the authenticated principal.
func (v *Verifier) Verify(token string) (models.Principal, error) {
	var claims principalClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return models.Principal{}, errInvalidToken
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return models.Principal{}, errInvalidToken
	}
	id, err := strconv.Atoi(userID)
	if err != nil || id <= 0 {
		return models.Principal{}, errInvalidToken
	}

	role := models.Role(claims.Role)
	switch role {
	case models.RoleAdmin, models.RoleManager, models.RoleEmployee, models.RoleClient:
	default:
		return models.Principal{}, errInvalidToken
	}

	return models.Principal{ID: id, Role: role, Name: claims.Name}, nil
}

// AuthMiddleware validates the Authorization header and stores the principal
// in the gin context.
func AuthMiddleware(verifier *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		principal, err := verifier.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal set by
// AuthMiddleware.
func PrincipalFromContext(c *gin.Context) (models.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return models.Principal{}, false
	}
	principal, ok := val.(models.Principal)
	return principal, ok
}
