package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authlink/internal/service"
)

const authClaimsKey = "auth_claims"

// JWTAuthMiddleware valida access tokens firmados y guarda claims en el contexto.
// Solo acepta tokens de tipo access: un refresh token no autoriza requests.
func JWTAuthMiddleware(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token service not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := tokens.Verify(token)
		if err != nil || claims.Kind != service.TokenAccess {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene las claims del access token desde el contexto.
func GetAuthClaims(c *gin.Context) (service.TokenClaims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.TokenClaims{}, false
	}
	claims, ok := val.(service.TokenClaims)
	return claims, ok
}
