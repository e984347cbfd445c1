package middleware

import (
	"net/http"
	"strings"

	"masterclass-pods/internal/auth"
	"masterclass-pods/utils"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	tokens *auth.TokenService
}

func NewAuthMiddleware(tokens *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAdmin accepts a bearer token or the access_token cookie and only
// lets admin claims through.
func (a *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := a.tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "session_expired",
				"Your session has expired. Please log in again.", nil)
			c.Abort()
			return
		}
		if claims.Role != auth.RoleAdmin {
			utils.RespondWithForbidden(c, "Admin access required")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("claims", claims)
		c.Next()
	}
}

func ExtractTokenFromHeader(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func GetClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get("claims"); exists {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetUserID returns the authenticated admin's id, or "".
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
