package routes

import (
	"errors"
	"net/http"

	"masterclass-pods/internal/auth"
	"masterclass-pods/internal/logger"
	"masterclass-pods/middleware"
	"masterclass-pods/utils"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func SetupAuthRoutes(router *gin.Engine, tokens *auth.TokenService) {
	group := router.Group("/auth")

	group.POST("/login", func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Username and password are required", nil)
			return
		}

		token, err := tokens.Login(c.Request.Context(), req.Username, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warn("Admin login failed", "username", req.Username, "ip", c.ClientIP())
			utils.RespondWithUnauthorized(c, "Invalid username or password")
			return
		}
		if err != nil {
			logger.Error("Failed to issue admin token", "error", err)
			utils.RespondWithInternalError(c, "Failed to log in")
			return
		}

		c.JSON(http.StatusOK, token)
	})

	group.POST("/logout", middleware.NewAuthMiddleware(tokens).RequireAdmin(), func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		if err := tokens.Revoke(c.Request.Context(), claims.ID); err != nil {
			logger.Error("Failed to revoke token", "error", err)
			utils.RespondWithInternalError(c, "Failed to log out")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	})
}
