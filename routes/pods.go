package routes

import (
	"errors"
	"net/http"

	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/pod"
	"masterclass-pods/models"
	"masterclass-pods/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SetupPodRoutes registers the lead-facing pod endpoints.
func SetupPodRoutes(router *gin.Engine, manager *pod.Manager) {
	api := router.Group("/api/pods")

	api.POST("", func(c *gin.Context) {
		var req models.CreatePodRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid pod request", gin.H{"error": err.Error()})
			return
		}

		p, created, err := manager.CreatePod(c.Request.Context(), req)
		if err != nil && p == nil {
			respondPodError(c, err)
			return
		}
		if err != nil {
			// the pod exists; its first day is retried by the day advance job
			logger.Error("First day scheduling failed", "pod_id", p.ID.Hex(), "error", err)
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, models.CreatePodResponse{Pod: *p, Created: created})
	})

	api.GET("/:id/messages", func(c *gin.Context) {
		podID, ok := podIDParam(c)
		if !ok {
			return
		}
		msgs, err := manager.Conversation(c.Request.Context(), podID)
		if err != nil {
			respondPodError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	})

	api.POST("/:id/messages", func(c *gin.Context) {
		podID, ok := podIDParam(c)
		if !ok {
			return
		}
		var req models.PostMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Message text is required", nil)
			return
		}
		msg, err := manager.PostUserMessage(c.Request.Context(), podID, req.Text)
		if err != nil {
			respondPodError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg.ToChat())
	})
}

func podIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid pod ID format", nil)
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondPodError maps manager errors onto HTTP responses.
func respondPodError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pod.ErrPodNotFound):
		utils.RespondWithNotFound(c, "Pod not found")
	case errors.Is(err, pod.ErrInvalidUserID), errors.Is(err, pod.ErrEmptyMessage):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, pod.ErrNoScript):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, "unknown_niche", "No masterclass script for this niche", nil)
	case errors.Is(err, pod.ErrNoPersona):
		utils.RespondWithError(c, http.StatusServiceUnavailable, "no_persona", "No peer available for this niche", nil)
	case errors.Is(err, pod.ErrPodInactive):
		utils.RespondWithConflict(c, "pod_inactive", "Pod is not active")
	default:
		logger.Error("Pod request failed", "path", c.FullPath(), "error", err)
		utils.RespondWithInternalError(c, "Something went wrong")
	}
}
