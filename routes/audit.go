package routes

import (
	"net/http"
	"time"

	"masterclass-pods/internal/logger"
	"masterclass-pods/middleware"
	"masterclass-pods/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
)

// QueryAuditLogs lists admin actions, newest first.
func QueryAuditLogs(store AuditStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize := pagination(c)

		filter := bson.M{}
		for _, field := range []string{"actor_id", "action", "resource", "resource_id"} {
			if v := c.Query(field); v != "" {
				filter[field] = v
			}
		}

		timeFilter := bson.M{}
		if start, err := time.Parse(time.RFC3339, c.Query("start_time")); err == nil {
			timeFilter["$gte"] = start
		}
		if end, err := time.Parse(time.RFC3339, c.Query("end_time")); err == nil {
			timeFilter["$lte"] = end
		}
		if len(timeFilter) > 0 {
			filter["timestamp"] = timeFilter
		}

		events, total, err := store.QueryAuditLogs(c.Request.Context(), filter, page, pageSize)
		if err != nil {
			logger.Error("Failed to query audit logs", "error", err)
			utils.RespondWithError(c, http.StatusInternalServerError, "query_failed", "Failed to query audit logs", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"events":     events,
			"pagination": paginationInfo(page, pageSize, total),
		})
	}
}

// VerifyAuditChain checks the hash chain of one actor, defaulting to the
// caller.
func VerifyAuditChain(store AuditStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.DefaultQuery("actor_id", middleware.GetUserID(c))

		valid, count, err := store.VerifyChain(c.Request.Context(), actor)
		if err != nil {
			logger.Error("Failed to verify audit chain", "actor_id", actor, "error", err)
			utils.RespondWithError(c, http.StatusInternalServerError, "verification_failed", "Failed to verify audit chain", nil)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"actor_id":    actor,
			"valid":       valid,
			"event_count": count,
			"verified_at": time.Now(),
		})
	}
}
