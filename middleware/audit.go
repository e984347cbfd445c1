package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"masterclass-pods/internal/telemetry"
	"masterclass-pods/models"

	"github.com/gin-gonic/gin"
)

// Auditor receives finished admin actions.
type Auditor interface {
	LogAsync(event *models.AuditEvent)
}

var sensitiveFields = []string{"password", "token", "secret"}

// AuditMiddleware records every mutating admin request. Reads are not
// audited. Must run after RequireAdmin so the actor is known.
func AuditMiddleware(auditor Auditor, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auditor == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		var bodyBytes []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			bodyBytes, _ = io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		c.Next()

		event := createAuditEvent(c, bodyBytes)
		auditor.LogAsync(event)
		metrics.RecordAuditEvent(event.Action, event.Resource)
	}
}

func createAuditEvent(c *gin.Context, bodyBytes []byte) *models.AuditEvent {
	resource, action := resourceAction(c.FullPath())
	return &models.AuditEvent{
		ActorID:    GetUserID(c),
		Action:     action,
		Resource:   resource,
		ResourceID: c.Param("id"),
		IPAddress:  c.ClientIP(),
		RequestID:  GetRequestID(c),
		Success:    c.Writer.Status() < 400,
		Status:     c.Writer.Status(),
		Changes:    extractChanges(bodyBytes),
	}
}

// resourceAction maps an admin route to its audit resource and action.
func resourceAction(fullPath string) (string, string) {
	switch {
	case strings.HasSuffix(fullPath, "/reply"):
		return "pod", "REPLY"
	case strings.HasSuffix(fullPath, "/cancel"):
		return "pod", "CANCEL"
	case strings.HasPrefix(fullPath, "/admin/delivery"):
		return "delivery", "RUN"
	case strings.HasPrefix(fullPath, "/admin/sequences"):
		return "sequence", "GENERATE"
	default:
		return "unknown", "UPDATE"
	}
}

func extractChanges(bodyBytes []byte) map[string]interface{} {
	if len(bodyBytes) == 0 {
		return nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return nil
	}
	for key := range body {
		lower := strings.ToLower(key)
		for _, s := range sensitiveFields {
			if strings.Contains(lower, s) {
				body[key] = "[REDACTED]"
				break
			}
		}
	}
	return body
}
