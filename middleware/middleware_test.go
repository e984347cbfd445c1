package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"masterclass-pods/internal/auth"
	"masterclass-pods/models"
)

type recordingAuditor struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (r *recordingAuditor) LogAsync(e *models.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	s, err := auth.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour, "admin", string(hash), nil)
	require.NoError(t, err)
	return s
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTokens(t)
	r := gin.New()
	r.GET("/admin", NewAuthMiddleware(tokens).RequireAdmin(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})

	admin, err := tokens.Issue(context.Background(), "admin", auth.RoleAdmin)
	require.NoError(t, err)
	other, err := tokens.Issue(context.Background(), "bob", "viewer")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + admin.AccessToken, "", http.StatusOK},
		{"lowercase scheme", "bearer " + admin.AccessToken, "", http.StatusOK},
		{"cookie", "", admin.AccessToken, http.StatusOK},
		{"not admin", "Bearer " + other.AccessToken, "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuditMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auditor := &recordingAuditor{}
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(func(c *gin.Context) { c.Set("user_id", "admin"); c.Next() })
	r.Use(AuditMiddleware(auditor, nil))
	r.POST("/admin/pods/:id/reply", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.ShouldBindJSON(&body))
		assert.Equal(t, "hello", body["text"], "body is still readable after auditing")
		c.Status(http.StatusCreated)
	})
	r.GET("/admin/pods", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/admin/pods/p1/reply", strings.NewReader(`{"text":"hello","api_token":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/pods", nil))

	require.Len(t, auditor.events, 1, "reads are not audited")
	e := auditor.events[0]
	assert.Equal(t, "admin", e.ActorID)
	assert.Equal(t, "REPLY", e.Action)
	assert.Equal(t, "pod", e.Resource)
	assert.Equal(t, "p1", e.ResourceID)
	assert.Equal(t, http.StatusCreated, e.Status)
	assert.True(t, e.Success)
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, "[REDACTED]", e.Changes["api_token"])
	assert.Equal(t, "hello", e.Changes["text"])
}

func TestResourceAction(t *testing.T) {
	tests := []struct {
		path, resource, action string
	}{
		{"/admin/pods/:id/reply", "pod", "REPLY"},
		{"/admin/pods/:id/cancel", "pod", "CANCEL"},
		{"/admin/delivery/run", "delivery", "RUN"},
		{"/admin/sequences/export", "sequence", "GENERATE"},
		{"/admin/other", "unknown", "UPDATE"},
	}
	for _, tt := range tests {
		resource, action := resourceAction(tt.path)
		assert.Equal(t, tt.resource, resource, tt.path)
		assert.Equal(t, tt.action, action, tt.path)
	}
}

func TestRequestSizeLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRateLimitWithoutRedisPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(nil, 1, time.Minute))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
