package routes

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"masterclass-pods/internal/logger"
	"masterclass-pods/internal/pod"
	"masterclass-pods/internal/sequence"
	"masterclass-pods/middleware"
	"masterclass-pods/models"
	"masterclass-pods/utils"

	"github.com/gin-gonic/gin"
)

type sequenceRequest struct {
	// Niches selects loaded blueprints; empty means all of them.
	Niches        []string           `json:"niches"`
	Blueprints    []models.Blueprint `json:"blueprints"`
	DayGap        int                `json:"day_gap" binding:"min=0,max=30"`
	MaxPainPoints int                `json:"max_pain_points" binding:"min=0"`
}

// SetupAdminRoutes registers the instructor inbox and operator endpoints.
func SetupAdminRoutes(router *gin.Engine, d Deps, authMiddleware *middleware.AuthMiddleware) {
	admin := router.Group("/admin")
	admin.Use(authMiddleware.RequireAdmin())
	if d.Auditor != nil {
		admin.Use(middleware.AuditMiddleware(d.Auditor, d.Metrics))
	}

	manager := d.Manager

	admin.GET("/pods", func(c *gin.Context) {
		page, pageSize := pagination(c)
		filter := pod.PodFilter{
			Status: c.Query("status"),
			Niche:  c.Query("niche"),
			Skip:   int64((page - 1) * pageSize),
			Limit:  int64(pageSize),
		}

		pods, total, err := manager.Store().ListPods(c.Request.Context(), filter)
		if err != nil {
			logger.Error("Failed to list pods", "error", err)
			utils.RespondWithInternalError(c, "Failed to list pods")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"pods":       pods,
			"pagination": paginationInfo(page, pageSize, total),
		})
	})

	admin.GET("/pods/:id/messages", func(c *gin.Context) {
		podID, ok := podIDParam(c)
		if !ok {
			return
		}
		msgs, err := manager.Timeline(c.Request.Context(), podID)
		if err != nil {
			respondPodError(c, err)
			return
		}

		type inboxMessage struct {
			models.PodMessage
			DisplayName string `json:"display_name"`
			Pending     bool   `json:"pending"`
		}
		out := make([]inboxMessage, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, inboxMessage{PodMessage: m, DisplayName: m.DisplayName(), Pending: !m.Sent()})
		}
		c.JSON(http.StatusOK, gin.H{"messages": out})
	})

	admin.POST("/pods/:id/reply", func(c *gin.Context) {
		podID, ok := podIDParam(c)
		if !ok {
			return
		}
		var req models.PostMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Reply text is required", nil)
			return
		}
		msg, err := manager.PostInstructorReply(c.Request.Context(), podID, req.Text)
		if err != nil {
			respondPodError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg.ToChat())
	})

	admin.POST("/pods/:id/cancel", func(c *gin.Context) {
		podID, ok := podIDParam(c)
		if !ok {
			return
		}
		dropped, err := manager.CancelPod(c.Request.Context(), podID)
		if err != nil {
			respondPodError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.PodStatusCancelled, "dropped_messages": dropped})
	})

	admin.POST("/delivery/run", func(c *gin.Context) {
		res, err := d.Poller.Tick(c.Request.Context())
		if err != nil {
			logger.Error("Manual delivery run failed", "error", err)
			utils.RespondWithError(c, http.StatusBadGateway, "delivery_failed", "Delivery run failed", gin.H{
				"due":        res.Due,
				"dispatched": res.Dispatched,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"due": res.Due, "dispatched": res.Dispatched})
	})

	admin.POST("/days/advance", func(c *gin.Context) {
		scheduled, err := manager.AdvanceDays(c.Request.Context())
		if err != nil {
			logger.Error("Manual day advance failed", "error", err)
			utils.RespondWithError(c, http.StatusBadGateway, "advance_failed", "Day advance failed", gin.H{"scheduled": scheduled})
			return
		}
		c.JSON(http.StatusOK, gin.H{"scheduled": scheduled})
	})

	admin.POST("/sequences/generate", func(c *gin.Context) {
		seqs, ok := generateSequences(c, d.Blueprints)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"sequences": seqs})
	})

	admin.POST("/sequences/export", func(c *gin.Context) {
		seqs, ok := generateSequences(c, d.Blueprints)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := sequence.ExportXLSX(&buf, seqs); err != nil {
			logger.Error("Sequence export failed", "error", err)
			utils.RespondWithInternalError(c, "Failed to export sequences")
			return
		}
		filename := "sequences-" + time.Now().UTC().Format("20060102") + ".xlsx"
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	})

	if d.Audit != nil {
		admin.GET("/audit", QueryAuditLogs(d.Audit))
		admin.GET("/audit/verify", VerifyAuditChain(d.Audit))
	}
}

func generateSequences(c *gin.Context, loaded []models.Blueprint) (map[string][]models.SequenceEmail, bool) {
	var req sequenceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid sequence request", gin.H{"error": err.Error()})
			return nil, false
		}
	}

	selected, missing := selectBlueprints(loaded, req.Niches)
	if len(missing) > 0 {
		utils.RespondWithNotFound(c, "Unknown niche: "+missing[0])
		return nil, false
	}
	selected = append(selected, req.Blueprints...)
	if len(selected) == 0 {
		utils.RespondWithBadRequest(c, "No blueprints to generate", nil)
		return nil, false
	}

	seqs, err := sequence.GenerateAll(selected, sequence.Options{DayGap: req.DayGap, MaxPainPoints: req.MaxPainPoints})
	if errors.Is(err, sequence.ErrInvalidBlueprint) {
		utils.RespondWithBadRequest(c, err.Error(), nil)
		return nil, false
	}
	if err != nil {
		logger.Error("Sequence generation failed", "error", err)
		utils.RespondWithInternalError(c, "Failed to generate sequences")
		return nil, false
	}
	return seqs, true
}

func selectBlueprints(loaded []models.Blueprint, niches []string) ([]models.Blueprint, []string) {
	if len(niches) == 0 {
		return append([]models.Blueprint(nil), loaded...), nil
	}
	byNiche := make(map[string]models.Blueprint, len(loaded))
	for _, bp := range loaded {
		byNiche[bp.Niche] = bp
	}
	var out []models.Blueprint
	var missing []string
	for _, n := range niches {
		bp, ok := byNiche[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		out = append(out, bp)
	}
	return out, missing
}

func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func paginationInfo(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
	}
}
