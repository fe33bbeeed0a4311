// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package admin_api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Askhat-cmd/langchain-vox-bot/config"
	internal_agent "github.com/Askhat-cmd/langchain-vox-bot/internal/agent"
	internal_callstore "github.com/Askhat-cmd/langchain-vox-bot/internal/callstore"
	internal_normalizer "github.com/Askhat-cmd/langchain-vox-bot/internal/normalizer"
	internal_session "github.com/Askhat-cmd/langchain-vox-bot/internal/session"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

const maxKnowledgeBaseBytes = 2 << 20

// AdminApi is the operator surface: health, call logs, prompt management
// and knowledge base upload.
type AdminApi struct {
	cfg        *config.AppConfig
	logger     commons.Logger
	store      *internal_callstore.Store
	agent      *internal_agent.Agent
	registry   *internal_session.Registry
	normalizer *internal_normalizer.Pipeline
	startedAt  time.Time
}

func New(
	cfg *config.AppConfig,
	logger commons.Logger,
	store *internal_callstore.Store,
	agent *internal_agent.Agent,
	registry *internal_session.Registry,
	normalizer *internal_normalizer.Pipeline,
) *AdminApi {
	return &AdminApi{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		agent:      agent,
		registry:   registry,
		normalizer: normalizer,
		startedAt:  time.Now(),
	}
}

func (a *AdminApi) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     a.cfg.Version,
		"uptime":      time.Since(a.startedAt).String(),
		"activeCalls": a.registry.Count(),
	})
}

func (a *AdminApi) GetLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := a.store.List(c.Request.Context(), limit)
	if err != nil {
		a.logger.Errorw("listing call logs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list calls"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": logs})
}

func (a *AdminApi) PurgeLogs(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("olderThanDays", "30"))
	if err != nil || days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "olderThanDays must be a non-negative integer"})
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := a.store.Purge(c.Request.Context(), cutoff)
	if err != nil {
		a.logger.Errorw("purging call logs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge calls"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (a *AdminApi) ExportLogs(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="calls.csv"`)
	if err := a.store.ExportCSV(c.Request.Context(), c.Writer); err != nil {
		a.logger.Errorw("exporting call logs failed", "error", err)
	}
}

func (a *AdminApi) GetPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"systemPrompt": a.agent.SystemPrompt(),
		"greeting":     a.registry.Greeting(),
	})
}

type updatePromptsRequest struct {
	SystemPrompt *string `json:"systemPrompt"`
	Greeting     *string `json:"greeting"`
}

func (a *AdminApi) UpdatePrompts(c *gin.Context) {
	var req updatePromptsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SystemPrompt != nil {
		a.agent.SetSystemPrompt(*req.SystemPrompt)
	}
	if req.Greeting != nil {
		a.registry.SetGreeting(*req.Greeting)
	}
	a.GetPrompts(c)
}

// UploadKnowledgeBase replaces the reference text the agent folds into its
// system prompt. Plain text body, capped in size.
func (a *AdminApi) UploadKnowledgeBase(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxKnowledgeBaseBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if len(body) > maxKnowledgeBaseBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "knowledge base exceeds 2MB"})
		return
	}
	a.agent.SetKnowledgeBase(string(body))
	c.JSON(http.StatusOK, gin.H{"bytes": len(body)})
}

type normalizeRequest struct {
	Text string `json:"text" binding:"required"`
}

// NormalizePreview shows what a given text would sound like after the
// synthesis normalizers run. Debug aid for prompt tuning.
func (a *AdminApi) NormalizePreview(c *gin.Context) {
	var req normalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"input":  req.Text,
		"output": a.normalizer.Normalize(c.Request.Context(), req.Text),
	})
}
