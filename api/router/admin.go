// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package routers

import (
	"crypto/subtle"
	"net/http"

	adminApi "github.com/Askhat-cmd/langchain-vox-bot/api/admin-api"
	"github.com/Askhat-cmd/langchain-vox-bot/config"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
	"github.com/gin-gonic/gin"
)

// AdminApiRoutes mounts the operator endpoints. Everything except the
// health probe requires the configured API key.
func AdminApiRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, api *adminApi.AdminApi) {
	logger.Info("Admin routes added to engine.")

	engine.GET("/healthz", api.Healthz)

	apiv1 := engine.Group("/v1/admin", apiKeyAuth(cfg.AdminApiKey))
	{
		apiv1.GET("/logs", api.GetLogs)
		apiv1.DELETE("/logs", api.PurgeLogs)
		apiv1.GET("/logs/export", api.ExportLogs)

		apiv1.GET("/prompts", api.GetPrompts)
		apiv1.PUT("/prompts", api.UpdatePrompts)
		apiv1.PUT("/knowledge-base", api.UploadKnowledgeBase)

		apiv1.POST("/normalize", api.NormalizePreview)
	}
}

func apiKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		provided := c.GetHeader("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}
