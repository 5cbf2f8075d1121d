// internal/api/router.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptStudio/internal/utils"
)

// RouterOptions 路由配置
type RouterOptions struct {
	DebugMode bool
	// GenerationPerMinute limits provider-backed endpoints per client IP
	GenerationPerMinute int
	Metrics             *utils.MetricsCollector
}

// SetupRouter 配置HTTP路由
func SetupRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	if !opts.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.GenerationPerMinute <= 0 {
		opts.GenerationPerMinute = 30
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(corsMiddleware())

	started := time.Now()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"uptime_seconds": int(time.Since(started).Seconds()),
		})
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// WebSocket 支持
	r.GET("/ws/sessions/:id", handler.SessionWebSocket)

	generation := GenerationRateLimit(NewRateLimiter(opts.GenerationPerMinute, 5))

	api := r.Group("/api")
	{
		// ===============================
		// 会话相关路由
		// ===============================
		sessions := api.Group("/sessions")
		{
			sessions.POST("", handler.CreateSession)
			sessions.GET("/:id", handler.GetSession)
			sessions.DELETE("/:id", handler.DeleteSession)

			sessions.POST("/:id/generate", generation, handler.Generate)
			sessions.POST("/:id/revise", generation, handler.Revise)

			sequential := sessions.Group("/:id/sequential")
			{
				sequential.POST("/start", handler.StartSequential)
				sequential.POST("/next", generation, handler.NextPart)
				sequential.POST("/stop", handler.StopSequential)
			}

			sessions.POST("/:id/dialogue", generation, handler.ExtractDialogue)
			sessions.POST("/:id/visual-prompts", generation, handler.VisualPrompt)
			sessions.POST("/:id/visual-prompts/all", generation, handler.AllVisualPrompts)

			sessions.POST("/:id/video-plan", generation, handler.VideoPlan)
			sessions.DELETE("/:id/video-plan", handler.ClearVideoPlan)
			sessions.POST("/:id/video-plan/custom", generation, handler.CustomVideoPlan)

			sessions.POST("/:id/library", handler.SaveToLibrary)
			sessions.POST("/:id/library/:entryID/load", handler.LoadFromLibrary)
		}

		// ===============================
		// 脚本库
		// ===============================
		library := api.Group("/library")
		{
			library.GET("", handler.ListLibrary)
			library.DELETE("/:entryID", handler.DeleteLibraryEntry)
		}

		// ===============================
		// 建议
		// ===============================
		suggestions := api.Group("/suggestions", generation)
		{
			suggestions.POST("/topics", handler.SuggestTopics)
			suggestions.POST("/keywords", handler.SuggestKeywords)
			suggestions.POST("/style", handler.SuggestStyle)
		}

		// ===============================
		// 凭据
		// ===============================
		credentials := api.Group("/credentials")
		{
			credentials.GET("", handler.ListCredentials)
			credentials.POST("", handler.AddCredentials)
			credentials.DELETE("", handler.DeleteCredential)
		}

		// ===============================
		// 设置与LLM配置
		// ===============================
		api.GET("/settings", handler.GetSettings)
		llmGroup := api.Group("/llm")
		{
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
			llmGroup.GET("/providers", handler.ListProviders)
		}

		api.GET("/ws/status", handler.GetWebSocketStatus)
	}

	return r
}
