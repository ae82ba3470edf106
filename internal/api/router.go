// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/yydounai1234/AIgo-sub000/internal/config"
	"github.com/yydounai1234/AIgo-sub000/internal/di"
	"github.com/yydounai1234/AIgo-sub000/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	workService, ok := container.Get("work").(*services.WorkService)
	if !ok {
		return nil, fmt.Errorf("作品服务未正确初始化")
	}

	episodeService, ok := container.Get("episode").(*services.EpisodeService)
	if !ok {
		return nil, fmt.Errorf("集数服务未正确初始化")
	}

	characterService, ok := container.Get("character").(*services.CharacterService)
	if !ok {
		return nil, fmt.Errorf("角色服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	handler := NewHandler(workService, episodeService, characterService, progressService)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// WebSocket 进度推送
	r.GET("/ws/episodes/:id/progress", handler.EpisodeProgressWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", handler.Health)

		workGroup := api.Group("/works")
		{
			workGroup.POST("", handler.CreateWork)
			workGroup.GET("", handler.ListWorks)
			workGroup.GET("/:id", handler.GetWork)
			workGroup.DELETE("/:id", handler.DeleteWork)
			workGroup.POST("/:id/episodes", handler.CreateEpisode)
			workGroup.GET("/:id/episodes", handler.ListEpisodes)
			workGroup.GET("/:id/characters", handler.ListCharacters)
		}

		episodeGroup := api.Group("/episodes")
		{
			episodeGroup.GET("/:id", handler.GetEpisode)
			episodeGroup.POST("/:id/retry", handler.RetryEpisode)
			episodeGroup.PUT("/:id/publish", handler.PublishEpisode)
			episodeGroup.PUT("/:id/pricing", handler.UpdatePricing)
		}
	}

	return r, nil
}

// corsMiddleware 跨域支持
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
