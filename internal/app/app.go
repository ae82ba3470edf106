// internal/app/app.go
package app

import (
	"fmt"
	"path/filepath"

	"gorm.io/gorm"

	"github.com/yydounai1234/AIgo-sub000/internal/assets"
	"github.com/yydounai1234/AIgo-sub000/internal/config"
	"github.com/yydounai1234/AIgo-sub000/internal/di"
	_ "github.com/yydounai1234/AIgo-sub000/internal/llm/providers/deepseek" // 注册LLM提供者
	"github.com/yydounai1234/AIgo-sub000/internal/services"
	"github.com/yydounai1234/AIgo-sub000/internal/storage"
	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// InitServices 按依赖顺序初始化全部服务并注册到容器
// 顺序：数据库 → 存储 → 资产/外部服务 → 调和与流水线 → 集数服务
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 日志
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	logger := utils.GetLogger()

	// 数据库
	db, err := storage.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	container.Register("db", db)

	workStore := storage.NewWorkStore(db)
	episodeStore := storage.NewEpisodeStore(db)
	characterStore := storage.NewCharacterStore(db)
	container.Register("work_store", workStore)
	container.Register("episode_store", episodeStore)
	container.Register("character_store", characterStore)

	// 资产存储
	assetStore := assets.NewQiniuStore(cfg.Storage)
	container.Register("assets", assetStore)

	// 解析器（演示模式下不创建网络提供者）
	parser, err := services.NewParserService(cfg.LLM, characterStore)
	if err != nil {
		return err
	}
	container.Register("parser", parser)

	// 锁管理器与工作池
	lockManager := services.NewLockManager()
	container.Register("lock_manager", lockManager)

	pool := services.NewWorkerPool(cfg.Pool.CoreWorkers, cfg.Pool.MaxWorkers, cfg.Pool.QueueSize)
	container.Register("worker_pool", pool)

	// 各生成阶段
	characterService := services.NewCharacterService(characterStore, lockManager, parser.Provider())
	imageService := services.NewImageService(cfg.Image, assetStore)
	speechService := services.NewSpeechService(cfg.Speech, assetStore)
	videoService := services.NewVideoService(cfg.Video)
	progressService := services.NewProgressService()
	container.Register("character", characterService)
	container.Register("image", imageService)
	container.Register("speech", speechService)
	container.Register("video", videoService)
	container.Register("progress", progressService)

	// 流水线编排器
	pipeline := services.NewPipelineService(
		episodeStore, workStore,
		parser, characterService, imageService, speechService, videoService,
		progressService, lockManager, pool,
	)
	container.Register("pipeline", pipeline)

	// 面向API的服务
	container.Register("work", services.NewWorkService(workStore))
	container.Register("episode", services.NewEpisodeService(episodeStore, workStore, pipeline))

	logger.Info("服务初始化完成", map[string]interface{}{
		"services":  len(container.GetNames()),
		"demo_mode": cfg.IsDemoMode(),
	})
	return nil
}

// Shutdown 停止后台组件并释放资源
func Shutdown() {
	container := di.GetContainer()

	if pool, ok := container.Get("worker_pool").(*services.WorkerPool); ok {
		pool.Shutdown()
	}
	if db, ok := container.Get("db").(*gorm.DB); ok {
		if err := storage.CloseDB(db); err != nil {
			utils.GetLogger().Warn("关闭数据库失败", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
