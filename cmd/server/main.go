// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yydounai1234/AIgo-sub000/internal/api"
	"github.com/yydounai1234/AIgo-sub000/internal/app"
	"github.com/yydounai1234/AIgo-sub000/internal/config"
	"github.com/yydounai1234/AIgo-sub000/internal/di"
)

func main() {
	log.Println("🚀 启动 AIgo 叙事多媒体生成服务...")

	// 1. 初始化配置系统
	if err := config.InitConfig(); err != nil {
		log.Fatalf("初始化配置失败: %v", err)
	}
	cfg := config.GetCurrentConfig()
	log.Printf("✅ 配置加载完成，端口: %s", cfg.Port)

	// 2. 初始化所有服务（按依赖顺序）
	if err := app.InitServices(); err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	log.Println("✅ 所有服务初始化完成")

	// 3. 健康检查
	if err := performHealthCheck(); err != nil {
		log.Fatalf("❌ 服务健康检查失败: %v", err)
	}

	// 4. 设置路由（只获取服务，不创建）
	router, err := api.SetupRouter()
	if err != nil {
		log.Fatalf("❌ 设置路由失败: %v", err)
	}
	log.Println("✅ 路由设置完成")

	// 5. 启动服务器
	log.Printf("🌐 服务器启动在端口 %s", cfg.Port)
	if cfg.IsDemoMode() {
		log.Println("⚠️ 演示模式：未配置LLM凭证，流水线返回离线结果")
	}

	setupGracefulShutdown(router, cfg.Port)
}

// 健康检查函数
func performHealthCheck() error {
	container := di.GetContainer()

	// 检查关键服务是否已注册
	criticalServices := []string{"parser", "pipeline", "episode", "work", "character"}

	for _, serviceName := range criticalServices {
		if service := container.Get(serviceName); service == nil {
			return fmt.Errorf("关键服务未注册: %s", serviceName)
		}
	}

	log.Println("✅ 服务健康检查通过")
	return nil
}

// 优雅关闭函数
func setupGracefulShutdown(router *gin.Engine, port string) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// 在新的 goroutine 中启动服务器
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ 启动服务器失败: %v", err)
		}
	}()

	// 等待中断信号以进行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ 服务器强制关闭: %v", err)
	}

	// 等在途流水线收尾并关闭数据库
	app.Shutdown()

	log.Println("✅ 服务器优雅关闭完成")
}
