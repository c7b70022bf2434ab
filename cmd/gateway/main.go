package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"addongate/internal"
	"addongate/internal/admin/api"
	"addongate/internal/admin/router"
	"addongate/internal/pkg"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// syncLog 安全地同步日志，忽略与标准输出相关的错误
func syncLog(log *zap.Logger) {
	// Windows平台上，同步标准输出时会出现"The handle is invalid"错误
	err := log.Sync()
	if err != nil && !strings.Contains(err.Error(), "The handle is invalid") {
		log.Error("程序退出时同步日志失败", zap.Error(err))
	}
}

func main() {

	// 1. 初始化common yaml
	config, err := pkg.InitCommon("yaml")
	if err != nil {
		fmt.Printf("[main] 加载配置失败: %s", err)
		return
	}

	// 2. 初始化log
	log := pkg.NewLogger(&config.Log)

	log.Info("程序启动", zap.String("version", config.Version))
	log.Info("配置信息", zap.Any("common", config))
	log.Info("==== 初始化流程开始 ====")

	// 3. 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 10) // 全局错误通道, 缓存大小为10
	ctx = pkg.WithErrChan(ctx, errChan)
	ctx = pkg.WithConfig(ctx, config)
	ctx = pkg.WithLogger(ctx, log)

	pipeline, err := internal.NewPipeline(ctx)
	if err != nil {
		log.Error("创建管道失败", zap.Error(err))
		cancel()
		return
	}

	// 4. 管理接口，websocket 推送作为额外的输出端
	if config.API.Enable {
		hub := api.NewHub(pkg.WithLoggerAndModule(ctx, log, "API"))
		if err := pipeline.AddSink(hub); err != nil {
			log.Error("添加 websocket 输出失败", zap.Error(err))
			cancel()
			return
		}
		handler := api.NewHandler(pipeline.Registry, pipeline, log.With(zap.String("module", "API")))
		startAPI(ctx, config.API, router.SetupRouter(handler, hub, config.API.AllowOrigins), log)
	}

	printStartupLogo()
	// 5. 启动管道
	pipeline.Start()

	// 6. 主线程监听终止信号
	si := make(chan os.Signal, 1)
	signal.Notify(si, os.Interrupt, syscall.SIGTERM)
	for {
		select {
		case <-si:
			log.Info("Caught exit signal, exiting addongate...")
			cancel()                    // 取消上下文
			time.Sleep(1 * time.Second) // 给其他协程时间处理取消
			syncLog(log)
			os.Exit(0)
		case bad := <-errChan:
			log.Error("Error occurred", zap.Error(bad))
			cancel()
			// 等待其他可能的错误
			go func() {
				for err := range errChan {
					log.Error("Error occurred before shutdown", zap.Error(err))
				}
			}()
			time.Sleep(1 * time.Second) // 确保日志输出完整
			syncLog(log)
			os.Exit(1)
		}
	}
}

// startAPI 启动 HTTP 服务，ctx 结束时优雅关闭
func startAPI(ctx context.Context, cfg pkg.APIConfig, engine *gin.Engine, log *zap.Logger) {
	gin.SetMode(gin.ReleaseMode)
	port := cfg.Port
	if port == "" {
		port = "8081"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: engine,
	}
	go func() {
		log.Info("管理接口启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pkg.ReportError(ctx, fmt.Errorf("api server: %w", err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Warn("管理接口关闭失败", zap.Error(err))
		}
	}()
}

func printStartupLogo() {
	logo := `
	    _       _     _             ____       _
	   / \   __| | __| | ___  _ __ / ___| __ _| |_ ___
	  / _ \ / _' |/ _' |/ _ \| '_ \ |  _ / _' | __/ _ \
	 / ___ \ (_| | (_| | (_) | | | | |_| | (_| | ||  __/
	/_/   \_\__,_|\__,_|\___/|_| |_|\____|\__,_|\__\___|

`
	fmt.Print(logo)
}
