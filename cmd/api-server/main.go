// Package main API Server 入口
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"agents-workflow/internal/api"
	"agents-workflow/internal/archive"
	"agents-workflow/internal/config"
	"agents-workflow/internal/shared/infra"
	"agents-workflow/internal/shared/metrics"
	"agents-workflow/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 选择配置文件）
	cfg := config.Load()

	logger := logging.New(cfg.Log)
	logger.Info("Starting API Server", "env", string(cfg.Env), "config", cfg.String())

	// 指标注册表：业务指标 + Go 运行时指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("agents_workflow", reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化存储、缓存、事件总线、对象存储
	inf, err := infra.New(ctx, cfg, m)
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	defer inf.Close()

	opts := []archive.Option{
		archive.WithCache(inf.Cache),
		archive.WithEventBus(inf.EventBus),
		archive.WithRecorder(m),
	}
	if inf.Files != nil {
		opts = append(opts, archive.WithFiles(inf.Files))
	}
	svc := archive.NewService(inf.Storage, opts...)

	h := api.NewHandler(svc, inf.EventBus, m.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	logger.Info("API Server listening", "port", cfg.APIPort, "storage", cfg.StorageDriver,
		"redis", cfg.RedisEnabled(), "files", inf.Files != nil)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
