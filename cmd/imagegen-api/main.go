// Package main 文生图编排服务入口
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"imagegen-api/internal/config"
	"imagegen-api/internal/wire"
	"imagegen-api/pkg/logger"
	"imagegen-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if Version != "dev" {
		cfg.App.Version = Version
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.FromContext(ctx)
	log.Info("starting imagegen-api",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
		"storage", cfg.Storage.Driver,
		"messaging", cfg.Messaging.Driver,
	)

	// 初始化追踪
	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化应用（使用 Wire 注入）
	app, cleanupApp, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer cleanupApp()

	// SSE 长连接在 Shutdown 开始时随 baseCtx 一起结束
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Router.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)
	startedAt := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	// 多实例部署时由 relay 将 Stream 中的事件投递到本地订阅者
	relay := app.Events.Relay
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		// relay 确定读取起点后才开始监听
		if relay != nil {
			select {
			case <-relay.Started():
			case <-gctx.Done():
				return nil
			}
		}
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", "error", err)
		}
		// 等待进行中的生成尝试写完历史并发出终态事件
		if err := app.Orchestrator.Shutdown(shutdownCtx); err != nil {
			log.Warn("generation attempts still running at shutdown", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		cleanupApp()
		os.Exit(1)
	}

	log.Info("server exited", "uptime", time.Since(startedAt).Round(time.Second))
}
