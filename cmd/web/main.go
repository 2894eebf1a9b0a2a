package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/isp-backoffice/internal/api/router"
	"github.com/isp-backoffice/internal/cache"
	"github.com/isp-backoffice/internal/database"
	"github.com/isp-backoffice/internal/integration/payment"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/platform/redis"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/validator"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	// 加载日志系统
	if err := logger.InitLogger(&cfg.Logger, "web"); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.Mode)
	if err := validator.RegisterTags(); err != nil {
		logger.Logger.Fatal("注册校验规则失败", zap.Error(err))
	}

	// 初始化数据库
	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Logger.Fatal("数据库初始化失败", zap.Error(err))
	}

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		logger.Logger.Fatal("Redis 连接失败", zap.Error(err))
	}
	defer rdb.Close()

	asynqClient := asynq.NewClient(redis.AsynqOpt(cfg.Redis))
	defer asynqClient.Close()

	gateway, err := payment.New(payment.Config{
		Driver:   cfg.Payment.Driver,
		Endpoint: cfg.Payment.Endpoint,
		APIKey:   cfg.Payment.APIKey,
	})
	if err != nil {
		logger.Logger.Fatal("支付网关初始化失败", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc := service.New(service.Options{
		DB:        db,
		Billing:   cfg.Billing,
		Auth:      cfg.Auth,
		Queue:     asynqClient,
		RateCache: cache.NewRedisRateCache(rdb),
		Gateway:   gateway,
		Metrics:   m,
	})

	r := router.SetupRouter(router.Options{
		Services:    svc,
		Queue:       asynqClient,
		Metrics:     m,
		Gatherer:    reg,
		CorsOrigins: cfg.Server.CorsOrigins,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Logger.Info("Server is running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal("Server is shutting down", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Logger.Info("收到退出信号, 正在关闭")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("关闭 HTTP 服务失败", zap.Error(err))
	}
}
