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

	"github.com/hibiken/asynq"
	"github.com/isp-backoffice/internal/cache"
	"github.com/isp-backoffice/internal/database"
	"github.com/isp-backoffice/internal/integration/mailer"
	"github.com/isp-backoffice/internal/integration/payment"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/platform/redis"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/worker"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	if err := logger.InitLogger(&cfg.Logger, "worker"); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer logger.Sync()
	logger.Logger.Info("日志系统初始化成功")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Logger.Fatal("数据库初始化失败", zap.Error(err))
	}
	logger.Logger.Info("Worker数据库连接成功")

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		logger.Logger.Fatal("Redis 连接失败", zap.Error(err))
	}
	defer rdb.Close()

	redisOpt := redis.AsynqOpt(cfg.Redis)
	client := asynq.NewClient(redisOpt)
	defer client.Close()

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

	svc := service.New(service.Options{
		DB:        db,
		Billing:   cfg.Billing,
		Auth:      cfg.Auth,
		Queue:     client,
		RateCache: cache.NewRedisRateCache(rdb),
		Gateway:   gateway,
		Metrics:   metrics.New(reg),
	})

	srv := asynq.NewServer(redisOpt, asynq.Config{
		// 指定并发处理任务的数量
		Concurrency: cfg.Worker.Concurrency,
		// 不同优先级的队列
		Queues: cfg.Worker.Queues,
		Logger: logger.Logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			logger.Logger.Error("任务执行失败",
				zap.String("type", task.Type()),
				zap.Int("retried", retried),
				zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	worker.NewTaskProcessor(svc, client, mailer.New(cfg.Mail)).Register(mux)

	scheduler, err := worker.NewScheduler(cfg.Schedule, client)
	if err != nil {
		logger.Logger.Fatal("周期任务配置错误", zap.Error(err))
	}

	var metricsSrv *http.Server
	if cfg.Worker.MetricsPort != "" {
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Worker.MetricsPort),
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Logger.Error("metrics 服务异常退出", zap.Error(err))
			}
		}()
	}

	if err := srv.Start(mux); err != nil {
		logger.Logger.Fatal("无法启动Worker服务器", zap.Error(err))
	}
	scheduler.Start()
	logger.Logger.Info("Worker已启动，正在等待任务...", zap.Int("schedules", scheduler.Entries()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Logger.Info("收到退出信号, 正在关闭")
	scheduler.Stop()
	srv.Shutdown()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
