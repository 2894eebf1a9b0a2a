package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler 按 cron 表达式把周期任务投递到队列, 实际执行仍由 worker 完成
type Scheduler struct {
	cron  *cron.Cron
	queue tasks.Enqueuer
}

// NewScheduler 表达式为空的任务不调度; 任一表达式非法则返回错误
func NewScheduler(cfg config.ScheduleConfig, queue tasks.Enqueuer) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(cron.WithLocation(time.UTC)),
		queue: queue,
	}
	jobs := []struct {
		spec     string
		taskType string
	}{
		{cfg.OverdueInvoices, tasks.TypeInvoiceOverdue},
		{cfg.HostingSync, tasks.TypeHostingSyncAll},
		{cfg.TldPriceSync, tasks.TypeTldPriceSyncAll},
		{cfg.DomainExpiry, tasks.TypeDomainExpiryNotice},
		{cfg.HostingInvoices, tasks.TypeHostingInvoices},
		{cfg.QuoteExpiry, tasks.TypeQuoteExpire},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		taskType := job.taskType
		if _, err := s.cron.AddFunc(job.spec, func() { s.Trigger(context.Background(), taskType) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", taskType, job.spec, err)
		}
	}
	return s, nil
}

// Trigger 立即投递一次周期任务
func (s *Scheduler) Trigger(ctx context.Context, taskType string) {
	info, err := s.queue.EnqueueContext(ctx, tasks.NewPeriodicTask(taskType))
	if err != nil {
		logger.Logger.Error("周期任务入队失败", zap.String("type", taskType), zap.Error(err))
		return
	}
	logger.Logger.Info("周期任务已入队", zap.String("type", taskType), zap.String("task_id", info.ID))
}

// Entries 已登记的任务数
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 等待正在执行的投递完成
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
