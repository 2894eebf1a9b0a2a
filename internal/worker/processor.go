// Package worker 消费 asynq 任务, 把队列里的工作交给 service 层执行
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/isp-backoffice/internal/integration/mailer"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
)

type TaskProcessor struct {
	svc    *service.Services
	queue  tasks.Enqueuer
	sender mailer.Sender
}

func NewTaskProcessor(svc *service.Services, queue tasks.Enqueuer, sender mailer.Sender) *TaskProcessor {
	return &TaskProcessor{svc: svc, queue: queue, sender: sender}
}

// Register 把全部任务类型挂到 mux 上
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeSendEmail, p.HandleSendEmail)
	mux.HandleFunc(tasks.TypeHostingSyncServer, p.HandleHostingSyncServer)
	mux.HandleFunc(tasks.TypeHostingSyncAll, p.HandleHostingSyncAll)
	mux.HandleFunc(tasks.TypeHostingInvoices, p.HandleHostingInvoices)
	mux.HandleFunc(tasks.TypeTldPriceSync, p.HandleTldPriceSync)
	mux.HandleFunc(tasks.TypeTldPriceSyncAll, p.HandleTldPriceSyncAll)
	mux.HandleFunc(tasks.TypeInvoiceOverdue, p.HandleInvoiceOverdue)
	mux.HandleFunc(tasks.TypeDomainExpiryNotice, p.HandleDomainExpiry)
	mux.HandleFunc(tasks.TypeQuoteExpire, p.HandleQuoteExpire)
}

// decode 载荷解析失败不会因重试而好转, 直接跳过重试
func decode(t *asynq.Task, v interface{}) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("解析任务载荷失败: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// permanent 记录已删除等业务错误无需重试
func permanent(err error) error {
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidState) || errors.Is(err, service.ErrValidation) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// finalAttempt 在 asynq 上下文之外 (如测试) 视为最后一次
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func (p *TaskProcessor) HandleSendEmail(ctx context.Context, t *asynq.Task) error {
	var payload tasks.EmailPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	if err := p.svc.Emails.Deliver(ctx, payload.EmailID, p.sender, finalAttempt(ctx)); err != nil {
		logger.Logger.Warn("邮件发送失败", zap.Uint("email_id", payload.EmailID), zap.Error(err))
		return permanent(err)
	}
	return nil
}

func (p *TaskProcessor) HandleHostingSyncServer(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ServerPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	res, err := p.svc.HostingSync.SyncServer(ctx, payload.ServerID)
	if err != nil {
		return permanent(err)
	}
	logger.Logger.Info("主机同步完成",
		zap.Uint("server_id", payload.ServerID),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("removed", res.Removed))
	return nil
}

// HandleHostingSyncAll 扇出: 每台启用的服务器一个子任务, 单台失败只重试自己
func (p *TaskProcessor) HandleHostingSyncAll(ctx context.Context, _ *asynq.Task) error {
	ids, err := p.svc.HostingSync.ActiveServerIDs(ctx)
	if err != nil {
		return err
	}
	return p.fanOut(ctx, ids, tasks.NewHostingSyncServerTask)
}

func (p *TaskProcessor) HandleTldPriceSync(ctx context.Context, t *asynq.Task) error {
	var payload tasks.RegistrarPayload
	if err := decode(t, &payload); err != nil {
		return err
	}
	res, err := p.svc.PriceSync.SyncRegistrar(ctx, payload.RegistrarID)
	if err != nil {
		return permanent(err)
	}
	logger.Logger.Info("TLD 价格同步完成",
		zap.Uint("registrar_id", res.RegistrarID),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))
	return nil
}

func (p *TaskProcessor) HandleTldPriceSyncAll(ctx context.Context, _ *asynq.Task) error {
	ids, err := p.svc.PriceSync.ActiveRegistrarIDs(ctx)
	if err != nil {
		return err
	}
	return p.fanOut(ctx, ids, tasks.NewTldPriceSyncTask)
}

func (p *TaskProcessor) fanOut(ctx context.Context, ids []uint, build func(uint) (*asynq.Task, error)) error {
	var errs []error
	for _, id := range ids {
		task, err := build(id)
		if err != nil {
			return err
		}
		if _, err := p.queue.EnqueueContext(ctx, task); err != nil {
			// 上一轮的同一子任务仍在队列中, 不算失败
			if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			errs = append(errs, fmt.Errorf("enqueue %s for %d: %w", task.Type(), id, err))
		}
	}
	logger.Logger.Info("子任务已分发", zap.Int("count", len(ids)), zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

func (p *TaskProcessor) HandleInvoiceOverdue(ctx context.Context, _ *asynq.Task) error {
	n, err := p.svc.Invoices.MarkOverdue(ctx)
	if err != nil {
		return err
	}
	logger.Logger.Info("逾期扫描", zap.Int64("marked", n))
	return nil
}

func (p *TaskProcessor) HandleDomainExpiry(ctx context.Context, _ *asynq.Task) error {
	res, err := p.svc.Domains.ProcessExpirations(ctx)
	if err != nil {
		return err
	}
	logger.Logger.Info("域名到期处理", zap.Int64("expired", res.Expired), zap.Int("reminded", res.Reminded))
	return nil
}

func (p *TaskProcessor) HandleHostingInvoices(ctx context.Context, _ *asynq.Task) error {
	n, err := p.svc.HostingManager.GenerateRecurringInvoices(ctx)
	// 部分账户失败时已生成的账单保留, 整个任务重试时按 next_due_date 跳过它们
	logger.Logger.Info("主机续费账单", zap.Int("created", n), zap.Error(err))
	return err
}

func (p *TaskProcessor) HandleQuoteExpire(ctx context.Context, _ *asynq.Task) error {
	n, err := p.svc.Quotes.ExpireStale(ctx)
	if err != nil {
		return err
	}
	logger.Logger.Info("报价单过期", zap.Int64("expired", n))
	return nil
}
