// Package tasks 定义 web 与 worker 共享的异步任务类型和载荷
package tasks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeSendEmail          = "email:send"
	TypeHostingSyncServer  = "hosting:sync:server"
	TypeHostingSyncAll     = "hosting:sync:all"
	TypeHostingInvoices    = "hosting:invoices"
	TypeTldPriceSync       = "registrar:price:sync"
	TypeTldPriceSyncAll    = "registrar:price:sync_all"
	TypeInvoiceOverdue     = "invoice:overdue"
	TypeDomainExpiryNotice = "domain:expiry"
	TypeQuoteExpire        = "quote:expire"
)

// EmailMaxRetry SMTP 发送的最大重试次数
const EmailMaxRetry = 5

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Enqueuer 是 *asynq.Client 的最小子集, 便于测试替换
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type EmailPayload struct {
	EmailID uint `json:"email_id"`
}

type ServerPayload struct {
	ServerID uint `json:"server_id"`
}

type RegistrarPayload struct {
	RegistrarID uint `json:"registrar_id"`
}

func NewSendEmailTask(emailID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailPayload{EmailID: emailID})
	if err != nil {
		return nil, err
	}
	// 最后一次重试失败后邮件行标记为 failed
	return asynq.NewTask(TypeSendEmail, payload, asynq.Queue(QueueCritical), asynq.MaxRetry(EmailMaxRetry)), nil
}

func NewHostingSyncServerTask(serverID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(ServerPayload{ServerID: serverID})
	if err != nil {
		return nil, err
	}
	// 同一台服务器的同步任务在 10 分钟内去重
	return asynq.NewTask(TypeHostingSyncServer, payload,
		asynq.Queue(QueueLow),
		asynq.Unique(10*time.Minute),
		asynq.Timeout(15*time.Minute),
	), nil
}

func NewTldPriceSyncTask(registrarID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(RegistrarPayload{RegistrarID: registrarID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTldPriceSync, payload,
		asynq.Queue(QueueLow),
		asynq.Unique(10*time.Minute),
	), nil
}

// NewPeriodicTask 无载荷的周期任务 (逾期扫描、全量同步等)
func NewPeriodicTask(taskType string) *asynq.Task {
	return asynq.NewTask(taskType, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}
