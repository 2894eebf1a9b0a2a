package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/mailer"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TemplateInvoiceIssued    = "invoice_issued"
	TemplatePaymentReceived  = "payment_received"
	TemplateQuoteSent        = "quote_sent"
	TemplateDomainExpiring   = "domain_expiring"
	TemplateHostingSuspended = "hosting_suspended"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(name + ".subject").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Parse(body)),
	}
}

var emailTemplates = map[string]emailTemplate{
	TemplateInvoiceIssued: mustTemplate(TemplateInvoiceIssued,
		"Invoice {{.Number}} issued",
		`Hello {{.CustomerName}},

invoice {{.Number}} for {{.Total}} has been issued.
Amount due: {{.Balance}}, payable by {{.DueDate}}.
`),
	TemplatePaymentReceived: mustTemplate(TemplatePaymentReceived,
		"Payment received{{if .Number}} for invoice {{.Number}}{{end}}",
		`Hello {{.CustomerName}},

we received your payment of {{.Amount}}.
{{if .Paid}}The invoice is now paid in full.{{else}}Remaining balance: {{.Balance}}.{{end}}
`),
	TemplateQuoteSent: mustTemplate(TemplateQuoteSent,
		"Quote {{.Number}}{{if .Subject}}: {{.Subject}}{{end}}",
		`Hello {{.CustomerName}},

please find our quote {{.Number}} for {{.Total}}.
This quote is valid until {{.ValidUntil}}.
`),
	TemplateDomainExpiring: mustTemplate(TemplateDomainExpiring,
		"Domain {{.Domain}} expires on {{.ExpiresAt}}",
		`Hello {{.CustomerName}},

your domain {{.Domain}} expires on {{.ExpiresAt}} ({{.Days}} days).
{{if .AutoRenew}}It will be renewed automatically.{{else}}Renew it before that date to keep it.{{end}}
`),
	TemplateHostingSuspended: mustTemplate(TemplateHostingSuspended,
		"Hosting account {{.Username}} suspended",
		`Hello {{.CustomerName}},

your hosting account {{.Username}} ({{.Domain}}) has been suspended.
Reason: {{.Reason}}
`),
}

// EmailRequest 待渲染的邮件
type EmailRequest struct {
	CustomerID uint
	To         string
	Template   string
	Data       map[string]interface{}
}

// EmailService 邮件先入库, 再由 worker 通过 asynq 异步投递
type EmailService struct {
	db      *gorm.DB
	queue   tasks.Enqueuer
	metrics *metrics.Metrics
	now     func() time.Time
}

func (s *EmailService) GetAll(ctx context.Context, filter dto.EmailFilter) (PageResult[model.QueuedEmail], error) {
	query := s.db.WithContext(ctx).Model(&model.QueuedEmail{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	return paginate[model.QueuedEmail](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "id desc")
}

func (s *EmailService) GetByID(ctx context.Context, id uint) (*model.QueuedEmail, error) {
	var e model.QueuedEmail
	if err := findByID(s.db.WithContext(ctx), &e, id, "email"); err != nil {
		return nil, err
	}
	return &e, nil
}

func render(name string, data map[string]interface{}) (string, string, error) {
	tpl, ok := emailTemplates[name]
	if !ok {
		return "", "", validationf("未知的邮件模板 %q", name)
	}
	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("渲染邮件标题失败: %w", err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("渲染邮件正文失败: %w", err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

// Enqueue 渲染模板、入库并投递发送任务
// 任务入队失败时记录保持 queued, 可通过 Resend 重新投递
func (s *EmailService) Enqueue(ctx context.Context, req EmailRequest) (*model.QueuedEmail, error) {
	if req.To == "" {
		return nil, validationf("收件人不能为空")
	}
	subject, body, err := render(req.Template, req.Data)
	if err != nil {
		return nil, err
	}
	e := &model.QueuedEmail{
		CustomerID: req.CustomerID,
		To:         req.To,
		Subject:    subject,
		Body:       body,
		Template:   req.Template,
		Status:     model.EmailStatusQueued,
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, e.ID); err != nil {
		return e, err
	}
	return e, nil
}

func (s *EmailService) dispatch(ctx context.Context, id uint) error {
	if s.queue == nil {
		return fmt.Errorf("任务队列未配置")
	}
	task, err := tasks.NewSendEmailTask(id)
	if err != nil {
		return err
	}
	if _, err := s.queue.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("邮件 %d 入队失败: %w", id, err)
	}
	return nil
}

// notify 业务通知, 失败只记录日志不影响主流程
func (s *EmailService) notify(ctx context.Context, customer *model.Customer, name string, data map[string]interface{}) {
	if customer == nil || customer.Email == "" {
		return
	}
	data["CustomerName"] = customer.DisplayName()
	if _, err := s.Enqueue(ctx, EmailRequest{
		CustomerID: customer.ID,
		To:         customer.Email,
		Template:   name,
		Data:       data,
	}); err != nil {
		logger.Logger.Warn("通知邮件入队失败",
			zap.Uint("customer_id", customer.ID),
			zap.String("template", name),
			zap.Error(err))
	}
}

// Resend 将失败或卡住的邮件重新入队
func (s *EmailService) Resend(ctx context.Context, id uint) (*model.QueuedEmail, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == model.EmailStatusSent {
		return nil, invalidStatef("邮件 %d 已发送", id)
	}
	e.Status = model.EmailStatusQueued
	e.LastError = ""
	if err := s.db.WithContext(ctx).Model(e).Select("status", "last_error").Updates(e).Error; err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

// Deliver 由 worker 调用; 返回错误让 asynq 重试, finalAttempt 时标记为 failed
func (s *EmailService) Deliver(ctx context.Context, id uint, sender mailer.Sender, finalAttempt bool) error {
	db := s.db.WithContext(ctx)
	var e model.QueuedEmail
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := findByID(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &e, id, "email"); err != nil {
			return err
		}
		e.Attempts++
		return tx.Model(&e).Update("attempts", e.Attempts).Error
	})
	if err != nil {
		return err
	}
	if e.Status == model.EmailStatusSent {
		return nil
	}

	sendErr := sender.Send(ctx, mailer.Message{To: e.To, Subject: e.Subject, Body: e.Body})
	s.metrics.IncrementEmailsSent(sendErr)
	if sendErr != nil {
		status := model.EmailStatusQueued
		if finalAttempt {
			status = model.EmailStatusFailed
		}
		if err := db.Model(&e).Updates(map[string]interface{}{"status": status, "last_error": sendErr.Error()}).Error; err != nil {
			logger.Logger.Error("更新邮件状态失败", zap.Uint("email_id", id), zap.Error(err))
		}
		return sendErr
	}
	sentAt := s.now()
	return db.Model(&e).Updates(map[string]interface{}{
		"status":     model.EmailStatusSent,
		"sent_at":    &sentAt,
		"last_error": "",
	}).Error
}
