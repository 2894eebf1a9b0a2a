package service

import (
	"context"
	"errors"
	"testing"

	"github.com/isp-backoffice/internal/integration/mailer"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSender 记录发送内容, err 不为空时返回失败
type stubSender struct {
	sent []mailer.Message
	err  error
}

func (s *stubSender) Send(_ context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestEmailEnqueueRendersTemplate(t *testing.T) {
	f := newFixture(t)
	e, err := f.svc.Emails.Enqueue(f.ctx(), EmailRequest{
		To:       "ada@example.com",
		Template: TemplateDomainExpiring,
		Data: map[string]interface{}{
			"CustomerName": "Ada",
			"Domain":       "example.com",
			"ExpiresAt":    "2025-04-09",
			"Days":         30,
			"AutoRenew":    true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusQueued, e.Status)
	assert.Equal(t, "Domain example.com expires on 2025-04-09", e.Subject)
	assert.Contains(t, e.Body, "renewed automatically")
	assert.Equal(t, []string{tasks.TypeSendEmail}, f.queue.Types())

	_, err = f.svc.Emails.Enqueue(f.ctx(), EmailRequest{To: "ada@example.com", Template: "unknown"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Emails.Enqueue(f.ctx(), EmailRequest{Template: TemplateQuoteSent})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEmailEnqueueFailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.queue.Err = errors.New("redis down")
	e, err := f.svc.Emails.Enqueue(f.ctx(), EmailRequest{
		To:       "ada@example.com",
		Template: TemplateQuoteSent,
		Data:     map[string]interface{}{"Number": "QUO-1", "Total": "USD 1.00", "ValidUntil": "2025-04-09"},
	})
	require.Error(t, err)
	require.NotNil(t, e)

	f.queue.Err = nil
	resent, err := f.svc.Emails.Resend(f.ctx(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusQueued, resent.Status)
	assert.Len(t, f.queue.Tasks, 1)
}

func TestEmailDeliver(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	e, err := f.svc.Emails.Enqueue(ctx, EmailRequest{
		To:       "ada@example.com",
		Template: TemplateQuoteSent,
		Data:     map[string]interface{}{"Number": "QUO-1", "Total": "USD 1.00", "ValidUntil": "2025-04-09"},
	})
	require.NoError(t, err)

	failing := &stubSender{err: errors.New("connection refused")}
	err = f.svc.Emails.Deliver(ctx, e.ID, failing, false)
	require.Error(t, err)
	got, err := f.svc.Emails.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusQueued, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "connection refused", got.LastError)

	ok := &stubSender{}
	require.NoError(t, f.svc.Emails.Deliver(ctx, e.ID, ok, false))
	require.Len(t, ok.sent, 1)
	assert.Equal(t, "ada@example.com", ok.sent[0].To)
	got, err = f.svc.Emails.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusSent, got.Status)
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.SentAt)

	// 重复投递不会再次发送
	require.NoError(t, f.svc.Emails.Deliver(ctx, e.ID, ok, false))
	assert.Len(t, ok.sent, 1)

	_, err = f.svc.Emails.Resend(ctx, e.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestEmailDeliverFinalAttemptMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	e, err := f.svc.Emails.Enqueue(ctx, EmailRequest{
		To:       "ada@example.com",
		Template: TemplateQuoteSent,
		Data:     map[string]interface{}{"Number": "QUO-1", "Total": "USD 1.00", "ValidUntil": "2025-04-09"},
	})
	require.NoError(t, err)

	require.Error(t, f.svc.Emails.Deliver(ctx, e.ID, &stubSender{err: errors.New("mailbox full")}, true))
	got, err := f.svc.Emails.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EmailStatusFailed, got.Status)

	assert.ErrorIs(t, f.svc.Emails.Deliver(ctx, 999, &stubSender{}, false), ErrNotFound)
}
