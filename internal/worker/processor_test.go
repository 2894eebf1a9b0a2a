package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/mailer"
	"github.com/isp-backoffice/internal/integration/panel"
	"github.com/isp-backoffice/internal/integration/registrar"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/internal/testutil"
	"github.com/isp-backoffice/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newProcessor(t *testing.T) (*TaskProcessor, *service.Services, *tasks.RecordingEnqueuer, *fakeSender) {
	t.Helper()
	queue := &tasks.RecordingEnqueuer{}
	rc := registrar.NewMockClient("mock")
	pc := panel.NewMockClient()
	svc := service.New(service.Options{
		DB:        testutil.NewDB(t),
		Billing:   config.BillingConfig{BaseCurrency: "USD", HomeCountry: "US", InvoicePrefix: "INV", QuotePrefix: "QUO", PaymentTermsDays: 14, QuoteValidDays: 30},
		Auth:      config.AuthConfig{JWTSecret: "worker-secret", TokenTTL: time.Hour},
		Queue:     queue,
		Registrar: func(*model.Registrar) (registrar.Client, error) { return rc, nil },
		Panel:     func(*model.HostingServer) (panel.Client, error) { return pc, nil },
	})
	sender := &fakeSender{}
	return NewTaskProcessor(svc, queue, sender), svc, queue, sender
}

func emailTask(t *testing.T, id uint) *asynq.Task {
	t.Helper()
	task, err := tasks.NewSendEmailTask(id)
	require.NoError(t, err)
	return task
}

func TestHandleSendEmail(t *testing.T) {
	p, svc, _, sender := newProcessor(t)
	ctx := context.Background()

	e, err := svc.Emails.Enqueue(ctx, service.EmailRequest{
		To:       "ops@example.com",
		Template: service.TemplateHostingSuspended,
		Data:     map[string]interface{}{"Username": "alice", "Domain": "alice.example", "Reason": "unpaid"},
	})
	require.NoError(t, err)

	t.Run("delivers and marks sent", func(t *testing.T) {
		require.NoError(t, p.HandleSendEmail(ctx, emailTask(t, e.ID)))
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "ops@example.com", sender.sent[0].To)

		got, err := svc.Emails.GetByID(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, model.EmailStatusSent, got.Status)
	})

	t.Run("already sent is a no-op", func(t *testing.T) {
		require.NoError(t, p.HandleSendEmail(ctx, emailTask(t, e.ID)))
		assert.Len(t, sender.sent, 1)
	})

	t.Run("missing row skips retry", func(t *testing.T) {
		err := p.HandleSendEmail(ctx, emailTask(t, 999))
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		assert.True(t, errors.Is(err, service.ErrNotFound))
	})

	t.Run("malformed payload skips retry", func(t *testing.T) {
		err := p.HandleSendEmail(ctx, asynq.NewTask(tasks.TypeSendEmail, []byte("{")))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("smtp failure outside asynq marks failed", func(t *testing.T) {
		other, err := svc.Emails.Enqueue(ctx, service.EmailRequest{
			To:       "billing@example.com",
			Template: service.TemplateHostingSuspended,
			Data:     map[string]interface{}{"Username": "bob"},
		})
		require.NoError(t, err)

		sender.err = errors.New("connection refused")
		defer func() { sender.err = nil }()
		err = p.HandleSendEmail(ctx, emailTask(t, other.ID))
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))

		got, err := svc.Emails.GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, model.EmailStatusFailed, got.Status)
		assert.Equal(t, 1, got.Attempts)
	})
}

func TestHandleTldPriceSyncAllFansOut(t *testing.T) {
	p, svc, queue, _ := newProcessor(t)
	ctx := context.Background()

	active, err := svc.Registrars.Create(ctx, dto.CreateRegistrarRequest{Name: "Primary", Kind: model.RegistrarKindMock})
	require.NoError(t, err)
	off := false
	_, err = svc.Registrars.Create(ctx, dto.CreateRegistrarRequest{Name: "Retired", Kind: model.RegistrarKindMock, Active: &off})
	require.NoError(t, err)

	require.NoError(t, p.HandleTldPriceSyncAll(ctx, tasks.NewPeriodicTask(tasks.TypeTldPriceSyncAll)))
	require.Equal(t, []string{tasks.TypeTldPriceSync}, queue.Types())

	var payload tasks.RegistrarPayload
	require.NoError(t, json.Unmarshal(queue.Tasks[0].Payload(), &payload))
	assert.Equal(t, active.ID, payload.RegistrarID)

	// 子任务执行
	require.NoError(t, p.HandleTldPriceSync(ctx, queue.Tasks[0]))

	t.Run("duplicates are not failures", func(t *testing.T) {
		queue.Err = asynq.ErrDuplicateTask
		defer func() { queue.Err = nil }()
		assert.NoError(t, p.HandleTldPriceSyncAll(ctx, tasks.NewPeriodicTask(tasks.TypeTldPriceSyncAll)))
	})

	t.Run("other enqueue errors are returned", func(t *testing.T) {
		queue.Err = errors.New("redis down")
		defer func() { queue.Err = nil }()
		assert.Error(t, p.HandleTldPriceSyncAll(ctx, tasks.NewPeriodicTask(tasks.TypeTldPriceSyncAll)))
	})

	t.Run("inactive registrar is not retried", func(t *testing.T) {
		task, err := tasks.NewTldPriceSyncTask(active.ID + 1)
		require.NoError(t, err)
		err = p.HandleTldPriceSync(ctx, task)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})
}

func TestHandleHostingSyncAllFansOut(t *testing.T) {
	p, _, queue, _ := newProcessor(t)
	ctx := context.Background()

	require.NoError(t, p.HandleHostingSyncAll(ctx, tasks.NewPeriodicTask(tasks.TypeHostingSyncAll)))
	assert.Empty(t, queue.Tasks)

	task, err := tasks.NewHostingSyncServerTask(42)
	require.NoError(t, err)
	err = p.HandleHostingSyncServer(ctx, task)
	assert.True(t, errors.Is(err, service.ErrNotFound))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestPeriodicHandlers(t *testing.T) {
	p, _, _, _ := newProcessor(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		handle func(context.Context, *asynq.Task) error
	}{
		{tasks.TypeInvoiceOverdue, p.HandleInvoiceOverdue},
		{tasks.TypeDomainExpiryNotice, p.HandleDomainExpiry},
		{tasks.TypeHostingInvoices, p.HandleHostingInvoices},
		{tasks.TypeQuoteExpire, p.HandleQuoteExpire},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.NoError(t, tc.handle(ctx, tasks.NewPeriodicTask(tc.name)))
		})
	}
}

func TestRegisterCoversAllTaskTypes(t *testing.T) {
	p, _, _, _ := newProcessor(t)
	mux := asynq.NewServeMux()
	p.Register(mux)

	for _, typ := range []string{
		tasks.TypeSendEmail,
		tasks.TypeHostingSyncServer,
		tasks.TypeHostingSyncAll,
		tasks.TypeHostingInvoices,
		tasks.TypeTldPriceSync,
		tasks.TypeTldPriceSyncAll,
		tasks.TypeInvoiceOverdue,
		tasks.TypeDomainExpiryNotice,
		tasks.TypeQuoteExpire,
	} {
		_, pattern := mux.Handler(asynq.NewTask(typ, nil))
		assert.Equal(t, typ, pattern)
	}
}
