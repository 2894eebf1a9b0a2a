package worker

import (
	"context"
	"testing"

	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler(t *testing.T) {
	t.Run("skips empty expressions", func(t *testing.T) {
		s, err := NewScheduler(config.ScheduleConfig{
			OverdueInvoices: "0 1 * * *",
			HostingSync:     "*/30 * * * *",
			QuoteExpiry:     "@daily",
		}, &tasks.RecordingEnqueuer{})
		require.NoError(t, err)
		assert.Equal(t, 3, s.Entries())
	})

	t.Run("rejects invalid expressions", func(t *testing.T) {
		_, err := NewScheduler(config.ScheduleConfig{DomainExpiry: "every day"}, &tasks.RecordingEnqueuer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), tasks.TypeDomainExpiryNotice)
	})
}

func TestSchedulerTrigger(t *testing.T) {
	queue := &tasks.RecordingEnqueuer{}
	s, err := NewScheduler(config.ScheduleConfig{}, queue)
	require.NoError(t, err)
	assert.Zero(t, s.Entries())

	s.Trigger(context.Background(), tasks.TypeInvoiceOverdue)
	assert.Equal(t, []string{tasks.TypeInvoiceOverdue}, queue.Types())

	// 入队失败只记日志
	queue.Err = assert.AnError
	s.Trigger(context.Background(), tasks.TypeQuoteExpire)
	assert.Len(t, queue.Tasks, 1)

	s.Start()
	s.Stop()
}
