package tasks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskConstructors(t *testing.T) {
	t.Run("email task carries the row id", func(t *testing.T) {
		task, err := NewSendEmailTask(42)
		require.NoError(t, err)
		assert.Equal(t, TypeSendEmail, task.Type())

		var p EmailPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		assert.Equal(t, uint(42), p.EmailID)
	})

	t.Run("hosting sync task carries the server id", func(t *testing.T) {
		task, err := NewHostingSyncServerTask(7)
		require.NoError(t, err)
		assert.Equal(t, TypeHostingSyncServer, task.Type())

		var p ServerPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		assert.Equal(t, uint(7), p.ServerID)
	})

	t.Run("price sync task carries the registrar id", func(t *testing.T) {
		task, err := NewTldPriceSyncTask(3)
		require.NoError(t, err)

		var p RegistrarPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		assert.Equal(t, uint(3), p.RegistrarID)
	})

	t.Run("periodic task has no payload", func(t *testing.T) {
		task := NewPeriodicTask(TypeInvoiceOverdue)
		assert.Equal(t, TypeInvoiceOverdue, task.Type())
		assert.Empty(t, task.Payload())
	})
}
