package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NOTIFY_BACKEND", "")
	t.Setenv("NOTIFY_STAFF_BROADCAST", "")
	t.Setenv("WORKFLOW_SWEEP_INTERVAL_MINUTES", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, NotificationBackendRedis, cfg.Notification.Backend)
	assert.Equal(t, 24, cfg.Workflow.PendingAttachmentMaxAgeHours)
	assert.Equal(t, time.Hour, cfg.Workflow.SweepInterval())
	assert.Empty(t, cfg.Notification.StaffBroadcast)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NOTIFY_BACKEND", "RabbitMQ")
	t.Setenv("NOTIFY_STAFF_BROADCAST", "helpdesk@example.com, ops@example.com ,")
	t.Setenv("WORKFLOW_SWEEP_INTERVAL_MINUTES", "15")
	t.Setenv("APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, NotificationBackendRabbitMQ, cfg.Notification.Backend)
	assert.Equal(t, []string{"helpdesk@example.com", "ops@example.com"}, cfg.Notification.StaffBroadcast)
	assert.Equal(t, 15*time.Minute, cfg.Workflow.SweepInterval())
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("NOTIFY_BACKEND", "carrier-pigeon")
	_, err := Load()
	assert.Error(t, err)
}
