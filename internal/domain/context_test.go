package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenants_DefaultWhenUnset(t *testing.T) {
	assert.Equal(t, DefaultTenant, Tenants.Current())

	Tenants.Run("acme", func() {
		assert.Equal(t, TenantID("acme"), Tenants.Current())
	})
}

func TestNewTraceID_Unique(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestDeadline(t *testing.T) {
	var zero Deadline
	assert.True(t, zero.IsZero())
	assert.False(t, zero.Expired())
	assert.Zero(t, zero.Remaining())

	future := DeadlineAfter(time.Hour)
	assert.False(t, future.Expired())
	assert.Greater(t, future.Remaining(), 59*time.Minute)

	past := Deadline{At: time.Now().Add(-time.Second)}
	assert.True(t, past.Expired())
	assert.Zero(t, past.Remaining())
}

func TestContextWithDeadline(t *testing.T) {
	ctx, cancel := ContextWithDeadline(context.Background())
	defer cancel()

	_, ok := ctx.Deadline()
	assert.False(t, ok)

	d := DeadlineAfter(time.Minute)
	Deadlines.Run(d, func() {
		ctx, cancel := ContextWithDeadline(context.Background())
		defer cancel()

		got, ok := ctx.Deadline()
		require.True(t, ok)
		assert.True(t, got.Equal(d.At))
	})
}

func TestCaptureAmbient(t *testing.T) {
	TraceIDs.Run("t-1", func() {
		Tenants.Run("acme", func() {
			snap := CaptureAmbient()
			assert.Equal(t, []string{"trace_id", "tenant_id"}, snap.Names())
		})
	})

	assert.Equal(t, 0, CaptureAmbient().Len())
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobSucceeded.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.True(t, JobCancelled.Terminal())
}
