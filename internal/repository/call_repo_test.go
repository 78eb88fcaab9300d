package repository

import (
	"context"
	"testing"

	"github.com/bookline-ai/voice-scheduler-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallUpsertMergesNonEmptyFields(t *testing.T) {
	repo := NewMemoryCallRepository()

	_, err := repo.Upsert(context.Background(), &domain.UpsertCallRequest{
		CallSID:  "CA1",
		TenantID: "tenant-a",
		From:     "+15559990000",
		To:       "+15551234567",
		Status:   domain.CallStatusRinging,
		Plan:     domain.PlanBasic,
		Source:   domain.SourceTwilioVoice,
	})
	require.NoError(t, err)

	// A later merge with only a status keeps everything else.
	call, err := repo.Upsert(context.Background(), &domain.UpsertCallRequest{
		CallSID: "CA1",
		Status:  domain.CallStatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusInProgress, call.Status)
	assert.Equal(t, "tenant-a", call.TenantID)
	assert.Equal(t, "+15559990000", call.From)
	assert.Equal(t, domain.PlanBasic, call.Plan)

	stored, err := repo.GetBySID(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusInProgress, stored.Status)
}

func TestAppointmentListByCallScopesTenant(t *testing.T) {
	repo := NewMemoryAppointmentRepository()

	require.NoError(t, repo.Create(context.Background(), &domain.Appointment{
		ID: "a1", TenantID: "tenant-a", CallSID: "CA1", Name: "Ana", Service: "haircut", StartTime: "2026-09-01T10:00:00",
	}))
	require.NoError(t, repo.Create(context.Background(), &domain.Appointment{
		ID: "a2", TenantID: "tenant-b", CallSID: "CA1", Name: "Luis", Service: "consult", StartTime: "2026-09-01T11:00:00",
	}))

	appts, err := repo.ListByCall(context.Background(), "tenant-a", "CA1")
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "a1", appts[0].ID)

	_, err = repo.GetByID(context.Background(), "tenant-a", "a2")
	assert.ErrorIs(t, err, ErrNotFound)
}
