package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealplan/internal/domain"
	"dealplan/internal/events"
)

func TestFollowDeliversInOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	plan, err := svc.Generate(ctx, crossBorderIntake(), "")
	require.NoError(t, err)
	_, err = svc.AddNote(ctx, plan.ID, "FRC-0071", "kick-off", "ana")
	require.NoError(t, err)
	_, err = svc.AddNote(ctx, plan.ID, "FRC-0071", "follow-up", "ana")
	require.NoError(t, err)

	errStop := errors.New("stop")
	var got []domain.Event
	err = svc.Follow(ctx, plan.ID, 0, time.Millisecond, func(e domain.Event) error {
		got = append(got, e)
		if len(got) == 3 {
			return errStop
		}
		return nil
	})
	require.ErrorIs(t, err, errStop)
	require.Len(t, got, 3)
	assert.Equal(t, events.PlanGenerated, got[0].Type)
	assert.Equal(t, events.TaskUpdated, got[2].Type)
	assert.Less(t, got[0].ID, got[1].ID)
	assert.Less(t, got[1].ID, got[2].ID)
}

func TestFollowStopsOnCancel(t *testing.T) {
	svc := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	plan, err := svc.Generate(ctx, crossBorderIntake(), "")
	require.NoError(t, err)

	seen := 0
	err = svc.Follow(ctx, plan.ID, 0, time.Millisecond, func(domain.Event) error {
		seen++
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}
