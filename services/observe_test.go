package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"tradeQuestAPI/internal/achievement"
)

type recordingObserver struct {
	users []uuid.UUID
}

func (r *recordingObserver) OnActivity(_ context.Context, userID uuid.UUID) []achievement.Achievement {
	r.users = append(r.users, userID)
	return nil
}

func TestObserveNilObserver(t *testing.T) {
	assert.NotPanics(t, func() {
		observe(context.Background(), nil, uuid.New())
	})

	trades := NewTradeService(nil, nil, nil)
	assert.NotPanics(t, func() {
		observe(context.Background(), trades.observer, uuid.New())
	})
}

func TestObserveForwardsUser(t *testing.T) {
	rec := &recordingObserver{}
	id := uuid.New()

	observe(context.Background(), rec, id)

	assert.Equal(t, []uuid.UUID{id}, rec.users)
}
