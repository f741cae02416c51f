package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPayment_CurrentStatus(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("EmptyHistory", func(t *testing.T) {
		assert.Equal(t, Status(""), (&Payment{}).CurrentStatus())
	})

	t.Run("LatestByCreationTime", func(t *testing.T) {
		p := &Payment{Entries: []Entry{
			{ID: 3, Status: StatusCompleted, CreatedAt: t0.Add(2 * time.Minute)},
			{ID: 1, Status: StatusPending, CreatedAt: t0},
			{ID: 2, Status: StatusApproved, CreatedAt: t0.Add(time.Minute)},
		}}
		assert.Equal(t, StatusCompleted, p.CurrentStatus())
	})

	t.Run("SameTimestampFallsBackToID", func(t *testing.T) {
		p := &Payment{Entries: []Entry{
			{ID: 5, Status: StatusFailed, CreatedAt: t0},
			{ID: 4, Status: StatusPending, CreatedAt: t0},
		}}
		assert.Equal(t, StatusFailed, p.CurrentStatus())
	})

	t.Run("HistoryGrowsOnRedelivery", func(t *testing.T) {
		p := &Payment{Entries: []Entry{
			{ID: 1, Status: StatusPending, CreatedAt: t0},
			{ID: 2, Status: StatusCompleted, CreatedAt: t0.Add(time.Second)},
			{ID: 3, Status: StatusCompleted, CreatedAt: t0.Add(2 * time.Second)},
		}}
		assert.Equal(t, StatusCompleted, p.CurrentStatus())
		assert.Len(t, p.Entries, 3)
	})
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusApproved, StatusCompleted, StatusFailed, StatusCancelled} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("refunded").Valid())
	assert.False(t, Status("").Valid())
}
