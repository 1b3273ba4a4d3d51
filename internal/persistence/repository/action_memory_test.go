package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/actionlog/internal/domain"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newRecord(userID int64, at time.Time) *domain.ActionRecord {
	return &domain.ActionRecord{
		UserID:     userID,
		ActionType: "VIEW",
		ActionData: map[string]any{"user_id": userID, "action_type": "VIEW", "context": map[string]any{}},
		CreatedAt:  at,
	}
}

func TestMemory_AppendAssignsIncreasingIDs(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	first, err := repo.Append(ctx, newRecord(1, baseTime))
	require.NoError(t, err)
	second, err := repo.Append(ctx, newRecord(2, baseTime))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestMemory_PaginatesNewestFirst(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, err := repo.Append(ctx, newRecord(7, baseTime.Add(time.Duration(i)*time.Millisecond)))
		require.NoError(t, err)
	}
	_, err := repo.Append(ctx, newRecord(8, baseTime.Add(time.Hour)))
	require.NoError(t, err)

	page, hasMore, err := repo.QueryPage(ctx, 7, nil, 20)
	require.NoError(t, err)
	require.Len(t, page, 20)
	assert.True(t, hasMore)
	assert.Equal(t, int64(25), page[0].ID)
	assert.Equal(t, int64(6), page[19].ID)

	last := page[19].Position()
	rest, hasMore, err := repo.QueryPage(ctx, 7, &last, 20)
	require.NoError(t, err)
	require.Len(t, rest, 5)
	assert.False(t, hasMore)
	assert.Equal(t, int64(5), rest[0].ID)
	assert.Equal(t, int64(1), rest[4].ID)
}

func TestMemory_CursorIsExclusiveOnEqualTimestamps(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := repo.Append(ctx, newRecord(3, baseTime))
		require.NoError(t, err)
	}

	before := domain.Position{CreatedAt: baseTime, ID: 3}
	page, hasMore, err := repo.QueryPage(ctx, 3, &before, 10)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].ID)
	assert.Equal(t, int64(1), page[1].ID)
}

func TestMemory_ClampsCreatedAtMonotonic(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	_, err := repo.Append(ctx, newRecord(1, baseTime.Add(time.Second)))
	require.NoError(t, err)
	late, err := repo.Append(ctx, newRecord(1, baseTime))
	require.NoError(t, err)

	assert.Equal(t, baseTime.Add(time.Second), late.CreatedAt)

	page, _, err := repo.QueryPage(ctx, 1, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, late.ID, page[0].ID)
}

func TestMemory_BatchIsAllOrNothing(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	bad := newRecord(4, baseTime)
	bad.ActionData = map[string]any{"ratio": math.Inf(1)}

	_, err := repo.AppendBatch(ctx, []*domain.ActionRecord{newRecord(4, baseTime), bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	page, _, err := repo.QueryPage(ctx, 4, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	stored, err := repo.AppendBatch(ctx, []*domain.ActionRecord{newRecord(4, baseTime), newRecord(4, baseTime)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored[0].ID)
	assert.Equal(t, int64(2), stored[1].ID)
}

func TestMemory_EmptyBatch(t *testing.T) {
	stored, err := NewActionMemoryRepository(0).AppendBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestMemory_ReadsDoNotAliasStoredData(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	record := newRecord(5, baseTime)
	record.ActionData["context"] = map[string]any{"amount": 12.5}
	_, err := repo.Append(ctx, record)
	require.NoError(t, err)

	record.ActionData["action_type"] = "MUTATED"

	page, _, err := repo.QueryPage(ctx, 5, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, "VIEW", page[0].ActionData["action_type"])
	assert.Equal(t, json.Number("12.5"), page[0].ActionData["context"].(map[string]any)["amount"])

	page[0].ActionData["action_type"] = "CHANGED"
	again, _, err := repo.QueryPage(ctx, 5, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, "VIEW", again[0].ActionData["action_type"])
}

func TestMemory_CapacityEvictsOldest(t *testing.T) {
	repo := NewActionMemoryRepository(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.Append(ctx, newRecord(9, baseTime))
		require.NoError(t, err)
	}

	page, hasMore, err := repo.QueryPage(ctx, 9, nil, 10)
	require.NoError(t, err)
	assert.False(t, hasMore)
	require.Len(t, page, 3)
	assert.Equal(t, int64(5), page[0].ID)
	assert.Equal(t, int64(3), page[2].ID)
}

func TestMemory_ConcurrentAppends(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := repo.Append(ctx, newRecord(1, time.Now()))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	seen := map[int64]bool{}
	var before *domain.Position
	for {
		page, hasMore, err := repo.QueryPage(ctx, 1, before, 50)
		require.NoError(t, err)
		for _, r := range page {
			assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
			seen[r.ID] = true
		}
		if !hasMore {
			break
		}
		pos := page[len(page)-1].Position()
		before = &pos
	}
	assert.Len(t, seen, 200)
}

func TestMemory_RejectsInvalidRecord(t *testing.T) {
	_, err := NewActionMemoryRepository(0).Append(context.Background(), &domain.ActionRecord{UserID: 0, ActionType: "X"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMemory_StampsMissingCreatedAt(t *testing.T) {
	repo := NewActionMemoryRepository(0).(*actionMemoryRepository)
	repo.now = func() time.Time { return baseTime.Add(2*time.Second + 345678*time.Nanosecond) }

	stored, err := repo.Append(context.Background(), newRecord(6, time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, baseTime.Add(2*time.Second), stored.CreatedAt)

	page, _, err := repo.QueryPage(context.Background(), 6, nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.False(t, page[0].CreatedAt.IsZero())
	assert.Equal(t, stored.CreatedAt, page[0].CreatedAt)
}

func TestMemory_PagesRowsWithinOneMillisecond(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	first, err := repo.Append(ctx, newRecord(2, baseTime.Add(300*time.Microsecond)))
	require.NoError(t, err)
	second, err := repo.Append(ctx, newRecord(2, baseTime.Add(700*time.Microsecond)))
	require.NoError(t, err)
	assert.Equal(t, baseTime, first.CreatedAt)
	assert.Equal(t, baseTime, second.CreatedAt)

	page, hasMore, err := repo.QueryPage(ctx, 2, nil, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, hasMore)
	assert.Equal(t, second.ID, page[0].ID)

	// the position round trips through millisecond precision
	next := domain.Position{CreatedAt: time.UnixMilli(page[0].CreatedAt.UnixMilli()).UTC(), ID: page[0].ID}
	rest, hasMore, err := repo.QueryPage(ctx, 2, &next, 1)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.False(t, hasMore)
	assert.Equal(t, first.ID, rest[0].ID)
}

func TestMemory_ClampRewritesServerTimestamp(t *testing.T) {
	repo := NewActionMemoryRepository(0)
	ctx := context.Background()

	_, err := repo.Append(ctx, newRecord(1, baseTime.Add(time.Second)))
	require.NoError(t, err)

	late := newRecord(1, baseTime)
	original := late.ActionData
	original["server_ts"] = domain.FormatServerTimestamp(baseTime)

	stored, err := repo.Append(ctx, late)
	require.NoError(t, err)

	want := domain.FormatServerTimestamp(baseTime.Add(time.Second))
	assert.Equal(t, want, stored.ActionData["server_ts"])
	assert.Equal(t, domain.FormatServerTimestamp(baseTime), original["server_ts"])

	page, _, err := repo.QueryPage(ctx, 1, nil, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, want, page[0].ActionData["server_ts"])
}

func TestMemory_FailedBatchLeavesRecordsUntouched(t *testing.T) {
	repo := NewActionMemoryRepository(0)

	good := newRecord(4, time.Time{})
	bad := newRecord(4, baseTime)
	bad.ActionData = map[string]any{"ratio": math.Inf(1)}

	_, err := repo.AppendBatch(context.Background(), []*domain.ActionRecord{good, bad})
	require.Error(t, err)
	assert.Zero(t, good.ID)
	assert.True(t, good.CreatedAt.IsZero())
}
