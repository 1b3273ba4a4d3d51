package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hilthontt/actionlog/internal/domain"
)

type memoryRow struct {
	record domain.ActionRecord
	data   []byte
}

// actionMemoryRepository keeps records per user in write order. Writes are
// clamped so created_at never decreases, which keeps every user's rows sorted
// by (created_at, id); a clamped record gets a matching server_ts. With a
// capacity, the oldest rows of a user are evicted.
type actionMemoryRepository struct {
	rows     map[int64][]memoryRow
	nextID   int64
	lastAt   domain.Position
	capacity uint
	now      func() time.Time
	mu       *sync.RWMutex
}

func NewActionMemoryRepository(capacity uint) domain.ActionRepository {
	return &actionMemoryRepository{
		rows:     make(map[int64][]memoryRow),
		capacity: capacity,
		now:      time.Now,
		mu:       &sync.RWMutex{},
	}
}

func (r *actionMemoryRepository) Append(ctx context.Context, record *domain.ActionRecord) (*domain.ActionRecord, error) {
	stored, err := r.AppendBatch(ctx, []*domain.ActionRecord{record})
	if err != nil {
		return nil, err
	}
	return stored[0], nil
}

func (r *actionMemoryRepository) AppendBatch(ctx context.Context, records []*domain.ActionRecord) ([]*domain.ActionRecord, error) {
	if len(records) == 0 {
		return []*domain.ActionRecord{}, nil
	}

	for _, record := range records {
		if err := validRecord(record); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// stamp and serialize everything first so a bad record leaves both the
	// store and the caller's records untouched
	staged := make([]memoryRow, len(records))
	last := r.lastAt.CreatedAt
	for i, record := range records {
		row := memoryRow{record: *record}
		stampCreatedAt(&row.record, r.now)
		if row.record.CreatedAt.Before(last) {
			row.record.CreatedAt = last
		}
		last = row.record.CreatedAt
		syncServerTimestamp(&row.record)

		data, err := encodeActionData(row.record.ActionData)
		if err != nil {
			return nil, err
		}
		row.data = data
		staged[i] = row
	}

	for i, record := range records {
		r.nextID++
		record.ID = r.nextID
		record.CreatedAt = staged[i].record.CreatedAt
		record.ActionData = staged[i].record.ActionData
		r.lastAt = record.Position()

		row := staged[i]
		row.record.ID = record.ID
		row.record.ActionData = nil

		userRows := append(r.rows[record.UserID], row)
		if r.capacity > 0 && len(userRows) > int(r.capacity) {
			userRows = userRows[len(userRows)-int(r.capacity):]
		}
		r.rows[record.UserID] = userRows
	}

	return records, nil
}

func (r *actionMemoryRepository) QueryPage(ctx context.Context, userID int64, before *domain.Position, limit int) ([]domain.ActionRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	limit = domain.ClampLimit(limit)

	r.mu.RLock()
	defer r.mu.RUnlock()

	userRows := r.rows[userID]

	end := len(userRows)
	if before != nil {
		end = sort.Search(len(userRows), func(i int) bool {
			return !userRows[i].record.Position().Before(*before)
		})
	}

	items := make([]domain.ActionRecord, 0, min(limit, end))
	for i := end - 1; i >= 0 && len(items) < limit; i-- {
		record := userRows[i].record
		data, err := decodeActionData(userRows[i].data)
		if err != nil {
			return nil, false, err
		}
		record.ActionData = data
		items = append(items, record)
	}

	hasMore := end > len(items)
	return items, hasMore, nil
}

func (r *actionMemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
