package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hilthontt/actionlog/internal/domain"
)

func TestStampCreatedAt(t *testing.T) {
	now := func() time.Time { return baseTime.Add(1500 * time.Microsecond) }

	missing := &domain.ActionRecord{}
	stampCreatedAt(missing, now)
	assert.Equal(t, baseTime.Add(time.Millisecond), missing.CreatedAt)

	local := time.Date(2025, 3, 1, 10, 0, 0, 999999, time.FixedZone("CET", 3600))
	set := &domain.ActionRecord{CreatedAt: local}
	stampCreatedAt(set, now)
	assert.Equal(t, time.UTC, set.CreatedAt.Location())
	assert.Equal(t, baseTime, set.CreatedAt)
}

func TestSyncServerTimestamp(t *testing.T) {
	data := map[string]any{"server_ts": "2025-03-01T08:00:00.000Z"}
	record := &domain.ActionRecord{ActionData: data, CreatedAt: baseTime}

	syncServerTimestamp(record)
	assert.Equal(t, "2025-03-01T09:00:00.000Z", record.ActionData["server_ts"])
	assert.Equal(t, "2025-03-01T08:00:00.000Z", data["server_ts"])

	without := &domain.ActionRecord{ActionData: map[string]any{"user_id": 1}, CreatedAt: baseTime}
	syncServerTimestamp(without)
	assert.NotContains(t, without.ActionData, "server_ts")
}
