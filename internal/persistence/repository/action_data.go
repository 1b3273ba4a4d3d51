package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/hilthontt/actionlog/internal/domain"
)

const serverTSKey = "server_ts"

func encodeActionData(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: action_data is not serializable: %v", domain.ErrInvalidInput, err)
	}
	return b, nil
}

// decodeActionData keeps numbers as json.Number so stored values come back
// exactly as they were written.
func decodeActionData(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(raw) == 0 {
		return data, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("decode action_data: %w", err)
	}
	return data, nil
}

func validRecord(record *domain.ActionRecord) error {
	if record == nil || record.UserID <= 0 || record.ActionType == "" {
		return domain.ErrInvalidInput
	}
	return nil
}

// stampCreatedAt fills a missing created_at from now and truncates it to the
// millisecond precision cursors carry, so rows written within one millisecond
// share a position and are ordered by id alone.
func stampCreatedAt(record *domain.ActionRecord, now func() time.Time) {
	at := record.CreatedAt
	if at.IsZero() {
		at = now()
	}
	record.CreatedAt = domain.AcceptedAt(at)
}

// syncServerTimestamp rewrites a server_ts already present in action_data to
// match created_at. The caller's map is copied, never modified.
func syncServerTimestamp(record *domain.ActionRecord) {
	current, ok := record.ActionData[serverTSKey]
	if !ok {
		return
	}
	want := domain.FormatServerTimestamp(record.CreatedAt)
	if current == want {
		return
	}

	data := maps.Clone(record.ActionData)
	data[serverTSKey] = want
	record.ActionData = data
}
