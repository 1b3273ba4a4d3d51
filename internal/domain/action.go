package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/actionlog/internal/infrastructure/validate"
)

const (
	MaxActionTypeLength = 100

	DefaultPageLimit = 20
	MinPageLimit     = 1
	MaxPageLimit     = 200

	serverTimestampLayout = "2006-01-02T15:04:05.000Z"
)

var validateActionType = validate.Field("action_type",
	validate.Required(),
	validate.MaxLength(MaxActionTypeLength),
	validate.Printable(),
)

// Action is a single submission as received from a client.
type Action struct {
	UserID     int64
	ActionType string
	Context    map[string]any
	ClientTS   *string
}

func (a Action) Validate() error {
	if a.UserID <= 0 {
		return NewValidationError("user_id", "must be a positive integer")
	}

	if err := validateActionType(a.ActionType); err != nil {
		return NewValidationError("", err.Error())
	}

	return nil
}

// ActionPayload is the scrubbed event published to the topic and the hub, and
// stored verbatim as the record's action_data.
type ActionPayload struct {
	UserID     int64          `json:"user_id"`
	ActionType string         `json:"action_type"`
	ClientTS   *string        `json:"client_ts"`
	Context    map[string]any `json:"context"`
	ServerTS   string         `json:"server_ts"`
}

func NewActionPayload(action Action, scrubbed map[string]any, acceptedAt time.Time) ActionPayload {
	if scrubbed == nil {
		scrubbed = map[string]any{}
	}

	return ActionPayload{
		UserID:     action.UserID,
		ActionType: strings.TrimSpace(action.ActionType),
		ClientTS:   action.ClientTS,
		Context:    scrubbed,
		ServerTS:   FormatServerTimestamp(acceptedAt),
	}
}

func (p ActionPayload) Map() map[string]any {
	var clientTS any
	if p.ClientTS != nil {
		clientTS = *p.ClientTS
	}

	return map[string]any{
		"user_id":     p.UserID,
		"action_type": p.ActionType,
		"client_ts":   clientTS,
		"context":     p.Context,
		"server_ts":   p.ServerTS,
	}
}

// FormatServerTimestamp renders t as ISO-8601 UTC with millisecond precision
// and a Z suffix.
func FormatServerTimestamp(t time.Time) string {
	return t.UTC().Format(serverTimestampLayout)
}

// AcceptedAt is the server-side acceptance time of an event. Records are
// stamped at millisecond precision so that cursors, which carry epoch
// milliseconds, compare exactly against stored rows.
func AcceptedAt(now time.Time) time.Time {
	return now.UTC().Truncate(time.Millisecond)
}

// ActionRecord is a persisted action. Records are append-only.
type ActionRecord struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"user_id"`
	ActionType string         `json:"action_type"`
	ActionData map[string]any `json:"action_data"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewActionRecord(payload ActionPayload, createdAt time.Time) *ActionRecord {
	return &ActionRecord{
		UserID:     payload.UserID,
		ActionType: payload.ActionType,
		ActionData: payload.Map(),
		CreatedAt:  createdAt,
	}
}

func (r ActionRecord) Position() Position {
	return Position{CreatedAt: r.CreatedAt, ID: r.ID}
}

// Position is a point in the (created_at DESC, id DESC) ordering of a user's
// records.
type Position struct {
	CreatedAt time.Time
	ID        int64
}

// Before reports whether p sorts strictly before o in ascending
// (created_at, id) order.
func (p Position) Before(o Position) bool {
	if !p.CreatedAt.Equal(o.CreatedAt) {
		return p.CreatedAt.Before(o.CreatedAt)
	}
	return p.ID < o.ID
}

func (p Position) String() string {
	return fmt.Sprintf("%d.%d", p.CreatedAt.UnixMilli(), p.ID)
}

type ActionPage struct {
	Items      []ActionRecord
	NextCursor *string
}

type ActionRepository interface {
	Append(ctx context.Context, record *ActionRecord) (*ActionRecord, error)
	AppendBatch(ctx context.Context, records []*ActionRecord) ([]*ActionRecord, error)
	QueryPage(ctx context.Context, userID int64, before *Position, limit int) ([]ActionRecord, bool, error)
	Ping(ctx context.Context) error
}

// ClampLimit bounds a requested page size to [MinPageLimit, MaxPageLimit].
func ClampLimit(limit int) int {
	return max(MinPageLimit, min(MaxPageLimit, limit))
}
