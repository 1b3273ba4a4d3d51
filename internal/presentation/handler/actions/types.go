package actions

import (
	"time"

	"github.com/hilthontt/actionlog/internal/domain"
)

// submitActionRequest is a single action as sent by a client
type submitActionRequest struct {
	UserID     *int64         `json:"user_id" validate:"required,gt=0" example:"7"`               // Acting user
	ActionType string         `json:"action_type" validate:"required,max=100" example:"SLOT_SPIN"` // Event name
	Context    map[string]any `json:"context,omitempty"`                                          // Free-form attributes, PII keys are dropped
	ClientTS   *string        `json:"client_ts,omitempty" example:"2025-08-29T10:00:00+09:00"`    // Client clock, stored verbatim
}

func (r submitActionRequest) toDomain() domain.Action {
	var userID int64
	if r.UserID != nil {
		userID = *r.UserID
	}
	return domain.Action{
		UserID:     userID,
		ActionType: r.ActionType,
		Context:    r.Context,
		ClientTS:   r.ClientTS,
	}
}

// bulkActionsRequest wraps a batch of actions stored all or nothing
type bulkActionsRequest struct {
	Items []submitActionRequest `json:"items" validate:"required,dive"`
}

// actionLoggedResponse is returned once an action is durably stored
type actionLoggedResponse struct {
	ID         int64     `json:"id" example:"1024"`
	UserID     int64     `json:"user_id" example:"7"`
	ActionType string    `json:"action_type" example:"SLOT_SPIN"`
	CreatedAt  time.Time `json:"created_at" example:"2025-08-29T01:00:00.123Z"`
}

// bulkLoggedResponse reports how many actions were stored
type bulkLoggedResponse struct {
	Logged int `json:"logged" example:"3"`
}

// actionItem is one entry of a user's recent actions
type actionItem struct {
	ID         int64          `json:"id" example:"1024"`
	ActionType string         `json:"action_type" example:"LOGIN"`
	CreatedAt  time.Time      `json:"created_at" example:"2025-08-29T01:00:00.123Z"`
	ActionData map[string]any `json:"action_data"`
}

// cursorEnvelope is the paginated shape of the recent actions listing
type cursorEnvelope struct {
	Items      []actionItem `json:"items"`
	NextCursor *string      `json:"next_cursor" example:"MTc1NjQyOTIwMDEyMy4xMDI0"`
}

func toActionItems(records []domain.ActionRecord) []actionItem {
	items := make([]actionItem, 0, len(records))
	for _, record := range records {
		data := record.ActionData
		if data == nil {
			data = map[string]any{}
		}
		items = append(items, actionItem{
			ID:         record.ID,
			ActionType: record.ActionType,
			CreatedAt:  record.CreatedAt,
			ActionData: data,
		})
	}
	return items
}
