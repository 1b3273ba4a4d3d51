package ws

// Message is the envelope written to realtime subscribers.
type Message struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Data   any    `json:"data"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func NewUserAction(userID int64, data any) *Message {
	return &Message{
		Type:   UserAction,
		UserID: userID,
		Data:   data,
	}
}

func NewError(userID int64, code, message string) *Message {
	return &Message{
		Type:   ErrorEvent,
		UserID: userID,
		Data: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
