package contracts

// Message types carried by realtime envelopes.
const (
	MessageTypeUserAction = "user_action"
)

// Topic and queue names shared by the publisher and the tail consumer.
const (
	DefaultActionTopic = "user_actions"
	DefaultExchange    = "actionlog"
	TailQueue          = "actionlog.tail"
	DeadLetterExchange = "actionlog.dlx"
	DeadLetterQueue    = "actionlog.dead_letter"
)

// Message headers set on every published action.
const (
	HeaderContentType = "application/json"
	HeaderSource      = "actionlog"
)
