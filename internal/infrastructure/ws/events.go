package ws

import "github.com/hilthontt/actionlog/internal/infrastructure/contracts"

const (
	UserAction = contracts.MessageTypeUserAction

	ErrorEvent = "error"
)
