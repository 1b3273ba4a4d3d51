package realtime

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hilthontt/actionlog/internal/infrastructure/json"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/ws"
)

type Handler struct {
	hub    *ws.Hub
	logger logging.Logger
}

func NewHandler(hub *ws.Hub, logger logging.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// SubscribeHandler godoc
// @Summary      Stream actions live
// @Description  Upgrades to a WebSocket that receives {type:"user_action", user_id, data} for every stored action of user_id, or of every user when user_id is omitted
// @Tags         realtime
// @Param        user_id query int false "Only stream this user's actions"
// @Success      101 "Switching protocols"
// @Failure      400 {object} json.ErrorResponse "user_id is not a positive integer"
// @Router       /actions/ws [get]
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	userID := ws.AllUsers
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			json.WriteBadRequestError(w, "user_id must be a positive integer")
			return
		}
		userID = id
	}

	if err := h.hub.Serve(w, r, userID); err != nil {
		// the upgrader has already replied to the client
		h.logger.Warn(logging.WebSocket, logging.Api, "websocket subscription failed", map[logging.ExtraKey]any{
			logging.UserID:       userID,
			logging.RequestID:    middleware.GetReqID(r.Context()),
			logging.ErrorMessage: err.Error(),
		})
	}
}
