package actions

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	actionsUseCase "github.com/hilthontt/actionlog/internal/application/actions"
	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/infrastructure/json"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
)

const (
	cursorMode       = "cursor"
	defaultListLimit = domain.DefaultPageLimit
)

type Handler struct {
	useCase      actionsUseCase.UseCase
	validate     *validator.Validate
	logger       logging.Logger
	maxBodyBytes int64
}

func NewHandler(useCase actionsUseCase.UseCase, logger logging.Logger, maxBodyBytes int64) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		useCase:      useCase,
		validate:     v,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// SubmitActionHandler godoc
// @Summary      Log a user action
// @Description  Stores a single action, dropping PII keys from its context, then publishes it to the action topic and live subscribers
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        request body submitActionRequest true "Action to log"
// @Success      200 {object} actionLoggedResponse "Action stored"
// @Failure      400 {object} json.ErrorResponse "Malformed body or invalid action"
// @Failure      429 {object} json.ErrorResponse "Rate limit exceeded"
// @Failure      503 {object} json.ErrorResponse "Action store unavailable"
// @Router       /actions [post]
func (h *Handler) SubmitActionHandler(w http.ResponseWriter, r *http.Request) {
	var req submitActionRequest
	if err := json.Read(w, r, &req, h.maxBodyBytes); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		json.WriteBadRequestError(w, validationMessage(err))
		return
	}

	record, err := h.useCase.Submit(r.Context(), req.toDomain())
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, actionLoggedResponse{
		ID:         record.ID,
		UserID:     record.UserID,
		ActionType: record.ActionType,
		CreatedAt:  record.CreatedAt,
	})
}

// SubmitBulkHandler godoc
// @Summary      Log a batch of actions
// @Description  Stores every action of the batch in one write or none of them. Each stored action is published independently.
// @Tags         actions
// @Accept       json
// @Produce      json
// @Param        request body bulkActionsRequest true "Actions to log"
// @Success      200 {object} bulkLoggedResponse "Batch stored"
// @Failure      400 {object} json.ErrorResponse "Malformed body or an invalid item"
// @Failure      429 {object} json.ErrorResponse "Rate limit exceeded"
// @Failure      503 {object} json.ErrorResponse "Action store unavailable"
// @Router       /actions/bulk [post]
func (h *Handler) SubmitBulkHandler(w http.ResponseWriter, r *http.Request) {
	var req bulkActionsRequest
	if err := json.Read(w, r, &req, h.maxBodyBytes); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		json.WriteBadRequestError(w, validationMessage(err))
		return
	}

	batch := make([]domain.Action, len(req.Items))
	for i, item := range req.Items {
		batch[i] = item.toDomain()
	}

	n, err := h.useCase.SubmitBulk(r.Context(), batch)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}

	json.Write(w, http.StatusOK, bulkLoggedResponse{Logged: n})
}

// ListRecentHandler godoc
// @Summary      List a user's recent actions
// @Description  Newest first. Returns a bare list unless mode=cursor is set or a cursor is supplied, in which case the response is an envelope with next_cursor. A malformed cursor restarts from the newest action.
// @Tags         actions
// @Produce      json
// @Param        userId path int true "User ID"
// @Param        limit query int false "Page size, clamped to [1,200]" default(20)
// @Param        cursor query string false "Opaque cursor from a previous page"
// @Param        mode query string false "Set to cursor for the envelope shape" Enums(cursor)
// @Success      200 {array} actionItem "Bare list"
// @Success      200 {object} cursorEnvelope "Cursor envelope"
// @Failure      400 {object} json.ErrorResponse "Non-integer userId or limit"
// @Failure      503 {object} json.ErrorResponse "Action store unavailable"
// @Router       /actions/recent/{userId} [get]
func (h *Handler) ListRecentHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		json.WriteBadRequestError(w, "userId must be an integer")
		return
	}

	query := r.URL.Query()

	limit := defaultListLimit
	if raw := query.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			json.WriteBadRequestError(w, "limit must be an integer")
			return
		}
	}

	cursorToken := query.Get("cursor")
	page, err := h.useCase.ListRecent(r.Context(), userID, limit, cursorToken)
	if err != nil {
		h.writeUseCaseError(w, r, err)
		return
	}

	items := toActionItems(page.Items)
	if query.Get("mode") == cursorMode || query.Has("cursor") {
		json.Write(w, http.StatusOK, cursorEnvelope{Items: items, NextCursor: page.NextCursor})
		return
	}

	json.Write(w, http.StatusOK, items)
}

func (h *Handler) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput):
		json.WriteValidationError(w, err)
	case errors.Is(err, domain.ErrStorageUnavailable):
		json.WriteStorageUnavailableError(w)
	default:
		h.logger.Error(logging.Ingestion, logging.Api, "unexpected ingestion error", map[logging.ExtraKey]any{
			logging.Path:         r.URL.Path,
			logging.RequestID:    middleware.GetReqID(r.Context()),
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
	}
}

// validationMessage renders validator errors with JSON field paths, e.g.
// "items[1].user_id failed on 'gt'".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", field, fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
