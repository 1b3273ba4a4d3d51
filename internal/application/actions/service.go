package actions

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/infrastructure/cursor"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/metrics"
	"github.com/hilthontt/actionlog/internal/infrastructure/tracing"
)

const tracerName = "github.com/hilthontt/actionlog/internal/application/actions"

type UseCase interface {
	Submit(ctx context.Context, action domain.Action) (*domain.ActionRecord, error)
	SubmitBulk(ctx context.Context, actions []domain.Action) (int, error)
	ListRecent(ctx context.Context, userID int64, limit int, cursorToken string) (*domain.ActionPage, error)
}

// Scrubber strips sensitive keys from a client supplied context.
type Scrubber interface {
	Scrub(attrs map[string]any) map[string]any
}

// Dispatcher hands an accepted payload to asynchronous delivery.
type Dispatcher interface {
	Dispatch(payload domain.ActionPayload) bool
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	repository domain.ActionRepository
	scrubber   Scrubber
	dispatcher Dispatcher
	logger     logging.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

func NewService(
	repository domain.ActionRepository,
	scrubber Scrubber,
	dispatcher Dispatcher,
	logger logging.Logger,
	m *metrics.Metrics,
	opts ...Option,
) UseCase {
	s := &service{
		repository: repository,
		scrubber:   scrubber,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		tracer:     tracing.GetTracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Submit(ctx context.Context, action domain.Action) (*domain.ActionRecord, error) {
	ctx, span := s.tracer.Start(ctx, "actions.Submit", trace.WithAttributes(
		attribute.Int64("action.user_id", action.UserID),
		attribute.String("action.type", action.ActionType),
	))
	defer span.End()

	if err := action.Validate(); err != nil {
		return nil, failSpan(span, err)
	}

	acceptedAt := domain.AcceptedAt(s.now())
	payload := domain.NewActionPayload(action, s.scrubber.Scrub(action.Context), acceptedAt)

	stored, err := s.repository.Append(ctx, domain.NewActionRecord(payload, acceptedAt))
	if err != nil {
		s.logger.Error(logging.Ingestion, logging.Append, "failed to store action", map[logging.ExtraKey]any{
			logging.UserID:       action.UserID,
			logging.ActionType:   payload.ActionType,
			logging.ErrorMessage: err.Error(),
		})
		return nil, failSpan(span, err)
	}

	s.observeIngested(metrics.ModeSingle, 1)
	s.dispatcher.Dispatch(payload)

	span.SetAttributes(attribute.Int64("action.id", stored.ID))
	return stored, nil
}

func (s *service) SubmitBulk(ctx context.Context, actions []domain.Action) (int, error) {
	ctx, span := s.tracer.Start(ctx, "actions.SubmitBulk", trace.WithAttributes(
		attribute.Int("actions.count", len(actions)),
	))
	defer span.End()

	if len(actions) == 0 {
		return 0, nil
	}

	for i, action := range actions {
		if err := action.Validate(); err != nil {
			return 0, failSpan(span, fmt.Errorf("items[%d]: %w", i, err))
		}
	}

	acceptedAt := domain.AcceptedAt(s.now())
	payloads := make([]domain.ActionPayload, len(actions))
	records := make([]*domain.ActionRecord, len(actions))
	for i, action := range actions {
		payloads[i] = domain.NewActionPayload(action, s.scrubber.Scrub(action.Context), acceptedAt)
		records[i] = domain.NewActionRecord(payloads[i], acceptedAt)
	}

	if _, err := s.repository.AppendBatch(ctx, records); err != nil {
		s.logger.Error(logging.Ingestion, logging.Append, "failed to store action batch", map[logging.ExtraKey]any{
			logging.Count:        len(records),
			logging.ErrorMessage: err.Error(),
		})
		return 0, failSpan(span, err)
	}

	s.observeIngested(metrics.ModeBulk, len(records))
	for _, payload := range payloads {
		s.dispatcher.Dispatch(payload)
	}

	return len(records), nil
}

func (s *service) ListRecent(ctx context.Context, userID int64, limit int, cursorToken string) (*domain.ActionPage, error) {
	ctx, span := s.tracer.Start(ctx, "actions.ListRecent", trace.WithAttributes(
		attribute.Int64("action.user_id", userID),
	))
	defer span.End()

	limit = domain.ClampLimit(limit)

	var before *domain.Position
	if cursorToken != "" {
		if pos, ok := cursor.Decode(cursorToken); ok {
			before = &pos
		} else {
			s.logger.Debug(logging.Ingestion, logging.Query, "ignoring malformed cursor", map[logging.ExtraKey]any{
				logging.UserID: userID,
			})
		}
	}

	items, hasMore, err := s.repository.QueryPage(ctx, userID, before, limit)
	if err != nil {
		s.logger.Error(logging.Ingestion, logging.Query, "failed to query actions", map[logging.ExtraKey]any{
			logging.UserID:       userID,
			logging.ErrorMessage: err.Error(),
		})
		return nil, failSpan(span, err)
	}

	page := &domain.ActionPage{Items: items}
	if page.Items == nil {
		page.Items = []domain.ActionRecord{}
	}
	if hasMore && len(items) > 0 {
		next := cursor.EncodePosition(items[len(items)-1].Position())
		page.NextCursor = &next
	}

	span.SetAttributes(attribute.Int("actions.returned", len(page.Items)))
	return page, nil
}

func (s *service) observeIngested(mode string, n int) {
	if s.metrics != nil {
		s.metrics.ActionsIngested(mode, n)
	}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
