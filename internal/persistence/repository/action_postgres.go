package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/persistence/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActionModel is the user_actions row. action_data holds the full published
// payload as JSONB.
type ActionModel struct {
	ID         int64          `gorm:"primaryKey;autoIncrement;index:idx_user_actions_user_created,priority:3,sort:desc"`
	UserID     int64          `gorm:"not null;index:idx_user_actions_user_created,priority:1"`
	ActionType string         `gorm:"type:VARCHAR(100);not null"`
	ActionData datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time      `gorm:"type:TIMESTAMP with time zone;not null;index:idx_user_actions_user_created,priority:2,sort:desc"`
}

func (ActionModel) TableName() string {
	return db.UserActionsTable
}

type actionPostgresRepository struct {
	database *gorm.DB
}

func NewActionPostgresRepository(database *gorm.DB) domain.ActionRepository {
	return &actionPostgresRepository{database: database}
}

// MigrateActions creates the user_actions table and its page index.
func MigrateActions(ctx context.Context, database *gorm.DB) error {
	if err := database.WithContext(ctx).AutoMigrate(&ActionModel{}); err != nil {
		return domain.StorageError("migrate user_actions", err)
	}
	return nil
}

func (r *actionPostgresRepository) Append(ctx context.Context, record *domain.ActionRecord) (*domain.ActionRecord, error) {
	stored, err := r.AppendBatch(ctx, []*domain.ActionRecord{record})
	if err != nil {
		return nil, err
	}
	return stored[0], nil
}

func (r *actionPostgresRepository) AppendBatch(ctx context.Context, records []*domain.ActionRecord) ([]*domain.ActionRecord, error) {
	if len(records) == 0 {
		return []*domain.ActionRecord{}, nil
	}

	models := make([]ActionModel, len(records))
	for i, record := range records {
		if err := validRecord(record); err != nil {
			return nil, err
		}
		// created_at is stamped here, not by the database: concurrent writers
		// may commit ids out of created_at order. Pages still order by
		// (created_at, id).
		stampCreatedAt(record, time.Now)
		syncServerTimestamp(record)

		data, err := encodeActionData(record.ActionData)
		if err != nil {
			return nil, err
		}
		models[i] = ActionModel{
			UserID:     record.UserID,
			ActionType: record.ActionType,
			ActionData: datatypes.JSON(data),
			CreatedAt:  record.CreatedAt,
		}
	}

	err := r.database.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
	if err != nil {
		return nil, domain.StorageError("append actions", err)
	}

	for i := range records {
		records[i].ID = models[i].ID
	}
	return records, nil
}

func (r *actionPostgresRepository) QueryPage(ctx context.Context, userID int64, before *domain.Position, limit int) ([]domain.ActionRecord, bool, error) {
	limit = domain.ClampLimit(limit)

	query := r.database.WithContext(ctx).Where("user_id = ?", userID)
	if before != nil {
		at := before.CreatedAt.UTC()
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", at, at, before.ID)
	}

	var models []ActionModel
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&models).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, domain.StorageError("query actions", err)
	}

	hasMore := len(models) > limit
	if hasMore {
		models = models[:limit]
	}

	items := make([]domain.ActionRecord, 0, len(models))
	for _, m := range models {
		data, err := decodeActionData(m.ActionData)
		if err != nil {
			return nil, false, domain.StorageError("query actions", err)
		}
		items = append(items, domain.ActionRecord{
			ID:         m.ID,
			UserID:     m.UserID,
			ActionType: m.ActionType,
			ActionData: data,
			CreatedAt:  m.CreatedAt.UTC(),
		})
	}

	return items, hasMore, nil
}

func (r *actionPostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.database.DB()
	if err != nil {
		return domain.StorageError("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return domain.StorageError("ping", err)
	}
	return nil
}
