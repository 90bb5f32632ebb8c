package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

type CompositionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *domain.CompositionEntry) (*domain.CompositionEntry, error)
	// GetByDatasetID returns nil when the dataset has no composition entry,
	// i.e. it was never decomposed.
	GetByDatasetID(ctx context.Context, tx *gorm.DB, datasetID uuid.UUID) (*domain.CompositionEntry, error)
	FullDeleteByDatasetIDs(ctx context.Context, tx *gorm.DB, datasetIDs []uuid.UUID) error
}

type compositionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompositionRepo(db *gorm.DB, baseLog *logger.Logger) CompositionRepo {
	return &compositionRepo{db: db, log: baseLog.With("repo", "CompositionRepo")}
}

func (r *compositionRepo) Create(ctx context.Context, tx *gorm.DB, entry *domain.CompositionEntry) (*domain.CompositionEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *compositionRepo) GetByDatasetID(ctx context.Context, tx *gorm.DB, datasetID uuid.UUID) (*domain.CompositionEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.CompositionEntry
	err := transaction.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *compositionRepo) FullDeleteByDatasetIDs(ctx context.Context, tx *gorm.DB, datasetIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(datasetIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("dataset_id IN ?", datasetIDs).
		Delete(&domain.CompositionEntry{}).Error
}
