package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

type DatasetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, datasets []*domain.Dataset) ([]*domain.Dataset, error)
	GetByID(ctx context.Context, tx *gorm.DB, datasetID uuid.UUID) (*domain.Dataset, error)
	GetByDimensions(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, dataType, reportingPeriod string) ([]*domain.Dataset, error)
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, datasetIDs []uuid.UUID) error
}

type datasetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepo(db *gorm.DB, baseLog *logger.Logger) DatasetRepo {
	return &datasetRepo{db: db, log: baseLog.With("repo", "DatasetRepo")}
}

func (r *datasetRepo) Create(ctx context.Context, tx *gorm.DB, datasets []*domain.Dataset) ([]*domain.Dataset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(datasets) == 0 {
		return []*domain.Dataset{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&datasets).Error; err != nil {
		return nil, err
	}
	return datasets, nil
}

func (r *datasetRepo) GetByID(ctx context.Context, tx *gorm.DB, datasetID uuid.UUID) (*domain.Dataset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.Dataset
	err := transaction.WithContext(ctx).
		Where("id = ?", datasetID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *datasetRepo) GetByDimensions(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, dataType, reportingPeriod string) ([]*domain.Dataset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.Dataset
	if err := transaction.WithContext(ctx).
		Where("company_id = ? AND data_type = ? AND reporting_period = ?", companyID, dataType, reportingPeriod).
		Order("upload_time DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *datasetRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, datasetIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(datasetIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Unscoped().
		Where("id IN ?", datasetIDs).
		Delete(&domain.Dataset{}).Error
}
