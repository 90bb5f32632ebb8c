package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

type DataPointRepo interface {
	Create(ctx context.Context, tx *gorm.DB, points []*domain.DataPoint) ([]*domain.DataPoint, error)
	GetByID(ctx context.Context, tx *gorm.DB, dataPointID uuid.UUID) (*domain.DataPoint, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, dataPointIDs []uuid.UUID) ([]*domain.DataPoint, error)
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, dataPointIDs []uuid.UUID) error
}

type dataPointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataPointRepo(db *gorm.DB, baseLog *logger.Logger) DataPointRepo {
	return &dataPointRepo{db: db, log: baseLog.With("repo", "DataPointRepo")}
}

func (r *dataPointRepo) Create(ctx context.Context, tx *gorm.DB, points []*domain.DataPoint) ([]*domain.DataPoint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(points) == 0 {
		return []*domain.DataPoint{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

func (r *dataPointRepo) GetByID(ctx context.Context, tx *gorm.DB, dataPointID uuid.UUID) (*domain.DataPoint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.DataPoint
	err := transaction.WithContext(ctx).
		Where("id = ?", dataPointID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *dataPointRepo) GetByIDs(ctx context.Context, tx *gorm.DB, dataPointIDs []uuid.UUID) ([]*domain.DataPoint, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.DataPoint
	if len(dataPointIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", dataPointIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *dataPointRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, dataPointIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(dataPointIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", dataPointIDs).
		Delete(&domain.DataPoint{}).Error
}
