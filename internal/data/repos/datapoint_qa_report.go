package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

type DataPointQaReportRepo interface {
	Create(ctx context.Context, tx *gorm.DB, reports []*domain.DataPointQaReport) ([]*domain.DataPointQaReport, error)
	GetByID(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) (*domain.DataPointQaReport, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, reportIDs []uuid.UUID) ([]*domain.DataPointQaReport, error)
	MarkAllInactiveByDataPointIDAndReporter(ctx context.Context, tx *gorm.DB, dataPointID, reporterID uuid.UUID) error
	UpdateActiveByIDs(ctx context.Context, tx *gorm.DB, reportIDs []uuid.UUID, active bool) error
	FullDeleteByDataPointIDs(ctx context.Context, tx *gorm.DB, dataPointIDs []uuid.UUID) error
}

type dataPointQaReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDataPointQaReportRepo(db *gorm.DB, baseLog *logger.Logger) DataPointQaReportRepo {
	return &dataPointQaReportRepo{db: db, log: baseLog.With("repo", "DataPointQaReportRepo")}
}

func (r *dataPointQaReportRepo) Create(ctx context.Context, tx *gorm.DB, reports []*domain.DataPointQaReport) ([]*domain.DataPointQaReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reports) == 0 {
		return []*domain.DataPointQaReport{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *dataPointQaReportRepo) GetByID(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) (*domain.DataPointQaReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.DataPointQaReport
	err := transaction.WithContext(ctx).
		Where("id = ?", reportID).
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *dataPointQaReportRepo) GetByIDs(ctx context.Context, tx *gorm.DB, reportIDs []uuid.UUID) ([]*domain.DataPointQaReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.DataPointQaReport
	if len(reportIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", reportIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *dataPointQaReportRepo) MarkAllInactiveByDataPointIDAndReporter(ctx context.Context, tx *gorm.DB, dataPointID, reporterID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.DataPointQaReport{}).
		Where("data_point_id = ? AND reporter_id = ?", dataPointID, reporterID).
		Update("active", false).Error
}

func (r *dataPointQaReportRepo) UpdateActiveByIDs(ctx context.Context, tx *gorm.DB, reportIDs []uuid.UUID, active bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(reportIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&domain.DataPointQaReport{}).
		Where("id IN ?", reportIDs).
		Update("active", active).Error
}

func (r *dataPointQaReportRepo) FullDeleteByDataPointIDs(ctx context.Context, tx *gorm.DB, dataPointIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(dataPointIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("data_point_id IN ?", dataPointIDs).
		Delete(&domain.DataPointQaReport{}).Error
}
