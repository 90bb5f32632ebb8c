package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

type DatasetQaReportRepo interface {
	Create(ctx context.Context, tx *gorm.DB, report *domain.DatasetQaReport) (*domain.DatasetQaReport, error)
	GetByID(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) (*domain.DatasetQaReport, error)
	GetByDatasetID(ctx context.Context, tx *gorm.DB, datasetID uuid.UUID) ([]*domain.DatasetQaReport, error)
	// MarkAllInactiveByDatasetIDAndReporter deactivates the reporter's earlier
	// reports for the dataset; called in the same transaction as the insert of
	// the superseding report.
	MarkAllInactiveByDatasetIDAndReporter(ctx context.Context, tx *gorm.DB, datasetID, reporterID uuid.UUID) error
	UpdateActive(ctx context.Context, tx *gorm.DB, reportID uuid.UUID, active bool) error
	UpdateReport(ctx context.Context, tx *gorm.DB, reportID uuid.UUID, report datatypes.JSON) error
	FullDeleteByDatasetIDs(ctx context.Context, tx *gorm.DB, datasetIDs []uuid.UUID) error
}

type datasetQaReportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetQaReportRepo(db *gorm.DB, baseLog *logger.Logger) DatasetQaReportRepo {
	return &datasetQaReportRepo{db: db, log: baseLog.With("repo", "DatasetQaReportRepo")}
}

func (r *datasetQaReportRepo) Create(ctx context.Context, tx *gorm.DB, report *domain.DatasetQaReport) (*domain.DatasetQaReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(report).Error; err != nil {
		return nil, err
	}
	return report, nil
}

func (r *datasetQaReportRepo) GetByID(ctx context.Context, tx *gorm.DB, reportID uuid.UUID) (*domain.DatasetQaReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.DatasetQaReport
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

func (r *datasetQaReportRepo) GetByDatasetID(ctx context.Context, tx *gorm.DB, datasetID uuid.UUID) ([]*domain.DatasetQaReport, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.DatasetQaReport
	if err := transaction.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("upload_time DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *datasetQaReportRepo) MarkAllInactiveByDatasetIDAndReporter(ctx context.Context, tx *gorm.DB, datasetID, reporterID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.DatasetQaReport{}).
		Where("dataset_id = ? AND reporter_id = ?", datasetID, reporterID).
		Update("active", false).Error
}

func (r *datasetQaReportRepo) UpdateActive(ctx context.Context, tx *gorm.DB, reportID uuid.UUID, active bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.DatasetQaReport{}).
		Where("id = ?", reportID).
		Update("active", active).Error
}

func (r *datasetQaReportRepo) UpdateReport(ctx context.Context, tx *gorm.DB, reportID uuid.UUID, report datatypes.JSON) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.DatasetQaReport{}).
		Where("id = ?", reportID).
		Update("report", report).Error
}

func (r *datasetQaReportRepo) FullDeleteByDatasetIDs(ctx context.Context, tx *gorm.DB, datasetIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(datasetIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("dataset_id IN ?", datasetIDs).
		Delete(&domain.DatasetQaReport{}).Error
}
