package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

// QaReviewRepo is the append-only review ledger. Records are never updated or
// deleted individually; the current verdict of a subject is derived as the
// latest record for it, ordered by timestamp then insertion time.
type QaReviewRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*domain.QaReviewRecord) ([]*domain.QaReviewRecord, error)
	GetLatestBySubjectID(ctx context.Context, tx *gorm.DB, subjectID uuid.UUID) (*domain.QaReviewRecord, error)
	GetLatestBySubjectIDs(ctx context.Context, tx *gorm.DB, subjectIDs []uuid.UUID) (map[uuid.UUID]*domain.QaReviewRecord, error)
	GetBySubjectID(ctx context.Context, tx *gorm.DB, subjectID uuid.UUID) ([]*domain.QaReviewRecord, error)
	// GetPending returns the review queue: subjects of the given type whose
	// current verdict is Pending, oldest first.
	GetPending(ctx context.Context, tx *gorm.DB, subjectType domain.SubjectType) ([]*domain.QaReviewRecord, error)
	// GetCurrentlyActiveSubjectID resolves the authoritative subject for a
	// (company, data type, reporting period) triple: the most recently decided
	// subject whose current verdict is Accepted. Returns uuid.Nil when none.
	GetCurrentlyActiveSubjectID(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, dataType, reportingPeriod string) (uuid.UUID, error)
	FullDeleteBySubjectIDs(ctx context.Context, tx *gorm.DB, subjectIDs []uuid.UUID) error
}

type qaReviewRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQaReviewRepo(db *gorm.DB, baseLog *logger.Logger) QaReviewRepo {
	return &qaReviewRepo{db: db, log: baseLog.With("repo", "QaReviewRepo")}
}

func (r *qaReviewRepo) Create(ctx context.Context, tx *gorm.DB, records []*domain.QaReviewRecord) ([]*domain.QaReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(records) == 0 {
		return []*domain.QaReviewRecord{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *qaReviewRepo) GetLatestBySubjectID(ctx context.Context, tx *gorm.DB, subjectID uuid.UUID) (*domain.QaReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result domain.QaReviewRecord
	err := transaction.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("timestamp DESC, created_at DESC").
		First(&result).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *qaReviewRepo) GetLatestBySubjectIDs(ctx context.Context, tx *gorm.DB, subjectIDs []uuid.UUID) (map[uuid.UUID]*domain.QaReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	latest := map[uuid.UUID]*domain.QaReviewRecord{}
	if len(subjectIDs) == 0 {
		return latest, nil
	}
	var rows []*domain.QaReviewRecord
	if err := transaction.WithContext(ctx).
		Where("subject_id IN ?", subjectIDs).
		Order("timestamp DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, seen := latest[row.SubjectID]; !seen {
			latest[row.SubjectID] = row
		}
	}
	return latest, nil
}

func (r *qaReviewRepo) GetBySubjectID(ctx context.Context, tx *gorm.DB, subjectID uuid.UUID) ([]*domain.QaReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*domain.QaReviewRecord
	if err := transaction.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("timestamp DESC, created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *qaReviewRepo) GetPending(ctx context.Context, tx *gorm.DB, subjectType domain.SubjectType) ([]*domain.QaReviewRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	sub := transaction.WithContext(ctx).
		Model(&domain.QaReviewRecord{}).
		Select("subject_id AS sid, MAX(timestamp) AS max_ts").
		Where("subject_type = ?", subjectType).
		Group("subject_id")

	var rows []*domain.QaReviewRecord
	if err := transaction.WithContext(ctx).
		Model(&domain.QaReviewRecord{}).
		Joins("JOIN (?) latest ON qa_review_record.subject_id = latest.sid AND qa_review_record.timestamp = latest.max_ts", sub).
		Order("qa_review_record.timestamp ASC, qa_review_record.created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	// Several rows can share a subject's max timestamp; keep only the newest
	// per subject, then filter for Pending.
	newest := map[uuid.UUID]*domain.QaReviewRecord{}
	var order []uuid.UUID
	for _, row := range rows {
		if _, seen := newest[row.SubjectID]; !seen {
			order = append(order, row.SubjectID)
		}
		newest[row.SubjectID] = row
	}
	var pending []*domain.QaReviewRecord
	for _, id := range order {
		if newest[id].Status == domain.QaStatusPending {
			pending = append(pending, newest[id])
		}
	}
	return pending, nil
}

func (r *qaReviewRepo) GetCurrentlyActiveSubjectID(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, dataType, reportingPeriod string) (uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*domain.QaReviewRecord
	if err := transaction.WithContext(ctx).
		Where("company_id = ? AND data_type = ? AND reporting_period = ?", companyID, dataType, reportingPeriod).
		Order("timestamp DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return uuid.Nil, err
	}

	// Rows are newest first, so the first time a subject appears is its
	// current verdict. The first subject currently Accepted wins.
	seen := map[uuid.UUID]bool{}
	for _, row := range rows {
		if seen[row.SubjectID] {
			continue
		}
		seen[row.SubjectID] = true
		if row.Status == domain.QaStatusAccepted {
			return row.SubjectID, nil
		}
	}
	return uuid.Nil, nil
}

func (r *qaReviewRepo) FullDeleteBySubjectIDs(ctx context.Context, tx *gorm.DB, subjectIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(subjectIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("subject_id IN ?", subjectIDs).
		Delete(&domain.QaReviewRecord{}).Error
}
