package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/data/repos"
	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
	"github.com/yungbote/esgledger-backend/internal/platform/dbctx"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

// DataPointReview is one reviewer decision over one data point.
type DataPointReview struct {
	DataPointID uuid.UUID
	Status      domain.QaStatus
	Comment     *string
}

// ReviewService appends reviewer decisions to the ledger and derives current
// verdicts from it. Any status may follow any status; there is no terminal
// state.
type ReviewService interface {
	// ReviewDataPoints appends one ledger record per review. All records of
	// one call share a timestamp and correlation id, and exactly one status
	// change notification goes out per reviewed
	// (company, data point type, reporting period) combination.
	ReviewDataPoints(dbc dbctx.Context, reviewerID uuid.UUID, reviews []DataPointReview) ([]*domain.QaReviewRecord, error)
	// ReviewDataset reviews the dataset and its data points in one sweep.
	// With overwriteAll false only data points whose current verdict is
	// Pending are touched; with true every data point is.
	ReviewDataset(dbc dbctx.Context, reviewerID, datasetID uuid.UUID, status domain.QaStatus, comment *string, overwriteAll bool) ([]*domain.QaReviewRecord, error)
	CurrentStatus(dbc dbctx.Context, subjectID uuid.UUID) (*domain.QaReviewRecord, error)
	History(dbc dbctx.Context, subjectID uuid.UUID) ([]*domain.QaReviewRecord, error)
	ReviewQueue(dbc dbctx.Context, subjectType domain.SubjectType) ([]*domain.QaReviewRecord, error)
	CurrentlyActiveSubjectID(dbc dbctx.Context, companyID uuid.UUID, dataType, reportingPeriod string) (uuid.UUID, error)
}

type reviewService struct {
	db  *gorm.DB
	log *logger.Logger

	ledger       repos.QaReviewRepo
	datasets     repos.DatasetRepo
	points       repos.DataPointRepo
	compositions repos.CompositionRepo
	bus          events.Bus
}

func NewReviewService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ledger repos.QaReviewRepo,
	datasets repos.DatasetRepo,
	points repos.DataPointRepo,
	compositions repos.CompositionRepo,
	bus events.Bus,
) ReviewService {
	return &reviewService{
		db:           db,
		log:          baseLog.With("service", "ReviewService"),
		ledger:       ledger,
		datasets:     datasets,
		points:       points,
		compositions: compositions,
		bus:          bus,
	}
}

func (s *reviewService) ReviewDataPoints(dbc dbctx.Context, reviewerID uuid.UUID, reviews []DataPointReview) ([]*domain.QaReviewRecord, error) {
	if reviewerID == uuid.Nil {
		return nil, apierr.Validation("MISSING_REVIEWER_ID", errors.New("reviewer id required"))
	}
	if len(reviews) == 0 {
		return []*domain.QaReviewRecord{}, nil
	}

	ids := make([]uuid.UUID, 0, len(reviews))
	for _, review := range reviews {
		if !review.Status.Valid() {
			return nil, apierr.Validation("INVALID_QA_STATUS",
				fmt.Errorf("unknown status %q for data point %s", review.Status, review.DataPointID))
		}
		ids = append(ids, review.DataPointID)
	}
	pointRows, err := s.points.GetByIDs(dbc.Ctx, dbc.Tx, ids)
	if err != nil {
		return nil, err
	}
	byID := map[uuid.UUID]*domain.DataPoint{}
	for _, point := range pointRows {
		byID[point.ID] = point
	}

	timestamp := time.Now().UnixMilli()
	correlationID := uuid.New()
	records := make([]*domain.QaReviewRecord, 0, len(reviews))
	for _, review := range reviews {
		point, ok := byID[review.DataPointID]
		if !ok {
			return nil, apierr.NotFound("DATA_POINT_NOT_FOUND", fmt.Errorf("data point %s", review.DataPointID))
		}
		records = append(records, &domain.QaReviewRecord{
			ID:              uuid.New(),
			SubjectID:       point.ID,
			SubjectType:     domain.SubjectTypeDataPoint,
			DataType:        point.DataPointType,
			CompanyID:       point.CompanyID,
			ReportingPeriod: point.ReportingPeriod,
			Status:          review.Status,
			Comment:         review.Comment,
			ReviewerID:      reviewerID,
			Timestamp:       timestamp,
			CorrelationID:   correlationID,
		})
	}

	if _, err := s.ledger.Create(dbc.Ctx, dbc.Tx, records); err != nil {
		return nil, err
	}
	publishStatusChanges(dbc, s.log, s.ledger, s.bus, records)
	return records, nil
}

func (s *reviewService) ReviewDataset(dbc dbctx.Context, reviewerID, datasetID uuid.UUID, status domain.QaStatus, comment *string, overwriteAll bool) ([]*domain.QaReviewRecord, error) {
	if reviewerID == uuid.Nil {
		return nil, apierr.Validation("MISSING_REVIEWER_ID", errors.New("reviewer id required"))
	}
	if !status.Valid() {
		return nil, apierr.Validation("INVALID_QA_STATUS", fmt.Errorf("unknown status %q", status))
	}

	dataset, err := s.datasets.GetByID(dbc.Ctx, dbc.Tx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return nil, apierr.NotFound("DATASET_NOT_FOUND", fmt.Errorf("dataset %s", datasetID))
	}
	entry, err := s.compositions.GetByDatasetID(dbc.Ctx, dbc.Tx, datasetID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apierr.InvariantViolation("NOT_A_COMPOSED_DATASET",
			fmt.Errorf("dataset %s has no composition entry", datasetID))
	}
	pointIDs, err := entry.DataPointIDs()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(pointIDs))
	for _, id := range pointIDs {
		ids = append(ids, id)
	}
	selected := ids
	if !overwriteAll {
		latest, err := s.ledger.GetLatestBySubjectIDs(dbc.Ctx, dbc.Tx, ids)
		if err != nil {
			return nil, err
		}
		selected = selected[:0]
		for _, id := range ids {
			record, ok := latest[id]
			if !ok || record.Status == domain.QaStatusPending {
				selected = append(selected, id)
			}
		}
	}
	pointRows, err := s.points.GetByIDs(dbc.Ctx, dbc.Tx, selected)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().UnixMilli()
	correlationID := uuid.New()
	records := []*domain.QaReviewRecord{{
		ID:              uuid.New(),
		SubjectID:       dataset.ID,
		SubjectType:     domain.SubjectTypeDataset,
		DataType:        dataset.DataType,
		CompanyID:       dataset.CompanyID,
		CompanyName:     dataset.CompanyName,
		ReportingPeriod: dataset.ReportingPeriod,
		Status:          status,
		Comment:         comment,
		ReviewerID:      reviewerID,
		Timestamp:       timestamp,
		CorrelationID:   correlationID,
	}}
	for _, point := range pointRows {
		records = append(records, &domain.QaReviewRecord{
			ID:              uuid.New(),
			SubjectID:       point.ID,
			SubjectType:     domain.SubjectTypeDataPoint,
			DataType:        point.DataPointType,
			CompanyID:       point.CompanyID,
			CompanyName:     dataset.CompanyName,
			ReportingPeriod: point.ReportingPeriod,
			Status:          status,
			Comment:         comment,
			ReviewerID:      reviewerID,
			Timestamp:       timestamp,
			CorrelationID:   correlationID,
		})
	}

	if _, err := s.ledger.Create(dbc.Ctx, dbc.Tx, records); err != nil {
		return nil, err
	}
	s.log.Info("dataset reviewed",
		"dataset_id", dataset.ID,
		"status", status,
		"overwrite_all", overwriteAll,
		"data_points", len(records)-1,
		"correlation_id", correlationID)
	publishStatusChanges(dbc, s.log, s.ledger, s.bus, records)
	return records, nil
}

func (s *reviewService) CurrentStatus(dbc dbctx.Context, subjectID uuid.UUID) (*domain.QaReviewRecord, error) {
	record, err := s.ledger.GetLatestBySubjectID(dbc.Ctx, dbc.Tx, subjectID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apierr.NotFound("NO_REVIEW_RECORD", fmt.Errorf("subject %s was never reviewed", subjectID))
	}
	return record, nil
}

func (s *reviewService) History(dbc dbctx.Context, subjectID uuid.UUID) ([]*domain.QaReviewRecord, error) {
	return s.ledger.GetBySubjectID(dbc.Ctx, dbc.Tx, subjectID)
}

func (s *reviewService) ReviewQueue(dbc dbctx.Context, subjectType domain.SubjectType) ([]*domain.QaReviewRecord, error) {
	return s.ledger.GetPending(dbc.Ctx, dbc.Tx, subjectType)
}

func (s *reviewService) CurrentlyActiveSubjectID(dbc dbctx.Context, companyID uuid.UUID, dataType, reportingPeriod string) (uuid.UUID, error) {
	return s.ledger.GetCurrentlyActiveSubjectID(dbc.Ctx, dbc.Tx, companyID, dataType, reportingPeriod)
}

// publishStatusChanges emits one notification per distinct
// (company, data type, reporting period) combination among the given records;
// the last record of a combination wins. Shared by every service that appends
// to the ledger.
func publishStatusChanges(dbc dbctx.Context, log *logger.Logger, ledger repos.QaReviewRepo, bus events.Bus, records []*domain.QaReviewRecord) {
	type triple struct {
		companyID       uuid.UUID
		dataType        string
		reportingPeriod string
	}
	last := map[triple]*domain.QaReviewRecord{}
	var order []triple
	for _, record := range records {
		key := triple{record.CompanyID, record.DataType, record.ReportingPeriod}
		if _, seen := last[key]; !seen {
			order = append(order, key)
		}
		last[key] = record
	}

	for _, key := range order {
		record := last[key]
		var active *uuid.UUID
		if record.Status == domain.QaStatusAccepted {
			active = &record.SubjectID
		} else {
			id, err := ledger.GetCurrentlyActiveSubjectID(dbc.Ctx, dbc.Tx, key.companyID, key.dataType, key.reportingPeriod)
			if err != nil {
				log.Error("resolve currently active failed",
					"company_id", key.companyID, "data_type", key.dataType, "error", err)
				continue
			}
			if id != uuid.Nil {
				active = &id
			}
		}
		payload := events.QaStatusChangePayload{
			SubjectID:         record.SubjectID,
			UpdatedStatus:     record.Status,
			CurrentlyActiveID: active,
		}
		env, err := events.NewEnvelope(events.RoutingKeyQaStatusChanged, record.CorrelationID, payload)
		if err != nil {
			log.Error("build status change envelope failed", "subject_id", record.SubjectID, "error", err)
			continue
		}
		if err := bus.Publish(dbc.Ctx, events.RoutingKeyQaStatusChanged, env); err != nil {
			log.Error("publish status change failed", "subject_id", record.SubjectID, "error", err)
		}
	}
}
