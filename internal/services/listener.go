package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/data/repos"
	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/platform/dbctx"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

// QaEventListener consumes the upload and deletion events of the data side and
// keeps the review ledger in step with them.
type QaEventListener interface {
	Start(ctx context.Context) error
}

type qaEventListener struct {
	db  *gorm.DB
	log *logger.Logger

	ledger         repos.QaReviewRepo
	datasets       repos.DatasetRepo
	points         repos.DataPointRepo
	compositions   repos.CompositionRepo
	datasetReports repos.DatasetQaReportRepo
	pointReports   repos.DataPointQaReportRepo
	bus            events.Bus
}

func NewQaEventListener(
	db *gorm.DB,
	baseLog *logger.Logger,
	ledger repos.QaReviewRepo,
	datasets repos.DatasetRepo,
	points repos.DataPointRepo,
	compositions repos.CompositionRepo,
	datasetReports repos.DatasetQaReportRepo,
	pointReports repos.DataPointQaReportRepo,
	bus events.Bus,
) QaEventListener {
	return &qaEventListener{
		db:             db,
		log:            baseLog.With("service", "QaEventListener"),
		ledger:         ledger,
		datasets:       datasets,
		points:         points,
		compositions:   compositions,
		datasetReports: datasetReports,
		pointReports:   pointReports,
		bus:            bus,
	}
}

func (l *qaEventListener) Start(ctx context.Context) error {
	if err := l.bus.Subscribe(ctx, events.RoutingKeyDataPointUploaded, l.handleDataPointUploaded); err != nil {
		return err
	}
	return l.bus.Subscribe(ctx, events.RoutingKeyDatasetDeleted, l.handleDatasetDeleted)
}

func (l *qaEventListener) handleDataPointUploaded(ctx context.Context, env events.Envelope) error {
	var payload events.DataPointUploadedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("data point uploaded payload: %w", err)
	}
	dbc := dbctx.Context{Ctx: ctx}

	status := l.initialStatus(dbc, payload)
	record := &domain.QaReviewRecord{
		ID:              uuid.New(),
		SubjectID:       payload.DataPointID,
		SubjectType:     domain.SubjectTypeDataPoint,
		DataType:        payload.DataPointType,
		CompanyID:       payload.CompanyID,
		CompanyName:     payload.CompanyName,
		ReportingPeriod: payload.ReportingPeriod,
		Status:          status,
		ReviewerID:      payload.UploaderID,
		Timestamp:       payload.UploadTime,
		CorrelationID:   env.CorrelationID,
	}
	if _, err := l.ledger.Create(ctx, nil, []*domain.QaReviewRecord{record}); err != nil {
		return err
	}
	publishStatusChanges(dbc, l.log, l.ledger, l.bus, []*domain.QaReviewRecord{record})
	return nil
}

// initialStatus resolves how an uploaded data point enters the ledger: a
// preset status wins, then inheritance from an earlier dataset, and Pending is
// the fallback when inheritance cannot be resolved.
func (l *qaEventListener) initialStatus(dbc dbctx.Context, payload events.DataPointUploadedPayload) domain.QaStatus {
	if payload.InitialQa.PresetStatus != nil {
		if payload.InitialQa.PresetStatus.Valid() {
			return *payload.InitialQa.PresetStatus
		}
		l.log.Warn("invalid preset status, falling back to Pending",
			"data_point_id", payload.DataPointID, "preset", *payload.InitialQa.PresetStatus)
		return domain.QaStatusPending
	}
	if payload.InitialQa.CopyFromDatasetID == nil {
		return domain.QaStatusPending
	}

	sourceID := *payload.InitialQa.CopyFromDatasetID
	entry, err := l.compositions.GetByDatasetID(dbc.Ctx, dbc.Tx, sourceID)
	if err != nil || entry == nil {
		l.log.Warn("qa inheritance source has no composition, falling back to Pending",
			"data_point_id", payload.DataPointID, "source_dataset_id", sourceID, "error", err)
		return domain.QaStatusPending
	}
	pointIDs, err := entry.DataPointIDs()
	if err != nil {
		l.log.Warn("qa inheritance source composition unreadable, falling back to Pending",
			"data_point_id", payload.DataPointID, "source_dataset_id", sourceID, "error", err)
		return domain.QaStatusPending
	}
	sourcePointID, ok := pointIDs[payload.DataPointType]
	if !ok {
		l.log.Warn("qa inheritance source has no data point of this type, falling back to Pending",
			"data_point_id", payload.DataPointID, "source_dataset_id", sourceID,
			"data_point_type", payload.DataPointType)
		return domain.QaStatusPending
	}
	latest, err := l.ledger.GetLatestBySubjectID(dbc.Ctx, dbc.Tx, sourcePointID)
	if err != nil || latest == nil {
		l.log.Warn("qa inheritance source was never reviewed, falling back to Pending",
			"data_point_id", payload.DataPointID, "source_data_point_id", sourcePointID, "error", err)
		return domain.QaStatusPending
	}
	return latest.Status
}

func (l *qaEventListener) handleDatasetDeleted(ctx context.Context, env events.Envelope) error {
	var payload events.DatasetDeletedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("dataset deleted payload: %w", err)
	}
	dbc := dbctx.Context{Ctx: ctx}
	datasetID := payload.DatasetID

	var pointIDs []uuid.UUID
	entry, err := l.compositions.GetByDatasetID(dbc.Ctx, nil, datasetID)
	if err != nil {
		return err
	}
	if entry != nil {
		byType, err := entry.DataPointIDs()
		if err != nil {
			return err
		}
		for _, id := range byType {
			pointIDs = append(pointIDs, id)
		}
	}

	// dimensions and last status come from the ledger; the dataset row itself
	// is already soft-deleted by the time this event arrives
	lastRecord, err := l.ledger.GetLatestBySubjectID(dbc.Ctx, nil, datasetID)
	if err != nil {
		return err
	}

	subjectIDs := append(append([]uuid.UUID{}, pointIDs...), datasetID)
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.pointReports.FullDeleteByDataPointIDs(ctx, tx, pointIDs); err != nil {
			return err
		}
		if err := l.datasetReports.FullDeleteByDatasetIDs(ctx, tx, []uuid.UUID{datasetID}); err != nil {
			return err
		}
		if err := l.ledger.FullDeleteBySubjectIDs(ctx, tx, subjectIDs); err != nil {
			return err
		}
		if err := l.compositions.FullDeleteByDatasetIDs(ctx, tx, []uuid.UUID{datasetID}); err != nil {
			return err
		}
		if err := l.points.FullDeleteByIDs(ctx, tx, pointIDs); err != nil {
			return err
		}
		return l.datasets.FullDeleteByIDs(ctx, tx, []uuid.UUID{datasetID})
	})
	if err != nil {
		return err
	}
	l.log.Info("dataset qa data deleted",
		"dataset_id", datasetID, "data_points", len(pointIDs), "correlation_id", env.CorrelationID)

	if lastRecord == nil {
		return nil
	}

	// exactly one notification: the dataset is gone and some other dataset of
	// the same dimensions may now be the authoritative one
	activeID, err := l.ledger.GetCurrentlyActiveSubjectID(dbc.Ctx, nil,
		lastRecord.CompanyID, lastRecord.DataType, lastRecord.ReportingPeriod)
	if err != nil {
		return err
	}
	var active *uuid.UUID
	if activeID != uuid.Nil {
		active = &activeID
	}
	statusEnv, err := events.NewEnvelope(events.RoutingKeyQaStatusChanged, env.CorrelationID,
		events.QaStatusChangePayload{
			SubjectID:         datasetID,
			UpdatedStatus:     domain.QaStatusRejected,
			CurrentlyActiveID: active,
		})
	if err != nil {
		return err
	}
	return l.bus.Publish(ctx, events.RoutingKeyQaStatusChanged, statusEnv)
}
