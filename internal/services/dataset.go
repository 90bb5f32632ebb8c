package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/data/repos"
	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
	"github.com/yungbote/esgledger-backend/internal/platform/dbctx"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
	"github.com/yungbote/esgledger-backend/internal/spec"
)

// StoreDatasetRequest carries one disclosure document upload.
type StoreDatasetRequest struct {
	DataType        string
	CompanyID       uuid.UUID
	CompanyName     string
	ReportingPeriod string
	UploaderID      uuid.UUID
	Data            json.RawMessage
	InitialQa       events.InitialQa
}

// DatasetService owns the lifecycle of composite datasets: decomposition at
// upload time, recomposition on read, and deletion.
type DatasetService interface {
	StoreDataset(dbc dbctx.Context, req StoreDatasetRequest) (*domain.Dataset, error)
	GetDataset(dbc dbctx.Context, datasetID uuid.UUID) (*domain.Dataset, error)
	// GetDatasetData recomposes the stored document from its data points.
	GetDatasetData(dbc dbctx.Context, datasetID uuid.UUID) (json.RawMessage, error)
	GetDataPointIDs(dbc dbctx.Context, datasetID uuid.UUID) (map[string]uuid.UUID, error)
	// DeleteDataset soft-deletes the metadata row and announces the deletion;
	// the QA listener performs the full cascade.
	DeleteDataset(dbc dbctx.Context, datasetID uuid.UUID) error
}

type datasetService struct {
	db  *gorm.DB
	log *logger.Logger

	registry     SpecRegistry
	datasets     repos.DatasetRepo
	points       repos.DataPointRepo
	compositions repos.CompositionRepo
	validator    DataPointValidator
	bus          events.Bus
}

// DataPointValidator validates one fragment against its data point type
// schema. Satisfied by the spec service client.
type DataPointValidator interface {
	ValidateDataPoint(ctx context.Context, dataPointType string, content json.RawMessage) error
}

func NewDatasetService(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry SpecRegistry,
	datasets repos.DatasetRepo,
	points repos.DataPointRepo,
	compositions repos.CompositionRepo,
	validator DataPointValidator,
	bus events.Bus,
) DatasetService {
	return &datasetService{
		db:           db,
		log:          baseLog.With("service", "DatasetService"),
		registry:     registry,
		datasets:     datasets,
		points:       points,
		compositions: compositions,
		validator:    validator,
		bus:          bus,
	}
}

func (s *datasetService) StoreDataset(dbc dbctx.Context, req StoreDatasetRequest) (*domain.Dataset, error) {
	if req.CompanyID == uuid.Nil {
		return nil, apierr.Validation("MISSING_COMPANY_ID", errors.New("company id required"))
	}
	if req.ReportingPeriod == "" {
		return nil, apierr.Validation("MISSING_REPORTING_PERIOD", errors.New("reporting period required"))
	}

	assembled, err := s.registry.IsAssembledFramework(dbc.Ctx, req.DataType)
	if err != nil {
		return nil, err
	}
	if !assembled {
		return nil, apierr.Validation("NOT_AN_ASSEMBLED_FRAMEWORK",
			fmt.Errorf("framework %q is not stored in decomposed form", req.DataType))
	}

	frameworkSpec, err := s.registry.Get(dbc.Ctx, req.DataType)
	if err != nil {
		return nil, err
	}
	leaves, err := spec.Dehydrate(frameworkSpec, req.Data)
	if err != nil {
		var mismatch *spec.StructuralMismatchError
		if errors.As(err, &mismatch) {
			return nil, apierr.Validation("STRUCTURAL_MISMATCH", err)
		}
		return nil, err
	}
	for _, leaf := range leaves {
		if err := s.validator.ValidateDataPoint(dbc.Ctx, leaf.FieldID, leaf.Content); err != nil {
			return nil, err
		}
	}

	uploadTime := time.Now().UnixMilli()
	dataset := &domain.Dataset{
		ID:              uuid.New(),
		DataType:        req.DataType,
		CompanyID:       req.CompanyID,
		CompanyName:     req.CompanyName,
		ReportingPeriod: req.ReportingPeriod,
		UploaderID:      req.UploaderID,
		UploadTime:      uploadTime,
	}

	var created []*domain.DataPoint
	pointIDs := map[string]uuid.UUID{}
	// in document order, so rows and events come out deterministic
	for _, fieldID := range frameworkSpec.FieldIDs() {
		leaf, ok := leaves[fieldID]
		if !ok {
			continue
		}
		point := &domain.DataPoint{
			ID:              uuid.New(),
			DataPointType:   leaf.FieldID,
			Content:         datatypes.JSON(leaf.Content),
			CompanyID:       req.CompanyID,
			ReportingPeriod: req.ReportingPeriod,
			UploaderID:      req.UploaderID,
			UploadTime:      uploadTime,
		}
		created = append(created, point)
		pointIDs[leaf.FieldID] = point.ID
	}

	entry := &domain.CompositionEntry{DatasetID: dataset.ID}
	if err := entry.SetDataPointIDs(pointIDs); err != nil {
		return nil, err
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err = transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.datasets.Create(dbc.Ctx, tx, []*domain.Dataset{dataset}); err != nil {
			return err
		}
		if _, err := s.points.Create(dbc.Ctx, tx, created); err != nil {
			return err
		}
		_, err := s.compositions.Create(dbc.Ctx, tx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}

	correlationID := uuid.New()
	for _, point := range created {
		payload := events.DataPointUploadedPayload{
			DataPointID:     point.ID,
			DataPointType:   point.DataPointType,
			CompanyID:       point.CompanyID,
			CompanyName:     req.CompanyName,
			ReportingPeriod: point.ReportingPeriod,
			UploaderID:      point.UploaderID,
			UploadTime:      point.UploadTime,
			InitialQa:       req.InitialQa,
		}
		env, err := events.NewEnvelope(events.RoutingKeyDataPointUploaded, correlationID, payload)
		if err != nil {
			return nil, err
		}
		if err := s.bus.Publish(dbc.Ctx, events.RoutingKeyDataPointUploaded, env); err != nil {
			s.log.Error("publish data point uploaded failed",
				"data_point_id", point.ID, "correlation_id", correlationID, "error", err)
			return dataset, err
		}
	}

	s.log.Info("dataset stored",
		"dataset_id", dataset.ID,
		"data_type", dataset.DataType,
		"company_id", dataset.CompanyID,
		"reporting_period", dataset.ReportingPeriod,
		"data_points", len(created))
	return dataset, nil
}

func (s *datasetService) GetDataset(dbc dbctx.Context, datasetID uuid.UUID) (*domain.Dataset, error) {
	dataset, err := s.datasets.GetByID(dbc.Ctx, dbc.Tx, datasetID)
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return nil, apierr.NotFound("DATASET_NOT_FOUND", fmt.Errorf("dataset %s", datasetID))
	}
	return dataset, nil
}

func (s *datasetService) GetDatasetData(dbc dbctx.Context, datasetID uuid.UUID) (json.RawMessage, error) {
	dataset, err := s.GetDataset(dbc, datasetID)
	if err != nil {
		return nil, err
	}
	pointIDs, err := s.GetDataPointIDs(dbc, datasetID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(pointIDs))
	for _, id := range pointIDs {
		ids = append(ids, id)
	}
	points, err := s.points.GetByIDs(dbc.Ctx, dbc.Tx, ids)
	if err != nil {
		return nil, err
	}
	fragments := map[string]json.RawMessage{}
	for _, point := range points {
		fragments[point.DataPointType] = json.RawMessage(point.Content)
	}

	frameworkSpec, err := s.registry.Get(dbc.Ctx, dataset.DataType)
	if err != nil {
		return nil, err
	}
	return spec.HydrateMap(frameworkSpec, fragments)
}

func (s *datasetService) GetDataPointIDs(dbc dbctx.Context, datasetID uuid.UUID) (map[string]uuid.UUID, error) {
	entry, err := s.compositions.GetByDatasetID(dbc.Ctx, dbc.Tx, datasetID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apierr.NotFound("COMPOSITION_NOT_FOUND",
			fmt.Errorf("dataset %s was not stored in decomposed form", datasetID))
	}
	return entry.DataPointIDs()
}

func (s *datasetService) DeleteDataset(dbc dbctx.Context, datasetID uuid.UUID) error {
	dataset, err := s.GetDataset(dbc, datasetID)
	if err != nil {
		return err
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	if err := transaction.WithContext(dbc.Ctx).Delete(&domain.Dataset{}, "id = ?", dataset.ID).Error; err != nil {
		return err
	}

	env, err := events.NewEnvelope(events.RoutingKeyDatasetDeleted, uuid.New(),
		events.DatasetDeletedPayload{DatasetID: dataset.ID})
	if err != nil {
		return err
	}
	if err := s.bus.Publish(dbc.Ctx, events.RoutingKeyDatasetDeleted, env); err != nil {
		s.log.Error("publish dataset deleted failed", "dataset_id", dataset.ID, "error", err)
		return err
	}
	s.log.Info("dataset deleted", "dataset_id", dataset.ID)
	return nil
}
