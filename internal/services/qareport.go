package services

import (
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

// QaReportEntry is the reviewer's verdict over one field of a dataset report,
// or over one standalone data point.
type QaReportEntry struct {
	Verdict       domain.QaVerdict `json:"verdict"`
	Comment       *string          `json:"comment,omitempty"`
	CorrectedData json.RawMessage  `json:"correctedData,omitempty"`
}

// DatasetQaReportView is a dataset report with its per-field entries
// recomposed into the framework shape.
type DatasetQaReportView struct {
	ID         uuid.UUID       `json:"id"`
	DatasetID  uuid.UUID       `json:"dataset_id"`
	DataType   string          `json:"data_type"`
	ReporterID uuid.UUID       `json:"reporter_id"`
	UploadTime int64           `json:"upload_time"`
	Active     bool            `json:"active"`
	Report     json.RawMessage `json:"report"`
}

// QaReportService stores reviewer reports. Dataset reports over decomposed
// datasets are themselves decomposed: the dataset row only keeps the ids of
// the per-field reports.
type QaReportService interface {
	// CreateForDataset stores a dataset report given as a flat map of field id
	// to entry. Field ids outside the framework specification reject the whole
	// report. A verdict of QaNotAttempted is stored but writes no ledger
	// record.
	CreateForDataset(dbc dbctx.Context, reporterID, datasetID uuid.UUID, report map[string]QaReportEntry) (*domain.DatasetQaReport, error)
	GetForDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*DatasetQaReportView, error)
	// SetActive flips a dataset report's active flag and cascades to the
	// per-field reports it references.
	SetActive(dbc dbctx.Context, reportID uuid.UUID, active bool) error
	CreateForDataPoint(dbc dbctx.Context, reporterID, dataPointID uuid.UUID, entry QaReportEntry) (*domain.DataPointQaReport, error)
}

type qaReportService struct {
	db  *gorm.DB
	log *logger.Logger

	registry       SpecRegistry
	datasets       repos.DatasetRepo
	points         repos.DataPointRepo
	compositions   repos.CompositionRepo
	datasetReports repos.DatasetQaReportRepo
	pointReports   repos.DataPointQaReportRepo
	ledger         repos.QaReviewRepo
	validator      DataPointValidator
	bus            events.Bus
}

func NewQaReportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry SpecRegistry,
	datasets repos.DatasetRepo,
	points repos.DataPointRepo,
	compositions repos.CompositionRepo,
	datasetReports repos.DatasetQaReportRepo,
	pointReports repos.DataPointQaReportRepo,
	ledger repos.QaReviewRepo,
	validator DataPointValidator,
	bus events.Bus,
) QaReportService {
	return &qaReportService{
		db:             db,
		log:            baseLog.With("service", "QaReportService"),
		registry:       registry,
		datasets:       datasets,
		points:         points,
		compositions:   compositions,
		datasetReports: datasetReports,
		pointReports:   pointReports,
		ledger:         ledger,
		validator:      validator,
		bus:            bus,
	}
}

func (s *qaReportService) CreateForDataset(dbc dbctx.Context, reporterID, datasetID uuid.UUID, report map[string]QaReportEntry) (*domain.DatasetQaReport, error) {
	if reporterID == uuid.Nil {
		return nil, apierr.Validation("MISSING_REPORTER_ID", errors.New("reporter id required"))
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

	frameworkSpec, err := s.registry.Get(dbc.Ctx, dataset.DataType)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(report))
	for fieldID := range report {
		keys = append(keys, fieldID)
	}
	if unknown := frameworkSpec.UnknownFieldIDs(keys); len(unknown) > 0 {
		return nil, apierr.Validation("UNEXPECTED_FIELDS", &spec.UnexpectedFieldError{FieldIDs: unknown})
	}

	uploadTime := time.Now().UnixMilli()
	correlationID := uuid.New()

	var pointReports []*domain.DataPointQaReport
	var ledgerRecords []*domain.QaReviewRecord
	// walk in specification order so ids and records come out deterministic
	for _, fieldID := range frameworkSpec.FieldIDs() {
		reportEntry, ok := report[fieldID]
		if !ok {
			continue
		}
		pointID, ok := pointIDs[fieldID]
		if !ok {
			return nil, apierr.Validation("FIELD_NOT_IN_DATASET",
				fmt.Errorf("field %q was not part of dataset %s", fieldID, datasetID))
		}
		if len(reportEntry.CorrectedData) > 0 {
			if err := s.validator.ValidateDataPoint(dbc.Ctx, fieldID, reportEntry.CorrectedData); err != nil {
				if errors.Is(err, apierr.ErrValidation) {
					return nil, apierr.Validation("INVALID_CORRECTED_VALUE",
						fmt.Errorf("corrected value for field %q: %w", fieldID, err))
				}
				return nil, err
			}
		}

		pointReports = append(pointReports, &domain.DataPointQaReport{
			ID:            uuid.New(),
			DataPointID:   pointID,
			DataPointType: fieldID,
			ReporterID:    reporterID,
			UploadTime:    uploadTime,
			Active:        true,
			Verdict:       reportEntry.Verdict,
			Comment:       reportEntry.Comment,
			CorrectedData: datatypes.JSON(reportEntry.CorrectedData),
		})
		if status, ok := reportEntry.Verdict.ToQaStatus(); ok {
			ledgerRecords = append(ledgerRecords, &domain.QaReviewRecord{
				ID:              uuid.New(),
				SubjectID:       pointID,
				SubjectType:     domain.SubjectTypeDataPoint,
				DataType:        fieldID,
				CompanyID:       dataset.CompanyID,
				CompanyName:     dataset.CompanyName,
				ReportingPeriod: dataset.ReportingPeriod,
				Status:          status,
				Comment:         reportEntry.Comment,
				ReviewerID:      reporterID,
				Timestamp:       uploadTime,
				CorrelationID:   correlationID,
			})
		}
	}

	reportIDs := make([]uuid.UUID, 0, len(pointReports))
	for _, pointReport := range pointReports {
		reportIDs = append(reportIDs, pointReport.ID)
	}
	payload, err := json.Marshal(reportIDs)
	if err != nil {
		return nil, err
	}
	datasetReport := &domain.DatasetQaReport{
		ID:         uuid.New(),
		DatasetID:  dataset.ID,
		DataType:   dataset.DataType,
		ReporterID: reporterID,
		UploadTime: uploadTime,
		Active:     true,
		Report:     datatypes.JSON(payload),
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err = transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		for _, pointReport := range pointReports {
			if err := s.pointReports.MarkAllInactiveByDataPointIDAndReporter(dbc.Ctx, tx, pointReport.DataPointID, reporterID); err != nil {
				return err
			}
		}
		if _, err := s.pointReports.Create(dbc.Ctx, tx, pointReports); err != nil {
			return err
		}
		if err := s.datasetReports.MarkAllInactiveByDatasetIDAndReporter(dbc.Ctx, tx, dataset.ID, reporterID); err != nil {
			return err
		}
		if _, err := s.datasetReports.Create(dbc.Ctx, tx, datasetReport); err != nil {
			return err
		}
		_, err := s.ledger.Create(dbc.Ctx, tx, ledgerRecords)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("dataset qa report stored",
		"dataset_id", dataset.ID,
		"report_id", datasetReport.ID,
		"fields", len(pointReports),
		"correlation_id", correlationID)
	publishStatusChanges(dbc, s.log, s.ledger, s.bus, ledgerRecords)
	return datasetReport, nil
}

func (s *qaReportService) GetForDataset(dbc dbctx.Context, datasetID uuid.UUID) ([]*DatasetQaReportView, error) {
	reports, err := s.datasetReports.GetByDatasetID(dbc.Ctx, dbc.Tx, datasetID)
	if err != nil {
		return nil, err
	}
	views := make([]*DatasetQaReportView, 0, len(reports))
	for _, report := range reports {
		hydrated, err := s.hydrateReport(dbc, report)
		if err != nil {
			return nil, err
		}
		views = append(views, &DatasetQaReportView{
			ID:         report.ID,
			DatasetID:  report.DatasetID,
			DataType:   report.DataType,
			ReporterID: report.ReporterID,
			UploadTime: report.UploadTime,
			Active:     report.Active,
			Report:     hydrated,
		})
	}
	return views, nil
}

// hydrateReport recomposes the per-field entries into the framework shape.
// Legacy reports created before decomposition hold the monolithic object and
// pass through unchanged.
func (s *qaReportService) hydrateReport(dbc dbctx.Context, report *domain.DatasetQaReport) (json.RawMessage, error) {
	ids, ok := decodeReportIDs(report.Report)
	if !ok {
		return json.RawMessage(report.Report), nil
	}
	pointReports, err := s.pointReports.GetByIDs(dbc.Ctx, dbc.Tx, ids)
	if err != nil {
		return nil, err
	}
	fragments := map[string]json.RawMessage{}
	for _, pointReport := range pointReports {
		raw, err := json.Marshal(QaReportEntry{
			Verdict:       pointReport.Verdict,
			Comment:       pointReport.Comment,
			CorrectedData: json.RawMessage(pointReport.CorrectedData),
		})
		if err != nil {
			return nil, err
		}
		fragments[pointReport.DataPointType] = raw
	}

	frameworkSpec, err := s.registry.Get(dbc.Ctx, report.DataType)
	if err != nil {
		return nil, err
	}
	return spec.HydrateMap(frameworkSpec, fragments)
}

func (s *qaReportService) SetActive(dbc dbctx.Context, reportID uuid.UUID, active bool) error {
	report, err := s.datasetReports.GetByID(dbc.Ctx, dbc.Tx, reportID)
	if err != nil {
		return err
	}
	if report == nil {
		return apierr.NotFound("QA_REPORT_NOT_FOUND", fmt.Errorf("dataset qa report %s", reportID))
	}
	ids, _ := decodeReportIDs(report.Report)

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.datasetReports.UpdateActive(dbc.Ctx, tx, report.ID, active); err != nil {
			return err
		}
		return s.pointReports.UpdateActiveByIDs(dbc.Ctx, tx, ids, active)
	})
}

func (s *qaReportService) CreateForDataPoint(dbc dbctx.Context, reporterID, dataPointID uuid.UUID, entry QaReportEntry) (*domain.DataPointQaReport, error) {
	if reporterID == uuid.Nil {
		return nil, apierr.Validation("MISSING_REPORTER_ID", errors.New("reporter id required"))
	}
	point, err := s.points.GetByID(dbc.Ctx, dbc.Tx, dataPointID)
	if err != nil {
		return nil, err
	}
	if point == nil {
		return nil, apierr.NotFound("DATA_POINT_NOT_FOUND", fmt.Errorf("data point %s", dataPointID))
	}
	if len(entry.CorrectedData) > 0 {
		if err := s.validator.ValidateDataPoint(dbc.Ctx, point.DataPointType, entry.CorrectedData); err != nil {
			if errors.Is(err, apierr.ErrValidation) {
				return nil, apierr.Validation("INVALID_CORRECTED_VALUE",
					fmt.Errorf("corrected value for data point %s: %w", dataPointID, err))
			}
			return nil, err
		}
	}

	uploadTime := time.Now().UnixMilli()
	correlationID := uuid.New()
	pointReport := &domain.DataPointQaReport{
		ID:            uuid.New(),
		DataPointID:   point.ID,
		DataPointType: point.DataPointType,
		ReporterID:    reporterID,
		UploadTime:    uploadTime,
		Active:        true,
		Verdict:       entry.Verdict,
		Comment:       entry.Comment,
		CorrectedData: datatypes.JSON(entry.CorrectedData),
	}
	var ledgerRecords []*domain.QaReviewRecord
	if status, ok := entry.Verdict.ToQaStatus(); ok {
		ledgerRecords = append(ledgerRecords, &domain.QaReviewRecord{
			ID:              uuid.New(),
			SubjectID:       point.ID,
			SubjectType:     domain.SubjectTypeDataPoint,
			DataType:        point.DataPointType,
			CompanyID:       point.CompanyID,
			ReportingPeriod: point.ReportingPeriod,
			Status:          status,
			Comment:         entry.Comment,
			ReviewerID:      reporterID,
			Timestamp:       uploadTime,
			CorrelationID:   correlationID,
		})
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err = transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.pointReports.MarkAllInactiveByDataPointIDAndReporter(dbc.Ctx, tx, point.ID, reporterID); err != nil {
			return err
		}
		if _, err := s.pointReports.Create(dbc.Ctx, tx, []*domain.DataPointQaReport{pointReport}); err != nil {
			return err
		}
		_, err := s.ledger.Create(dbc.Ctx, tx, ledgerRecords)
		return err
	})
	if err != nil {
		return nil, err
	}

	publishStatusChanges(dbc, s.log, s.ledger, s.bus, ledgerRecords)
	return pointReport, nil
}

// decodeReportIDs probes whether a dataset report payload is the decomposed
// form, a JSON array of per-field report ids.
func decodeReportIDs(raw datatypes.JSON) ([]uuid.UUID, bool) {
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	return ids, true
}
