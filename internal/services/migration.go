package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/data/repos"
	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
	"github.com/yungbote/esgledger-backend/internal/platform/dbctx"
	"github.com/yungbote/esgledger-backend/internal/platform/logger"
)

// MigrationService rewrites legacy monolithic dataset QA reports into the
// decomposed form. Migration is idempotent: a payload that already is an id
// array is left alone, so re-running over the whole table is safe.
type MigrationService interface {
	// MigrateDatasetReport decomposes one report. Returns false when the
	// report was already in decomposed form.
	MigrateDatasetReport(dbc dbctx.Context, reportID uuid.UUID) (bool, error)
	// MigrateAllForDataset migrates every report of a dataset and returns how
	// many were actually rewritten.
	MigrateAllForDataset(dbc dbctx.Context, datasetID uuid.UUID) (int, error)
}

type migrationService struct {
	db  *gorm.DB
	log *logger.Logger

	registry       SpecRegistry
	compositions   repos.CompositionRepo
	datasetReports repos.DatasetQaReportRepo
	pointReports   repos.DataPointQaReportRepo
}

func NewMigrationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	registry SpecRegistry,
	compositions repos.CompositionRepo,
	datasetReports repos.DatasetQaReportRepo,
	pointReports repos.DataPointQaReportRepo,
) MigrationService {
	return &migrationService{
		db:             db,
		log:            baseLog.With("service", "MigrationService"),
		registry:       registry,
		compositions:   compositions,
		datasetReports: datasetReports,
		pointReports:   pointReports,
	}
}

func (s *migrationService) MigrateDatasetReport(dbc dbctx.Context, reportID uuid.UUID) (bool, error) {
	report, err := s.datasetReports.GetByID(dbc.Ctx, dbc.Tx, reportID)
	if err != nil {
		return false, err
	}
	if report == nil {
		return false, apierr.NotFound("QA_REPORT_NOT_FOUND", fmt.Errorf("dataset qa report %s", reportID))
	}
	if _, ok := decodeReportIDs(report.Report); ok {
		return false, nil
	}

	var legacy map[string]QaReportEntry
	if err := json.Unmarshal(report.Report, &legacy); err != nil {
		return false, fmt.Errorf("report %s has a malformed legacy payload: %w", reportID, err)
	}

	entry, err := s.compositions.GetByDatasetID(dbc.Ctx, dbc.Tx, report.DatasetID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, apierr.InvariantViolation("NOT_A_COMPOSED_DATASET",
			fmt.Errorf("dataset %s of report %s has no composition entry", report.DatasetID, reportID))
	}
	pointIDs, err := entry.DataPointIDs()
	if err != nil {
		return false, err
	}

	frameworkSpec, err := s.registry.Get(dbc.Ctx, report.DataType)
	if err != nil {
		return false, err
	}

	// During migration fields outside the specification or outside the dataset
	// are only warned about; the same condition on a live submission is a hard
	// validation error. Legacy data must migrate even when imperfect.
	var pointReports []*domain.DataPointQaReport
	for _, fieldID := range frameworkSpec.FieldIDs() {
		reportEntry, ok := legacy[fieldID]
		if !ok {
			continue
		}
		delete(legacy, fieldID)
		pointID, ok := pointIDs[fieldID]
		if !ok {
			s.log.Warn("legacy report entry has no data point, skipping",
				"report_id", reportID, "field_id", fieldID)
			continue
		}
		pointReports = append(pointReports, &domain.DataPointQaReport{
			ID:            uuid.New(),
			DataPointID:   pointID,
			DataPointType: fieldID,
			ReporterID:    report.ReporterID,
			UploadTime:    report.UploadTime,
			Active:        report.Active,
			Verdict:       reportEntry.Verdict,
			Comment:       reportEntry.Comment,
			CorrectedData: datatypes.JSON(reportEntry.CorrectedData),
		})
	}
	for fieldID := range legacy {
		s.log.Warn("legacy report entry outside the specification, skipping",
			"report_id", reportID, "field_id", fieldID)
	}

	reportIDs := make([]uuid.UUID, 0, len(pointReports))
	for _, pointReport := range pointReports {
		reportIDs = append(reportIDs, pointReport.ID)
	}
	payload, err := json.Marshal(reportIDs)
	if err != nil {
		return false, err
	}

	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	err = transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.pointReports.Create(dbc.Ctx, tx, pointReports); err != nil {
			return err
		}
		return s.datasetReports.UpdateReport(dbc.Ctx, tx, report.ID, datatypes.JSON(payload))
	})
	if err != nil {
		return false, err
	}

	s.log.Info("dataset qa report migrated",
		"report_id", report.ID, "dataset_id", report.DatasetID, "fields", len(pointReports))
	return true, nil
}

func (s *migrationService) MigrateAllForDataset(dbc dbctx.Context, datasetID uuid.UUID) (int, error) {
	reports, err := s.datasetReports.GetByDatasetID(dbc.Ctx, dbc.Tx, datasetID)
	if err != nil {
		return 0, err
	}
	migrated := 0
	for _, report := range reports {
		changed, err := s.MigrateDatasetReport(dbc, report.ID)
		if err != nil {
			return migrated, err
		}
		if changed {
			migrated++
		}
	}
	return migrated, nil
}
