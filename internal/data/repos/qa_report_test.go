package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/esgledger-backend/internal/data/repos/testutil"
	"github.com/yungbote/esgledger-backend/internal/domain"
)

func TestDatasetQaReportRepoSupersede(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewDatasetQaReportRepo(db, testutil.Logger(t))

	datasetID := uuid.New()
	reporterID := uuid.New()
	otherReporter := uuid.New()

	report := func(reporter uuid.UUID, uploadTime int64) *domain.DatasetQaReport {
		return &domain.DatasetQaReport{
			ID:         uuid.New(),
			DatasetID:  datasetID,
			DataType:   "eutaxonomy",
			ReporterID: reporter,
			UploadTime: uploadTime,
			Active:     true,
			Report:     datatypes.JSON([]byte("[]")),
		}
	}

	first := report(reporterID, 100)
	other := report(otherReporter, 150)
	for _, r := range []*domain.DatasetQaReport{first, other} {
		if _, err := repo.Create(ctx, tx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	// superseding report deactivates the same reporter's earlier one only
	if err := repo.MarkAllInactiveByDatasetIDAndReporter(ctx, tx, datasetID, reporterID); err != nil {
		t.Fatalf("MarkAllInactiveByDatasetIDAndReporter: %v", err)
	}
	second := report(reporterID, 200)
	if _, err := repo.Create(ctx, tx, second); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := repo.GetByDatasetID(ctx, tx, datasetID)
	if err != nil {
		t.Fatalf("GetByDatasetID: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("GetByDatasetID: expected 3 reports, got %d", len(rows))
	}
	active := map[uuid.UUID]bool{}
	for _, row := range rows {
		active[row.ID] = row.Active
	}
	if active[first.ID] || !active[second.ID] || !active[other.ID] {
		t.Fatalf("unexpected active flags: %+v", active)
	}

	if err := repo.UpdateReport(ctx, tx, second.ID, datatypes.JSON([]byte(`["`+uuid.New().String()+`"]`))); err != nil {
		t.Fatalf("UpdateReport: %v", err)
	}
	updated, err := repo.GetByID(ctx, tx, second.ID)
	if err != nil || updated == nil {
		t.Fatalf("GetByID: report=%v err=%v", updated, err)
	}
	if string(updated.Report) == "[]" {
		t.Fatalf("UpdateReport did not persist")
	}

	if err := repo.FullDeleteByDatasetIDs(ctx, tx, []uuid.UUID{datasetID}); err != nil {
		t.Fatalf("FullDeleteByDatasetIDs: %v", err)
	}
	if rows, err := repo.GetByDatasetID(ctx, tx, datasetID); err != nil || len(rows) != 0 {
		t.Fatalf("expected no reports after delete: len=%d err=%v", len(rows), err)
	}
}

func TestDataPointQaReportRepoActivation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewDataPointQaReportRepo(db, testutil.Logger(t))

	dataPointID := uuid.New()
	reporterID := uuid.New()

	first := &domain.DataPointQaReport{
		ID:            uuid.New(),
		DataPointID:   dataPointID,
		DataPointType: "extendedCurrencyEquity",
		ReporterID:    reporterID,
		UploadTime:    100,
		Active:        true,
		Verdict:       domain.QaVerdictAccepted,
	}
	if _, err := repo.Create(ctx, tx, []*domain.DataPointQaReport{first}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.MarkAllInactiveByDataPointIDAndReporter(ctx, tx, dataPointID, reporterID); err != nil {
		t.Fatalf("MarkAllInactiveByDataPointIDAndReporter: %v", err)
	}
	second := &domain.DataPointQaReport{
		ID:            uuid.New(),
		DataPointID:   dataPointID,
		DataPointType: "extendedCurrencyEquity",
		ReporterID:    reporterID,
		UploadTime:    200,
		Active:        true,
		Verdict:       domain.QaVerdictRejected,
	}
	if _, err := repo.Create(ctx, tx, []*domain.DataPointQaReport{second}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	rows, err := repo.GetByIDs(ctx, tx, []uuid.UUID{first.ID, second.ID})
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: len=%d err=%v", len(rows), err)
	}
	for _, row := range rows {
		if row.ID == first.ID && row.Active {
			t.Fatalf("first report should be inactive")
		}
		if row.ID == second.ID && !row.Active {
			t.Fatalf("second report should be active")
		}
	}

	// cascade from the dataset report flips both directions
	if err := repo.UpdateActiveByIDs(ctx, tx, []uuid.UUID{first.ID, second.ID}, false); err != nil {
		t.Fatalf("UpdateActiveByIDs: %v", err)
	}
	rows, err = repo.GetByIDs(ctx, tx, []uuid.UUID{first.ID, second.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	for _, row := range rows {
		if row.Active {
			t.Fatalf("report %s should be inactive after cascade", row.ID)
		}
	}

	if err := repo.FullDeleteByDataPointIDs(ctx, tx, []uuid.UUID{dataPointID}); err != nil {
		t.Fatalf("FullDeleteByDataPointIDs: %v", err)
	}
	if rows, err := repo.GetByIDs(ctx, tx, []uuid.UUID{first.ID, second.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("expected no reports after delete: len=%d err=%v", len(rows), err)
	}
}
