package services

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
)

func storeTestDataset(t *testing.T, env *testEnv) (*domain.Dataset, map[string]uuid.UUID) {
	t.Helper()
	dataset, err := env.dataset.StoreDataset(env.dbc, StoreDatasetRequest{
		DataType:        testFramework,
		CompanyID:       uuid.New(),
		CompanyName:     "Acme AG",
		ReportingPeriod: "2024",
		UploaderID:      uuid.New(),
		Data:            json.RawMessage(testDocument),
	})
	if err != nil {
		t.Fatalf("StoreDataset: %v", err)
	}
	ids, err := env.dataset.GetDataPointIDs(env.dbc, dataset.ID)
	if err != nil {
		t.Fatalf("GetDataPointIDs: %v", err)
	}
	return dataset, ids
}

func TestReviewDatasetPendingOnlyThenOverwrite(t *testing.T) {
	env := newTestEnv(t)
	dataset, ids := storeTestDataset(t, env)
	reviewerID := uuid.New()

	// seed: equity already Accepted, debt already Rejected, fiscal year end
	// untouched
	_, err := env.review.ReviewDataPoints(env.dbc, reviewerID, []DataPointReview{
		{DataPointID: ids["extendedCurrencyEquity"], Status: domain.QaStatusAccepted},
		{DataPointID: ids["extendedCurrencyDebt"], Status: domain.QaStatusRejected},
	})
	if err != nil {
		t.Fatalf("ReviewDataPoints: %v", err)
	}

	env.bus.reset()
	records, err := env.review.ReviewDataset(env.dbc, reviewerID, dataset.ID, domain.QaStatusAccepted, nil, false)
	if err != nil {
		t.Fatalf("ReviewDataset pending-only: %v", err)
	}
	// dataset itself plus the one still-pending data point
	if len(records) != 2 {
		t.Fatalf("pending-only review: expected 2 records, got %d", len(records))
	}
	subjects := map[uuid.UUID]bool{}
	for _, record := range records {
		subjects[record.SubjectID] = true
		if record.Timestamp != records[0].Timestamp || record.CorrelationID != records[0].CorrelationID {
			t.Fatalf("records of one call must share timestamp and correlation id")
		}
	}
	if !subjects[dataset.ID] || !subjects[ids["extendedDateFiscalYearEnd"]] {
		t.Fatalf("pending-only review touched the wrong subjects: %v", subjects)
	}

	// equity and debt keep their earlier verdicts
	equityStatus, err := env.review.CurrentStatus(env.dbc, ids["extendedCurrencyEquity"])
	if err != nil || equityStatus.Status != domain.QaStatusAccepted {
		t.Fatalf("equity status: %v, err %v", equityStatus, err)
	}
	debtStatus, err := env.review.CurrentStatus(env.dbc, ids["extendedCurrencyDebt"])
	if err != nil || debtStatus.Status != domain.QaStatusRejected {
		t.Fatalf("debt status: %v, err %v", debtStatus, err)
	}

	// one notification per reviewed dimension combination
	changes := env.bus.envelopes(events.RoutingKeyQaStatusChanged)
	if len(changes) != 2 {
		t.Fatalf("pending-only review: expected 2 notifications, got %d", len(changes))
	}

	records, err = env.review.ReviewDataset(env.dbc, reviewerID, dataset.ID, domain.QaStatusRejected, nil, true)
	if err != nil {
		t.Fatalf("ReviewDataset overwrite: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("overwrite review: expected 4 records, got %d", len(records))
	}
	equityStatus, err = env.review.CurrentStatus(env.dbc, ids["extendedCurrencyEquity"])
	if err != nil || equityStatus.Status != domain.QaStatusRejected {
		t.Fatalf("equity status after overwrite: %v, err %v", equityStatus, err)
	}
}

func TestReviewDatasetRequiresComposition(t *testing.T) {
	env := newTestEnv(t)

	// a metadata row without a composition entry was never decomposed
	orphan := &domain.Dataset{
		ID:              uuid.New(),
		DataType:        testFramework,
		CompanyID:       uuid.New(),
		ReportingPeriod: "2024",
		UploaderID:      uuid.New(),
		UploadTime:      100,
	}
	if _, err := env.datasets.Create(env.dbc.Ctx, nil, []*domain.Dataset{orphan}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := env.review.ReviewDataset(env.dbc, uuid.New(), orphan.ID, domain.QaStatusAccepted, nil, false)
	if !errors.Is(err, apierr.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestCurrentlyActiveSwitchesBack(t *testing.T) {
	env := newTestEnv(t)
	reviewerID := uuid.New()

	companyID := uuid.New()
	store := func() *domain.Dataset {
		dataset, err := env.dataset.StoreDataset(env.dbc, StoreDatasetRequest{
			DataType:        testFramework,
			CompanyID:       companyID,
			ReportingPeriod: "2024",
			UploaderID:      uuid.New(),
			Data:            json.RawMessage(testDocument),
		})
		if err != nil {
			t.Fatalf("StoreDataset: %v", err)
		}
		return dataset
	}
	first := store()
	second := store()

	if _, err := env.review.ReviewDataset(env.dbc, reviewerID, first.ID, domain.QaStatusAccepted, nil, true); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	if _, err := env.review.ReviewDataset(env.dbc, reviewerID, second.ID, domain.QaStatusAccepted, nil, true); err != nil {
		t.Fatalf("accept second: %v", err)
	}

	active, err := env.review.CurrentlyActiveSubjectID(env.dbc, companyID, testFramework, "2024")
	if err != nil || active != second.ID {
		t.Fatalf("expected second dataset active, got %v err %v", active, err)
	}

	env.bus.reset()
	if _, err := env.review.ReviewDataset(env.dbc, reviewerID, second.ID, domain.QaStatusRejected, nil, true); err != nil {
		t.Fatalf("reject second: %v", err)
	}
	active, err = env.review.CurrentlyActiveSubjectID(env.dbc, companyID, testFramework, "2024")
	if err != nil || active != first.ID {
		t.Fatalf("expected first dataset active again, got %v err %v", active, err)
	}

	// the dataset-level notification must already name the replacement
	var datasetChange *events.QaStatusChangePayload
	for _, envlp := range env.bus.envelopes(events.RoutingKeyQaStatusChanged) {
		var payload events.QaStatusChangePayload
		if err := json.Unmarshal(envlp.Payload, &payload); err != nil {
			t.Fatalf("status change payload: %v", err)
		}
		if payload.SubjectID == second.ID {
			datasetChange = &payload
		}
	}
	if datasetChange == nil {
		t.Fatalf("no status change notification for the rejected dataset")
	}
	if datasetChange.CurrentlyActiveID == nil || *datasetChange.CurrentlyActiveID != first.ID {
		t.Fatalf("notification names wrong active dataset: %v", datasetChange.CurrentlyActiveID)
	}
}
