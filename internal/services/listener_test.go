package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/esgledger-backend/internal/domain"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
)

func uploadedEnvelope(t *testing.T, payload events.DataPointUploadedPayload) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(events.RoutingKeyDataPointUploaded, uuid.New(), payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func TestListenerInitialQa(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source, sourceIDs := storeTestDataset(t, env)

	// the source equity point has an accepted verdict to inherit
	if _, err := env.review.ReviewDataPoints(env.dbc, uuid.New(), []DataPointReview{
		{DataPointID: sourceIDs["extendedCurrencyEquity"], Status: domain.QaStatusAccepted},
	}); err != nil {
		t.Fatalf("ReviewDataPoints: %v", err)
	}

	newPoint := func() uuid.UUID { return uuid.New() }

	inherited := newPoint()
	err := env.listener.handleDataPointUploaded(ctx, uploadedEnvelope(t, events.DataPointUploadedPayload{
		DataPointID:     inherited,
		DataPointType:   "extendedCurrencyEquity",
		CompanyID:       source.CompanyID,
		ReportingPeriod: "2025",
		UploaderID:      uuid.New(),
		UploadTime:      500,
		InitialQa:       events.InitialQa{CopyFromDatasetID: &source.ID},
	}))
	if err != nil {
		t.Fatalf("handleDataPointUploaded: %v", err)
	}
	status, err := env.review.CurrentStatus(env.dbc, inherited)
	if err != nil || status.Status != domain.QaStatusAccepted {
		t.Fatalf("inherited status: %v err=%v", status, err)
	}

	// the source debt point was never reviewed, so inheritance falls back
	fallback := newPoint()
	err = env.listener.handleDataPointUploaded(ctx, uploadedEnvelope(t, events.DataPointUploadedPayload{
		DataPointID:     fallback,
		DataPointType:   "extendedCurrencyDebt",
		CompanyID:       source.CompanyID,
		ReportingPeriod: "2025",
		UploaderID:      uuid.New(),
		UploadTime:      500,
		InitialQa:       events.InitialQa{CopyFromDatasetID: &source.ID},
	}))
	if err != nil {
		t.Fatalf("handleDataPointUploaded fallback: %v", err)
	}
	status, err = env.review.CurrentStatus(env.dbc, fallback)
	if err != nil || status.Status != domain.QaStatusPending {
		t.Fatalf("fallback status: %v err=%v", status, err)
	}

	// preset status wins over everything
	preset := domain.QaStatusAccepted
	presetPoint := newPoint()
	err = env.listener.handleDataPointUploaded(ctx, uploadedEnvelope(t, events.DataPointUploadedPayload{
		DataPointID:     presetPoint,
		DataPointType:   "extendedCurrencyDebt",
		CompanyID:       source.CompanyID,
		ReportingPeriod: "2025",
		UploaderID:      uuid.New(),
		UploadTime:      500,
		InitialQa:       events.InitialQa{PresetStatus: &preset},
	}))
	if err != nil {
		t.Fatalf("handleDataPointUploaded preset: %v", err)
	}
	status, err = env.review.CurrentStatus(env.dbc, presetPoint)
	if err != nil || status.Status != domain.QaStatusAccepted {
		t.Fatalf("preset status: %v err=%v", status, err)
	}
}

func TestListenerDatasetDeletedCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
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
	kept := store()
	doomed := store()

	if _, err := env.review.ReviewDataset(env.dbc, reviewerID, kept.ID, domain.QaStatusAccepted, nil, true); err != nil {
		t.Fatalf("accept kept: %v", err)
	}
	if _, err := env.review.ReviewDataset(env.dbc, reviewerID, doomed.ID, domain.QaStatusAccepted, nil, true); err != nil {
		t.Fatalf("accept doomed: %v", err)
	}
	if _, err := env.qaReport.CreateForDataset(env.dbc, reviewerID, doomed.ID, map[string]QaReportEntry{
		"extendedCurrencyEquity": {Verdict: domain.QaVerdictAccepted},
	}); err != nil {
		t.Fatalf("CreateForDataset: %v", err)
	}

	doomedPointIDs, err := env.dataset.GetDataPointIDs(env.dbc, doomed.ID)
	if err != nil {
		t.Fatalf("GetDataPointIDs: %v", err)
	}

	env.bus.reset()
	deleteEnv, err := events.NewEnvelope(events.RoutingKeyDatasetDeleted, uuid.New(),
		events.DatasetDeletedPayload{DatasetID: doomed.ID})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := env.listener.handleDatasetDeleted(ctx, deleteEnv); err != nil {
		t.Fatalf("handleDatasetDeleted: %v", err)
	}

	// everything belonging to the dataset is gone
	if entry, err := env.compositions.GetByDatasetID(ctx, nil, doomed.ID); err != nil || entry != nil {
		t.Fatalf("composition should be gone: %v err=%v", entry, err)
	}
	for _, pointID := range doomedPointIDs {
		if point, err := env.points.GetByID(ctx, nil, pointID); err != nil || point != nil {
			t.Fatalf("data point %s should be gone: %v err=%v", pointID, point, err)
		}
	}
	if reports, err := env.datasetReports.GetByDatasetID(ctx, nil, doomed.ID); err != nil || len(reports) != 0 {
		t.Fatalf("qa reports should be gone: len=%d err=%v", len(reports), err)
	}
	if _, err := env.review.CurrentStatus(env.dbc, doomed.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("ledger rows should be gone, got %v", err)
	}

	// exactly one notification, naming the surviving dataset as active
	changes := env.bus.envelopes(events.RoutingKeyQaStatusChanged)
	if len(changes) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(changes))
	}
	var payload events.QaStatusChangePayload
	if err := json.Unmarshal(changes[0].Payload, &payload); err != nil {
		t.Fatalf("status change payload: %v", err)
	}
	if payload.SubjectID != doomed.ID {
		t.Fatalf("notification names subject %v, want %v", payload.SubjectID, doomed.ID)
	}
	if payload.CurrentlyActiveID == nil || *payload.CurrentlyActiveID != kept.ID {
		t.Fatalf("notification should name the surviving dataset, got %v", payload.CurrentlyActiveID)
	}

	// the kept dataset is untouched
	if _, err := env.dataset.GetDatasetData(env.dbc, kept.ID); err != nil {
		t.Fatalf("kept dataset unreadable after cascade: %v", err)
	}
}
