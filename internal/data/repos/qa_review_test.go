package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/esgledger-backend/internal/data/repos/testutil"
	"github.com/yungbote/esgledger-backend/internal/domain"
)

func TestQaReviewRepoLatestPerSubject(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewQaReviewRepo(db, testutil.Logger(t))

	companyID := uuid.New()
	subjectA := uuid.New()
	subjectB := uuid.New()
	reviewerID := uuid.New()

	record := func(subjectID uuid.UUID, status domain.QaStatus, timestamp int64) *domain.QaReviewRecord {
		return &domain.QaReviewRecord{
			ID:              uuid.New(),
			SubjectID:       subjectID,
			SubjectType:     domain.SubjectTypeDataset,
			DataType:        "eutaxonomy",
			CompanyID:       companyID,
			ReportingPeriod: "2024",
			Status:          status,
			ReviewerID:      reviewerID,
			Timestamp:       timestamp,
			CorrelationID:   uuid.New(),
		}
	}

	_, err := repo.Create(ctx, tx, []*domain.QaReviewRecord{
		record(subjectA, domain.QaStatusPending, 100),
		record(subjectA, domain.QaStatusAccepted, 200),
		record(subjectA, domain.QaStatusRejected, 300),
		record(subjectB, domain.QaStatusPending, 150),
		record(subjectB, domain.QaStatusAccepted, 250),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	latest, err := repo.GetLatestBySubjectID(ctx, tx, subjectA)
	if err != nil {
		t.Fatalf("GetLatestBySubjectID: %v", err)
	}
	if latest == nil || latest.Status != domain.QaStatusRejected || latest.Timestamp != 300 {
		t.Fatalf("GetLatestBySubjectID: got %+v", latest)
	}

	if missing, err := repo.GetLatestBySubjectID(ctx, tx, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetLatestBySubjectID for unknown subject: record=%v err=%v", missing, err)
	}

	byIDs, err := repo.GetLatestBySubjectIDs(ctx, tx, []uuid.UUID{subjectA, subjectB})
	if err != nil {
		t.Fatalf("GetLatestBySubjectIDs: %v", err)
	}
	if len(byIDs) != 2 {
		t.Fatalf("GetLatestBySubjectIDs: expected 2 entries, got %d", len(byIDs))
	}
	if byIDs[subjectA].Status != domain.QaStatusRejected || byIDs[subjectB].Status != domain.QaStatusAccepted {
		t.Fatalf("GetLatestBySubjectIDs: got %v / %v", byIDs[subjectA].Status, byIDs[subjectB].Status)
	}

	history, err := repo.GetBySubjectID(ctx, tx, subjectA)
	if err != nil {
		t.Fatalf("GetBySubjectID: %v", err)
	}
	if len(history) != 3 || history[0].Timestamp != 300 || history[2].Timestamp != 100 {
		t.Fatalf("GetBySubjectID: unexpected order %+v", history)
	}
}

func TestQaReviewRepoPendingQueue(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewQaReviewRepo(db, testutil.Logger(t))

	companyID := uuid.New()
	reviewerID := uuid.New()
	pendingSubject := uuid.New()
	decidedSubject := uuid.New()
	reopenedSubject := uuid.New()

	record := func(subjectID uuid.UUID, subjectType domain.SubjectType, status domain.QaStatus, timestamp int64) *domain.QaReviewRecord {
		return &domain.QaReviewRecord{
			ID:              uuid.New(),
			SubjectID:       subjectID,
			SubjectType:     subjectType,
			DataType:        "sfdr",
			CompanyID:       companyID,
			ReportingPeriod: "2023",
			Status:          status,
			ReviewerID:      reviewerID,
			Timestamp:       timestamp,
			CorrelationID:   uuid.New(),
		}
	}

	_, err := repo.Create(ctx, tx, []*domain.QaReviewRecord{
		record(pendingSubject, domain.SubjectTypeDataset, domain.QaStatusPending, 100),
		record(decidedSubject, domain.SubjectTypeDataset, domain.QaStatusPending, 110),
		record(decidedSubject, domain.SubjectTypeDataset, domain.QaStatusAccepted, 120),
		record(reopenedSubject, domain.SubjectTypeDataset, domain.QaStatusRejected, 130),
		record(reopenedSubject, domain.SubjectTypeDataset, domain.QaStatusPending, 140),
		// data point rows must not show up in the dataset queue
		record(uuid.New(), domain.SubjectTypeDataPoint, domain.QaStatusPending, 150),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	queue, err := repo.GetPending(ctx, tx, domain.SubjectTypeDataset)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(queue) != 2 {
		t.Fatalf("GetPending: expected 2 subjects, got %d", len(queue))
	}
	if queue[0].SubjectID != pendingSubject || queue[1].SubjectID != reopenedSubject {
		t.Fatalf("GetPending: unexpected order %v, %v", queue[0].SubjectID, queue[1].SubjectID)
	}
}

func TestQaReviewRepoCurrentlyActive(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewQaReviewRepo(db, testutil.Logger(t))

	companyID := uuid.New()
	reviewerID := uuid.New()
	olderAccepted := uuid.New()
	newerRejected := uuid.New()

	record := func(subjectID uuid.UUID, status domain.QaStatus, timestamp int64) *domain.QaReviewRecord {
		return &domain.QaReviewRecord{
			ID:              uuid.New(),
			SubjectID:       subjectID,
			SubjectType:     domain.SubjectTypeDataset,
			DataType:        "lksg",
			CompanyID:       companyID,
			ReportingPeriod: "2024",
			Status:          status,
			ReviewerID:      reviewerID,
			Timestamp:       timestamp,
			CorrelationID:   uuid.New(),
		}
	}

	_, err := repo.Create(ctx, tx, []*domain.QaReviewRecord{
		record(olderAccepted, domain.QaStatusAccepted, 100),
		record(newerRejected, domain.QaStatusAccepted, 200),
		record(newerRejected, domain.QaStatusRejected, 300),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// the newer dataset lost its acceptance, so the older one is active again
	active, err := repo.GetCurrentlyActiveSubjectID(ctx, tx, companyID, "lksg", "2024")
	if err != nil {
		t.Fatalf("GetCurrentlyActiveSubjectID: %v", err)
	}
	if active != olderAccepted {
		t.Fatalf("GetCurrentlyActiveSubjectID: expected %v, got %v", olderAccepted, active)
	}

	if none, err := repo.GetCurrentlyActiveSubjectID(ctx, tx, companyID, "lksg", "2020"); err != nil || none != uuid.Nil {
		t.Fatalf("GetCurrentlyActiveSubjectID without records: id=%v err=%v", none, err)
	}

	if err := repo.FullDeleteBySubjectIDs(ctx, tx, []uuid.UUID{olderAccepted, newerRejected}); err != nil {
		t.Fatalf("FullDeleteBySubjectIDs: %v", err)
	}
	if none, err := repo.GetCurrentlyActiveSubjectID(ctx, tx, companyID, "lksg", "2024"); err != nil || none != uuid.Nil {
		t.Fatalf("GetCurrentlyActiveSubjectID after delete: id=%v err=%v", none, err)
	}
}
