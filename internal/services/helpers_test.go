package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/esgledger-backend/internal/data/repos"
	"github.com/yungbote/esgledger-backend/internal/data/repos/testutil"
	"github.com/yungbote/esgledger-backend/internal/events"
	"github.com/yungbote/esgledger-backend/internal/platform/apierr"
	"github.com/yungbote/esgledger-backend/internal/platform/dbctx"
)

const testFramework = "eutaxonomy"

const testSchema = `{
	"general": {
		"fiscalYearEnd": {"id": "extendedDateFiscalYearEnd"}
	},
	"financials": {
		"equity": {"id": "extendedCurrencyEquity"},
		"debt": {"id": "extendedCurrencyDebt"}
	}
}`

type fakeBus struct {
	mu        sync.Mutex
	published map[string][]events.Envelope
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][]events.Envelope{}}
}

func (b *fakeBus) Publish(ctx context.Context, routingKey string, env events.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[routingKey] = append(b.published[routingKey], env)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, routingKey string, handler func(ctx context.Context, env events.Envelope) error) error {
	return nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) envelopes(routingKey string) []events.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]events.Envelope{}, b.published[routingKey]...)
}

func (b *fakeBus) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = map[string][]events.Envelope{}
}

// fakeSpecClient serves the test framework schema and rejects any fragment
// whose payload is the literal string "invalid".
type fakeSpecClient struct{}

func (fakeSpecClient) GetFrameworkSpecification(ctx context.Context, framework string) (json.RawMessage, error) {
	if framework != testFramework {
		return nil, apierr.NotFound("FRAMEWORK_NOT_FOUND", fmt.Errorf("unknown framework %q", framework))
	}
	return json.RawMessage(testSchema), nil
}

func (fakeSpecClient) ListFrameworkSpecifications(ctx context.Context) ([]string, error) {
	return []string{testFramework}, nil
}

func (fakeSpecClient) ValidateDataPoint(ctx context.Context, dataPointType string, content json.RawMessage) error {
	if bytes.Equal(bytes.TrimSpace(content), []byte(`"invalid"`)) {
		return apierr.Validation("DATA_POINT_INVALID", fmt.Errorf("data point of type %q rejected", dataPointType))
	}
	return nil
}

type testEnv struct {
	db  *gorm.DB
	dbc dbctx.Context
	bus *fakeBus

	datasets       repos.DatasetRepo
	points         repos.DataPointRepo
	compositions   repos.CompositionRepo
	ledger         repos.QaReviewRepo
	datasetReports repos.DatasetQaReportRepo
	pointReports   repos.DataPointQaReportRepo

	registry  SpecRegistry
	dataset   DatasetService
	review    ReviewService
	qaReport  QaReportService
	migration MigrationService
	listener  *qaEventListener
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	bus := newFakeBus()
	client := fakeSpecClient{}

	datasets := repos.NewDatasetRepo(db, log)
	points := repos.NewDataPointRepo(db, log)
	compositions := repos.NewCompositionRepo(db, log)
	ledger := repos.NewQaReviewRepo(db, log)
	datasetReports := repos.NewDatasetQaReportRepo(db, log)
	pointReports := repos.NewDataPointQaReportRepo(db, log)

	registry := NewSpecRegistry(client, log)
	return &testEnv{
		db:             db,
		dbc:            dbctx.Context{Ctx: context.Background()},
		bus:            bus,
		datasets:       datasets,
		points:         points,
		compositions:   compositions,
		ledger:         ledger,
		datasetReports: datasetReports,
		pointReports:   pointReports,
		registry:       registry,
		dataset:        NewDatasetService(db, log, registry, datasets, points, compositions, client, bus),
		review:         NewReviewService(db, log, ledger, datasets, points, compositions, bus),
		qaReport:       NewQaReportService(db, log, registry, datasets, points, compositions, datasetReports, pointReports, ledger, client, bus),
		migration:      NewMigrationService(db, log, registry, compositions, datasetReports, pointReports),
		listener:       NewQaEventListener(db, log, ledger, datasets, points, compositions, datasetReports, pointReports, bus).(*qaEventListener),
	}
}

const testDocument = `{
	"general": {
		"fiscalYearEnd": {"value": "2024-12-31"}
	},
	"financials": {
		"equity": {"value": 100, "currency": "EUR"},
		"debt": {"value": 200, "currency": "EUR"}
	}
}`
