package service

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/pkg/config"
	apperrors "github.com/younes21/PastryLabManager-sub003/pkg/errors"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
	"github.com/younes21/PastryLabManager-sub003/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()

	ctx := context.Background()
	if !testing.Short() {
		var err error
		suite, err = testutil.NewIntegrationSuite(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start test infrastructure: %v\n", err)
			os.Exit(1)
		}
	}

	code := m.Run()

	if suite != nil {
		testutil.TerminateContainer(ctx)
	}
	os.Exit(code)
}

type testEnv struct {
	articleRepo *repository.ArticleRepository
	stockRepo   *repository.StockRepository
	resRepo     *repository.ReservationRepository
	lotRepo     *repository.LotRepository
	opRepo      *repository.OperationRepository
	available   *AvailabilityService
	lifecycle   *LifecycleService
}

func newTestEnv(t *testing.T) *testEnv {
	testutil.SkipIfShort(t)
	t.Helper()

	ctx := testutil.DefaultTestContext(t)
	suite.Reset(t, ctx)

	log := logger.New("test", "test")
	articleRepo := repository.NewArticleRepository(suite.DB)
	stockRepo := repository.NewStockRepository(suite.DB)
	resRepo := repository.NewReservationRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	opRepo := repository.NewOperationRepository(suite.DB)

	available := NewAvailabilityService(stockRepo, resRepo, nil, log)
	lotGen := NewLotGenerator(lotRepo, opRepo, config.LotConfig{
		AlertLeadTime:   72 * time.Hour,
		SequencePadding: 3,
	}, log)
	lifecycle := NewLifecycleService(
		suite.DB, opRepo, resRepo, stockRepo, lotRepo, articleRepo,
		available, lotGen, nil, log,
	)

	return &testEnv{
		articleRepo: articleRepo,
		stockRepo:   stockRepo,
		resRepo:     resRepo,
		lotRepo:     lotRepo,
		opRepo:      opRepo,
		available:   available,
		lifecycle:   lifecycle,
	}
}

// seedStock inserts an article, a zone, a lot and one ledger row
func seedStock(t *testing.T, ctx context.Context, quantity string, opts ...func(*testutil.ArticleFixture)) (testutil.ArticleFixture, testutil.ZoneFixture, testutil.LotFixture) {
	t.Helper()

	article := suite.Fixtures.Article(opts...)
	zone := suite.Fixtures.Zone()
	lot := suite.Fixtures.Lot(article.ID)

	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, article))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, zone))
	require.NoError(t, suite.Fixtures.InsertLot(ctx, suite.RawDB, lot))
	require.NoError(t, suite.Fixtures.InsertStock(ctx, suite.RawDB,
		suite.Fixtures.Stock(article.ID, &lot.ID, zone.ID, quantity)))

	return article, zone, lot
}

func TestReservationReducesAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{
				ArticleID:         article.ID,
				RequestedQuantity: dec("4"),
				Lines: []*AllocationLine{
					{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("4")},
				},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusDraft, detail.Operation.Status)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	avail, err := env.available.Availability(ctx, article.ID, AvailabilityOptions{})
	require.NoError(t, err)
	assert.True(t, avail.Summary.TotalStock.Equal(dec("10")))
	assert.True(t, avail.Summary.TotalReserved.Equal(dec("4")))
	assert.True(t, avail.Summary.TotalAvailable.Equal(dec("6")))
	assert.True(t, avail.ForCombination(&lot.ID, zone.ID).Equal(dec("6")))
}

func TestOverReservationRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")

	first, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("7"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("7")},
			}},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, first.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	second, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("8"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("8")},
			}},
		},
	})
	require.NoError(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, second.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_AVAILABILITY", appErr.Code)

	// The failed transition left nothing behind.
	got, err := env.lifecycle.Get(ctx, second.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusDraft, got.Operation.Status)
	assert.Empty(t, got.Reservations)
}

func TestEditingOperationExcludesOwnHolds(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("10"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("10")},
			}},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	// Everything is held now.
	avail, err := env.available.Availability(ctx, article.ID, AvailabilityOptions{})
	require.NoError(t, err)
	assert.True(t, avail.Summary.TotalAvailable.Equal(dec("0")))

	// Excluding the operation gives the picture its editor needs.
	avail, err = env.available.Availability(ctx, article.ID, AvailabilityOptions{
		ExcludeOperationID: &detail.Operation.ID,
	})
	require.NoError(t, err)
	assert.True(t, avail.Summary.TotalAvailable.Equal(dec("10")))

	// Shrinking the operation in place does not block on its own holds.
	_, err = env.lifecycle.Update(ctx, detail.Operation.ID, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("6"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("6")},
			}},
		},
	})
	require.NoError(t, err)

	avail, err = env.available.Availability(ctx, article.ID, AvailabilityOptions{})
	require.NoError(t, err)
	assert.True(t, avail.Summary.TotalReserved.Equal(dec("6")))
	assert.True(t, avail.Summary.TotalAvailable.Equal(dec("4")))
}

func TestInProgressDeliveryCanBeResized(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("7"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("7")},
			}},
		},
	})
	require.NoError(t, err)
	for _, status := range []string{repository.StatusPending, repository.StatusInProgress} {
		_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: status})
		require.NoError(t, err)
	}

	// The holds are still live while picking is underway, so a resize
	// re-places them against a snapshot excluding the old ones.
	_, err = env.lifecycle.Update(ctx, detail.Operation.ID, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("4"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("4")},
			}},
		},
	})
	require.NoError(t, err)

	avail, err := env.available.Availability(ctx, article.ID, AvailabilityOptions{})
	require.NoError(t, err)
	assert.True(t, avail.Summary.TotalReserved.Equal(dec("4")))
	assert.True(t, avail.Summary.TotalAvailable.Equal(dec("6")))
}

func TestPartialDeliveriesAccumulate(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("3"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("3")},
			}},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	reservations, err := env.resRepo.ListByOperation(ctx, detail.Operation.ID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	holdID := reservations[0].ID

	res, err := env.lifecycle.RecordDelivery(ctx, holdID, dec("1"))
	require.NoError(t, err)
	assert.True(t, res.DeliveredQuantity.Equal(dec("1")))
	assert.Equal(t, repository.ReservationActive, res.Status)

	res, err = env.lifecycle.RecordDelivery(ctx, holdID, dec("1"))
	require.NoError(t, err)
	assert.True(t, res.DeliveredQuantity.Equal(dec("2")))
	assert.Equal(t, repository.ReservationActive, res.Status)

	// Over-delivering the remainder is rejected.
	_, err = env.lifecycle.RecordDelivery(ctx, holdID, dec("1.5"))
	require.Error(t, err)

	res, err = env.lifecycle.RecordDelivery(ctx, holdID, dec("1"))
	require.NoError(t, err)
	assert.True(t, res.DeliveredQuantity.Equal(dec("3")))
	assert.Equal(t, repository.ReservationDelivered, res.Status)
}

func TestDeliveryCompletionMovesStockAndClosesHolds(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("4"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("4")},
			}},
		},
	})
	require.NoError(t, err)

	for _, status := range []string{repository.StatusPending, repository.StatusInProgress, repository.StatusCompleted} {
		_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: status})
		require.NoError(t, err)
	}

	total, err := env.stockRepo.TotalOnHand(ctx, article.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("6")))

	reservations, err := env.resRepo.ListByOperation(ctx, detail.Operation.ID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, repository.ReservationDelivered, reservations[0].Status)

	// Nothing is reserved anymore.
	avail, err := env.available.Availability(ctx, article.ID, AvailabilityOptions{})
	require.NoError(t, err)
	assert.True(t, avail.Summary.TotalAvailable.Equal(dec("6")))
}

func TestPreparationGeneratesLotAndMovesStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	flour, zone, flourLot := seedStock(t, ctx, "8", testutil.WithCode("FARINE"))

	output := suite.Fixtures.Article(testutil.WithCode("TARTE"), testutil.WithShelfLife(5))
	outputZone := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, output))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, outputZone))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type:            repository.OpPreparation,
		OutputArticleID: &output.ID,
		OutputZoneID:    &outputZone.ID,
		Items: []*OperationItemInput{
			{ArticleID: flour.ID, RequestedQuantity: dec("2"), Lines: []*AllocationLine{
				{LotID: &flourLot.ID, ZoneID: zone.ID, Quantity: dec("2")},
			}},
		},
	})
	require.NoError(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	// Starting work releases the ingredient holds.
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusInProgress})
	require.NoError(t, err)

	reservations, err := env.resRepo.ListByOperation(ctx, detail.Operation.ID)
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, repository.ReservationReleased, reservations[0].Status)

	_, warnings, err := env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{
		Status: repository.StatusCompleted,
		Completion: &CompletionInput{
			ConformQuantity: dec("4.5"),
			WasteQuantity:   dec("0.5"),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	// Ingredients consumed.
	flourTotal, err := env.stockRepo.TotalOnHand(ctx, flour.ID)
	require.NoError(t, err)
	assert.True(t, flourTotal.Equal(dec("6")))

	// Only the conform quantity entered sellable stock.
	outputTotal, err := env.stockRepo.TotalOnHand(ctx, output.ID)
	require.NoError(t, err)
	assert.True(t, outputTotal.Equal(dec("4.5")))

	// The produced quantity includes waste.
	opLots, err := env.opRepo.ListOperationLots(ctx, detail.Operation.ID)
	require.NoError(t, err)
	require.Len(t, opLots, 1)
	assert.True(t, opLots[0].ProducedQuantity.Equal(dec("5")))

	lot, err := env.lotRepo.GetByID(ctx, opLots[0].LotID)
	require.NoError(t, err)
	assert.Contains(t, lot.Code, "TARTE-")
	require.NotNil(t, lot.ExpirationDate)
	require.NotNil(t, lot.AlertDate)
	assert.True(t, lot.AlertDate.Equal(lot.ExpirationDate.Add(-72*time.Hour)))
}

func TestZeroOutputProductionCompletesWithoutLot(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	flour, zone, flourLot := seedStock(t, ctx, "5")

	output := suite.Fixtures.Article(testutil.WithCode("RATE"), testutil.WithShelfLife(3))
	outputZone := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, output))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, outputZone))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type:            repository.OpPreparation,
		OutputArticleID: &output.ID,
		OutputZoneID:    &outputZone.ID,
		Items: []*OperationItemInput{
			{ArticleID: flour.ID, RequestedQuantity: dec("2"), Lines: []*AllocationLine{
				{LotID: &flourLot.ID, ZoneID: zone.ID, Quantity: dec("2")},
			}},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	// A batch with no usable output still completes and consumes its
	// ingredients; no lot is registered.
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{
		Status:     repository.StatusCompleted,
		Completion: &CompletionInput{ConformQuantity: dec("0"), WasteQuantity: dec("0")},
	})
	require.NoError(t, err)

	flourTotal, err := env.stockRepo.TotalOnHand(ctx, flour.ID)
	require.NoError(t, err)
	assert.True(t, flourTotal.Equal(dec("3")))

	outputTotal, err := env.stockRepo.TotalOnHand(ctx, output.ID)
	require.NoError(t, err)
	assert.True(t, outputTotal.IsZero())

	opLots, err := env.opRepo.ListOperationLots(ctx, detail.Operation.ID)
	require.NoError(t, err)
	assert.Empty(t, opLots)

	got, err := env.lifecycle.Get(ctx, detail.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCompleted, got.Operation.Status)
}

func TestPreparationWithoutShelfLifeWarns(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	flour, zone, flourLot := seedStock(t, ctx, "5")

	output := suite.Fixtures.Article(testutil.WithCode("PATE"))
	outputZone := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, output))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, outputZone))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type:            repository.OpPreparation,
		OutputArticleID: &output.ID,
		OutputZoneID:    &outputZone.ID,
		Items: []*OperationItemInput{
			{ArticleID: flour.ID, RequestedQuantity: dec("1"), Lines: []*AllocationLine{
				{LotID: &flourLot.ID, ZoneID: zone.ID, Quantity: dec("1")},
			}},
		},
	})
	require.NoError(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	_, warnings, err := env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{
		Status:     repository.StatusCompleted,
		Completion: &CompletionInput{ConformQuantity: dec("2"), WasteQuantity: dec("0")},
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningMissingShelfLife, warnings[0].Code)
}

func TestInternalTransferMovesBetweenZones(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")
	target := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, target))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpInternalTransfer,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("3"), TargetZoneID: &target.ID, Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("3")},
			}},
		},
	})
	require.NoError(t, err)

	for _, status := range []string{repository.StatusPending, repository.StatusInProgress, repository.StatusCompleted} {
		_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: status})
		require.NoError(t, err)
	}

	entries, err := env.stockRepo.Query(ctx, article.ID, repository.StockFilter{})
	require.NoError(t, err)
	byZone := map[string]string{}
	for _, e := range entries {
		byZone[e.ZoneID] = e.Quantity.String()
	}
	assert.Equal(t, "7", byZone[zone.ID])
	assert.Equal(t, "3", byZone[target.ID])

	// Lot identity survives the move.
	moved, err := env.stockRepo.Query(ctx, article.ID, repository.StockFilter{ZoneID: &target.ID})
	require.NoError(t, err)
	require.Len(t, moved, 1)
	require.NotNil(t, moved[0].LotID)
	assert.Equal(t, lot.ID, *moved[0].LotID)
}

func TestReceptionAddsStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article := suite.Fixtures.Article()
	zone := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, article))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, zone))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpReception,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("25.5"), TargetZoneID: &zone.ID},
		},
	})
	require.NoError(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusCompleted})
	require.NoError(t, err)

	total, err := env.stockRepo.TotalOnHand(ctx, article.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("25.5")))
}

func TestAdjustmentCannotDriveStockNegative(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "2")

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpAdjustment,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("-5"), TargetZoneID: &zone.ID, LotID: &lot.ID},
		},
	})
	require.NoError(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusCompleted})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)

	// The rejected completion left the ledger untouched.
	total, err := env.stockRepo.TotalOnHand(ctx, article.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("2")))

	got, err := env.lifecycle.Get(ctx, detail.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPending, got.Operation.Status)
}

func TestDeleteCascadesReservations(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article, zone, lot := seedStock(t, ctx, "10")

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpDelivery,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("4"), Lines: []*AllocationLine{
				{LotID: &lot.ID, ZoneID: zone.ID, Quantity: dec("4")},
			}},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)

	require.NoError(t, env.lifecycle.Delete(ctx, detail.Operation.ID, ""))

	_, err = env.lifecycle.Get(ctx, detail.Operation.ID)
	require.Error(t, err)

	// The hold is gone with its owner.
	avail, err := env.available.Availability(ctx, article.ID, AvailabilityOptions{})
	require.NoError(t, err)
	assert.True(t, avail.Summary.TotalAvailable.Equal(dec("10")))
}

func TestCompletedOperationDeleteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article := suite.Fixtures.Article()
	zone := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, article))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, zone))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpReception,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("5"), TargetZoneID: &zone.ID},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusCompleted})
	require.NoError(t, err)

	err = env.lifecycle.Delete(ctx, detail.Operation.ID, "")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "OPERATION_LOCKED", appErr.Code)

	// An administrator may still remove it.
	require.NoError(t, env.lifecycle.Delete(ctx, detail.Operation.ID, httputil.RoleAdmin))
}

func TestCancelledOperationDeleteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article := suite.Fixtures.Article()
	zone := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, article))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, zone))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpReception,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("5"), TargetZoneID: &zone.ID},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusCancelled})
	require.NoError(t, err)

	err = env.lifecycle.Delete(ctx, detail.Operation.ID, "operator")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "OPERATION_LOCKED", appErr.Code)

	require.NoError(t, env.lifecycle.Delete(ctx, detail.Operation.ID, httputil.RoleAdmin))
}

func TestAdminCanCancelCompletedOperation(t *testing.T) {
	env := newTestEnv(t)
	ctx := testutil.DefaultTestContext(t)

	article := suite.Fixtures.Article()
	zone := suite.Fixtures.Zone()
	require.NoError(t, suite.Fixtures.InsertArticle(ctx, suite.RawDB, article))
	require.NoError(t, suite.Fixtures.InsertZone(ctx, suite.RawDB, zone))

	detail, err := env.lifecycle.Create(ctx, &OperationInput{
		Type: repository.OpReception,
		Items: []*OperationItemInput{
			{ArticleID: article.ID, RequestedQuantity: dec("5"), TargetZoneID: &zone.ID},
		},
	})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusPending})
	require.NoError(t, err)
	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusCompleted})
	require.NoError(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusCancelled, Role: "operator"})
	require.Error(t, err)

	_, _, err = env.lifecycle.SetStatus(ctx, detail.Operation.ID, &StatusChangeInput{Status: repository.StatusCancelled, Role: httputil.RoleAdmin})
	require.NoError(t, err)

	got, err := env.lifecycle.Get(ctx, detail.Operation.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusCancelled, got.Operation.Status)
}
