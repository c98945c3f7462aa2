package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	apperrors "github.com/younes21/PastryLabManager-sub003/pkg/errors"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
)

func TestCheckTransition(t *testing.T) {
	s := &LifecycleService{}

	tests := []struct {
		name    string
		from    string
		to      string
		role    string
		wantErr string
	}{
		{name: "draft to pending", from: repository.StatusDraft, to: repository.StatusPending},
		{name: "draft to cancelled", from: repository.StatusDraft, to: repository.StatusCancelled},
		{name: "pending to in_progress", from: repository.StatusPending, to: repository.StatusInProgress},
		{name: "pending to completed", from: repository.StatusPending, to: repository.StatusCompleted},
		{name: "in_progress to completed", from: repository.StatusInProgress, to: repository.StatusCompleted},
		{name: "in_progress to cancelled", from: repository.StatusInProgress, to: repository.StatusCancelled},
		{name: "draft cannot complete", from: repository.StatusDraft, to: repository.StatusCompleted, wantErr: "INVALID_TRANSITION"},
		{name: "completed cannot regress", from: repository.StatusCompleted, to: repository.StatusInProgress, wantErr: "INVALID_TRANSITION"},
		{name: "completed cannot re-complete", from: repository.StatusCompleted, to: repository.StatusCompleted, wantErr: "INVALID_TRANSITION"},
		{name: "cancelled is terminal", from: repository.StatusCancelled, to: repository.StatusPending, wantErr: "INVALID_TRANSITION"},
		{name: "admin cancels completed", from: repository.StatusCompleted, to: repository.StatusCancelled, role: httputil.RoleAdmin},
		{name: "non-admin cannot cancel completed", from: repository.StatusCompleted, to: repository.StatusCancelled, role: "operator", wantErr: "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.checkTransition(tt.from, tt.to, tt.role)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantErr, appErr.Code)
		})
	}
}

func TestBehaviors_CoverEveryType(t *testing.T) {
	types := []string{
		repository.OpReception, repository.OpPreparation, repository.OpPreparationReliquat,
		repository.OpAdjustment, repository.OpAdjustmentWaste, repository.OpInitialInventory,
		repository.OpInternalTransfer, repository.OpDelivery,
	}
	for _, typ := range types {
		b, ok := behaviors[typ]
		assert.True(t, ok, "missing behavior for %s", typ)
		assert.NotEmpty(t, b.prefix)
	}
}

func TestBehaviors_ReservationPolicy(t *testing.T) {
	// Preparations release holds when work starts; deliveries keep
	// holding until the goods leave the building.
	assert.True(t, behaviors[repository.OpPreparation].releaseOnStart)
	assert.True(t, behaviors[repository.OpPreparationReliquat].releaseOnStart)
	assert.False(t, behaviors[repository.OpDelivery].releaseOnStart)
	assert.True(t, behaviors[repository.OpDelivery].reserving)
	assert.False(t, behaviors[repository.OpReception].reserving)
	assert.False(t, behaviors[repository.OpAdjustment].reserving)
}

func TestBuildItems_ZeroQuantityRejected(t *testing.T) {
	s := &LifecycleService{combos: NewCombinationValidator()}

	_, err := s.buildItems(repository.OpDelivery, []*OperationItemInput{
		{ArticleID: "art-1", RequestedQuantity: dec("0")},
	})
	require.Error(t, err)
}

func TestBuildItems_NegativeQuantityRejected(t *testing.T) {
	s := &LifecycleService{combos: NewCombinationValidator()}

	for _, opType := range []string{
		repository.OpDelivery,
		repository.OpAdjustmentWaste,
		repository.OpReception,
		repository.OpPreparation,
		repository.OpInternalTransfer,
	} {
		_, err := s.buildItems(opType, []*OperationItemInput{
			{ArticleID: "art-1", RequestedQuantity: dec("-5")},
		})
		require.Error(t, err, "type %s accepted a negative quantity", opType)
	}
}

func TestBuildItems_SignedAdjustmentMayBeNegative(t *testing.T) {
	s := &LifecycleService{combos: NewCombinationValidator()}

	items, err := s.buildItems(repository.OpAdjustment, []*OperationItemInput{
		{ArticleID: "art-1", RequestedQuantity: dec("-5"), TargetZoneID: strPtr("zone-1")},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].RequestedQuantity.Equal(dec("-5")))
}

func TestBuildItems_LineSumMustMatch(t *testing.T) {
	s := &LifecycleService{combos: NewCombinationValidator()}

	_, err := s.buildItems(repository.OpDelivery, []*OperationItemInput{
		{
			ArticleID:         "art-1",
			RequestedQuantity: dec("10"),
			Lines: []*AllocationLine{
				{LotID: strPtr("lot-1"), ZoneID: "zone-1", Quantity: dec("6")},
			},
		},
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "QUANTITY_MISMATCH", appErr.Code)
}

func TestBuildItems_CopiesLines(t *testing.T) {
	s := &LifecycleService{combos: NewCombinationValidator()}

	items, err := s.buildItems(repository.OpDelivery, []*OperationItemInput{
		{
			ArticleID:         "art-1",
			RequestedQuantity: dec("10"),
			TargetZoneID:      strPtr("zone-t"),
			Lines: []*AllocationLine{
				{LotID: strPtr("lot-1"), ZoneID: "zone-1", Quantity: dec("6")},
				{LotID: strPtr("lot-2"), ZoneID: "zone-1", Quantity: dec("4")},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Lines, 2)
	assert.Equal(t, "art-1", items[0].ArticleID)
	assert.True(t, items[0].Lines[1].Quantity.Equal(dec("4")))
}

func TestFormatOperationCode(t *testing.T) {
	day := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "LIV-20240115-003", formatOperationCode("LIV", day, 3))
	assert.Equal(t, "REC-20240115-120", formatOperationCode("REC", day, 120))
}
