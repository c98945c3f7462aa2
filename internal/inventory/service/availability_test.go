package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
)

func entry(articleID string, lotID *string, zoneID, qty string) *repository.StockEntry {
	return &repository.StockEntry{
		ArticleID: articleID,
		LotID:     lotID,
		ZoneID:    zoneID,
		Quantity:  dec(qty),
	}
}

func hold(id, opID, articleID string, lotID *string, zoneID *string, qty string) *repository.Reservation {
	return &repository.Reservation{
		ID:               id,
		OperationID:      opID,
		ArticleID:        articleID,
		LotID:            lotID,
		ZoneID:           zoneID,
		ReservedQuantity: dec(qty),
		Status:           repository.ReservationActive,
	}
}

func TestCompute_PerCombination(t *testing.T) {
	entries := []*repository.StockEntry{
		entry("art-1", strPtr("lot-1"), "zone-1", "20"),
		entry("art-1", strPtr("lot-2"), "zone-1", "10"),
	}
	reservations := []*repository.Reservation{
		hold("r1", "op-1", "art-1", strPtr("lot-1"), strPtr("zone-1"), "8"),
	}

	result := compute("art-1", entries, reservations)

	require.Len(t, result.PerCombination, 2)
	assert.True(t, result.PerCombination[0].Available.Equal(dec("12")))
	assert.True(t, result.PerCombination[1].Available.Equal(dec("10")))
	assert.True(t, result.Summary.TotalStock.Equal(dec("30")))
	assert.True(t, result.Summary.TotalReserved.Equal(dec("8")))
	assert.True(t, result.Summary.TotalAvailable.Equal(dec("22")))
	assert.Empty(t, result.Anomalies)
}

func TestCompute_UnscopedReservationCountsInSummaryOnly(t *testing.T) {
	entries := []*repository.StockEntry{
		entry("art-1", strPtr("lot-1"), "zone-1", "10"),
	}
	reservations := []*repository.Reservation{
		hold("r1", "op-1", "art-1", nil, nil, "4"),
	}

	result := compute("art-1", entries, reservations)

	require.Len(t, result.PerCombination, 1)
	assert.True(t, result.PerCombination[0].Available.Equal(dec("10")))
	assert.True(t, result.Summary.TotalAvailable.Equal(dec("6")))
	assert.Empty(t, result.Anomalies)
}

func TestCompute_ExcludedOperationRestoresAvailability(t *testing.T) {
	entries := []*repository.StockEntry{
		entry("art-1", strPtr("lot-1"), "zone-1", "10"),
	}
	own := hold("r1", "op-1", "art-1", strPtr("lot-1"), strPtr("zone-1"), "10")
	other := hold("r2", "op-2", "art-1", strPtr("lot-1"), strPtr("zone-1"), "3")

	// Full picture: everything held.
	all := compute("art-1", entries, []*repository.Reservation{own, other})
	assert.True(t, all.Summary.TotalAvailable.Equal(dec("0")))

	// Editing op-1: its own hold drops out and only op-2's remains.
	excluded := compute("art-1", entries, []*repository.Reservation{other})
	assert.True(t, excluded.Summary.TotalAvailable.Equal(dec("7")))
	assert.True(t, excluded.ForCombination(strPtr("lot-1"), "zone-1").Equal(dec("7")))
}

func TestCompute_AnomalyWhenNoStockForCombination(t *testing.T) {
	entries := []*repository.StockEntry{
		entry("art-1", strPtr("lot-1"), "zone-1", "5"),
	}
	reservations := []*repository.Reservation{
		hold("r1", "op-1", "art-1", strPtr("lot-ghost"), strPtr("zone-1"), "2"),
	}

	result := compute("art-1", entries, reservations)

	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, "r1", result.Anomalies[0].ReservationID)
	assert.Equal(t, "op-1", result.Anomalies[0].OperationID)
	// The phantom hold still counts against the article total.
	assert.True(t, result.Summary.TotalReserved.Equal(dec("2")))
	// The real combination is untouched.
	assert.True(t, result.ForCombination(strPtr("lot-1"), "zone-1").Equal(dec("5")))
}

func TestCompute_AnomalyOnZeroStockCombination(t *testing.T) {
	entries := []*repository.StockEntry{
		entry("art-1", strPtr("lot-1"), "zone-1", "0"),
	}
	reservations := []*repository.Reservation{
		hold("r1", "op-1", "art-1", strPtr("lot-1"), strPtr("zone-1"), "2"),
	}

	result := compute("art-1", entries, reservations)

	require.Len(t, result.Anomalies, 1)
	assert.True(t, result.PerCombination[0].Available.Equal(dec("0")))
}

func TestCompute_AvailableClampedAtZero(t *testing.T) {
	entries := []*repository.StockEntry{
		entry("art-1", strPtr("lot-1"), "zone-1", "5"),
	}
	reservations := []*repository.Reservation{
		hold("r1", "op-1", "art-1", strPtr("lot-1"), strPtr("zone-1"), "4"),
		hold("r2", "op-2", "art-1", strPtr("lot-1"), strPtr("zone-1"), "4"),
	}

	result := compute("art-1", entries, reservations)

	assert.True(t, result.PerCombination[0].Available.Equal(dec("0")))
	assert.True(t, result.Summary.TotalAvailable.Equal(dec("0")))
}

func TestCompute_FractionalQuantities(t *testing.T) {
	entries := []*repository.StockEntry{
		entry("art-1", strPtr("lot-1"), "zone-1", "2.5"),
	}
	reservations := []*repository.Reservation{
		hold("r1", "op-1", "art-1", strPtr("lot-1"), strPtr("zone-1"), "0.75"),
	}

	result := compute("art-1", entries, reservations)

	assert.True(t, result.PerCombination[0].Available.Equal(dec("1.75")))
}

func TestCompute_EmptyLedger(t *testing.T) {
	result := compute("art-1", nil, nil)

	assert.Empty(t, result.PerCombination)
	assert.True(t, result.Summary.TotalStock.Equal(dec("0")))
	assert.True(t, result.Summary.TotalAvailable.Equal(dec("0")))
}

func TestForCombination_Unknown(t *testing.T) {
	result := compute("art-1", nil, nil)
	assert.True(t, result.ForCombination(strPtr("lot-1"), "zone-1").IsZero())
}
