package service

import (
	"github.com/shopspring/decimal"
	"github.com/younes21/PastryLabManager-sub003/pkg/errors"
)

// AllocationLine is one requested allocation against a (lot, zone)
// combination within an operation item
type AllocationLine struct {
	LotID    *string         `json:"lot_id,omitempty"`
	ZoneID   string          `json:"zone_id"`
	Quantity decimal.Decimal `json:"quantity"`
}

// CombinationValidator checks an item's allocation breakdown against
// the requested quantity and an availability snapshot. Pure logic, no
// storage access; callers supply a snapshot taken under lock.
type CombinationValidator struct{}

// NewCombinationValidator creates a new combination validator
func NewCombinationValidator() *CombinationValidator {
	return &CombinationValidator{}
}

// Validate enforces the three allocation rules: no duplicate
// combination, line sum equals requested quantity, and every line fits
// within its combination's available quantity. The availability check
// is skipped when avail is nil (non-reserving operation types).
func (v *CombinationValidator) Validate(requested decimal.Decimal, lines []*AllocationLine, avail *AvailabilityResult) error {
	if len(lines) == 0 {
		return nil
	}

	seen := make(map[CombinationKey]bool, len(lines))
	var total decimal.Decimal

	for _, line := range lines {
		if !line.Quantity.IsPositive() {
			return errors.BadRequest("allocation line quantity must be positive")
		}

		key := keyOf(line.LotID, line.ZoneID)
		if seen[key] {
			return errors.DuplicateCombination(key.LotID, line.ZoneID)
		}
		seen[key] = true
		total = total.Add(line.Quantity)

		if avail != nil {
			free := avail.ForCombination(line.LotID, line.ZoneID)
			if line.Quantity.GreaterThan(free) {
				return errors.InsufficientAvailability(avail.ArticleID, map[string]string{
					"lot_id":    key.LotID,
					"zone_id":   line.ZoneID,
					"requested": line.Quantity.String(),
					"available": free.String(),
				})
			}
		}
	}

	if !total.Equal(requested) {
		return errors.QuantityMismatch(requested.String(), total.String())
	}

	return nil
}
