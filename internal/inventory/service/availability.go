package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/events"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
)

// CombinationKey identifies a (lot, zone) allocation scope. Empty lot
// means un-lotted stock; empty zone only occurs for un-scoped
// reservations, which never form a combination row.
type CombinationKey struct {
	LotID  string
	ZoneID string
}

// CombinationAvailability is the availability of one (lot, zone) key
type CombinationAvailability struct {
	LotID     *string         `json:"lot_id,omitempty"`
	ZoneID    string          `json:"zone_id"`
	Stock     decimal.Decimal `json:"stock"`
	Reserved  decimal.Decimal `json:"reserved"`
	Available decimal.Decimal `json:"available"`
}

// AvailabilitySummary sums availability across all combinations
type AvailabilitySummary struct {
	TotalStock     decimal.Decimal `json:"total_stock"`
	TotalReserved  decimal.Decimal `json:"total_reserved"`
	TotalAvailable decimal.Decimal `json:"total_available"`
}

// Anomaly reports an active reservation keyed to a combination with no
// matching stock. Surfaced, never auto-corrected.
type Anomaly struct {
	ReservationID string  `json:"reservation_id"`
	OperationID   string  `json:"operation_id"`
	LotID         *string `json:"lot_id,omitempty"`
	ZoneID        *string `json:"zone_id,omitempty"`
	Reserved      string  `json:"reserved"`
}

// AvailabilityResult is the full answer for one article
type AvailabilityResult struct {
	ArticleID      string                     `json:"article_id"`
	PerCombination []*CombinationAvailability `json:"per_combination"`
	Summary        AvailabilitySummary        `json:"summary"`
	Anomalies      []*Anomaly                 `json:"anomalies,omitempty"`
}

// AvailabilityOptions control an availability computation. When a user
// edits an operation in place, ExcludeOperationID carries that
// operation's ID so its own holds do not block its own resize.
type AvailabilityOptions struct {
	ExcludeOperationID *string
	LotID              *string
	ZoneID             *string
}

// AvailabilityService derives stock, reserved and available-to-promise
// quantities per article and (lot, zone) combination
type AvailabilityService struct {
	stockRepo *repository.StockRepository
	resRepo   *repository.ReservationRepository
	publisher *events.InventoryEventPublisher
	logger    *logger.Logger
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(
	stockRepo *repository.StockRepository,
	resRepo *repository.ReservationRepository,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		stockRepo: stockRepo,
		resRepo:   resRepo,
		publisher: publisher,
		logger:    log,
	}
}

// Availability computes availability outside any transaction. Results
// are advisory for display; writes re-validate under lock.
func (s *AvailabilityService) Availability(ctx context.Context, articleID string, opts AvailabilityOptions) (*AvailabilityResult, error) {
	entries, err := s.stockRepo.Query(ctx, articleID, repository.StockFilter{LotID: opts.LotID, ZoneID: opts.ZoneID})
	if err != nil {
		return nil, err
	}

	reservations, err := s.resRepo.ListActiveByArticle(ctx, articleID, opts.ExcludeOperationID)
	if err != nil {
		return nil, err
	}

	result := compute(articleID, entries, reservations)
	s.reportAnomalies(ctx, articleID, result.Anomalies)
	return result, nil
}

// AvailabilityTx computes availability inside the caller's transaction
// with the article's stock rows locked, so the snapshot holds until the
// transaction commits. Used by every reserving write path.
func (s *AvailabilityService) AvailabilityTx(ctx context.Context, tx *sqlx.Tx, articleID string, excludeOperationID *string) (*AvailabilityResult, error) {
	entries, err := s.stockRepo.QueryTx(ctx, tx, articleID)
	if err != nil {
		return nil, err
	}

	reservations, err := s.resRepo.ListActiveByArticleTx(ctx, tx, articleID, excludeOperationID)
	if err != nil {
		return nil, err
	}

	return compute(articleID, entries, reservations), nil
}

// compute aggregates ledger rows and reservations into per-combination
// and summary availability
func compute(articleID string, entries []*repository.StockEntry, reservations []*repository.Reservation) *AvailabilityResult {
	stockByKey := make(map[CombinationKey]*CombinationAvailability)
	order := make([]CombinationKey, 0, len(entries))

	for _, e := range entries {
		key := keyOf(e.LotID, e.ZoneID)
		stockByKey[key] = &CombinationAvailability{
			LotID:  e.LotID,
			ZoneID: e.ZoneID,
			Stock:  e.Quantity,
		}
		order = append(order, key)
	}

	result := &AvailabilityResult{ArticleID: articleID}

	for _, res := range reservations {
		result.Summary.TotalReserved = result.Summary.TotalReserved.Add(res.ReservedQuantity)

		if res.ZoneID == nil {
			// Un-scoped hold: counts against the article total only.
			continue
		}

		key := keyOf(res.LotID, *res.ZoneID)
		combo, ok := stockByKey[key]
		if !ok || combo.Stock.IsZero() {
			result.Anomalies = append(result.Anomalies, &Anomaly{
				ReservationID: res.ID,
				OperationID:   res.OperationID,
				LotID:         res.LotID,
				ZoneID:        res.ZoneID,
				Reserved:      res.ReservedQuantity.String(),
			})
			if !ok {
				continue
			}
		}
		combo.Reserved = combo.Reserved.Add(res.ReservedQuantity)
	}

	for _, key := range order {
		combo := stockByKey[key]
		combo.Available = combo.Stock.Sub(combo.Reserved)
		if combo.Available.IsNegative() {
			// Invariants keep this non-negative after commit; clamp
			// defensively for display.
			combo.Available = decimal.Zero
		}
		result.Summary.TotalStock = result.Summary.TotalStock.Add(combo.Stock)
		result.PerCombination = append(result.PerCombination, combo)
	}

	result.Summary.TotalAvailable = result.Summary.TotalStock.Sub(result.Summary.TotalReserved)
	if result.Summary.TotalAvailable.IsNegative() {
		result.Summary.TotalAvailable = decimal.Zero
	}

	return result
}

// ForCombination returns the available quantity at one (lot, zone) key
func (r *AvailabilityResult) ForCombination(lotID *string, zoneID string) decimal.Decimal {
	key := keyOf(lotID, zoneID)
	for _, combo := range r.PerCombination {
		if keyOf(combo.LotID, combo.ZoneID) == key {
			return combo.Available
		}
	}
	return decimal.Zero
}

func keyOf(lotID *string, zoneID string) CombinationKey {
	key := CombinationKey{ZoneID: zoneID}
	if lotID != nil {
		key.LotID = *lotID
	}
	return key
}

func (s *AvailabilityService) reportAnomalies(ctx context.Context, articleID string, anomalies []*Anomaly) {
	for _, a := range anomalies {
		s.logger.WithArticle(articleID).Warn().
			Str("reservation_id", a.ReservationID).
			Str("operation_id", a.OperationID).
			Str("reserved", a.Reserved).
			Msg("reservation references a combination with no stock")
		s.publisher.PublishAnomalyDetected(ctx, articleID, a.ReservationID, a.OperationID, a.LotID, a.ZoneID, a.Reserved)
	}
}
