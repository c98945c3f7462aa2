package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/events"
	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/pkg/database"
	"github.com/younes21/PastryLabManager-sub003/pkg/errors"
	"github.com/younes21/PastryLabManager-sub003/pkg/httputil"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
)

// typeBehavior drives the per-type side effects of the operation state
// machine. Reserving types hold availability while pending; inbound,
// outbound, signed, transfer and production select the ledger effect
// applied at completion.
type typeBehavior struct {
	prefix         string
	reserving      bool
	releaseOnStart bool
	inbound        bool
	outbound       bool
	signed         bool
	transfer       bool
	production     bool
}

var behaviors = map[string]typeBehavior{
	repository.OpReception:           {prefix: "REC", inbound: true},
	repository.OpInitialInventory:    {prefix: "INI", inbound: true},
	repository.OpDelivery:            {prefix: "LIV", reserving: true, outbound: true},
	repository.OpPreparation:         {prefix: "PRE", reserving: true, releaseOnStart: true, production: true},
	repository.OpPreparationReliquat: {prefix: "PRR", reserving: true, releaseOnStart: true, production: true},
	repository.OpAdjustment:          {prefix: "ADJ", signed: true},
	repository.OpAdjustmentWaste:     {prefix: "ADW", outbound: true},
	repository.OpInternalTransfer:    {prefix: "TRF", reserving: true, transfer: true},
}

// transitions is the status graph. Completed and cancelled are terminal
// except that a privileged role may cancel a completed operation.
var transitions = map[string][]string{
	repository.StatusDraft:      {repository.StatusPending, repository.StatusCancelled},
	repository.StatusPending:    {repository.StatusInProgress, repository.StatusCompleted, repository.StatusCancelled},
	repository.StatusInProgress: {repository.StatusCompleted, repository.StatusCancelled},
	repository.StatusCompleted:  {},
	repository.StatusCancelled:  {},
}

// OperationItemInput is one requested article line of a new or edited
// operation
type OperationItemInput struct {
	ArticleID         string            `json:"article_id" validate:"required,uuid"`
	RequestedQuantity decimal.Decimal   `json:"requested_quantity"`
	TargetZoneID      *string           `json:"target_zone_id,omitempty" validate:"omitempty,uuid"`
	LotID             *string           `json:"lot_id,omitempty" validate:"omitempty,uuid"`
	Lines             []*AllocationLine `json:"lines,omitempty"`
}

// OperationInput carries a new or edited operation
type OperationInput struct {
	Type            string                `json:"type" validate:"required,oneof=reception preparation preparation_reliquat adjustment adjustment_waste initial_inventory internal_transfer delivery"`
	ScheduledDate   *time.Time            `json:"scheduled_date,omitempty"`
	Operator        *string               `json:"operator,omitempty"`
	OutputArticleID *string               `json:"output_article_id,omitempty" validate:"omitempty,uuid"`
	OutputZoneID    *string               `json:"output_zone_id,omitempty" validate:"omitempty,uuid"`
	Notes           *string               `json:"notes,omitempty"`
	Items           []*OperationItemInput `json:"items" validate:"required,min=1,dive"`
}

// CompletionInput carries the production outcome required to complete a
// preparation operation
type CompletionInput struct {
	ConformQuantity decimal.Decimal `json:"conform_quantity"`
	WasteQuantity   decimal.Decimal `json:"waste_quantity"`
	ManufacturedAt  *time.Time      `json:"manufactured_at,omitempty"`
}

// StatusChangeInput carries a requested status transition
type StatusChangeInput struct {
	Status      string           `json:"status" validate:"required,oneof=draft pending in_progress completed cancelled"`
	Completion  *CompletionInput `json:"completion,omitempty"`
	PerformedBy string           `json:"-"`
	Role        string           `json:"-"`
}

// OperationDetail is an operation with its items, holds and output lots
type OperationDetail struct {
	Operation    *repository.InventoryOperation `json:"operation"`
	Items        []*repository.OperationItem    `json:"items"`
	Reservations []*repository.Reservation      `json:"reservations,omitempty"`
	Lots         []*repository.OperationLot     `json:"lots,omitempty"`
}

// LifecycleService owns the operation state machine. Every mutation
// runs in one transaction: the availability snapshot, the reservation
// writes and the ledger deltas commit or roll back together.
type LifecycleService struct {
	db          *database.DB
	opRepo      *repository.OperationRepository
	resRepo     *repository.ReservationRepository
	stockRepo   *repository.StockRepository
	lotRepo     *repository.LotRepository
	articleRepo *repository.ArticleRepository
	available   *AvailabilityService
	combos      *CombinationValidator
	lotGen      *LotGenerator
	publisher   *events.InventoryEventPublisher
	logger      *logger.Logger
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(
	db *database.DB,
	opRepo *repository.OperationRepository,
	resRepo *repository.ReservationRepository,
	stockRepo *repository.StockRepository,
	lotRepo *repository.LotRepository,
	articleRepo *repository.ArticleRepository,
	available *AvailabilityService,
	lotGen *LotGenerator,
	publisher *events.InventoryEventPublisher,
	log *logger.Logger,
) *LifecycleService {
	return &LifecycleService{
		db:          db,
		opRepo:      opRepo,
		resRepo:     resRepo,
		stockRepo:   stockRepo,
		lotRepo:     lotRepo,
		articleRepo: articleRepo,
		available:   available,
		combos:      NewCombinationValidator(),
		lotGen:      lotGen,
		publisher:   publisher,
		logger:      log,
	}
}

// Create registers a new operation in draft status. Allocation lines
// are validated structurally; availability is only enforced when the
// operation later enters a reserving status.
func (s *LifecycleService) Create(ctx context.Context, in *OperationInput) (*OperationDetail, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}

	behavior, ok := behaviors[in.Type]
	if !ok {
		return nil, errors.BadRequest("unknown operation type: " + in.Type)
	}

	items, err := s.buildItems(in.Type, in.Items)
	if err != nil {
		return nil, err
	}

	op := &repository.InventoryOperation{
		Type:            in.Type,
		Status:          repository.StatusDraft,
		ScheduledDate:   in.ScheduledDate,
		Operator:        in.Operator,
		OutputArticleID: in.OutputArticleID,
		OutputZoneID:    in.OutputZoneID,
		Notes:           in.Notes,
	}

	if behavior.production {
		if op.OutputArticleID == nil || op.OutputZoneID == nil {
			return nil, errors.BadRequest("production operations require an output article and zone")
		}
	}

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		seq, err := s.opRepo.CountForDay(ctx, tx, in.Type, time.Now())
		if err != nil {
			return err
		}
		op.Code = formatOperationCode(behavior.prefix, time.Now(), seq+1)
		return s.opRepo.Create(ctx, tx, op, items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithOperation(op.ID).Info().
		Str("code", op.Code).
		Str("type", op.Type).
		Msg("operation created")

	return &OperationDetail{Operation: op, Items: items}, nil
}

// Update replaces the items of a non-terminal operation. When the
// operation still holds live reservations they are re-placed under a
// fresh availability snapshot that excludes its own prior holds, so
// shrinking or growing an operation never blocks on itself. Types that
// release their holds at start keep them released.
func (s *LifecycleService) Update(ctx context.Context, id string, in *OperationInput) (*OperationDetail, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, err
	}

	items, err := s.buildItems(in.Type, in.Items)
	if err != nil {
		return nil, err
	}

	var op *repository.InventoryOperation
	var created []*repository.Reservation

	err = s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		op, err = s.opRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if op.Status == repository.StatusCompleted || op.Status == repository.StatusCancelled {
			return errors.OperationLocked(op.ID)
		}
		if in.Type != op.Type {
			return errors.BadRequest("operation type cannot change after creation")
		}

		op.ScheduledDate = in.ScheduledDate
		op.Operator = in.Operator
		op.OutputArticleID = in.OutputArticleID
		op.OutputZoneID = in.OutputZoneID
		op.Notes = in.Notes

		if err := s.opRepo.ReplaceItems(ctx, tx, op, items); err != nil {
			return err
		}

		behavior := behaviors[op.Type]
		holdsLive := behavior.reserving &&
			(op.Status == repository.StatusPending ||
				(op.Status == repository.StatusInProgress && !behavior.releaseOnStart))
		if holdsLive {
			if _, err := s.resRepo.DeleteAllForOperation(ctx, tx, op.ID); err != nil {
				return err
			}
			created, err = s.placeReservations(ctx, tx, op, items)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, res := range created {
		s.publisher.PublishReservationCreated(ctx, res)
	}

	return &OperationDetail{Operation: op, Items: items}, nil
}

// SetStatus drives the operation through its state machine, applying
// the reservation and ledger side effects of the target status.
// Returns the updated detail plus any non-fatal warnings.
func (s *LifecycleService) SetStatus(ctx context.Context, id string, in *StatusChangeInput) (*OperationDetail, []*Warning, error) {
	if err := httputil.Validate(in); err != nil {
		return nil, nil, err
	}

	var (
		op        *repository.InventoryOperation
		items     []*repository.OperationItem
		oldStatus string
		warnings  []*Warning
		created   []*repository.Reservation
		adjusted  []stockDelta
		lot       *repository.Lot
		produced  decimal.Decimal
	)

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		op, err = s.opRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		oldStatus = op.Status

		if err := s.checkTransition(op.Status, in.Status, in.Role); err != nil {
			return err
		}

		items, err = s.opRepo.LoadItemsTx(ctx, tx, op.ID)
		if err != nil {
			return err
		}

		behavior := behaviors[op.Type]

		switch in.Status {
		case repository.StatusPending:
			if behavior.reserving {
				created, err = s.placeReservations(ctx, tx, op, items)
				if err != nil {
					return err
				}
			}

		case repository.StatusInProgress:
			if behavior.releaseOnStart {
				if _, err := s.resRepo.ReleaseAllForOperation(ctx, tx, op.ID, repository.ReservationReleased); err != nil {
					return err
				}
			}

		case repository.StatusCompleted:
			if behavior.releaseOnStart && oldStatus == repository.StatusPending {
				// Completing straight from pending skips in_progress;
				// the holds still release before the ledger applies.
				if _, err := s.resRepo.ReleaseAllForOperation(ctx, tx, op.ID, repository.ReservationReleased); err != nil {
					return err
				}
			}
			adjusted, lot, produced, warnings, err = s.applyCompletion(ctx, tx, op, items, behavior, in.Completion)
			if err != nil {
				return err
			}

		case repository.StatusCancelled:
			if _, err := s.resRepo.ReleaseAllForOperation(ctx, tx, op.ID, repository.ReservationCancelled); err != nil {
				return err
			}
		}

		op.Status = in.Status
		return s.opRepo.UpdateStatus(ctx, tx, op.ID, in.Status)
	})
	if err != nil {
		return nil, nil, err
	}

	for _, res := range created {
		s.publisher.PublishReservationCreated(ctx, res)
	}
	for _, d := range adjusted {
		s.publisher.PublishStockAdjusted(ctx, d.entry, d.delta.String(), op.ID)
	}
	if lot != nil {
		s.publisher.PublishLotGenerated(ctx, lot, op.ID, produced.String())
	}
	s.publisher.PublishOperationStatusChanged(ctx, op, oldStatus, in.PerformedBy)

	s.logger.WithOperation(op.ID).Info().
		Str("code", op.Code).
		Str("from", oldStatus).
		Str("to", op.Status).
		Msg("operation status changed")

	return &OperationDetail{Operation: op, Items: items}, warnings, nil
}

// Get returns an operation with its items, reservations and output lots
func (s *LifecycleService) Get(ctx context.Context, id string) (*OperationDetail, error) {
	op, items, err := s.opRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	reservations, err := s.resRepo.ListByOperation(ctx, id)
	if err != nil {
		return nil, err
	}

	lots, err := s.opRepo.ListOperationLots(ctx, id)
	if err != nil {
		return nil, err
	}

	return &OperationDetail{Operation: op, Items: items, Reservations: reservations, Lots: lots}, nil
}

// List returns operations matching the filter, newest first
func (s *LifecycleService) List(ctx context.Context, filter repository.OperationFilter, page, perPage int) ([]*repository.InventoryOperation, int64, error) {
	return s.opRepo.List(ctx, filter, page, perPage)
}

// Delete removes an operation and every reservation it owns in one
// transaction. Terminal operations are locked for ordinary callers:
// their ledger effects are history and the row must remain for
// traceability. An administrator may still remove them.
func (s *LifecycleService) Delete(ctx context.Context, id, role string) error {
	var op *repository.InventoryOperation
	var dropped int64

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		op, err = s.opRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		terminal := op.Status == repository.StatusCompleted || op.Status == repository.StatusCancelled
		if terminal && role != httputil.RoleAdmin {
			return errors.OperationLocked(op.ID)
		}

		dropped, err = s.resRepo.DeleteAllForOperation(ctx, tx, op.ID)
		if err != nil {
			return err
		}
		return s.opRepo.Delete(ctx, tx, op.ID)
	})
	if err != nil {
		return err
	}

	s.publisher.PublishOperationDeleted(ctx, op, int(dropped))
	s.logger.WithOperation(op.ID).Info().
		Str("code", op.Code).
		Int64("reservations_dropped", dropped).
		Msg("operation deleted")
	return nil
}

// ReservationsForOperation lists every hold owned by an operation
func (s *LifecycleService) ReservationsForOperation(ctx context.Context, operationID string) ([]*repository.Reservation, error) {
	if _, _, err := s.opRepo.GetByID(ctx, operationID); err != nil {
		return nil, err
	}
	return s.resRepo.ListByOperation(ctx, operationID)
}

// ReleaseReservation releases a single active hold
func (s *LifecycleService) ReleaseReservation(ctx context.Context, id string) (*repository.Reservation, error) {
	var res *repository.Reservation

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.resRepo.Release(ctx, tx, id, repository.ReservationReleased); err != nil {
			return err
		}
		var err error
		res, err = s.resRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishReservationReleased(ctx, res, repository.ReservationReleased)
	return res, nil
}

// RecordDelivery records a partial delivery against an active hold.
// The hold flips to delivered once the delivered quantity covers the
// reserved quantity.
func (s *LifecycleService) RecordDelivery(ctx context.Context, id string, quantity decimal.Decimal) (*repository.Reservation, error) {
	if !quantity.IsPositive() {
		return nil, errors.BadRequest("delivered quantity must be positive")
	}

	var res *repository.Reservation
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.resRepo.RecordDelivery(ctx, tx, id, quantity); err != nil {
			return err
		}
		var err error
		res, err = s.resRepo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if res.Status == repository.ReservationDelivered {
		s.publisher.PublishReservationReleased(ctx, res, repository.ReservationDelivered)
	}
	return res, nil
}

func (s *LifecycleService) checkTransition(from, to, role string) error {
	if from == repository.StatusCompleted && to == repository.StatusCancelled {
		if role != httputil.RoleAdmin {
			return errors.Forbidden("only an administrator can cancel a completed operation")
		}
		return nil
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return errors.InvalidTransition(from, to)
}

// buildItems converts inputs to repository items, enforcing positive
// quantities and structural allocation rules. Signed adjustments are
// the only type that may carry a negative requested quantity; it is
// applied as-is at completion, where the ledger rejects a negative
// result.
func (s *LifecycleService) buildItems(opType string, inputs []*OperationItemInput) ([]*repository.OperationItem, error) {
	signed := behaviors[opType].signed
	items := make([]*repository.OperationItem, 0, len(inputs))
	for _, in := range inputs {
		if in.RequestedQuantity.IsZero() {
			return nil, errors.BadRequest("item quantity cannot be zero")
		}
		if !signed && !in.RequestedQuantity.IsPositive() {
			return nil, errors.BadRequest("item quantity must be positive")
		}

		if err := s.combos.Validate(in.RequestedQuantity, in.Lines, nil); err != nil {
			return nil, err
		}

		item := &repository.OperationItem{
			ArticleID:         in.ArticleID,
			RequestedQuantity: in.RequestedQuantity,
			TargetZoneID:      in.TargetZoneID,
			LotID:             in.LotID,
		}
		for _, line := range in.Lines {
			item.Lines = append(item.Lines, &repository.OperationItemLine{
				LotID:    line.LotID,
				ZoneID:   line.ZoneID,
				Quantity: line.Quantity,
			})
		}
		items = append(items, item)
	}
	return items, nil
}

// placeReservations validates availability under lock and creates the
// holds for every item. The snapshot excludes this operation's own
// holds; consumption by earlier items in the same call is tracked
// in-memory so one article cannot be over-committed across items.
func (s *LifecycleService) placeReservations(ctx context.Context, tx *sqlx.Tx, op *repository.InventoryOperation, items []*repository.OperationItem) ([]*repository.Reservation, error) {
	snapshots := make(map[string]*AvailabilityResult)
	consumedTotal := make(map[string]decimal.Decimal)
	consumedCombo := make(map[string]map[CombinationKey]decimal.Decimal)

	var created []*repository.Reservation

	for _, item := range items {
		avail, ok := snapshots[item.ArticleID]
		if !ok {
			var err error
			avail, err = s.available.AvailabilityTx(ctx, tx, item.ArticleID, &op.ID)
			if err != nil {
				return nil, err
			}
			snapshots[item.ArticleID] = avail
			consumedCombo[item.ArticleID] = make(map[CombinationKey]decimal.Decimal)
		}

		if len(item.Lines) > 0 {
			for _, line := range item.Lines {
				key := keyOf(line.LotID, line.ZoneID)
				free := avail.ForCombination(line.LotID, line.ZoneID).Sub(consumedCombo[item.ArticleID][key])
				if line.Quantity.GreaterThan(free) {
					return nil, errors.InsufficientAvailability(item.ArticleID, map[string]string{
						"lot_id":    key.LotID,
						"zone_id":   line.ZoneID,
						"requested": line.Quantity.String(),
						"available": free.String(),
					})
				}
				consumedCombo[item.ArticleID][key] = consumedCombo[item.ArticleID][key].Add(line.Quantity)
				zoneID := line.ZoneID
				res := &repository.Reservation{
					OperationID:      op.ID,
					ArticleID:        item.ArticleID,
					LotID:            line.LotID,
					ZoneID:           &zoneID,
					ReservedQuantity: line.Quantity,
					ReservationType:  op.Type,
				}
				if err := s.resRepo.Create(ctx, tx, res); err != nil {
					return nil, err
				}
				created = append(created, res)
			}
			consumedTotal[item.ArticleID] = consumedTotal[item.ArticleID].Add(item.RequestedQuantity)
			continue
		}

		free := avail.Summary.TotalAvailable.Sub(consumedTotal[item.ArticleID])
		if item.RequestedQuantity.GreaterThan(free) {
			return nil, errors.InsufficientAvailability(item.ArticleID, map[string]string{
				"requested": item.RequestedQuantity.String(),
				"available": free.String(),
			})
		}
		consumedTotal[item.ArticleID] = consumedTotal[item.ArticleID].Add(item.RequestedQuantity)

		res := &repository.Reservation{
			OperationID:      op.ID,
			ArticleID:        item.ArticleID,
			LotID:            item.LotID,
			ZoneID:           item.TargetZoneID,
			ReservedQuantity: item.RequestedQuantity,
			ReservationType:  op.Type,
		}
		if err := s.resRepo.Create(ctx, tx, res); err != nil {
			return nil, err
		}
		created = append(created, res)
	}

	return created, nil
}

// stockDelta records one applied ledger movement for post-commit events
type stockDelta struct {
	entry *repository.StockEntry
	delta decimal.Decimal
}

// applyCompletion applies the type-specific ledger effect of entering
// completed. Every Adjust runs under row lock inside the caller's
// transaction; a negative result aborts the whole completion.
func (s *LifecycleService) applyCompletion(
	ctx context.Context,
	tx *sqlx.Tx,
	op *repository.InventoryOperation,
	items []*repository.OperationItem,
	behavior typeBehavior,
	completion *CompletionInput,
) (deltas []stockDelta, lot *repository.Lot, produced decimal.Decimal, warnings []*Warning, err error) {
	adjust := func(articleID string, lotID *string, zoneID string, delta decimal.Decimal) error {
		entry, err := s.stockRepo.Adjust(ctx, tx, articleID, lotID, zoneID, delta)
		if err != nil {
			return err
		}
		deltas = append(deltas, stockDelta{entry: entry, delta: delta})
		return nil
	}

	switch {
	case behavior.inbound:
		for _, item := range items {
			if item.TargetZoneID == nil {
				return nil, nil, produced, nil, errors.BadRequest("inbound items require a target zone")
			}
			if !item.RequestedQuantity.IsPositive() {
				return nil, nil, produced, nil, errors.BadRequest("inbound item quantity must be positive")
			}
			if err := adjust(item.ArticleID, item.LotID, *item.TargetZoneID, item.RequestedQuantity); err != nil {
				return nil, nil, produced, nil, err
			}
		}

	case behavior.signed:
		for _, item := range items {
			if item.TargetZoneID == nil {
				return nil, nil, produced, nil, errors.BadRequest("adjustment items require a target zone")
			}
			if err := adjust(item.ArticleID, item.LotID, *item.TargetZoneID, item.RequestedQuantity); err != nil {
				return nil, nil, produced, nil, err
			}
		}

	case behavior.outbound:
		for _, item := range items {
			if len(item.Lines) == 0 {
				if item.TargetZoneID == nil {
					return nil, nil, produced, nil, errors.BadRequest("outbound items require allocation lines or a zone")
				}
				if err := adjust(item.ArticleID, item.LotID, *item.TargetZoneID, item.RequestedQuantity.Neg()); err != nil {
					return nil, nil, produced, nil, err
				}
				continue
			}
			for _, line := range item.Lines {
				if err := adjust(item.ArticleID, line.LotID, line.ZoneID, line.Quantity.Neg()); err != nil {
					return nil, nil, produced, nil, err
				}
			}
		}
		if op.Type == repository.OpDelivery {
			if _, err := s.resRepo.ReleaseAllForOperation(ctx, tx, op.ID, repository.ReservationDelivered); err != nil {
				return nil, nil, produced, nil, err
			}
		}

	case behavior.transfer:
		for _, item := range items {
			if item.TargetZoneID == nil {
				return nil, nil, produced, nil, errors.BadRequest("transfer items require a target zone")
			}
			if len(item.Lines) == 0 {
				return nil, nil, produced, nil, errors.BadRequest("transfer items require allocation lines")
			}
			for _, line := range item.Lines {
				if err := adjust(item.ArticleID, line.LotID, line.ZoneID, line.Quantity.Neg()); err != nil {
					return nil, nil, produced, nil, err
				}
				if err := adjust(item.ArticleID, line.LotID, *item.TargetZoneID, line.Quantity); err != nil {
					return nil, nil, produced, nil, err
				}
			}
		}
		if _, err := s.resRepo.ReleaseAllForOperation(ctx, tx, op.ID, repository.ReservationReleased); err != nil {
			return nil, nil, produced, nil, err
		}

	case behavior.production:
		if completion == nil {
			return nil, nil, produced, nil, errors.BadRequest("completing a production operation requires conform and waste quantities")
		}
		if completion.ConformQuantity.IsNegative() || completion.WasteQuantity.IsNegative() {
			return nil, nil, produced, nil, errors.BadRequest("conform and waste quantities cannot be negative")
		}

		for _, item := range items {
			for _, line := range item.Lines {
				if err := adjust(item.ArticleID, line.LotID, line.ZoneID, line.Quantity.Neg()); err != nil {
					return nil, nil, produced, nil, err
				}
			}
		}

		// Zero output still consumes the ingredients; there is just
		// no lot to register.
		produced = completion.ConformQuantity.Add(completion.WasteQuantity)
		if !produced.IsPositive() {
			break
		}

		article, err := s.articleRepo.GetByID(ctx, *op.OutputArticleID)
		if err != nil {
			return nil, nil, produced, nil, err
		}

		manufactured := time.Now()
		if completion.ManufacturedAt != nil {
			manufactured = *completion.ManufacturedAt
		}

		var warning *Warning
		lot, warning, err = s.lotGen.GenerateLot(ctx, tx, op.ID, article, completion.ConformQuantity, completion.WasteQuantity, manufactured)
		if err != nil {
			return nil, nil, produced, nil, err
		}
		if warning != nil {
			warnings = append(warnings, warning)
		}

		if completion.ConformQuantity.IsPositive() {
			if err := adjust(article.ID, &lot.ID, *op.OutputZoneID, completion.ConformQuantity); err != nil {
				return nil, nil, produced, nil, err
			}
		}
	}

	return deltas, lot, produced, warnings, nil
}

func formatOperationCode(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", prefix, day.Format("20060102"), seq)
}
