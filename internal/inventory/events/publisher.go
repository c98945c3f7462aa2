package events

import (
	"context"

	"github.com/younes21/PastryLabManager-sub003/internal/inventory/repository"
	"github.com/younes21/PastryLabManager-sub003/pkg/logger"
	"github.com/younes21/PastryLabManager-sub003/pkg/messaging"
)

// InventoryEventPublisher publishes inventory-related events. A nil
// publisher is valid and drops every event, so the services run
// unchanged when RabbitMQ is absent.
type InventoryEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewInventoryEventPublisher creates a new inventory event publisher
func NewInventoryEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*InventoryEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}

	return &InventoryEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishStockAdjusted publishes a stock adjusted event
func (p *InventoryEventPublisher) PublishStockAdjusted(ctx context.Context, entry *repository.StockEntry, delta string, operationID string) {
	if p == nil {
		return
	}

	data := messaging.StockAdjustedEvent{
		ArticleID:   entry.ArticleID,
		ZoneID:      entry.ZoneID,
		Delta:       delta,
		NewQuantity: entry.Quantity.String(),
		OperationID: operationID,
	}
	if entry.LotID != nil {
		data.LotID = *entry.LotID
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAdjusted, data); err != nil {
		p.logger.Error().Err(err).Str("article_id", entry.ArticleID).Msg("failed to publish stock adjusted event")
	}
}

// PublishOperationStatusChanged publishes an operation status changed event
func (p *InventoryEventPublisher) PublishOperationStatusChanged(ctx context.Context, op *repository.InventoryOperation, oldStatus, performedBy string) {
	if p == nil {
		return
	}

	data := messaging.OperationStatusChangedEvent{
		OperationID: op.ID,
		Code:        op.Code,
		Type:        op.Type,
		OldStatus:   oldStatus,
		NewStatus:   op.Status,
		PerformedBy: performedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOperationStatusChanged, data); err != nil {
		p.logger.Error().Err(err).Str("operation_id", op.ID).Msg("failed to publish operation status changed event")
	}
}

// PublishOperationDeleted publishes an operation deleted event
func (p *InventoryEventPublisher) PublishOperationDeleted(ctx context.Context, op *repository.InventoryOperation, reservationsDropped int) {
	if p == nil {
		return
	}

	data := messaging.OperationDeletedEvent{
		OperationID:         op.ID,
		Code:                op.Code,
		Type:                op.Type,
		ReservationsDropped: reservationsDropped,
	}

	if err := p.publisher.Publish(ctx, messaging.EventOperationDeleted, data); err != nil {
		p.logger.Error().Err(err).Str("operation_id", op.ID).Msg("failed to publish operation deleted event")
	}
}

// PublishReservationCreated publishes a reservation created event
func (p *InventoryEventPublisher) PublishReservationCreated(ctx context.Context, res *repository.Reservation) {
	if p == nil {
		return
	}

	data := messaging.ReservationCreatedEvent{
		ReservationID: res.ID,
		OperationID:   res.OperationID,
		ArticleID:     res.ArticleID,
		Quantity:      res.ReservedQuantity.String(),
	}
	if res.LotID != nil {
		data.LotID = *res.LotID
	}
	if res.ZoneID != nil {
		data.ZoneID = *res.ZoneID
	}

	if err := p.publisher.Publish(ctx, messaging.EventReservationCreated, data); err != nil {
		p.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to publish reservation created event")
	}
}

// PublishReservationReleased publishes a reservation released event
func (p *InventoryEventPublisher) PublishReservationReleased(ctx context.Context, res *repository.Reservation, status string) {
	if p == nil {
		return
	}

	data := messaging.ReservationReleasedEvent{
		ReservationID: res.ID,
		OperationID:   res.OperationID,
		ArticleID:     res.ArticleID,
		Status:        status,
	}

	if err := p.publisher.Publish(ctx, messaging.EventReservationReleased, data); err != nil {
		p.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to publish reservation released event")
	}
}

// PublishLotGenerated publishes a lot generated event
func (p *InventoryEventPublisher) PublishLotGenerated(ctx context.Context, lot *repository.Lot, operationID, producedQuantity string) {
	if p == nil {
		return
	}

	data := messaging.LotGeneratedEvent{
		LotID:            lot.ID,
		Code:             lot.Code,
		ArticleID:        lot.ArticleID,
		OperationID:      operationID,
		ProducedQuantity: producedQuantity,
		ExpirationDate:   lot.ExpirationDate,
	}

	if err := p.publisher.Publish(ctx, messaging.EventLotGenerated, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", lot.ID).Msg("failed to publish lot generated event")
	}
}

// PublishAnomalyDetected publishes an anomaly detected event
func (p *InventoryEventPublisher) PublishAnomalyDetected(ctx context.Context, articleID, reservationID, operationID string, lotID, zoneID *string, reserved string) {
	if p == nil {
		return
	}

	data := messaging.AnomalyDetectedEvent{
		ReservationID: reservationID,
		OperationID:   operationID,
		ArticleID:     articleID,
		Reserved:      reserved,
	}
	if lotID != nil {
		data.LotID = *lotID
	}
	if zoneID != nil {
		data.ZoneID = *zoneID
	}

	if err := p.publisher.Publish(ctx, messaging.EventAnomalyDetected, data); err != nil {
		p.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("failed to publish anomaly detected event")
	}
}
