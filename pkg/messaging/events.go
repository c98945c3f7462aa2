package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Stock events
	EventStockAdjusted = "inventory.stock.adjusted"

	// Operation events
	EventOperationStatusChanged = "inventory.operation.status_changed"
	EventOperationDeleted       = "inventory.operation.deleted"

	// Reservation events
	EventReservationCreated  = "inventory.reservation.created"
	EventReservationReleased = "inventory.reservation.released"

	// Lot events
	EventLotGenerated = "inventory.lot.generated"

	// Integrity events
	EventAnomalyDetected = "inventory.anomaly.detected"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Stock Events

// StockAdjustedEvent is published when the ledger commits a delta
type StockAdjustedEvent struct {
	ArticleID   string `json:"article_id"`
	LotID       string `json:"lot_id,omitempty"`
	ZoneID      string `json:"zone_id"`
	Delta       string `json:"delta"`
	NewQuantity string `json:"new_quantity"`
	OperationID string `json:"operation_id,omitempty"`
}

// Operation Events

// OperationStatusChangedEvent is published on every status transition
type OperationStatusChangedEvent struct {
	OperationID string `json:"operation_id"`
	Code        string `json:"code"`
	Type        string `json:"type"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	PerformedBy string `json:"performed_by,omitempty"`
}

// OperationDeletedEvent is published when an operation and its
// reservations are cascade-deleted
type OperationDeletedEvent struct {
	OperationID         string `json:"operation_id"`
	Code                string `json:"code"`
	Type                string `json:"type"`
	ReservationsDropped int    `json:"reservations_dropped"`
}

// Reservation Events

// ReservationCreatedEvent is published when a hold is placed
type ReservationCreatedEvent struct {
	ReservationID string `json:"reservation_id"`
	OperationID   string `json:"operation_id"`
	ArticleID     string `json:"article_id"`
	LotID         string `json:"lot_id,omitempty"`
	ZoneID        string `json:"zone_id,omitempty"`
	Quantity      string `json:"quantity"`
}

// ReservationReleasedEvent is published when a hold reaches a terminal status
type ReservationReleasedEvent struct {
	ReservationID string `json:"reservation_id"`
	OperationID   string `json:"operation_id"`
	ArticleID     string `json:"article_id"`
	Status        string `json:"status"`
}

// Lot Events

// LotGeneratedEvent is published when production completion creates a lot
type LotGeneratedEvent struct {
	LotID            string     `json:"lot_id"`
	Code             string     `json:"code"`
	ArticleID        string     `json:"article_id"`
	OperationID      string     `json:"operation_id"`
	ProducedQuantity string     `json:"produced_quantity"`
	ExpirationDate   *time.Time `json:"expiration_date,omitempty"`
}

// Integrity Events

// AnomalyDetectedEvent is published when a reservation references a
// (lot, zone) combination with no matching stock
type AnomalyDetectedEvent struct {
	ReservationID string `json:"reservation_id"`
	OperationID   string `json:"operation_id"`
	ArticleID     string `json:"article_id"`
	LotID         string `json:"lot_id,omitempty"`
	ZoneID        string `json:"zone_id,omitempty"`
	Reserved      string `json:"reserved"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
