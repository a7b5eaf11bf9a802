package event

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names a real-time event delivered over the live channel.
type Type string

const (
	// Connection lifecycle
	TypePing         Type = "ping"
	TypePong         Type = "pong"
	TypeConnected    Type = "connected"
	TypeDisconnected Type = "disconnected"
	TypeError        Type = "error"

	// Domain events (server -> client)
	TypeOrderCreated     Type = "order:created"
	TypeOrderUpdated     Type = "order:updated"
	TypeInventoryUpdated Type = "inventory:updated"
	TypeProductUpdated   Type = "product:updated"
	TypeNotificationNew  Type = "notification:new"
)

// Envelope is the universal message format on the live channel.
type Envelope struct {
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	ID        string          `json:"id,omitempty"`
}

// Order carries the identifying fields of an order event payload.
type Order struct {
	ID          string  `json:"id"`
	OrderNumber string  `json:"orderNumber"`
	Status      string  `json:"status"`
	StoreID     string  `json:"storeId,omitempty"`
	Total       float64 `json:"total,omitempty"`
}

// StoreInventory carries the identifying fields of an inventory event payload.
type StoreInventory struct {
	ID                string `json:"id"`
	ProductID         string `json:"productId"`
	StoreID           string `json:"storeId,omitempty"`
	QuantityAvailable int    `json:"quantityAvailable"`
	ReorderLevel      int    `json:"reorderLevel"`
}

// Product carries the identifying fields of a product event payload.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	SKU  string `json:"sku,omitempty"`
}

// NewEnvelope wraps a payload into an Envelope, marshaling the data eagerly so
// a bad payload surfaces at send time rather than on the wire.
func NewEnvelope(t Type, data interface{}) (*Envelope, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Envelope{
		Type:      t,
		Data:      raw,
		Timestamp: time.Now(),
		ID:        ulid.Make().String(),
	}, nil
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Decode unmarshals the envelope payload into target.
func (e *Envelope) Decode(target interface{}) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, target)
}

func ParseEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return &e, err
}
