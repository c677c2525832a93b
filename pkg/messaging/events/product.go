package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/google/uuid"
)

// ProductSnapshot is the product representation carried by lifecycle events.
type ProductSnapshot struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Category    string    `json:"category"`
}

type ProductCreatedEvent struct {
	Product    ProductSnapshot `json:"product"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (e ProductCreatedEvent) Subject() string {
	return messaging.ProductsCreatedSubject
}

func (e ProductCreatedEvent) Key() string {
	return e.Product.ID.String()
}

func (e ProductCreatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type ProductUpdatedEvent struct {
	Product ProductSnapshot `json:"product"`
	// Fields lists the payload fields that were present in the update.
	Fields     []string  `json:"fields"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e ProductUpdatedEvent) Subject() string {
	return messaging.ProductsUpdatedSubject
}

func (e ProductUpdatedEvent) Key() string {
	return e.Product.ID.String()
}

func (e ProductUpdatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

type ProductDeletedEvent struct {
	ProductID  uuid.UUID `json:"product_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e ProductDeletedEvent) Subject() string {
	return messaging.ProductsDeletedSubject
}

func (e ProductDeletedEvent) Key() string {
	return e.ProductID.String()
}

func (e ProductDeletedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
