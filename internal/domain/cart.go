package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartLine is a reservation: its quantity has already been subtracted from
// the product's stock. A line with quantity 0 does not exist.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   Product   `json:"product"`
	AddedAt   time.Time `json:"added_at"`
}

type Cart struct {
	UserID    uuid.UUID  `json:"user_id"`
	Lines     []CartLine `json:"lines"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
