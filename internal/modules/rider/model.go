// README: Rider directory model. Only active riders may claim or be
// assigned orders.
package rider

import (
	"time"

	"medrush/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusRejected:
		return true
	}
	return false
}

type Rider struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
