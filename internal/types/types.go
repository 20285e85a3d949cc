// README: Common value types shared across modules.
package types

// ID is an opaque identifier for orders, riders, and users.
type ID string

func (id ID) String() string { return string(id) }

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
