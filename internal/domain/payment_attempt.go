package domain

import "time"

type AttemptStatus string

const (
	AttemptInitialized AttemptStatus = "INITIALIZED"
	AttemptHandedOff   AttemptStatus = "HANDED_OFF"
	AttemptFailed      AttemptStatus = "FAILED"
	AttemptCompleted   AttemptStatus = "COMPLETED"
)

// PaymentAttempt is a ledger row for one gateway interaction. The provider
// payload is never stored.
type PaymentAttempt struct {
	ID            string        `json:"id"`
	CheckoutID    string        `json:"checkoutId"`
	GatewayID     GatewayID     `json:"gatewayId"`
	TransactionID string        `json:"transactionId,omitempty"`
	Status        AttemptStatus `json:"status"`
	OrderID       string        `json:"orderId,omitempty"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

const CheckoutCompletedEvent = "checkout.completed"

// CheckoutCompleted is the outbox payload published once an order is placed.
type CheckoutCompleted struct {
	CheckoutID  string    `json:"checkout_id"`
	Channel     string    `json:"channel,omitempty"`
	Email       string    `json:"email,omitempty"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	GatewayID   GatewayID `json:"gateway_id,omitempty"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
	CompletedAt time.Time `json:"completed_at"`
}
