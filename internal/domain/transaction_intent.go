package domain

import (
	"encoding/json"
	"time"
)

// TransactionIntent is the gateway specific payload returned by
// transactionInitialize. It only lives as long as the checkout session and is
// consumed by the gateway handler on hand-off.
type TransactionIntent struct {
	GatewayID     GatewayID       `json:"gatewayId"`
	TransactionID string          `json:"transactionId"`
	Data          json.RawMessage `json:"-"`
	ReturnURL     string          `json:"returnUrl,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
