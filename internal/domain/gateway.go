package domain

// GatewayID identifies a payment app installed on the checkout API.
type GatewayID string

const (
	AdyenGatewayID   GatewayID = "app.saleor.adyen"
	StripeGatewayID  GatewayID = "app.saleor.stripe"
	PayfastGatewayID GatewayID = "app.saleor.payfast"
)

func (g GatewayID) String() string {
	return string(g)
}
