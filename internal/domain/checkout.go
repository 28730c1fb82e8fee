package domain

// Money is an amount in a single currency as returned by the checkout API.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type Country struct {
	Code    string `json:"code"`
	Country string `json:"country,omitempty"`
}

type Address struct {
	FirstName      string  `json:"firstName" validate:"required"`
	LastName       string  `json:"lastName" validate:"required"`
	CompanyName    string  `json:"companyName,omitempty"`
	StreetAddress1 string  `json:"streetAddress1" validate:"required"`
	StreetAddress2 string  `json:"streetAddress2,omitempty"`
	City           string  `json:"city" validate:"required"`
	CountryArea    string  `json:"countryArea,omitempty"`
	PostalCode     string  `json:"postalCode,omitempty"`
	Phone          string  `json:"phone,omitempty" validate:"omitempty,e164"`
	Country        Country `json:"country"`
}

type ProductVariant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProductName string `json:"productName"`
}

type CheckoutLine struct {
	ID         string         `json:"id"`
	Quantity   int            `json:"quantity"`
	Variant    ProductVariant `json:"variant"`
	TotalPrice Money          `json:"totalPrice"`
}

type Totals struct {
	Subtotal Money `json:"subtotal"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// Checkout is the locally cached copy of the remote checkout. It is replaced
// wholesale with whatever the last mutation returned.
type Checkout struct {
	ID                 string         `json:"id"`
	Channel            string         `json:"channel"`
	Email              string         `json:"email"`
	BillingAddress     *Address       `json:"billingAddress"`
	ShippingAddress    *Address       `json:"shippingAddress"`
	IsShippingRequired bool           `json:"isShippingRequired"`
	Lines              []CheckoutLine `json:"lines"`
	Totals             Totals         `json:"totals"`
}

// LineUpdate is a quantity change for an existing line or a new variant.
type LineUpdate struct {
	LineID    string `json:"lineId,omitempty"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Customer is the signed-in account behind a bearer token.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Order is what a completed checkout turns into.
type Order struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}
