package saleor

import (
	"encoding/json"

	"github.com/cass-tech/storefront/internal/domain"
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

type GraphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// MutationError is an entry of a mutation payload's errors list.
type MutationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireMoney struct {
	Gross domain.Money `json:"gross"`
}

type wireAddress struct {
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	CompanyName    string         `json:"companyName"`
	StreetAddress1 string         `json:"streetAddress1"`
	StreetAddress2 string         `json:"streetAddress2"`
	City           string         `json:"city"`
	CountryArea    string         `json:"countryArea"`
	PostalCode     string         `json:"postalCode"`
	Phone          string         `json:"phone"`
	Country        domain.Country `json:"country"`
}

type wireLine struct {
	ID         string    `json:"id"`
	Quantity   int       `json:"quantity"`
	TotalPrice wireMoney `json:"totalPrice"`
	Variant    struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
	} `json:"variant"`
}

type wireChannel struct {
	Slug string `json:"slug"`
}

type wireCheckout struct {
	ID                 string       `json:"id"`
	Email              string       `json:"email"`
	IsShippingRequired bool         `json:"isShippingRequired"`
	Channel            wireChannel  `json:"channel"`
	BillingAddress     *wireAddress `json:"billingAddress"`
	ShippingAddress    *wireAddress `json:"shippingAddress"`
	Lines              []wireLine   `json:"lines"`
	SubtotalPrice      wireMoney    `json:"subtotalPrice"`
	ShippingPrice      wireMoney    `json:"shippingPrice"`
	TotalPrice         wireMoney    `json:"totalPrice"`
}

type checkoutMutationPayload struct {
	Checkout *wireCheckout   `json:"checkout"`
	Errors   []MutationError `json:"errors"`
}

type transactionInitializePayload struct {
	Transaction *struct {
		ID string `json:"id"`
	} `json:"transaction"`
	TransactionEvent *struct {
		PSPReference string `json:"pspReference"`
		Type         string `json:"type"`
		Message      string `json:"message"`
	} `json:"transactionEvent"`
	Data   json.RawMessage `json:"data"`
	Errors []MutationError `json:"errors"`
}

type checkoutCompletePayload struct {
	Order  *domain.Order   `json:"order"`
	Errors []MutationError `json:"errors"`
}

func (a *wireAddress) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		FirstName:      a.FirstName,
		LastName:       a.LastName,
		CompanyName:    a.CompanyName,
		StreetAddress1: a.StreetAddress1,
		StreetAddress2: a.StreetAddress2,
		City:           a.City,
		CountryArea:    a.CountryArea,
		PostalCode:     a.PostalCode,
		Phone:          a.Phone,
		Country:        a.Country,
	}
}

func (c *wireCheckout) toDomain() *domain.Checkout {
	out := &domain.Checkout{
		ID:                 c.ID,
		Channel:            c.Channel.Slug,
		Email:              c.Email,
		IsShippingRequired: c.IsShippingRequired,
		BillingAddress:     c.BillingAddress.toDomain(),
		ShippingAddress:    c.ShippingAddress.toDomain(),
		Lines:              make([]domain.CheckoutLine, 0, len(c.Lines)),
		Totals: domain.Totals{
			Subtotal: c.SubtotalPrice.Gross,
			Shipping: c.ShippingPrice.Gross,
			Total:    c.TotalPrice.Gross,
		},
	}
	for _, l := range c.Lines {
		out.Lines = append(out.Lines, domain.CheckoutLine{
			ID:       l.ID,
			Quantity: l.Quantity,
			Variant: domain.ProductVariant{
				ID:          l.Variant.ID,
				Name:        l.Variant.Name,
				ProductName: l.Variant.Product.Name,
			},
			TotalPrice: l.TotalPrice.Gross,
		})
	}
	return out
}

// addressInput maps an address onto the AddressInput GraphQL type.
func addressInput(a domain.Address) map[string]any {
	return map[string]any{
		"firstName":      a.FirstName,
		"lastName":       a.LastName,
		"companyName":    a.CompanyName,
		"streetAddress1": a.StreetAddress1,
		"streetAddress2": a.StreetAddress2,
		"city":           a.City,
		"countryArea":    a.CountryArea,
		"postalCode":     a.PostalCode,
		"phone":          a.Phone,
		"country":        a.Country.Code,
	}
}

func lineInputs(lines []domain.LineUpdate) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		in := map[string]any{"quantity": l.Quantity}
		if l.LineID != "" {
			in["lineId"] = l.LineID
		} else {
			in["variantId"] = l.VariantID
		}
		out = append(out, in)
	}
	return out
}
