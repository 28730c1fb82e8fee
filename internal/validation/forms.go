package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cass-tech/storefront/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Countries whose addresses cannot be delivered without a postal code.
var postalCodeRequired = map[string]bool{
	"US": true, "CA": true, "GB": true, "DE": true, "FR": true, "PL": true,
	"NL": true, "AU": true, "BR": true, "ZA": true, "JP": true, "IN": true,
}

// Countries that need a state/province/region.
var countryAreaRequired = map[string]bool{
	"US": true, "CA": true, "AU": true, "BR": true, "MX": true, "IN": true, "JP": true,
}

var validate = newValidate()

type guestUser struct {
	Email string `json:"email" validate:"required,email"`
}

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(addressStructLevel, domain.Address{})
	return v
}

// addressStructLevel keeps country dependent fields consistent with the country code.
func addressStructLevel(sl validator.StructLevel) {
	a := sl.Current().Interface().(domain.Address)
	code := strings.ToUpper(strings.TrimSpace(a.Country.Code))
	if code == "" {
		sl.ReportError(a.Country.Code, "country", "Country", "required", "")
		return
	}
	if postalCodeRequired[code] && strings.TrimSpace(a.PostalCode) == "" {
		sl.ReportError(a.PostalCode, "postalCode", "PostalCode", "required", "")
	}
	if countryAreaRequired[code] && strings.TrimSpace(a.CountryArea) == "" {
		sl.ReportError(a.CountryArea, "countryArea", "CountryArea", "required", "")
	}
}

// ValidateAddress returns the field errors for an address, or nil when it is complete.
func ValidateAddress(a *domain.Address) []FieldError {
	if a == nil {
		return []FieldError{{Field: "address", Code: "required", Message: "Address is required"}}
	}
	return toFieldErrors(validate.Struct(a))
}

func ValidateEmail(email string) []FieldError {
	return toFieldErrors(validate.Struct(guestUser{Email: email}))
}

func toFieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "form", Code: "invalid", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		var message string
		switch fe.Tag() {
		case "required":
			message = fmt.Sprintf("Field '%s' is required", fe.Field())
		case "email":
			message = fmt.Sprintf("Field '%s' must be a valid email address", fe.Field())
		case "e164":
			message = fmt.Sprintf("Field '%s' must be a valid phone number", fe.Field())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		}
		out = append(out, FieldError{Field: fe.Field(), Code: fe.Tag(), Message: message})
	}
	return out
}

func guestUserValidator(_ context.Context, c *domain.Checkout) []FieldError {
	if c == nil {
		return ValidateEmail("")
	}
	return ValidateEmail(c.Email)
}

func billingAddressValidator(_ context.Context, c *domain.Checkout) []FieldError {
	if c == nil {
		return ValidateAddress(nil)
	}
	return ValidateAddress(c.BillingAddress)
}

func shippingAddressValidator(_ context.Context, c *domain.Checkout) []FieldError {
	if c == nil {
		return ValidateAddress(nil)
	}
	if !c.IsShippingRequired {
		return nil
	}
	return ValidateAddress(c.ShippingAddress)
}

// CheckoutForms are the forms every payment section validates before paying.
func CheckoutForms() []Form {
	return []Form{
		{ID: GuestUserForm, GuestOnly: true, Validate: guestUserValidator},
		{ID: BillingAddressForm, Validate: billingAddressValidator},
		{ID: ShippingAddressForm, Validate: shippingAddressValidator},
	}
}
