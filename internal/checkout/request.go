package checkout

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/cicadacove/storefront/internal/domain"
	"github.com/google/uuid"
)

type RequestItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Request struct {
	Items              []RequestItem   `json:"items"`
	ShippingAddress    domain.Address  `json:"shippingAddress"`
	BillingAddress     *domain.Address `json:"billingAddress,omitempty"`
	BillingAddressSame bool            `json:"billingAddressSame"`
	ShippingMethod     string          `json:"shippingMethod"`
}

// Validate reports every invalid field, using the request's JSON paths.
func (r *Request) Validate() error {
	var v domain.ValidationError

	if len(r.Items) == 0 {
		v.Add("items")
	}
	for i, item := range r.Items {
		if _, err := uuid.Parse(item.ProductID); err != nil {
			v.Add(indexed("items", i, "productId"))
		}
		if item.Quantity < 1 || item.Quantity > domain.MaxQuantity {
			v.Add(indexed("items", i, "quantity"))
		}
	}

	validateAddress(&v, "shippingAddress", &r.ShippingAddress)
	if !r.BillingAddressSame {
		if r.BillingAddress == nil {
			v.Add("billingAddress")
		} else {
			validateAddress(&v, "billingAddress", r.BillingAddress)
		}
	}

	if strings.TrimSpace(r.ShippingMethod) == "" {
		v.Add("shippingMethod")
	}
	return v.Err()
}

func (r *Request) billing() domain.Address {
	if r.BillingAddressSame || r.BillingAddress == nil {
		return r.ShippingAddress
	}
	return *r.BillingAddress
}

func validateAddress(v *domain.ValidationError, prefix string, a *domain.Address) {
	required := []struct {
		name  string
		value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"address1", a.Address1},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			v.Add(prefix + "." + f.name)
		}
	}
	if !validEmail(a.Email) {
		v.Add(prefix + ".email")
	}
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func indexed(field string, i int, sub string) string {
	return fmt.Sprintf("%s[%d].%s", field, i, sub)
}
