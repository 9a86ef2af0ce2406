package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Contact is the customer block of a storefront submission.
type Contact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
}

func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

type customerSearchResponse struct {
	Customers []struct {
		ID int64 `json:"id"`
	} `json:"customers"`
}

type customerCreateRequest struct {
	Customer newCustomer `json:"customer"`
}

type newCustomer struct {
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	VerifiedEmail bool   `json:"verified_email"`
}

type customerCreateResponse struct {
	Customer struct {
		ID int64 `json:"id"`
	} `json:"customer"`
}

// CustomerResolver finds a customer by exact email or creates one.
// Two concurrent submissions for the same new email can both create a customer.
type CustomerResolver struct {
	api Requester
}

func NewCustomerResolver(api Requester) *CustomerResolver {
	return &CustomerResolver{api: api}
}

func (r *CustomerResolver) Resolve(ctx context.Context, contact Contact) (int64, error) {
	email := strings.TrimSpace(contact.Email)

	if email != "" {
		id, err := r.findByEmail(ctx, email)
		if err != nil {
			return 0, err
		}
		if id != 0 {
			return id, nil
		}
	}

	return r.create(ctx, contact, email)
}

func (r *CustomerResolver) findByEmail(ctx context.Context, email string) (int64, error) {
	q := url.Values{}
	q.Set("query", "email:"+email)

	var resp customerSearchResponse
	if err := r.api.Do(ctx, http.MethodGet, "/customers/search.json?"+q.Encode(), nil, &resp); err != nil {
		return 0, fmt.Errorf("customer search: %w", err)
	}
	if len(resp.Customers) == 0 {
		return 0, nil
	}
	return resp.Customers[0].ID, nil
}

func (r *CustomerResolver) create(ctx context.Context, contact Contact, email string) (int64, error) {
	body := customerCreateRequest{Customer: newCustomer{
		FirstName:     strings.TrimSpace(contact.FirstName),
		LastName:      strings.TrimSpace(contact.LastName),
		Email:         email,
		Phone:         strings.TrimSpace(contact.Phone),
		VerifiedEmail: email != "",
	}}

	var resp customerCreateResponse
	if err := r.api.Do(ctx, http.MethodPost, "/customers.json", body, &resp); err != nil {
		return 0, fmt.Errorf("customer create: %w", err)
	}
	if resp.Customer.ID == 0 {
		return 0, fmt.Errorf("customer create: %w: customer.id", ErrMissingField)
	}
	return resp.Customer.ID, nil
}
