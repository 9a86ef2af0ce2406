package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type DraftOrderCreateRequest struct {
	DraftOrder DraftOrder `json:"draft_order"`
}

type DraftOrder struct {
	LineItems                 []DraftOrderLineItem `json:"line_items"`
	Customer                  *CustomerRef         `json:"customer,omitempty"`
	ShippingAddress           *Address             `json:"shipping_address,omitempty"`
	Note                      string               `json:"note,omitempty"`
	NoteAttributes            []NoteAttribute      `json:"note_attributes,omitempty"`
	Tags                      string               `json:"tags,omitempty"`
	UseCustomerDefaultAddress bool                 `json:"use_customer_default_address"`
}

type DraftOrderLineItem struct {
	VariantID  json.Number     `json:"variant_id,omitempty"`
	Title      string          `json:"title,omitempty"`
	Price      string          `json:"price,omitempty"`
	Quantity   int             `json:"quantity"`
	Properties json.RawMessage `json:"properties"`
}

type CustomerRef struct {
	ID int64 `json:"id"`
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Phone     string `json:"phone"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
}

type NoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type DraftOrderCreateResponse struct {
	DraftOrder DraftOrderResult `json:"draft_order"`
}

type DraftOrderResult struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	InvoiceURL string `json:"invoice_url"`
}

// CreateDraftOrder posts the draft order and returns what Shopify assigned to it.
func CreateDraftOrder(ctx context.Context, api Requester, order DraftOrder) (*DraftOrderResult, error) {
	var resp DraftOrderCreateResponse
	if err := api.Do(ctx, http.MethodPost, "/draft_orders.json", DraftOrderCreateRequest{DraftOrder: order}, &resp); err != nil {
		return nil, fmt.Errorf("draft order create: %w", err)
	}
	if resp.DraftOrder.ID == 0 {
		return nil, fmt.Errorf("draft order create: %w: draft_order.id", ErrMissingField)
	}
	return &resp.DraftOrder, nil
}
