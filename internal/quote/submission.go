// Package quote turns a storefront request-for-quote into a Shopify draft order.
package quote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"rfq-proxy-app/internal/shopify"
)

// Submission is the JSON body posted by the storefront form.
type Submission struct {
	LineItems       []LineItem      `json:"line_items"`
	Customer        shopify.Contact `json:"customer"`
	Shipping        Shipping        `json:"shipping"`
	Note            string          `json:"note"`
	InstallerNeeded *bool           `json:"installer_needed"`
	ShippingMethod  string          `json:"shipping_method"`
}

// LineItem is either a catalog variant or a free-text title/price.
// Form fields arrive as strings as often as numbers; see UnmarshalJSON.
type LineItem struct {
	VariantID  json.Number
	Title      string
	Price      string // trimmed as submitted; normalised when it parses as a decimal
	Quantity   int
	Properties json.RawMessage
}

type rawLineItem struct {
	VariantID  json.RawMessage `json:"variant_id"`
	Title      json.RawMessage `json:"title"`
	Price      json.RawMessage `json:"price"`
	Quantity   json.RawMessage `json:"quantity"`
	Properties json.RawMessage `json:"properties"`
}

// UnmarshalJSON accepts numbers or strings for variant_id, price and quantity.
// Empty or null values count as absent; a quantity that is not a number is
// treated as absent too.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw rawLineItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	variantID, err := scalar(raw.VariantID)
	if err != nil {
		return fmt.Errorf("variant_id: %w", err)
	}
	if variantID != "" {
		if _, err := strconv.ParseInt(variantID, 10, 64); err != nil {
			return fmt.Errorf("variant_id: not a number: %q", variantID)
		}
	}

	title, err := scalar(raw.Title)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	price, err := scalar(raw.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	quantity, err := scalar(raw.Quantity)
	if err != nil {
		return fmt.Errorf("quantity: %w", err)
	}

	*li = LineItem{
		VariantID:  json.Number(variantID),
		Title:      title,
		Price:      price,
		Quantity:   parseQuantity(quantity),
		Properties: raw.Properties,
	}
	return nil
}

// scalar reads a JSON string or number as trimmed text; null and absent give "".
func scalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw), nil
	}
	return "", fmt.Errorf("expected string or number, got %s", raw)
}

func parseQuantity(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

type Shipping struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
}

// ValidationError is a submission we refuse before touching Shopify.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (s Submission) Validate() error {
	if len(s.LineItems) == 0 {
		return &ValidationError{Message: "No line items"}
	}
	return nil
}
