package quote

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"rfq-proxy-app/internal/shopify"
)

const (
	noteMarker     = "Request for Quote (storefront)"
	defaultCountry = "United States"
	draftOrderTags = "rfq, app-proxy"
)

var emptyProperties = json.RawMessage(`[]`)

// Assemble maps a submission onto the draft order create schema. The caller
// attaches the customer reference.
func Assemble(s Submission) shopify.DraftOrder {
	order := shopify.DraftOrder{
		LineItems:                 make([]shopify.DraftOrderLineItem, 0, len(s.LineItems)),
		ShippingAddress:           shippingAddress(s),
		Note:                      composeNote(s),
		NoteAttributes:            noteAttributes(s),
		Tags:                      draftOrderTags,
		UseCustomerDefaultAddress: true,
	}
	for _, li := range s.LineItems {
		order.LineItems = append(order.LineItems, lineItem(li))
	}
	return order
}

func lineItem(li LineItem) shopify.DraftOrderLineItem {
	out := shopify.DraftOrderLineItem{
		Quantity:   li.Quantity,
		Properties: li.Properties,
	}
	if out.Quantity == 0 {
		out.Quantity = 1
	}
	if len(out.Properties) == 0 || string(out.Properties) == "null" {
		out.Properties = emptyProperties
	}

	if li.VariantID != "" {
		out.VariantID = li.VariantID
		return out
	}
	out.Title = li.Title
	out.Price = normalisePrice(li.Price)
	return out
}

// normalisePrice renders decimal prices with two places and passes anything
// else through untouched.
func normalisePrice(price string) string {
	if price == "" {
		return ""
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return price
	}
	return d.StringFixed(2)
}

func shippingAddress(s Submission) *shopify.Address {
	sh := s.Shipping
	if strings.TrimSpace(sh.Address1) == "" {
		return nil
	}
	country := strings.TrimSpace(sh.Country)
	if country == "" {
		country = defaultCountry
	}
	return &shopify.Address{
		FirstName: s.Customer.FirstName,
		LastName:  s.Customer.LastName,
		Company:   s.Customer.Company,
		Phone:     s.Customer.Phone,
		Address1:  sh.Address1,
		Address2:  sh.Address2,
		City:      sh.City,
		Province:  sh.Province,
		Zip:       sh.Zip,
		Country:   country,
	}
}

func composeNote(s Submission) string {
	lines := []string{noteMarker}
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, label+value)
		}
	}

	add("Customer: ", s.Customer.FullName())
	add("Contact: ", contactSummary(s.Customer))
	add("Shipping method: ", s.ShippingMethod)
	add("Installer needed: ", installer(s.InstallerNeeded))
	if addr := addressBlock(s.Shipping); addr != "" {
		lines = append(lines, "Ship to:\n"+addr)
	}
	add("Note: ", s.Note)

	return strings.Join(lines, "\n")
}

func noteAttributes(s Submission) []shopify.NoteAttribute {
	var attrs []shopify.NoteAttribute
	add := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			attrs = append(attrs, shopify.NoteAttribute{Name: name, Value: value})
		}
	}

	add("Customer Name", s.Customer.FullName())
	add("Email", s.Customer.Email)
	add("Phone", s.Customer.Phone)
	add("Company", s.Customer.Company)
	add("Shipping Method", s.ShippingMethod)
	add("Installer Needed", installer(s.InstallerNeeded))
	add("Address", strings.ReplaceAll(addressBlock(s.Shipping), "\n", ", "))
	add("Note", s.Note)
	return attrs
}

func contactSummary(c shopify.Contact) string {
	return joinNonEmpty(" | ", c.Email, c.Phone, c.Company)
}

func installer(v *bool) string {
	switch {
	case v == nil:
		return ""
	case *v:
		return "Yes"
	}
	return "No"
}

func addressBlock(sh Shipping) string {
	if strings.TrimSpace(sh.Address1) == "" {
		return ""
	}
	country := strings.TrimSpace(sh.Country)
	if country == "" {
		country = defaultCountry
	}
	cityLine := joinNonEmpty(" ", joinNonEmpty(", ", sh.City, sh.Province), sh.Zip)
	return joinNonEmpty("\n", sh.Address1, sh.Address2, cityLine, country)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
