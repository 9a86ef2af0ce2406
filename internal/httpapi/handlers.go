package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"rfq-proxy-app/internal/config"
	"rfq-proxy-app/internal/metrics"
	"rfq-proxy-app/internal/quote"
	"rfq-proxy-app/internal/shopify"
)

// AdminAPI is what the handlers need from the Shopify admin client.
type AdminAPI interface {
	shopify.Requester
	AdminURL(draftOrderID int64) string
}

type Handlers struct {
	cfg       config.Config
	verifier  *shopify.ProxyVerifier
	admin     AdminAPI
	customers *shopify.CustomerResolver
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewHandlers(cfg config.Config, admin AdminAPI, m *metrics.Metrics, logger *slog.Logger) *Handlers {
	verifier := &shopify.ProxyVerifier{
		Secret: cfg.ShopifyAPISecret,
		Options: shopify.ProxyOptions{
			MountPrefix:        cfg.ProxyMountPrefix,
			FallbackPathPrefix: shopify.FallbackPathPrefix(cfg.ProxyPathPrefix, cfg.ProxySubpath),
		},
	}
	if cfg.ProxyDebug {
		verifier.Debug = logger.With("component", "proxy-verifier")
	}

	return &Handlers{
		cfg:       cfg,
		verifier:  verifier,
		admin:     admin,
		customers: shopify.NewCustomerResolver(admin),
		metrics:   m,
		log:       logger,
	}
}

func (h *Handlers) Root(c *gin.Context) {
	c.String(http.StatusOK, "RFQ app proxy is running")
}

func (h *Handlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

// CreateDraftOrder turns a signed storefront RFQ into a draft order.
func (h *Handlers) CreateDraftOrder(c *gin.Context) {
	var sub quote.Submission
	if err := c.ShouldBindJSON(&sub); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(c, err)
			return
		}
		h.fail(c, &quote.ValidationError{Message: "Invalid JSON body"})
		return
	}
	if err := sub.Validate(); err != nil {
		h.fail(c, err)
		return
	}

	if err := h.verify(c); err != nil {
		h.fail(c, err)
		return
	}

	// a client hanging up must not abort a half-finished upstream sequence
	ctx := context.WithoutCancel(c.Request.Context())

	customerID, err := h.customers.Resolve(ctx, sub.Customer)
	if err != nil {
		h.fail(c, fmt.Errorf("resolve customer: %w", err))
		return
	}

	order := quote.Assemble(sub)
	order.Customer = &shopify.CustomerRef{ID: customerID}

	draft, err := shopify.CreateDraftOrder(ctx, h.admin, order)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.log.Info("draft order created",
		"request_id", c.GetString(requestIDKey),
		"draft_order_id", draft.ID,
		"customer_id", customerID,
		"line_items", len(order.LineItems),
	)

	resp := gin.H{
		"reference": draft.ID,
		"admin_url": h.admin.AdminURL(draft.ID),
	}
	if draft.InvoiceURL != "" {
		resp["invoice_url"] = draft.InvoiceURL
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) verify(c *gin.Context) error {
	if h.cfg.SkipProxyVerify {
		h.metrics.ObserveVerification("bypassed")
		return nil
	}
	if !h.verifier.Verify(c.Request.URL.EscapedPath(), c.Request.URL.RawQuery) {
		h.metrics.ObserveVerification("rejected")
		return shopify.ErrInvalidSignature
	}
	h.metrics.ObserveVerification("accepted")
	return nil
}
