package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfq-proxy-app/internal/config"
	"rfq-proxy-app/internal/metrics"
	"rfq-proxy-app/internal/shopify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret = "hush"
	testShop   = "test-store.myshopify.com"
	createPath = "/proxy/create-draft-order"
	baseQuery  = "shop=test-store.myshopify.com&logged_in_customer_id=&path_prefix=%2Fapps%2Frfq&timestamp=1700000000"
)

// fakeShopify stands in for the Admin API and counts calls per route.
type fakeShopify struct {
	mu          sync.Mutex
	customers   []int64
	draftStatus int
	draftBody   string
	calls       map[string]int
	lastDraft   map[string]any
}

func (f *fakeShopify) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	route := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/admin/api/2024-10")
	f.calls[route]++

	w.Header().Set("Content-Type", "application/json")
	switch route {
	case "GET /customers/search.json":
		customers := []map[string]int64{}
		for _, id := range f.customers {
			customers = append(customers, map[string]int64{"id": id})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"customers": customers})
	case "POST /customers.json":
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"customer":{"id":555}}`))
	case "POST /draft_orders.json":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastDraft = body
		status := f.draftStatus
		if status == 0 {
			status = http.StatusCreated
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(f.draftBody))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeShopify) count(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

type testServer struct {
	router  *gin.Engine
	shopify *fakeShopify
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	fake := &fakeShopify{
		customers: []int64{321},
		draftBody: `{"draft_order":{"id":991,"invoice_url":"https://test-store.myshopify.com/invoices/abc"}}`,
	}
	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	cfg := config.Config{
		ShopDomain:        testShop,
		ShopifyAPIVersion: "2024-10",
		ShopifyAPISecret:  testSecret,
		ProxyMountPrefix:  "/proxy",
		ProxyPathPrefix:   "apps",
		ProxySubpath:      "rfq",
		AllowedOrigins:    []string{"https://test-store.myshopify.com"},
		MaxBodyBytes:      1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	admin := shopify.NewAdminClient(shopify.AdminConfig{
		ShopDomain: cfg.ShopDomain,
		APIVersion: cfg.ShopifyAPIVersion,
		BaseURL:    upstream.URL + "/admin/api/2024-10",
	}, shopify.StaticToken("shpat_test"), logger).WithObserver(m)

	h := NewHandlers(cfg, admin, m, logger)
	return &testServer{router: NewRouter(h, reg), shopify: fake, metrics: m, reg: reg}
}

func signedQuery(query string) string {
	msg := shopify.BuildCanonicalMessage(createPath, query, "/proxy", "/apps/rfq")
	return query + "&signature=" + shopify.SignProxyMessage(testSecret, msg)
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

const validBody = `{"line_items":[{"variant_id":123,"quantity":2}],"customer":{"email":"pat@example.com","first_name":"Pat"}}`

func TestCreateDraftOrder_Success(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), validBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, float64(991), body["reference"])
	assert.Equal(t, "https://test-store.myshopify.com/admin/draft_orders/991", body["admin_url"])
	assert.Equal(t, "https://test-store.myshopify.com/invoices/abc", body["invoice_url"])

	assert.Equal(t, 1, s.shopify.count("GET /customers/search.json"))
	assert.Equal(t, 0, s.shopify.count("POST /customers.json"))
	assert.Equal(t, 1, s.shopify.count("POST /draft_orders.json"))

	draft := s.shopify.lastDraft["draft_order"].(map[string]any)
	assert.Equal(t, map[string]any{"id": float64(321)}, draft["customer"])
	assert.Equal(t, []any{map[string]any{"variant_id": float64(123), "quantity": float64(2), "properties": []any{}}}, draft["line_items"])

	assert.Contains(t, s.scrape(t), `app_proxy_verifications_total{result="accepted"} 1`)
}

func (s *testServer) scrape(t *testing.T) string {
	t.Helper()
	w := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestCreateDraftOrder_UnknownEmailCreatesCustomer(t *testing.T) {
	s := newTestServer(t, nil)
	s.shopify.customers = nil

	body := `{"line_items":[{"title":"Custom crate","price":"40"}],"customer":{"email":"new@example.com"},
		"shipping":{"address1":"1 Main St"},"installer_needed":true}`
	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, 1, s.shopify.count("POST /customers.json"))
	draft := s.shopify.lastDraft["draft_order"].(map[string]any)
	assert.Equal(t, map[string]any{"id": float64(555)}, draft["customer"])
	assert.Equal(t, "United States", draft["shipping_address"].(map[string]any)["country"])
	assert.Contains(t, draft["note"], "Installer needed: Yes")
}

func TestCreateDraftOrder_SignatureFirstInQuery(t *testing.T) {
	s := newTestServer(t, nil)

	signed := signedQuery(baseQuery)
	sig := signed[strings.Index(signed, "signature="):]
	w := s.do(http.MethodPost, createPath+"?"+sig+"&"+baseQuery, validBody)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCreateDraftOrder_TamperedQuery(t *testing.T) {
	s := newTestServer(t, nil)

	q := strings.Replace(signedQuery(baseQuery), "shop=test-store", "shop=evil-store", 1)
	w := s.do(http.MethodPost, createPath+"?"+q, validBody)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, map[string]any{"error": "Invalid HMAC"}, decodeBody(t, w))
	assert.Equal(t, 0, s.shopify.count("GET /customers/search.json"))
	assert.Equal(t, 0, s.shopify.count("POST /draft_orders.json"))
	assert.Contains(t, s.scrape(t), `app_proxy_verifications_total{result="rejected"} 1`)
}

func TestCreateDraftOrder_MissingSignature(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, createPath+"?"+baseQuery, validBody)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateDraftOrder_NoLineItems(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), `{"line_items":[],"customer":{"email":"a@b.c"}}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"error": "No line items"}, decodeBody(t, w))

	w = s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), `{"customer":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateDraftOrder_InvalidJSON(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), `{"line_items":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"error": "Invalid JSON body"}, decodeBody(t, w))
}

func TestCreateDraftOrder_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.MaxBodyBytes = 16 })

	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), validBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCreateDraftOrder_UpstreamFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.shopify.draftStatus = http.StatusUnprocessableEntity
	s.shopify.draftBody = `{"errors":{"line_items":["is invalid"]}}`

	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), validBody)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	msg := decodeBody(t, w)["error"].(string)
	assert.Contains(t, msg, "422")
	assert.Contains(t, msg, "is invalid")
	assert.Equal(t, 1, s.shopify.count("POST /draft_orders.json"))
}

func TestCreateDraftOrder_MissingDraftID(t *testing.T) {
	s := newTestServer(t, nil)
	s.shopify.draftBody = `{"draft_order":{}}`

	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), validBody)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "missing expected field")
}

func TestCreateDraftOrder_BypassVerification(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.SkipProxyVerify = true
		cfg.ShopifyAPISecret = ""
	})

	w := s.do(http.MethodPost, createPath+"?shop=anything", validBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, s.scrape(t), `app_proxy_verifications_total{result="bypassed"} 1`)
}

func TestCreateDraftOrder_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, createPath, "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, map[string]any{"error": "Method not allowed"}, decodeBody(t, w))
}

func TestLiveness(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, createPath, nil)
	req.Header.Set("Origin", "https://test-store.myshopify.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://test-store.myshopify.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateDraftOrder_FormStyleValues(t *testing.T) {
	bodies := []string{
		`{"line_items":[{"title":"Crate","price":""}]}`,
		`{"line_items":[{"title":"Crate","price":"TBD"}]}`,
		`{"line_items":[{"variant_id":123,"quantity":"2"}]}`,
		`{"line_items":[{"variant_id":"","title":"Crate"}]}`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			s := newTestServer(t, nil)

			w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, 1, s.shopify.count("POST /draft_orders.json"))
		})
	}
}

func TestCreateDraftOrder_EmptyBody(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, createPath+"?"+signedQuery(baseQuery), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]any{"error": "No line items"}, decodeBody(t, w))
}
