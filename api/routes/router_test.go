package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-cart/api/middleware"
	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/internal/checkout"
	pkgAuth "github.com/angelmondragon/storefront-cart/pkg/auth"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-cart/pkg/errors"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubCartService struct {
	sessions []string
}

func (s *stubCartService) View(_ context.Context, session string) (*cart.View, error) {
	s.sessions = append(s.sessions, session)
	return &cart.View{Session: session, Lines: []cart.Line{}, Subtotal: decimal.Zero}, nil
}

func (s *stubCartService) AddItem(_ context.Context, session, productID string, qty int) (*cart.View, error) {
	return &cart.View{Session: session, TotalItems: qty}, nil
}

func (s *stubCartService) UpdateItem(_ context.Context, session, productID string, qty int) (*cart.View, error) {
	return &cart.View{Session: session, TotalItems: qty}, nil
}

func (s *stubCartService) RemoveItem(_ context.Context, session, productID string) (*cart.View, error) {
	return &cart.View{Session: session}, nil
}

func (s *stubCartService) Clear(context.Context, string) error { return nil }

type stubCheckoutService struct {
	got checkout.Request
}

func (s *stubCheckoutService) Checkout(_ context.Context, req checkout.Request) (*checkout.Receipt, error) {
	s.got = req
	if req.UserID == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, checkout.ErrAuthenticationRequired, "sign in to complete your purchase")
	}
	return &checkout.Receipt{InvoiceID: 1}, nil
}

type stubSales struct{}

func (stubSales) FindSale(context.Context, int64, string) (*models.Sale, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", CORSOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "storefront-test"},
	}
}

type testRouter struct {
	handler  http.Handler
	cart     *stubCartService
	checkout *stubCheckoutService
}

func newTestRouter(t *testing.T, redisErr error) testRouter {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	reg := prometheus.NewRegistry()
	metrics.NewCheckoutMetrics(reg)

	cartSvc := &stubCartService{}
	checkoutSvc := &stubCheckoutService{}
	handler := NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		stubPinger{err: redisErr},
		cartSvc,
		checkoutSvc,
		stubSales{},
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	return testRouter{handler: handler, cart: cartSvc, checkout: checkoutSvc}
}

func (tr testRouter) do(req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	tr.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	tr := newTestRouter(t, nil)
	if resp := tr.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := tr.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}

	down := newTestRouter(t, context.DeadlineExceeded)
	if resp := down.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with redis down: expected 503 got %d", resp.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	tr := newTestRouter(t, nil)
	resp := tr.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "checkout_inflight_rejections_total") {
		t.Fatalf("expected checkout metrics to be exported")
	}
}

func TestCartRouteMintsSession(t *testing.T) {
	tr := newTestRouter(t, nil)
	resp := tr.do(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	minted := resp.Header().Get(middleware.CartSessionHeader)
	if minted == "" {
		t.Fatalf("expected minted cart session header")
	}
	if len(tr.cart.sessions) != 1 || tr.cart.sessions[0] != minted {
		t.Fatalf("expected service to see minted session, got %v", tr.cart.sessions)
	}
}

func TestCartItemRoutes(t *testing.T) {
	tr := newTestRouter(t, nil)
	cases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodPost, "/api/v1/cart/items", `{"product_id":"1","quantity":2}`, http.StatusCreated},
		{http.MethodPatch, "/api/v1/cart/items/1", `{"quantity":3}`, http.StatusOK},
		{http.MethodDelete, "/api/v1/cart/items/1", "", http.StatusOK},
		{http.MethodDelete, "/api/v1/cart", "", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set(middleware.CartSessionHeader, "sess-1")
		if resp := tr.do(req); resp.Code != tc.status {
			t.Fatalf("%s %s: expected %d got %d", tc.method, tc.path, tc.status, resp.Code)
		}
	}
}

func TestCheckoutRouteCarriesIdentity(t *testing.T) {
	tr := newTestRouter(t, nil)

	guest := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"payment":{"method":"cash"}}`))
	guest.Header.Set(middleware.CartSessionHeader, "sess-1")
	if resp := tr.do(guest); resp.Code != http.StatusUnauthorized {
		t.Fatalf("guest: expected 401 got %d", resp.Code)
	}

	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{UserID: "user-1", DestinationID: "addr-9"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"payment":{"method":"cash"}}`))
	req.Header.Set(middleware.CartSessionHeader, "sess-1")
	req.Header.Set("Authorization", "Bearer "+token)
	if resp := tr.do(req); resp.Code != http.StatusCreated {
		t.Fatalf("signed in: expected 201 got %d", resp.Code)
	}
	if tr.checkout.got.UserID != "user-1" || tr.checkout.got.DestinationID != "addr-9" || tr.checkout.got.Session != "sess-1" {
		t.Fatalf("unexpected checkout request %+v", tr.checkout.got)
	}
}

func TestInvalidTokenIsRejected(t *testing.T) {
	tr := newTestRouter(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	if resp := tr.do(req); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestSalesRoute(t *testing.T) {
	tr := newTestRouter(t, nil)
	if resp := tr.do(httptest.NewRequest(http.MethodGet, "/api/v1/sales/5", nil)); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for guests, got %d", resp.Code)
	}
}
