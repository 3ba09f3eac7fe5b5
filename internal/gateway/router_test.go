package gateway_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/commerce-platform/internal/api/http"
	"github.com/spec-kit/commerce-platform/internal/config"
	"github.com/spec-kit/commerce-platform/internal/gateway"
	"github.com/spec-kit/commerce-platform/internal/observability"
)

func newGatewayApp(t *testing.T, routes []config.RouteBinding, metrics *observability.Metrics) *fiber.App {
	t.Helper()
	router := gateway.NewRouter(config.GatewayConfig{
		TimeoutSeconds: 2,
		Routes:         routes,
	}, zap.NewNop(), metrics)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	app.All("/*", router.Handle)
	return app
}

func echoBackend(t *testing.T, name string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Backend", name)
		_, _ = io.WriteString(w, name+":"+r.Method+":"+r.URL.RequestURI())
	}))
	t.Cleanup(server.Close)
	return server
}

func TestForwardPreservesMethodPathAndQuery(t *testing.T) {
	backend := echoBackend(t, "shopping")
	app := newGatewayApp(t, []config.RouteBinding{
		{Name: "shopping", Prefix: "/shopping", Target: backend.URL},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/shopping/cart/items?qty=2", strings.NewReader(`{"sku":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "shopping:POST:/cart/items?qty=2" {
		t.Fatalf("unexpected forwarded request: %s", body)
	}
	if resp.Header.Get("X-Backend") != "shopping" {
		t.Fatal("backend response headers not copied back")
	}
}

func TestLongestPrefixWins(t *testing.T) {
	general := echoBackend(t, "shop")
	admin := echoBackend(t, "shop-admin")
	app := newGatewayApp(t, []config.RouteBinding{
		{Name: "shop", Prefix: "/shop", Target: general.URL},
		{Name: "shop-admin", Prefix: "/shop/admin", Target: admin.URL},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/shop/admin/users", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "shop-admin:") {
		t.Fatalf("expected the longer prefix to win, got %s", body)
	}
}

func TestUnmatchedPathIs404(t *testing.T) {
	backend := echoBackend(t, "customer")
	app := newGatewayApp(t, []config.RouteBinding{
		{Name: "customer", Prefix: "/customer", Target: backend.URL},
	}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/unknown/path", nil), 5000)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestBackendFailureIsIsolated(t *testing.T) {
	// Customer backend is down: start a server to grab a port, then stop it.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	healthy := echoBackend(t, "shopping")
	metrics := observability.NewMetrics()
	app := newGatewayApp(t, []config.RouteBinding{
		{Name: "customer", Prefix: "/customer", Target: deadURL},
		{Name: "shopping", Prefix: "/shopping", Target: healthy.URL},
	}, metrics)

	var wg sync.WaitGroup
	statuses := make([]int, 2)
	bodies := make([]string, 2)
	requests := []string{"/customer/x", "/shopping/y"}
	for i, path := range requests {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), 5000)
			if err != nil {
				t.Errorf("%s: %v", path, err)
				return
			}
			raw, _ := io.ReadAll(resp.Body)
			statuses[i] = resp.StatusCode
			bodies[i] = string(raw)
		}(i, path)
	}
	wg.Wait()

	if statuses[0] != http.StatusBadGateway {
		t.Fatalf("dead backend: status %d", statuses[0])
	}
	if !strings.Contains(bodies[0], "customer service unavailable") {
		t.Fatalf("502 body must identify the backend: %s", bodies[0])
	}
	if statuses[1] != http.StatusOK {
		t.Fatalf("healthy backend affected by the other's failure: status %d (%s)", statuses[1], bodies[1])
	}
	if metrics.UpstreamFailures("customer") == 0 {
		t.Fatal("upstream failure not recorded")
	}
	if metrics.UpstreamFailures("shopping") != 0 {
		t.Fatal("healthy backend wrongly counted as failed")
	}
}

func TestExactPrefixForwardsRoot(t *testing.T) {
	backend := echoBackend(t, "customer")
	app := newGatewayApp(t, []config.RouteBinding{
		{Name: "customer", Prefix: "/customer", Target: backend.URL},
	}, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/customer", nil), 5000)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "customer:GET:/" {
		t.Fatalf("expected root forward, got %s", body)
	}
}
