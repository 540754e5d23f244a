package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skycms/skycms/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		DefaultTenant: "acme",
		Tenants: []*config.TenantConfig{
			{
				ID:           "acme",
				Name:         "Acme",
				Hostname:     "edit.acme.example",
				DSN:          ":memory:",
				PublisherURL: "https://www.acme.example",
			},
			{
				ID:           "globex",
				Name:         "Globex",
				Hostname:     "edit.globex.example",
				DSN:          ":memory:",
				PublisherURL: "https://www.globex.example",
			},
		},
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(testConfig())

	tn, err := r.Resolve("edit.globex.example")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tn.ID != "globex" {
		t.Errorf("expected globex, got %s", tn.ID)
	}
}

func TestRegistryResolveCaseAndPort(t *testing.T) {
	r := NewRegistry(testConfig())

	tn, err := r.Resolve("Edit.Globex.Example:8443")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tn.ID != "globex" {
		t.Errorf("expected globex, got %s", tn.ID)
	}
}

func TestRegistryResolvePublisherHost(t *testing.T) {
	r := NewRegistry(testConfig())

	tn, err := r.Resolve("www.globex.example")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if tn.ID != "globex" {
		t.Errorf("expected globex for its publisher host, got %s", tn.ID)
	}
}

func TestRegistryResolveDefaultFallback(t *testing.T) {
	r := NewRegistry(testConfig())

	tn, err := r.Resolve("unknown.example")
	if err != nil {
		t.Fatalf("expected default fallback, got error: %v", err)
	}
	if tn.ID != "acme" {
		t.Errorf("expected default tenant acme, got %s", tn.ID)
	}
}

func TestRegistryReloadSwapsTenantSet(t *testing.T) {
	r := NewRegistry(testConfig())

	next := testConfig()
	next.DefaultTenant = "initech"
	next.Tenants = []*config.TenantConfig{
		{
			ID:           "initech",
			Name:         "Initech",
			Hostname:     "edit.initech.example",
			DSN:          ":memory:",
			PublisherURL: "https://www.initech.example",
		},
	}
	r.Reload(next)

	if tn := r.ByID("acme"); tn != nil {
		t.Errorf("acme should be gone after reload, got %s", tn.ID)
	}
	tn, err := r.Resolve("edit.initech.example")
	if err != nil {
		t.Fatalf("Resolve failed after reload: %v", err)
	}
	if tn.ID != "initech" {
		t.Errorf("expected initech, got %s", tn.ID)
	}
	if got := len(r.All()); got != 1 {
		t.Errorf("expected 1 tenant after reload, got %d", got)
	}
}

func TestRegistryResolveUnknownWithoutDefault(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultTenant = ""
	r := NewRegistry(cfg)

	if _, err := r.Resolve("unknown.example"); err != ErrUnknownHost {
		t.Errorf("expected ErrUnknownHost, got %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	tn := &Tenant{ID: "acme"}
	ctx := WithTenant(context.Background(), tn)

	got, err := FromContext(ctx)
	if err != nil {
		t.Fatalf("FromContext failed: %v", err)
	}
	if got.ID != "acme" {
		t.Errorf("expected acme, got %s", got.ID)
	}

	if _, err := FromContext(context.Background()); err != ErrNoTenant {
		t.Errorf("expected ErrNoTenant, got %v", err)
	}
}

func TestMiddlewareOriginHeader(t *testing.T) {
	r := NewRegistry(testConfig())

	var seen *Tenant
	handler := Middleware(r, nil)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen = MustFromContext(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "http://edit.acme.example/api/articles", nil)
	req.Header.Set(OriginHeader, "edit.globex.example")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil || seen.ID != "globex" {
		t.Fatalf("expected origin header to win, got %+v", seen)
	}
}

func TestMiddlewareHostFallback(t *testing.T) {
	r := NewRegistry(testConfig())

	var seen *Tenant
	handler := Middleware(r, nil)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen = MustFromContext(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "http://edit.globex.example/api/articles", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen == nil || seen.ID != "globex" {
		t.Fatalf("expected host fallback, got %+v", seen)
	}
}

func TestMiddlewareUnknownHost(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultTenant = ""
	r := NewRegistry(cfg)

	handler := Middleware(r, nil)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		t.Fatal("handler should not run for unknown hostname")
	}))

	req := httptest.NewRequest(http.MethodGet, "http://unknown.example/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMisdirectedRequest {
		t.Errorf("expected 421, got %d", rec.Code)
	}
}

func TestManagerLazyOpen(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	tn := &Tenant{ID: "acme", DSN: ":memory:"}

	db1, err := m.DB(tn)
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	db2, err := m.DB(tn)
	if err != nil {
		t.Fatalf("DB failed: %v", err)
	}
	if db1 != db2 {
		t.Error("expected the cached handle on second call")
	}
}
