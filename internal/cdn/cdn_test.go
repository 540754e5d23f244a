package cdn

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skycms/skycms/internal/config"
	"github.com/skycms/skycms/internal/foundation/errors"
)

func TestNewSelectsProvider(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.CDNConfig
		want string
	}{
		{"nil config", nil, "none"},
		{"none", &config.CDNConfig{Provider: config.CDNNone}, "none"},
		{"cloudflare", &config.CDNConfig{Provider: config.CDNCloudflare, ZoneID: "z", APIToken: "t"}, "cloudflare"},
		{"sucuri", &config.CDNConfig{Provider: config.CDNSucuri, APIKey: "k", APISecret: "s"}, "sucuri"},
		{"azure alias", &config.CDNConfig{
			Provider: "azure", SubscriptionID: "sub", ResourceGroup: "rg",
			ProfileName: "p", EndpointName: "e", AccessToken: "tok",
		}, "azure"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if p.Name() != tc.want {
				t.Errorf("expected %s provider, got %s", tc.want, p.Name())
			}
		})
	}
}

func TestNewMissingCredentials(t *testing.T) {
	_, err := New(&config.CDNConfig{Provider: config.CDNCloudflare})
	if !errors.HasCategory(err, errors.CategoryConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestCloudflarePurgeFiles(t *testing.T) {
	var got cloudflarePurgeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/zones/zone-1/purge_cache" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c, err := NewCloudflare(&config.CDNConfig{ZoneID: "zone-1", APIToken: "tok", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	paths := []string{"https://www.acme.example/general/terms"}
	if err := c.Purge(t.Context(), paths); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if got.PurgeEverything || len(got.Files) != 1 || got.Files[0] != paths[0] {
		t.Errorf("unexpected request: %+v", got)
	}
}

func TestCloudflarePurgeRootMeansEverything(t *testing.T) {
	var got cloudflarePurgeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c, err := NewCloudflare(&config.CDNConfig{ZoneID: "z", APIToken: "t", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Purge(t.Context(), []string{"/"}); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if !got.PurgeEverything || len(got.Files) != 0 {
		t.Errorf("expected purge_everything, got %+v", got)
	}
}

func TestCloudflarePurgeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors":  []map[string]any{{"code": 10000, "message": "Authentication error"}},
		})
	}))
	defer srv.Close()

	c, err := NewCloudflare(&config.CDNConfig{ZoneID: "z", APIToken: "t", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	err = c.Purge(t.Context(), []string{"https://x/y"})
	if err == nil {
		t.Fatal("expected error for rejected purge")
	}
	if !errors.HasCategory(err, errors.CategoryCDN) {
		t.Errorf("expected CDN error category, got %v", err)
	}
	if !errors.IsTransient(err) {
		t.Error("CDN errors should be retryable so callers may retry purges")
	}
}

func TestSucuriPurge(t *testing.T) {
	var forms []map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		forms = append(forms, form)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSucuri(&config.CDNConfig{APIKey: "key", APISecret: "sec", BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Purge(t.Context(), []string{"https://a/x", "https://a/y"}); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if len(forms) != 2 {
		t.Fatalf("expected one call per path, got %d", len(forms))
	}
	if forms[0]["a"] != "clear_cache" || forms[0]["file"] != "/x" || forms[0]["k"] != "key" {
		t.Errorf("unexpected first call: %v", forms[0])
	}
	if forms[1]["file"] != "/y" {
		t.Errorf("unexpected second call: %v", forms[1])
	}

	forms = nil
	if err := s.Purge(t.Context(), []string{"/"}); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if len(forms) != 1 || forms[0]["file"] != "" {
		t.Errorf("whole-site purge should be one call without file, got %v", forms)
	}
}

func TestAzurePurge(t *testing.T) {
	var got azurePurgeRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a, err := NewAzureCDN(&config.CDNConfig{
		SubscriptionID: "sub", ResourceGroup: "rg", ProfileName: "prof",
		EndpointName: "ep", AccessToken: "tok", BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Purge(t.Context(), []string{"/"}); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if path != "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Cdn/profiles/prof/endpoints/ep/purge" {
		t.Errorf("unexpected path %s", path)
	}
	if len(got.ContentPaths) != 1 || got.ContentPaths[0] != "/*" {
		t.Errorf("expected wildcard purge, got %+v", got.ContentPaths)
	}

	if err := a.Purge(t.Context(), []string{"https://www.acme.example/general/terms"}); err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if len(got.ContentPaths) != 1 || got.ContentPaths[0] != "/general/terms" {
		t.Errorf("expected content path purge, got %+v", got.ContentPaths)
	}
}

func TestNoopPurge(t *testing.T) {
	if err := (Noop{}).Purge(t.Context(), []string{"/"}); err != nil {
		t.Errorf("noop should never fail, got %v", err)
	}
}
