package sfoauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/sfdc-oauth/internal/testutil"
)

func registryEnv(t *testing.T, srv *testutil.ProviderServer) *Environment {
	t.Helper()
	keyPEM, _ := testutil.GenerateSigningKey(t)
	return &Environment{
		IssuerURL:     srv.URL,
		ClientID:      "test-client",
		JWTSigningKey: keyPEM,
	}
}

func TestRegistryFindOrCreate(t *testing.T) {
	srv := testutil.NewProviderServer(t)
	env := registryEnv(t, srv)
	reg := NewRegistry()
	ctx := context.Background()

	first, err := reg.FindOrCreate(ctx, env)
	if err != nil {
		t.Fatalf("FindOrCreate() error: %v", err)
	}
	second, err := reg.FindOrCreate(ctx, env)
	if err != nil {
		t.Fatalf("second FindOrCreate() error: %v", err)
	}

	if first != second {
		t.Error("same environment should return the same cached client")
	}
	if got := srv.DiscoveryCalls(); got != 1 {
		t.Errorf("DiscoveryCalls() = %d, want discovery exactly once", got)
	}
	if got := reg.Size(); got != 1 {
		t.Errorf("Size() = %d, want 1", got)
	}
}

func TestRegistryInvalidEnvironment(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.FindOrCreate(context.Background(), &Environment{}); err == nil {
		t.Fatal("FindOrCreate() should reject an invalid environment")
	}
	if got := reg.Size(); got != 0 {
		t.Errorf("Size() = %d, want 0 after a rejected lookup", got)
	}
}

func TestRegistryDistinctKeys(t *testing.T) {
	srv := testutil.NewProviderServer(t)
	reg := NewRegistry()
	ctx := context.Background()

	envA := registryEnv(t, srv)
	envB := registryEnv(t, srv)
	envB.ClientID = "other-client"

	a, err := reg.FindOrCreate(ctx, envA)
	if err != nil {
		t.Fatalf("FindOrCreate(envA) error: %v", err)
	}
	b, err := reg.FindOrCreate(ctx, envB)
	if err != nil {
		t.Fatalf("FindOrCreate(envB) error: %v", err)
	}

	if a == b {
		t.Error("different client IDs should get distinct clients")
	}
	if got := reg.Size(); got != 2 {
		t.Errorf("Size() = %d, want 2", got)
	}
}

func TestRegistrySharesAcrossNonKeyFields(t *testing.T) {
	srv := testutil.NewProviderServer(t)
	reg := NewRegistry()
	ctx := context.Background()

	envA := registryEnv(t, srv)
	envB := registryEnv(t, srv)
	envB.ClientSecret = "some-secret"
	envB.RedirectURI = "https://app.example.com/callback"

	a, err := reg.FindOrCreate(ctx, envA)
	if err != nil {
		t.Fatalf("FindOrCreate(envA) error: %v", err)
	}
	b, err := reg.FindOrCreate(ctx, envB)
	if err != nil {
		t.Fatalf("FindOrCreate(envB) error: %v", err)
	}

	if a != b {
		t.Error("environments differing only in non-key fields should share a client")
	}
	if got := srv.DiscoveryCalls(); got != 1 {
		t.Errorf("DiscoveryCalls() = %d, want 1", got)
	}
}

func TestRegistryConcurrentFindOrCreate(t *testing.T) {
	srv := testutil.NewProviderServer(t)
	env := registryEnv(t, srv)
	reg := NewRegistry()

	const goroutines = 32
	clients := make([]*Client, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			clients[i], errs[i] = reg.FindOrCreate(context.Background(), env)
		}()
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("FindOrCreate() error in goroutine %d: %v", i, errs[i])
		}
		if clients[i] != clients[0] {
			t.Fatalf("goroutine %d got a different client", i)
		}
	}
	if got := srv.DiscoveryCalls(); got != 1 {
		t.Errorf("DiscoveryCalls() = %d, want a single shared initialization", got)
	}
}

func TestRegistryRetryAfterFailedInit(t *testing.T) {
	var mu sync.Mutex
	failures := 1

	var issuer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		fail := failures > 0
		if fail {
			failures--
		}
		mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/services/oauth2/authorize",
			"token_endpoint":         issuer + "/services/oauth2/token",
			"userinfo_endpoint":      issuer + "/services/oauth2/userinfo",
			"revocation_endpoint":    issuer + "/services/oauth2/revoke",
		})
	}))
	t.Cleanup(srv.Close)
	issuer = srv.URL

	keyPEM, _ := testutil.GenerateSigningKey(t)
	env := &Environment{
		IssuerURL:     srv.URL,
		ClientID:      "test-client",
		JWTSigningKey: keyPEM,
		HTTPTimeout:   5 * time.Second,
	}

	reg := NewRegistry()
	ctx := context.Background()

	if _, err := reg.FindOrCreate(ctx, env); err == nil {
		t.Fatal("first FindOrCreate() should fail while discovery is failing")
	}
	if got := reg.Size(); got != 0 {
		t.Errorf("Size() = %d, want failed entry dropped", got)
	}

	client, err := reg.FindOrCreate(ctx, env)
	if err != nil {
		t.Fatalf("retry FindOrCreate() error: %v", err)
	}
	if client == nil {
		t.Fatal("retry should yield an initialized client")
	}
	if got := reg.Size(); got != 1 {
		t.Errorf("Size() = %d, want 1 after successful retry", got)
	}
}

func TestRegistryClear(t *testing.T) {
	srv := testutil.NewProviderServer(t)
	env := registryEnv(t, srv)
	reg := NewRegistry()
	ctx := context.Background()

	first, err := reg.FindOrCreate(ctx, env)
	if err != nil {
		t.Fatalf("FindOrCreate() error: %v", err)
	}

	reg.Clear()
	if got := reg.Size(); got != 0 {
		t.Errorf("Size() = %d, want 0 after Clear", got)
	}

	second, err := reg.FindOrCreate(ctx, env)
	if err != nil {
		t.Fatalf("FindOrCreate() after Clear error: %v", err)
	}
	if first == second {
		t.Error("Clear should force a fresh client on the next lookup")
	}
	if got := srv.DiscoveryCalls(); got != 2 {
		t.Errorf("DiscoveryCalls() = %d, want 2", got)
	}
}
