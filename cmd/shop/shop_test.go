package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/accounts"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/favorites"
	"github.com/angelmondragon/storefront/pkg/auth/session"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
)

// sessions is an in-memory stand-in for the redis session manager.
type sessions struct {
	mu      sync.Mutex
	byToken map[string]session.Grant
	active  map[string]bool
}

func (s *sessions) Issue(_ context.Context, userID string) (session.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant := session.Grant{AccessID: uuid.NewString(), RefreshToken: uuid.NewString(), UserID: userID}
	s.byToken[grant.RefreshToken] = grant
	s.active[grant.AccessID] = true
	return grant, nil
}

func (s *sessions) Rotate(ctx context.Context, token string) (session.Grant, error) {
	s.mu.Lock()
	old, ok := s.byToken[token]
	delete(s.byToken, token)
	delete(s.active, old.AccessID)
	s.mu.Unlock()
	if !ok {
		return session.Grant{}, session.ErrInvalidRefreshToken
	}
	return s.Issue(ctx, old.UserID)
}

func (s *sessions) Revoke(_ context.Context, accessID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, accessID)
	return nil
}

func (s *sessions) HasSession(_ context.Context, accessID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[accessID], nil
}

func startBackend(t *testing.T) string {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "shop-secret", Issuer: "storefront-test", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60},
		Password: config.PasswordConfig{
			ArgonMemoryKB:    8192,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
		Auth: config.AuthConfig{AdminEmails: []string{"owner@shop.test"}},
	}
	client := dbtest.Open(t)
	store := &sessions{byToken: map[string]session.Grant{}, active: map[string]bool{}}

	accountsSvc, err := accounts.NewService(accounts.ServiceParams{
		DB:             client,
		SessionManager: store,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		AuthConfig:     cfg.Auth,
		Logger:         logger.Nop(),
	})
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(client.DB()))
	require.NoError(t, err)
	favoritesSvc, err := favorites.NewService(favorites.NewRepository(client.DB()), nil)
	require.NoError(t, err)

	srv := httptest.NewServer(routes.NewRouter(cfg, logger.Nop(), client, nil, store,
		metrics.NewHTTPMetrics(prometheus.NewRegistry()), accountsSvc, catalogSvc, favoritesSvc))
	t.Cleanup(srv.Close)
	return srv.URL
}

type cliHarness struct {
	t      *testing.T
	cfg    *config.ClientConfig
	bucket *blob.Bucket
}

func newCLI(t *testing.T) *cliHarness {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })
	return &cliHarness{
		t:      t,
		bucket: bucket,
		cfg: &config.ClientConfig{
			Client: config.APIClientConfig{APIURL: startBackend(t), Timeout: 5 * time.Second},
			Checkout: config.CheckoutConfig{
				ChatBaseURL:    "https://wa.me",
				CountryCode:    "91",
				BusinessNumber: "9876543210",
				Currency:       "₹",
				QRSize:         128,
			},
			Auth: config.AuthConfig{EmailRedirectURL: "http://localhost:3000/"},
		},
	}
}

// run executes one shop invocation; local state carries over through the shared bucket.
func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	app := newApp(deps{Config: h.cfg, Logger: logger.Nop(), Out: &out, Bucket: h.bucket})
	err := app.RunContext(context.Background(), append([]string{"shop"}, args...))
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "shop %v: %s", args, describeOrEmpty(err))
	return out
}

func describeOrEmpty(err error) string {
	if err == nil {
		return ""
	}
	return describe(err)
}

func (h *cliHarness) signIn(email string) string {
	h.t.Helper()
	h.mustRun("account", "signup", "--email", email, "--password", "secret-1")
	return h.mustRun("account", "login", "--email", email, "--password", "secret-1")
}

func TestGuestBrowsingAndGates(t *testing.T) {
	h := newCLI(t)

	out := h.mustRun("products", "list")
	assert.Contains(t, out, "no products yet")

	out = h.mustRun("account", "whoami")
	assert.Contains(t, out, "not signed in (guest)")

	_, err := h.run("admin", "dashboard")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = h.run("wishlist", "list")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = h.run("products", "show", "42")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAdminManagesCatalog(t *testing.T) {
	h := newCLI(t)

	out := h.signIn("owner@shop.test")
	assert.Contains(t, out, "signed in as owner@shop.test (admin)")

	out = h.mustRun("admin", "products", "create", "--name", "Masala Tea", "--price", "12.50", "--stock", "3")
	assert.Contains(t, out, "created product 1 (Masala Tea)")

	out = h.mustRun("admin", "products", "update", "--stock", "0", "1")
	assert.Contains(t, out, "updated product 1")

	_, err := h.run("admin", "products", "create", "--name", "Broken", "--price", "abc")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, describe(err), "price: must be a number")

	// the landing page sends admins to the dashboard
	out = h.mustRun()
	assert.Contains(t, out, "products: 1")
	assert.Contains(t, out, "out of stock:")
	assert.Contains(t, out, "#1 Masala Tea")
}

func TestShopperCartCheckoutAndWishlist(t *testing.T) {
	h := newCLI(t)
	h.signIn("owner@shop.test")
	h.mustRun("admin", "products", "create", "--name", "Masala Tea", "--price", "12.50", "--stock", "3")
	h.mustRun("account", "logout")

	out := h.signIn("shopper@example.com")
	assert.Contains(t, out, "(user)")

	_, err := h.run("admin", "dashboard")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	out = h.mustRun("cart", "add", "--qty", "5", "1")
	assert.Contains(t, out, "Masala Tea x3 in cart")

	_, err = h.run("cart", "update", "1", "0")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, describe(err), "shop cart remove 1")

	out = h.mustRun("cart", "update", "1", "2")
	assert.Contains(t, out, "Masala Tea x2 in cart")

	// a fresh invocation restores the cart from local state
	out = h.mustRun("cart", "show")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "subtotal ₹25.00")

	_, err = h.run("checkout", "--name", "Asha", "--phone", "12345", "--address", "12 MG Road")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Contains(t, describe(err), "phone")

	out = h.mustRun("checkout", "--name", "Asha", "--phone", "98765-43210", "--address", "12 MG Road", "--clear")
	assert.Contains(t, out, "1. Masala Tea x2 - ₹25")
	assert.Contains(t, out, "Total Amount: ₹25")
	assert.Contains(t, out, "https://wa.me/919876543210?text=")

	out = h.mustRun("cart", "show")
	assert.Contains(t, out, "your cart is empty")

	out = h.mustRun("wishlist", "add", "1")
	assert.Contains(t, out, "saved product 1")
	out = h.mustRun("wishlist", "add", "1")
	assert.Contains(t, out, "already on your wishlist")
	out = h.mustRun("wishlist", "list")
	assert.Contains(t, out, "product 1")
	out = h.mustRun("wishlist", "remove", "1")
	assert.Contains(t, out, "removed product 1")
	out = h.mustRun("wishlist", "list")
	assert.Contains(t, out, "your wishlist is empty")

	out = h.mustRun("account", "whoami")
	assert.Contains(t, out, "shopper@example.com (user)")

	h.mustRun("account", "logout")
	out = h.mustRun("account", "whoami")
	assert.Contains(t, out, "not signed in (guest)")
}

func TestCartStatusReportsHealthyStorage(t *testing.T) {
	h := newCLI(t)
	out := h.mustRun("cart", "status")
	assert.Contains(t, out, "persistence: healthy")
	assert.Contains(t, out, "failures: 0")
}
