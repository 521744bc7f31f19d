package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"gocloud.dev/blob"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/guard"
	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/internal/wishlist"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storeapi"
)

// deps are the process-level inputs of the storefront client. Bucket and
// HTTPClient are optional; without them the configured state URL and a
// default HTTP client are used.
type deps struct {
	Config     *config.ClientConfig
	Logger     *logger.Logger
	Out        io.Writer
	Bucket     *blob.Bucket
	HTTPClient *http.Client
}

// shop wires the client components for one command invocation.
type shop struct {
	cfg      *config.ClientConfig
	logg     *logger.Logger
	out      io.Writer
	api      *storeapi.Client
	provider *session.Provider
	guard    *guard.Guard
	cart     *cart.Store
	wishlist *wishlist.Store
	checkout *checkout.Service

	bucket      *blob.Bucket
	ownsBucket  bool
	providerRun bool
}

func openShop(ctx context.Context, d deps) (s *shop, err error) {
	logg := d.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	out := d.Out
	if out == nil {
		out = os.Stdout
	}

	s = &shop{cfg: d.Config, logg: logg, out: out, bucket: d.Bucket}
	defer func() {
		if err != nil {
			err = multierr.Append(err, s.Close())
			s = nil
		}
	}()

	if s.bucket == nil {
		stateURL, urlErr := stateBucketURL(d.Config.Client.StateURL)
		if urlErr != nil {
			return s, urlErr
		}
		bucket, openErr := blob.OpenBucket(ctx, stateURL)
		if openErr != nil {
			return s, pkgerrors.Wrap(pkgerrors.CodeInternal, openErr, "open local state")
		}
		s.bucket, s.ownsBucket = bucket, true
	}

	tokens, err := storeapi.NewBlobTokenStore(s.bucket, storeapi.SessionKey)
	if err != nil {
		return s, err
	}
	opts := []storeapi.Option{
		storeapi.WithTimeout(d.Config.Client.Timeout),
		storeapi.WithTokenStore(tokens),
		storeapi.WithLogger(logg.Component("storeapi")),
	}
	if d.HTTPClient != nil {
		opts = append(opts, storeapi.WithHTTPClient(d.HTTPClient))
	}
	s.api, err = storeapi.NewClient(d.Config.Client.APIURL, opts...)
	if err != nil {
		return s, err
	}

	s.provider, err = session.NewProvider(session.ProviderParams{
		Auth:             s.api,
		Roles:            s.api,
		EmailRedirectURL: d.Config.Auth.EmailRedirectURL,
		Logger:           logg.Component("session"),
	})
	if err != nil {
		return s, err
	}
	if err := s.provider.Start(ctx); err != nil {
		return s, err
	}
	s.providerRun = true

	snapshots, err := cart.NewBlobSnapshotStore(s.bucket, cart.SnapshotKey)
	if err != nil {
		return s, err
	}
	s.cart = cart.NewStore(ctx, cart.StoreParams{Storage: snapshots, Logger: logg.Component("cart")})

	s.wishlist, err = wishlist.NewStore(wishlist.StoreParams{Table: s.api.Wishlist(), Logger: logg.Component("wishlist")})
	if err != nil {
		return s, err
	}
	s.guard = guard.New(guard.DefaultRoutes(), guard.Options{})
	s.checkout = checkout.NewService(d.Config.Checkout, logg.Component("checkout"))
	return s, nil
}

// Close stops the session provider and releases the state bucket it opened.
func (s *shop) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.providerRun {
		s.provider.Stop()
		s.providerRun = false
	}
	if s.ownsBucket && s.bucket != nil {
		err = multierr.Append(err, s.bucket.Close())
		s.bucket = nil
	}
	return err
}

// decide waits for the session to settle and asks the guard about destination.
func (s *shop) decide(ctx context.Context, destination string) (session.State, guard.Decision, error) {
	waitCtx := ctx
	if s.cfg.Client.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.Client.Timeout)
		defer cancel()
	}
	state, err := s.provider.Await(waitCtx)
	if err != nil {
		return state, guard.Decision{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session is still resolving")
	}
	return state, s.guard.Decide(state, destination), nil
}

// gate lets a command run only when the guard renders its destination.
func (s *shop) gate(ctx context.Context, destination string) (session.State, error) {
	state, decision, err := s.decide(ctx, destination)
	if err != nil {
		return state, err
	}
	switch decision.Outcome {
	case guard.OutcomeRender:
		return state, nil
	case guard.OutcomeLoading:
		return state, pkgerrors.New(pkgerrors.CodeDependency, "session is still resolving")
	}
	if !state.SignedIn() {
		return state, pkgerrors.New(pkgerrors.CodeUnauthorized, "login required: run `shop account login` first")
	}
	if decision.Target == guard.PathUnauthorized {
		return state, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s is not available to your account", destination))
	}
	return state, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s redirects to %s", destination, decision.Target))
}

func (s *shop) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// stateBucketURL defaults to a directory under the user's config dir.
func stateBucketURL(raw string) (string, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		return raw, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "locate config dir")
	}
	dir := filepath.Join(base, "storefront")
	return "file://" + filepath.ToSlash(dir) + "?create_dir=true", nil
}
