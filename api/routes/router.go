package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/accounts"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/favorites"
	"github.com/angelmondragon/storefront/pkg/auth/session"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/db"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionChecker session.AccessSessionChecker,
	httpMetrics *metrics.HTTPMetrics,
	accountsService accounts.Service,
	catalogService catalog.Service,
	favoritesService favorites.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	rateLimit := func(policy middleware.AuthRateLimitPolicy) func(http.Handler) http.Handler {
		if redisClient == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.AuthRateLimit(policy, redisClient, logg)
	}

	requireAuth := middleware.Auth(cfg.JWT, sessionChecker, logg)
	requireAdmin := middleware.RequireRole(accountsService, logg, enums.RoleAdmin)

	var readyDeps map[string]controllers.Pinger
	if redisClient != nil {
		readyDeps = controllers.Dependencies(dbP, redisClient)
	} else {
		readyDeps = map[string]controllers.Pinger{"database": dbP}
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readyDeps))
	})
	r.Method(http.MethodGet, "/metrics", httpMetrics.Handler())

	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(catalogService, logg))
		r.Get("/{productId}", controllers.ProductGet(catalogService, logg))
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/", controllers.ProductCreate(catalogService, logg))
			r.Put("/{productId}", controllers.ProductUpdate(catalogService, logg))
		})
	})

	r.Route("/auth/v1", func(r chi.Router) {
		r.With(rateLimit(registerPolicy)).Post("/signup", controllers.AuthSignUp(accountsService, logg))
		r.With(rateLimit(loginPolicy)).Post("/token", controllers.AuthToken(accountsService, logg))
		r.Post("/refresh", controllers.AuthRefresh(accountsService, logg))
		r.Post("/logout", controllers.AuthLogout(accountsService, cfg.JWT, logg))
		r.With(requireAuth).Get("/user", controllers.AuthUser(accountsService, logg))
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/user_roles", controllers.UserRoles(accountsService, logg))
		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistList(favoritesService, logg))
			r.Post("/", controllers.WishlistAdd(favoritesService, logg))
			r.Delete("/{productId}", controllers.WishlistRemove(favoritesService, logg))
		})
	})

	return r
}
