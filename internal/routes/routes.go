// Package routes wires middleware, services, and handlers onto the Fiber app.
package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kobovault/kobovault/internal/auth"
	"github.com/kobovault/kobovault/internal/config"
	"github.com/kobovault/kobovault/internal/deposit"
	"github.com/kobovault/kobovault/internal/grants"
	"github.com/kobovault/kobovault/internal/identity"
	"github.com/kobovault/kobovault/internal/ledger"
	"github.com/kobovault/kobovault/internal/middleware"
	"github.com/kobovault/kobovault/internal/notification"
	"github.com/kobovault/kobovault/internal/payments"
	"github.com/kobovault/kobovault/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Services and handlers. Storage is Postgres throughout; the in-memory
	// implementations exist for tests only.
	store := ledger.NewPostgresStore(d.DB)
	walletSvc := wallet.NewService(wallet.NewPostgresRepository(d.DB), store)
	identitySvc := identity.NewService(identity.NewPostgresRepository(d.DB))
	grantSvc := grants.NewService(grants.NewPostgresRepository(d.DB))
	notifier := notification.NewLoggerNotifier(d.Logger)

	provider := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     d.Cfg.GoogleClientID,
		ClientSecret: d.Cfg.GoogleClientSecret,
		RedirectURI:  d.Cfg.GoogleRedirectURI,
	})
	authSvc := auth.NewService(provider, identitySvc, d.Cfg.JWTSecret, d.Cfg.SessionTTL)

	gateway := deposit.NewPaystackGateway(d.Cfg.GatewayBaseURL, d.Cfg.GatewaySecretKey)
	depositSvc := deposit.NewService(store, walletSvc, gateway, d.Cfg.GatewaySecretKey, notifier, d.Logger)
	paymentSvc := payments.NewService(store, walletSvc, notifier)

	authHandler := auth.NewHandler(authSvc)
	walletHandler := wallet.NewHandler(walletSvc)
	depositHandler := deposit.NewHandler(depositSvc)
	paymentHandler := payments.NewHandler(paymentSvc)
	keyHandler := grants.NewHandler(grantSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes. The gateway webhook authenticates by payload signature
	// and carries its own idempotency in the ledger, so it stays outside
	// both the credential gate and the idempotency cache.
	RegisterAuthRoutes(api, authHandler, middleware.CallbackRateLimit(d.Cache, 10))
	api.Post("/wallet/paystack/webhook", depositHandler.Webhook)

	// Protected routes.
	protected := api.Group("",
		middleware.Authenticate(authSvc, identitySvc, walletSvc, grantSvc),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterWalletRoutes(protected, walletSvc, walletHandler)
	RegisterDepositRoutes(protected, depositHandler)
	RegisterPaymentRoutes(protected, paymentHandler)
	RegisterKeyRoutes(protected, keyHandler)

	return nil
}
