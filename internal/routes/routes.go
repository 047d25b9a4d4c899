package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/walletapp/walletapp/internal/account"
	"github.com/walletapp/walletapp/internal/balance"
	"github.com/walletapp/walletapp/internal/config"
	"github.com/walletapp/walletapp/internal/locking"
	"github.com/walletapp/walletapp/internal/middleware"
	"github.com/walletapp/walletapp/internal/notification"
	"github.com/walletapp/walletapp/internal/transaction"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Services holds the wired domain services, shared with the background worker.
type Services struct {
	Accounts     *account.Service
	Transactions *transaction.Service
	TxnStore     transaction.Repository
}

// Setup configures middlewares and all application routes, and returns the
// wired services.
func Setup(app *fiber.App, d Deps) (Services, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Services{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return Services{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Stores
	var accountRepo account.Repository
	var txnRepo transaction.Repository
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB)
		txnRepo = transaction.NewPostgresRepository(d.DB)
	} else {
		accountRepo = account.NewMemoryRepository()
		txnRepo = transaction.NewMemoryRepository()
	}

	// Services
	locks := locking.NewManager(d.Cfg.LockTimeout)
	calculator := balance.NewCalculator(accountRepo, txnRepo)
	validator := transaction.NewValidator(accountRepo)
	notifier := notification.NewLoggerNotifier(d.Logger)
	accountSvc := account.NewService(accountRepo, calculator, txnRepo, locks)
	txnSvc := transaction.NewService(txnRepo, validator, calculator, accountRepo, locks, notifier)

	accountHandler := account.NewHandler(accountSvc)
	txnHandler := transaction.NewHandler(txnSvc, accountRepo)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAccountRoutes(api, accountHandler)
	RegisterTransactionRoutes(api, txnHandler)

	return Services{Accounts: accountSvc, Transactions: txnSvc, TxnStore: txnRepo}, nil
}
