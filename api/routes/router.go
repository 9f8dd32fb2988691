package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kharido-labs/kharido-backend/api/controllers"
	"github.com/kharido-labs/kharido-backend/api/middleware"
	checkoutsvc "github.com/kharido-labs/kharido-backend/internal/checkout"
	"github.com/kharido-labs/kharido-backend/internal/orders"
	"github.com/kharido-labs/kharido-backend/internal/payments"
	"github.com/kharido-labs/kharido-backend/internal/reconcile"
	"github.com/kharido-labs/kharido-backend/internal/wallet"
	"github.com/kharido-labs/kharido-backend/internal/withdrawals"
	"github.com/kharido-labs/kharido-backend/pkg/config"
	"github.com/kharido-labs/kharido-backend/pkg/db"
	"github.com/kharido-labs/kharido-backend/pkg/logger"
	"github.com/kharido-labs/kharido-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	Registry    *prometheus.Registry
	Checkout    checkoutsvc.Service
	Orders      orders.Service
	Payments    payments.Service
	Wallet      wallet.Service
	Withdrawals withdrawals.Service
	Reconcile   reconcile.Service
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	logg := deps.Logger

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.ActorContext(logg),
	)

	var redisPinger redis.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, logg, deps.DB, redisPinger))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	var idempotencyStore redis.IdempotencyStore
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireBuyer(logg))
			r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
			})
			r.Route("/payments", func(r chi.Router) {
				r.Post("/initiate", controllers.PaymentInitiate(deps.Payments, logg))
				r.Post("/capture", controllers.PaymentCapture(deps.Payments, logg))
			})
		})

		// Detail is reachable by either side of the order.
		r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSeller(logg))
			r.Route("/seller", func(r chi.Router) {
				r.Get("/orders", controllers.SellerOrders(deps.Orders, logg))
				r.Post("/orders/{orderId}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
				r.Route("/wallet", func(r chi.Router) {
					r.Get("/", controllers.WalletSummary(deps.Wallet, logg))
					r.Get("/transactions", controllers.WalletTransactions(deps.Wallet, logg))
				})
			})
			r.Post("/withdrawals", controllers.WithdrawalCreate(deps.Withdrawals, logg))
			r.Get("/withdrawals", controllers.WithdrawalList(deps.Withdrawals, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(logg))
		r.Route("/withdrawals", func(r chi.Router) {
			r.Get("/", controllers.AdminWithdrawalList(deps.Withdrawals, logg))
			r.Post("/{withdrawalId}/approve", controllers.AdminWithdrawalApprove(deps.Withdrawals, logg))
			r.Post("/{withdrawalId}/reject", controllers.AdminWithdrawalReject(deps.Withdrawals, logg))
			r.Post("/{withdrawalId}/process", controllers.AdminWithdrawalProcess(deps.Withdrawals, logg))
		})
		r.Route("/wallets", func(r chi.Router) {
			r.Post("/rebuild-all", controllers.AdminWalletRebuildAll(deps.Reconcile, logg))
			r.Post("/{sellerId}/rebuild", controllers.AdminWalletRebuild(deps.Reconcile, logg))
		})
	})

	return r
}
