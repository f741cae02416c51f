package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"paypal-bridge/internal/admin"
	"paypal-bridge/internal/cart"
	"paypal-bridge/internal/checkout"
	"paypal-bridge/internal/config"
	"paypal-bridge/internal/db"
	"paypal-bridge/internal/event"
	"paypal-bridge/internal/logger"
	"paypal-bridge/internal/metrics"
	"paypal-bridge/internal/middleware"
	"paypal-bridge/internal/order"
	"paypal-bridge/internal/payment"
	"paypal-bridge/internal/payment/ipn"
	"paypal-bridge/internal/payment/webhook"
	"paypal-bridge/internal/paypal"
	"paypal-bridge/internal/session"

	"go.uber.org/zap"
)

type routes struct {
	checkout   *checkout.Handler
	webhook    http.Handler
	ipn        *ipn.Handler
	admin      *admin.Handler
	metrics    http.Handler
	adminGuard func(http.Handler) http.Handler
	limiter    *middleware.Limiter
}

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := db.InitDB(cfg)
	defer database.Close()

	publisher := newPublisher(cfg)
	defer publisher.Close()

	reg := metrics.NewRegistry()
	client := paypal.NewClient(cfg)

	cartRepo := cart.NewRepository(database)
	orderRepo := order.NewRepository(database)
	paymentRepo := payment.NewRepository(database)
	ipnRepo := ipn.NewRepository(database)

	checkoutSvc := checkout.NewService(cartRepo, orderRepo, paymentRepo, client, publisher, reg)
	webhookReconciler := webhook.NewReconciler(paymentRepo, reg)
	ipnReconciler := ipn.NewReconciler(orderRepo, ipnRepo, publisher, reg, cfg.SendOrderMailOnPayment)

	if !client.WebhookVerificationEnabled() {
		log.Warn("PAYPAL_WEBHOOK_ID not set, webhook signatures are not verified")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewLimiter(cfg.TrustedProxies...)
	go limiter.Run(ctx)

	r := routes{
		checkout: checkout.NewHandler(checkoutSvc, cfg.SiteURL, cfg.ThankYouURL),
		webhook:  webhook.NewHandler(webhookReconciler, paymentRepo, client, reg),
		ipn: ipn.NewHandler(client, ipnRepo, orderRepo, ipnReconciler, reg, ipn.Options{
			ReceiverEmail: cfg.PayPalReceiverEmail,
			SiteURL:       cfg.SiteURL,
			ThankYouURL:   cfg.ThankYouURL,
			ShopName:      cfg.ShopName,
		}),
		admin: admin.NewHandler(paymentRepo, admin.Credentials{
			Email:        cfg.AdminEmail,
			PasswordHash: cfg.AdminPasswordHash,
			JWTSecret:    cfg.JWTSecret,
		}),
		metrics:    reg.Handler(),
		adminGuard: middleware.RequireAdmin(cfg.JWTSecret),
		limiter:    limiter,
	}

	srv := newServer(cfg.AppPort, setupRouter(r))

	go func() {
		log.Info("PayPal bridge listening",
			zap.String("addr", srv.Addr),
			zap.Bool("sandbox", cfg.Sandbox()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// newPublisher connects to Kafka when a broker is configured and falls back
// to logging the events otherwise.
func newPublisher(cfg *config.Config) event.Publisher {
	if cfg.KafkaBroker == "" {
		logger.L().Info("KAFKA_BROKER not set, order events are only logged")
		return event.LogPublisher{}
	}

	p, err := event.NewKafkaPublisher(cfg.KafkaBroker)
	if err != nil {
		logger.L().Fatal("Failed to connect to Kafka", zap.String("broker", cfg.KafkaBroker), zap.Error(err))
	}
	return p
}

func setupRouter(r routes) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Buyer facing
	mux.HandleFunc("/checkout/paypal/", r.checkout.Checkout)
	mux.HandleFunc("/capture-payment/", r.checkout.CapturePayment)
	mux.HandleFunc("GET /payment-cancelled/", r.checkout.PaymentCancelled)
	mux.HandleFunc("GET /paypal/pay-link/{uuid}/", r.ipn.PayLink)
	mux.HandleFunc("GET /paypal/pdt/", r.ipn.PDT)

	// Provider callbacks
	mux.Handle("/webhook/", r.webhook)
	mux.HandleFunc("/paypal/ipn/", r.ipn.IPN)

	// Admin
	mux.HandleFunc("POST /admin/login", r.admin.Login)
	mux.Handle("GET /admin/payments", r.adminGuard(http.HandlerFunc(r.admin.ListPayments)))
	mux.Handle("GET /admin/payments/{id}", r.adminGuard(http.HandlerFunc(r.admin.GetPayment)))
	mux.Handle("GET /admin/metrics", r.adminGuard(r.metrics))

	var h http.Handler = mux
	h = r.limiter.Middleware(h)
	h = session.Middleware(h)
	h = logger.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h
}

func newServer(port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
