package api

import (
	"log"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/summari/backend/internal/api/handlers"
	"github.com/summari/backend/internal/billing"
	"github.com/summari/backend/internal/cache"
	"github.com/summari/backend/internal/config"
	"github.com/summari/backend/internal/database"
	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/middleware"
	"github.com/summari/backend/internal/payments"
	"github.com/summari/backend/internal/profile"
	"github.com/summari/backend/internal/ratelimit"
	"github.com/summari/backend/internal/redemption"
	"github.com/summari/backend/internal/repository"
	"github.com/summari/backend/internal/summarizer"
)

// profileTokenExpiration is how long an anonymous profile token stays valid.
const profileTokenExpiration = 180 * 24 * time.Hour

// NewRouter creates and configures the main router
func NewRouter(cfg *config.Config, db *database.DB, redisCache *cache.Redis) *chi.Mux {
	r := chi.NewRouter()

	// Entitlement store: redis holds the whole record as one JSON document;
	// postgres trades that simplicity for an atomic usage increment.
	var store entitlement.Store
	if cfg.EntitlementBackend == "postgres" && db != nil {
		store = repository.NewPostgresEntitlementStore(db)
	} else {
		store = repository.NewRedisEntitlementStore(redisCache)
	}

	tracker := entitlement.NewTracker(store, cfg.FreeDailyLimit, cfg.Location())

	// Profile tokens
	tokenService := profile.NewTokenService(cfg.JWTSecret, profileTokenExpiration)
	profileMw := profile.NewMiddleware(tokenService)

	// Abuse rate limiter, keyed by profile when present, else client IP
	limiter := ratelimit.NewLimiter(redisCache, cfg.RateLimitPerMinute)

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORSWithOrigins(cfg.CORSOrigins))
	r.Use(profileMw.Optional) // resolve profile for rate-limit keying (doesn't require a token)
	r.Use(middleware.RateLimit(limiter))

	// Redemption codes
	verifier := redemption.NewVerifier(cfg.RedemptionCodes, cfg.CodeGrantDays)
	if cfg.RedemptionSingleUse {
		verifier = verifier.WithSingleUse(redemption.NewRedisUsedCodeStore(redisCache))
	}

	// Payments: optional, the service degrades to free tier + codes without it
	var stripeClient *payments.StripeClient
	var reconciler *billing.Reconciler
	if cfg.StripeSecretKey != "" {
		client, err := payments.NewStripeClient(payments.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PriceID:       cfg.StripePriceID,
			BaseURL:       cfg.BaseURL,
		})
		if err != nil {
			log.Printf("[api] Stripe client init failed, billing disabled: %v", err)
		} else {
			stripeClient = client
			reconciler = billing.NewReconciler(tracker, stripeClient, cfg.PaidGrantDays)
		}
	}

	// Summarizer
	summaryCache := summarizer.NewCache(redisCache, cfg.SummaryCacheTTL)
	groqClient := summarizer.NewGroqClient(cfg.GroqAPIKey)
	summaryService := summarizer.NewService(groqClient, summaryCache, cfg.ModelSummary)

	// Initialize handlers
	healthHandler := handlers.NewHealthChecker(db, redisCache)
	profileHandler := handlers.NewProfileHandler(tokenService)
	usageHandler := handlers.NewUsageHandler(tracker, cfg.IsDevelopment())
	summarizeHandler := handlers.NewSummarizeHandler(tracker, summaryService)
	redeemHandler := handlers.NewRedeemHandler(verifier, tracker)
	billingHandler := handlers.NewBillingHandler(reconciler, stripeClient)

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", handlers.LivenessProbe)
	r.Get("/health/ready", healthHandler.ReadinessProbe)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/profile", profileHandler.Create)
		r.Post("/billing/webhook", billingHandler.Webhook)

		// Profile-scoped endpoints (require a profile token)
		r.Group(func(r chi.Router) {
			r.Use(profileMw.Require)

			r.Post("/summarize", summarizeHandler.Summarize)
			r.Get("/usage", usageHandler.GetUsage)
			r.Delete("/usage", usageHandler.ResetUsage)
			r.Post("/redeem", redeemHandler.Redeem)

			r.Post("/billing/checkout", billingHandler.CreateCheckout)
			r.Get("/billing/verify", billingHandler.VerifyCheckout)
			r.Post("/billing/liveness", billingHandler.CheckLiveness)
		})
	})

	return r
}
