package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/summari/backend/internal/billing"
	"github.com/summari/backend/internal/cache"
	"github.com/summari/backend/internal/config"
	"github.com/summari/backend/internal/database"
	"github.com/summari/backend/internal/entitlement"
	"github.com/summari/backend/internal/models"
	"github.com/summari/backend/internal/payments"
	"github.com/summari/backend/internal/repository"
)

// premiumLister is the subset of the store the sweep needs beyond the
// tracker's own interface.
type premiumLister interface {
	ListPremium(ctx context.Context) ([]*models.EntitlementRecord, error)
}

func main() {
	cfg := config.Load()

	log.Printf("[reconciler] Starting Summari reconciler (env=%s, backend=%s)", cfg.Env, cfg.EntitlementBackend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisCache, err := cache.NewRedisFromURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("[reconciler] Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	var store entitlement.Store
	var lister premiumLister
	var pgStore *repository.PostgresEntitlementStore

	if cfg.EntitlementBackend == "postgres" {
		db, err := database.New(ctx, database.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			log.Fatalf("[reconciler] Failed to connect to database: %v", err)
		}
		defer db.Close()

		pgStore = repository.NewPostgresEntitlementStore(db)
		store = pgStore
		lister = pgStore
	} else {
		redisStore := repository.NewRedisEntitlementStore(redisCache)
		store = redisStore
		lister = redisStore
	}

	tracker := entitlement.NewTracker(store, cfg.FreeDailyLimit, cfg.Location())

	var reconciler *billing.Reconciler
	if cfg.StripeSecretKey != "" {
		stripeClient, err := payments.NewStripeClient(payments.Config{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PriceID:       cfg.StripePriceID,
			BaseURL:       cfg.BaseURL,
		})
		if err != nil {
			log.Fatalf("[reconciler] Failed to create Stripe client: %v", err)
		}
		reconciler = billing.NewReconciler(tracker, stripeClient, cfg.PaidGrantDays)
	} else {
		log.Println("[reconciler] Stripe not configured, subscription sweeps disabled")
	}

	// Schedules run in the quota timezone so the daily reset fires at the
	// same local midnight the lazy per-request reset uses.
	c := cron.New(cron.WithLocation(cfg.Location()))

	// Daily usage reset at midnight. Only the postgres backend needs this;
	// the redis backend resets lazily when a record is next loaded.
	if pgStore != nil {
		if _, err := c.AddFunc("0 0 * * *", func() {
			runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()

			today := models.DayOf(time.Now().In(cfg.Location()), cfg.Location())
			n, err := pgStore.ResetAllDaily(runCtx, today)
			if err != nil {
				log.Printf("[reconciler] Daily reset failed: %v", err)
				return
			}
			log.Printf("[reconciler] Daily reset complete, %d records rolled to %s", n, today)
		}); err != nil {
			log.Fatalf("[reconciler] Failed to schedule daily reset: %v", err)
		}
	}

	// Hourly subscription liveness sweep. Revokes premium only when the
	// provider explicitly reports no active subscription.
	if reconciler != nil {
		if _, err := c.AddFunc("0 * * * *", func() {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()

			records, err := lister.ListPremium(runCtx)
			if err != nil {
				log.Printf("[reconciler] Premium listing failed: %v", err)
				return
			}
			revoked := reconciler.SweepPremium(runCtx, records)
			log.Printf("[reconciler] Sweep complete, checked %d premium records, revoked %d", len(records), revoked)
		}); err != nil {
			log.Fatalf("[reconciler] Failed to schedule sweep: %v", err)
		}
	}

	c.Start()
	log.Println("[reconciler] Schedules started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[reconciler] Shutting down...")
	<-c.Stop().Done()
	log.Println("[reconciler] Stopped")
}
