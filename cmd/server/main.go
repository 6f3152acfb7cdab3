package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	twilioclient "github.com/twilio/twilio-go/client"

	"dispatch/internal/app"
	"dispatch/internal/channel"
	"dispatch/internal/config"
	"dispatch/internal/events"
	"dispatch/internal/handler"
	"dispatch/internal/maps"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository"
	"dispatch/internal/repository/memory"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/service"
)

// stores groups the persistence layer selected by DISPATCH_STORE.
type stores struct {
	bookingRepo   repository.BookingRepository
	ambulanceRepo repository.AmbulanceRepository
	locationStore internalRedis.LocationStoreInterface
	lockStore     internalRedis.LockStoreInterface
	dedup         internalRedis.MessageDeduplicator
	redisClient   *redis.Client
	close         func()
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	st, err := openStores(ctx, cfg, nrApp)
	if err != nil {
		log.Fatalf("failed to open stores: %v", err)
	}
	defer st.close()

	notifyChannel, err := buildChannel(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build notification channel: %v", err)
	}

	var publisher service.EventPublisher = events.LogPublisher{}
	if cfg.RabbitMQ.URL != "" {
		p, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer p.Close()
		publisher = p
		log.Printf("Publishing dispatch events to exchange %s", cfg.RabbitMQ.Exchange)
	}

	// Wire dependencies.
	server, dispatchService := wireServer(cfg, st, notifyChannel, publisher, nrApp)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	dispatchService.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// openStores connects PostgreSQL and Redis, or builds in-process stores when
// DISPATCH_STORE=memory.
func openStores(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application) (*stores, error) {
	if cfg.Dispatch.Store == "memory" {
		log.Println("Using in-memory stores; bookings are lost on restart")
		locks := memory.NewLockStore()
		return &stores{
			bookingRepo:   memory.NewBookingRepository(),
			ambulanceRepo: memory.NewAmbulanceRepository(),
			locationStore: memory.NewLocationStore(),
			lockStore:     locks,
			dedup:         locks,
			close:         func() {},
		}, nil
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	log.Println("Connected to Redis")

	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	return &stores{
		bookingRepo:   internalRedis.NewCachedBookingRepository(postgres.NewBookingRepository(db), cacheStore),
		ambulanceRepo: postgres.NewAmbulanceRepository(db),
		locationStore: internalRedis.NewLocationStore(redisClient),
		lockStore:     lockStore,
		dedup:         lockStore,
		redisClient:   redisClient,
		close: func() {
			redisClient.Close()
			db.Close()
		},
	}, nil
}

// buildChannel returns the notification channel named by NOTIFY_CHANNEL.
func buildChannel(ctx context.Context, cfg *config.Config) (service.Channel, error) {
	sms := func() (service.Channel, error) {
		if !cfg.Twilio.Enabled() {
			return nil, fmt.Errorf("twilio credentials are not configured")
		}
		callback := cfg.Twilio.PublicBaseURL + "/v1/webhooks/twilio/status"
		return channel.NewSMSChannel(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.PhoneNumber, callback), nil
	}
	push := func() (service.Channel, error) {
		client, err := app.NewMessagingClient(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
		return channel.NewPushChannel(client), nil
	}

	switch cfg.Dispatch.NotifyChannel {
	case "sms":
		return sms()
	case "push":
		return push()
	case "all":
		smsChannel, err := sms()
		if err != nil {
			return nil, err
		}
		pushChannel, err := push()
		if err != nil {
			return nil, err
		}
		return channel.NewFanoutChannel(smsChannel, pushChannel), nil
	case "log":
		return channel.NewLogChannel(), nil
	default:
		return nil, fmt.Errorf("unknown NOTIFY_CHANNEL %q", cfg.Dispatch.NotifyChannel)
	}
}

// buildSelector returns the candidate selector named by DISPATCH_SELECTOR.
func buildSelector(cfg *config.Config, st *stores) (service.CandidateSelector, error) {
	var resolver service.AddressResolver
	if cfg.Maps.APIKey != "" {
		geocoder, err := maps.NewGeocoder(cfg.Maps.APIKey)
		if err != nil {
			return nil, err
		}
		resolver = geocoder
	}

	fleet := service.NewFleetSelector(st.locationStore, st.lockStore, st.ambulanceRepo, resolver, cfg.Dispatch.SearchRadiusKm)
	predictor := service.NewPredictorSelector(cfg.Predictor.URL, cfg.Predictor.Timeout, cfg.Dispatch.CountryCode)

	switch cfg.Dispatch.Selector {
	case "fleet":
		return fleet, nil
	case "predictor":
		return predictor, nil
	case "chain":
		return service.NewChainSelector(fleet, predictor), nil
	default:
		return nil, fmt.Errorf("unknown DISPATCH_SELECTOR %q", cfg.Dispatch.Selector)
	}
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	cfg *config.Config,
	st *stores,
	notifyChannel service.Channel,
	publisher service.EventPublisher,
	nrApp *newrelic.Application,
) (*http.Server, *service.DispatchService) {
	selector, err := buildSelector(cfg, st)
	if err != nil {
		log.Fatalf("failed to build candidate selector: %v", err)
	}

	// Initialize services.
	notifier := service.NewNotifier(notifyChannel, service.RetryPolicy{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseDelay:   cfg.Dispatch.BaseDelay,
		MaxDelay:    cfg.Dispatch.MaxDelay,
	}, cfg.Dispatch.CountryCode)
	ambulanceService := service.NewAmbulanceService(st.locationStore, st.lockStore, st.ambulanceRepo, cfg.Dispatch.CountryCode)
	dispatchService := service.NewDispatchService(st.bookingRepo, selector, notifier, publisher, ambulanceService, service.DispatchConfig{
		PendingTimeout: cfg.Dispatch.PendingTimeout,
	})
	correlator := service.NewWebhookCorrelator(st.bookingRepo, dispatchService, cfg.Dispatch.CountryCode)

	var validator handler.SignatureValidator
	if cfg.Twilio.ValidateSignature && cfg.Twilio.AuthToken != "" {
		v := twilioclient.NewRequestValidator(cfg.Twilio.AuthToken)
		validator = &v
	}

	// Initialize handlers.
	bookingHandler := handler.NewBookingHandler(dispatchService)
	webhookHandler := handler.NewWebhookHandler(correlator, dispatchService, st.dedup, validator, cfg.Twilio.PublicBaseURL)
	ambulanceHandler := handler.NewAmbulanceHandler(ambulanceService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		BookingHandler:   bookingHandler,
		WebhookHandler:   webhookHandler,
		AmbulanceHandler: ambulanceHandler,
		RedisClient:      st.redisClient,
		NewRelicApp:      nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, dispatchService
}
