package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"

	config "github.com/avvvet/rps-services/configs"
	"github.com/avvvet/rps-services/internal/gamesvc/broker"
	gameconfig "github.com/avvvet/rps-services/internal/gamesvc/config"
	handlers "github.com/avvvet/rps-services/internal/gamesvc/handlers"
	"github.com/avvvet/rps-services/internal/gamesvc/service"
	"github.com/avvvet/rps-services/internal/gamesvc/store"
	nats "github.com/avvvet/rps-services/internal/nats"
	"github.com/avvvet/rps-services/internal/rps"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	config.LoadEnv(SERVICE_NAME)
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId[:8])
}

func main() {
	cfg, err := gameconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}

	ctx := context.Background()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer backend.Close()
	log.Infof("%s store ready", cfg.StoreDriver)

	if err := store.Seed(ctx, backend.Wallets, cfg.SeedAccounts); err != nil {
		log.Fatalf("Failed to seed wallets: %v", err)
	}

	// Connect to NATS
	n, err := nats.Connect(os.Getenv("NATS_URL"), os.Getenv("NATS_TOKEN"), SERVICE_NAME+"-"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	engine := rps.NewEngine(backend.Store, rps.Options{
		ActionTimeout: cfg.ActionTimeout,
		Notifier:      broker.NewEventPublisher(n.Conn),
		Logger:        log.WithFields(log.Fields{"component": "rps-engine", "instance": instanceId}),
	})
	gameService := service.NewGameService(engine)
	balanceService := service.NewBalanceService(engine, backend.Wallets)

	// init peer message broker
	b := broker.NewBroker(n.Conn, gameService, balanceService)

	// subscribe to socket service
	sub, err := b.QueueSubscribSocketService(n.Conn, "rps")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	tokenAuth := handlers.NewAuth(cfg.JWTSecret)
	if os.Getenv("DEBUG_TOKENS") != "" {
		for account := range cfg.SeedAccounts {
			handlers.DebugToken(tokenAuth, account)
		}
	}
	h := handlers.NewHandler(tokenAuth, gameService, balanceService, cfg.ServicePort)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.ServicePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
