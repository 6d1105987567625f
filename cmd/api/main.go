package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/auth"
	"github.com/ariefcatur/go-cafe-pos/internal/catalog"
	"github.com/ariefcatur/go-cafe-pos/internal/config"
	"github.com/ariefcatur/go-cafe-pos/internal/customers"
	"github.com/ariefcatur/go-cafe-pos/internal/httpx"
	"github.com/ariefcatur/go-cafe-pos/internal/inventory"
	kafkax "github.com/ariefcatur/go-cafe-pos/internal/kafka"
	"github.com/ariefcatur/go-cafe-pos/internal/metrics"
	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/ariefcatur/go-cafe-pos/internal/postgres"
	"github.com/ariefcatur/go-cafe-pos/internal/redisx"
	"github.com/ariefcatur/go-cafe-pos/internal/settings"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.RequireAPI(); err != nil {
		log.Fatalf("%v", err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("%v", err)
	}

	users := &auth.Repo{DB: db}
	if seeded, err := users.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("%v", err)
	} else if seeded {
		log.Printf("seeded admin %s", cfg.AdminEmail)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic; their loops stop with pctx after HTTP drains
	pctx, stopProducers := context.WithCancel(context.Background())
	created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, cfg.ServiceName, 1024)
	created.Start(pctx)
	changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, cfg.ServiceName, 1024)
	changed.Start(pctx)

	m := metrics.New(prometheus.DefaultRegisterer)
	tokens := &auth.Tokens{Secret: []byte(cfg.JWTSecret), TTL: auth.DefaultTTL}
	settingsRepo := &settings.Repo{DB: db}
	orderRepo := &orders.Repo{DB: db}

	coord := &orders.Coordinator{
		Store:    &orders.PgStore{DB: db, LockTimeout: cfg.LockTimeout},
		Resolver: orders.Resolver{ImplicitVariants: cfg.ImplicitVariants},
		Pricing: orders.Pricing{
			TaxRate:          cfg.TaxRate,
			LoyaltyThreshold: cfg.LoyaltyThreshold,
			LoyaltyDiscount:  cfg.LoyaltyDiscount,
			LoyaltyCost:      cfg.LoyaltyCost,
		},
		Rates:    settings.TaxRates{Store: settingsRepo, Default: cfg.TaxRate},
		Observer: m,
		Service:  cfg.ServiceName,
	}

	router := httpx.NewRouter(httpx.Deps{
		Tokens:  tokens,
		Metrics: m,
		Auth:    &httpx.AuthHandler{Auth: &auth.Service{Users: users, Tokens: tokens}, Service: cfg.ServiceName},
		Orders: &httpx.OrdersHandler{
			Checkout:      coord,
			Orders:        orderRepo,
			Cache:         &redisx.Cache{RDB: rdb},
			Created:       created,
			StatusChanged: changed,
			Service:       cfg.ServiceName,
		},
		Catalog: &httpx.CatalogHandler{
			Products:    &catalog.Repo{DB: db},
			Ingredients: &inventory.Repo{DB: db},
			Customers:   &customers.Repo{DB: db},
			Settings:    settingsRepo,
			Service:     cfg.ServiceName,
		},
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
	}

	// flush queued events after the last request
	created.Close()
	changed.Close()
	stopProducers()
	created.WaitClosed()
	changed.WaitClosed()
}
