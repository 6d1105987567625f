package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/config"
	"github.com/ariefcatur/go-cafe-pos/internal/inventory"
	kafkax "github.com/ariefcatur/go-cafe-pos/internal/kafka"
	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/ariefcatur/go-cafe-pos/internal/redisx"
	"github.com/joho/godotenv"
)

// alertQuietWindow is how long an ingredient stays silent after an alert.
const alertQuietWindow = time.Hour

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-inventory"

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer: low-stock alerts
	pctx, stopProducer := context.WithCancel(context.Background())
	alerts := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicIngredientLowStock, service, 256)
	alerts.Start(pctx)

	svc := &inventory.Service{
		Events:      &redisx.Dedup{RDB: rdb, Service: service},
		Alerts:      &redisx.Dedup{RDB: rdb, Service: service + ":low_stock", TTL: alertQuietWindow},
		Publisher:   alerts,
		ServiceName: service,
	}

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, orders.TopicOrderCreated, service, cfg.InventoryWorkers)
	log.Printf("inventory consumer started: group=%s topic=%s workers=%d",
		cfg.InventoryGroup, orders.TopicOrderCreated, cfg.InventoryWorkers)
	if err := cons.Start(ctx, svc.HandleOrderCreated); err != nil {
		log.Printf("consumer exit: %v", err)
	}

	log.Println("shutting down consumer...")
	alerts.Close()
	stopProducer()
	alerts.WaitClosed()
}
