package main

import (
	"context"
	"os"
	"os/signal"

	config "github.com/avvvet/rps-services/configs"
	gameconfig "github.com/avvvet/rps-services/internal/gamesvc/config"
	"github.com/avvvet/rps-services/internal/gamesvc/store"
	natscli "github.com/avvvet/rps-services/internal/nats"
	"github.com/avvvet/rps-services/internal/paysvc"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "pay"

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
	// deposits must land where the game service reads the wallet from
	if cfg.StoreDriver == gameconfig.DriverMemory {
		log.Fatal("pay service needs STORE_DRIVER postgres or mongo")
	}

	backend, err := store.Open(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer backend.Close()

	// Connect to NATS
	nc, err := natscli.Connect(os.Getenv("NATS_URL"), os.Getenv("NATS_TOKEN"), SERVICE_NAME+"-"+instanceId)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()
	log.Infof("NATS connected at %s", nc.Url)

	// Subscribe to payment service
	sub, err := paysvc.NewService(backend.Wallets).Subscribe(nc.Conn)
	if err != nil {
		log.Fatalf("Subscribe payment.service error: %v", err)
	}
	log.Infof("%s service ready", SERVICE_NAME)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()
	log.Infof("%s service stopped", SERVICE_NAME)
}
