package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/ShipWatch/config"
	"github.com/BearBump/ShipWatch/internal/broker/kafka"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	topic := cfg.Kafka.ShipmentEventsTopicName
	if topic == "" {
		topic = "shipment.events"
	}
	consumerGroup := cfg.ShipWatch.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "ship-history"
	}

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)
	defer func() { _ = consumer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RunShipHistory(ctx, cfg, defaultHistoryFactories(), consumer); err != nil && err != context.Canceled {
		panic(err)
	}
}
