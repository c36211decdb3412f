package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/ShipWatch/config"
	"github.com/BearBump/ShipWatch/internal/broker/kafka"
	"github.com/BearBump/ShipWatch/internal/cache/rediscache"
	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi"
	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi/fake"
	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi/wblogistics"
	"github.com/BearBump/ShipWatch/internal/notify"
	"github.com/BearBump/ShipWatch/internal/notify/telegram"
	"github.com/BearBump/ShipWatch/internal/services/monitor"
)

type monitorFactories struct {
	newVendorClient func(cfg *config.Config) vendor.Client
	newDispatcher   func(cfg *config.Config) monitor.Dispatcher
	newProducer     func(cfg *config.Config) monitor.Producer
	newRateLimiter  func(cfg *config.Config) monitor.RateLimiter
}

func defaultMonitorFactories() monitorFactories {
	return monitorFactories{
		newVendorClient: func(cfg *config.Config) vendor.Client {
			// Для демо без токенов WB поднимаем локальный fake.
			switch cfg.ShipWatch.VendorMode {
			case "wb":
				return wblogistics.New(cfg.ShipWatch.VendorBaseURL)
			default:
				return fake.New()
			}
		},
		newDispatcher: func(cfg *config.Config) monitor.Dispatcher {
			tg := telegram.New(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken)
			return notify.NewDispatcher(tg, notify.RouteConfig{
				PrimaryChatID:    cfg.Telegram.PrimaryChatID,
				SecondaryChatID:  cfg.Telegram.SecondaryChatID,
				ActiveTopicID:    cfg.Telegram.ActiveTopicID,
				CompletedTopicID: cfg.Telegram.CompletedTopicID,
			})
		},
		newProducer: func(cfg *config.Config) monitor.Producer {
			if cfg.Kafka.Host == "" {
				return nil
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) monitor.RateLimiter {
			if cfg.Redis.Host == "" {
				return nil
			}
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
	}
}

func RunShipMonitor(ctx context.Context, cfg *config.Config, f monitorFactories) error {
	httpAddr := cfg.ShipWatch.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.ShipmentEventsTopicName
	if topic == "" {
		topic = "shipment.events"
	}

	check := time.Duration(cfg.ShipWatch.CheckIntervalSeconds) * time.Second
	if check <= 0 {
		check = 10 * time.Second
	}
	refresh := time.Duration(cfg.ShipWatch.RefreshIntervalSeconds) * time.Second
	if refresh <= 0 {
		refresh = 60 * time.Second
	}
	inactivity := time.Duration(cfg.ShipWatch.InactivityTimeoutSeconds) * time.Second
	if inactivity <= 0 {
		inactivity = 5 * time.Minute
	}
	rlPerMin := int64(cfg.ShipWatch.RateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	accounts := make([]monitor.AccountConfig, 0, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts = append(accounts, monitor.AccountConfig{
			ID:                a.ID,
			Name:              a.Name,
			Token:             a.Token,
			SupplierID:        a.SupplierID,
			OfficeIDs:         a.OfficeIDs,
			CheckInterval:     check,
			RefreshInterval:   refresh,
			InactivityTimeout: inactivity,
		})
	}

	m := monitor.New(f.newVendorClient(cfg), f.newDispatcher(cfg), accounts)
	if p := f.newProducer(cfg); p != nil {
		m = m.WithEvents(p, topic)
	}
	if rl := f.newRateLimiter(cfg); rl != nil {
		m = m.WithRateLimiter(rl, rlPerMin)
	}

	if cfg.ShipWatch.Autostart {
		for _, id := range m.AccountIDs() {
			m.Start(ctx, id)
		}
	}
	defer m.StopAll()

	return runMonitorHTTPServer(ctx, monitorHTTPOpts{
		httpAddr: httpAddr,
		manager:  m,
	})
}
