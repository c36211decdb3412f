package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipWatch/config"
	"github.com/BearBump/ShipWatch/internal/cache"
	"github.com/BearBump/ShipWatch/internal/cache/rediscache"
	"github.com/BearBump/ShipWatch/internal/services/history"
	"github.com/BearBump/ShipWatch/internal/storage/pghistory"
)

type historyFactories struct {
	newStorage func(cfg *config.Config) (repo history.Repository, closeFn func(), err error)
	newCache   func(cfg *config.Config) cache.BytesCache
}

func defaultHistoryFactories() historyFactories {
	return historyFactories{
		newStorage: func(cfg *config.Config) (history.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pghistory.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			if cfg.Redis.Host == "" {
				return nil
			}
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
	}
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func RunShipHistory(ctx context.Context, cfg *config.Config, f historyFactories, consumer kafkaConsumer) error {
	httpAddr := cfg.ShipWatch.HistoryHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8081"
	}
	latestTTL := time.Duration(cfg.ShipWatch.LatestStateTTLSeconds) * time.Second
	if latestTTL <= 0 {
		latestTTL = 10 * time.Minute
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	svc := history.New(repo, f.newCache(cfg), latestTTL)

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- consumer.Consume(ctx, func(key, value []byte) error {
			err := svc.ApplyEvent(ctx, value)
			if errors.Is(err, history.ErrBadEvent) {
				// Кривое событие не должно стопорить партицию: логируем и едем дальше.
				slog.Error("skip bad shipment event", "key", string(key), "error", err.Error())
				return nil
			}
			// Ошибка хранилища — повод упасть без коммита и перечитать.
			return err
		})
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHistoryHTTPServer(ctx, historyHTTPOpts{
			httpAddr: httpAddr,
			svc:      svc,
		})
	}()

	select {
	case <-ctx.Done():
		<-httpErr
		return ctx.Err()
	case err := <-consumerErr:
		return err
	case err := <-httpErr:
		return err
	}
}
