package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ShipWatch/config"
	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi"
	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi/fake"
	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi/wblogistics"
	"github.com/BearBump/ShipWatch/internal/models"
	"github.com/BearBump/ShipWatch/internal/notify"
	"github.com/BearBump/ShipWatch/internal/services/monitor"
)

func TestDefaultMonitorFactories_SelectVendorClient(t *testing.T) {
	f := defaultMonitorFactories()

	cfgWB := &config.Config{
		ShipWatch: config.ShipWatchConfig{VendorMode: "wb", VendorBaseURL: "http://localhost:9000"},
	}
	c1 := f.newVendorClient(cfgWB)
	_, ok := c1.(*wblogistics.Client)
	require.True(t, ok)

	cfgFallback := &config.Config{
		ShipWatch: config.ShipWatchConfig{VendorMode: "unknown"},
	}
	c2 := f.newVendorClient(cfgFallback)
	_, ok = c2.(*fake.FakeClient)
	require.True(t, ok)
}

func TestDefaultMonitorFactories_OptionalDeps(t *testing.T) {
	f := defaultMonitorFactories()

	empty := &config.Config{}
	require.Nil(t, f.newProducer(empty))
	require.Nil(t, f.newRateLimiter(empty))

	full := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(full))
	require.NotNil(t, f.newRateLimiter(full))
	require.NotNil(t, f.newDispatcher(full))
}

type noopVendor struct{}

func (noopVendor) VerifyToken(ctx context.Context, token string) error { return nil }
func (noopVendor) ActiveShipments(ctx context.Context, token string, q vendor.ShipmentsQuery) ([]*models.Shipment, error) {
	return nil, nil
}
func (noopVendor) ShipmentDetails(ctx context.Context, token string, id uint64) (*models.Shipment, error) {
	return &models.Shipment{ID: id}, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(ctx context.Context, text string, phase notify.Phase) (notify.MessageRef, error) {
	return notify.MessageRef{}, nil
}
func (noopDispatcher) Update(ctx context.Context, ref notify.MessageRef, text string) error { return nil }
func (noopDispatcher) Remove(ctx context.Context, ref notify.MessageRef) error              { return nil }

func TestRunShipMonitor_ContextCanceled(t *testing.T) {
	f := monitorFactories{
		newVendorClient: func(cfg *config.Config) vendor.Client { return noopVendor{} },
		newDispatcher:   func(cfg *config.Config) monitor.Dispatcher { return noopDispatcher{} },
		newProducer:     func(cfg *config.Config) monitor.Producer { return nil },
		newRateLimiter:  func(cfg *config.Config) monitor.RateLimiter { return nil },
	}

	cfg := &config.Config{
		ShipWatch: config.ShipWatchConfig{HTTPAddr: "127.0.0.1:0"},
		Accounts:  []config.AccountConfig{{ID: "acme", Name: "Акме", Token: "t"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunShipMonitor(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
}
