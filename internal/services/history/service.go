package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipWatch/internal/broker/messages"
	"github.com/BearBump/ShipWatch/internal/cache"
)

type Repository interface {
	InsertEvent(ctx context.Context, ev *messages.ShipmentEvent) error
	ListEvents(ctx context.Context, accountID string, shipmentID uint64, limit, offset int) ([]*messages.ShipmentEvent, error)
	LatestEvent(ctx context.Context, accountID string, shipmentID uint64) (*messages.ShipmentEvent, error)
}

// ErrBadEvent — событие не прошло декодирование или валидацию.
// Такие события пропускаются, а не ретраятся.
var ErrBadEvent = errors.New("bad shipment event")

// Service — журнал жизненного цикла поставок: принимает события из Kafka,
// складывает в Postgres и держит последнее состояние поставки в кэше.
type Service struct {
	repo      Repository
	cache     cache.BytesCache
	latestTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, latestTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, latestTTL: latestTTL}
}

// ApplyEvent валидирует и сохраняет событие из брокера.
// Повторная доставка безопасна: журнал дедуплицирует на вставке.
func (s *Service) ApplyEvent(ctx context.Context, raw []byte) error {
	var ev messages.ShipmentEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return errors.Wrapf(ErrBadEvent, "decode: %v", err)
	}
	if ev.AccountID == "" {
		return errors.Wrap(ErrBadEvent, "account_id is required")
	}
	if ev.ShipmentID == 0 {
		return errors.Wrap(ErrBadEvent, "shipment_id is required")
	}
	switch ev.Kind {
	case messages.EventDiscovered, messages.EventUpdated, messages.EventCompleted, messages.EventEvicted:
	default:
		return errors.Wrapf(ErrBadEvent, "unknown kind %q", ev.Kind)
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	if err := s.repo.InsertEvent(ctx, &ev); err != nil {
		return err
	}

	// Кэш — лучшее усилие: последнее состояние поставки для быстрых чтений.
	if s.cache != nil && s.latestTTL > 0 {
		b, _ := json.Marshal(&ev)
		_ = s.cache.Set(ctx, latestKey(ev.AccountID, ev.ShipmentID), b, s.latestTTL)
	}
	return nil
}

// Latest — последнее событие поставки: сперва кэш, потом журнал.
func (s *Service) Latest(ctx context.Context, accountID string, shipmentID uint64) (*messages.ShipmentEvent, error) {
	if s.cache != nil && s.latestTTL > 0 {
		b, ok, err := s.cache.Get(ctx, latestKey(accountID, shipmentID))
		if err == nil && ok {
			var ev messages.ShipmentEvent
			if json.Unmarshal(b, &ev) == nil {
				return &ev, nil
			}
		}
	}

	ev, err := s.repo.LatestEvent(ctx, accountID, shipmentID)
	if err != nil {
		return nil, err
	}
	if ev != nil && s.cache != nil && s.latestTTL > 0 {
		b, _ := json.Marshal(ev)
		_ = s.cache.Set(ctx, latestKey(accountID, shipmentID), b, s.latestTTL)
	}
	return ev, nil
}

func (s *Service) ListEvents(ctx context.Context, accountID string, shipmentID uint64, limit, offset int) ([]*messages.ShipmentEvent, error) {
	return s.repo.ListEvents(ctx, accountID, shipmentID, limit, offset)
}

func latestKey(accountID string, shipmentID uint64) string {
	return fmt.Sprintf("shipment:%s:%d:latest", accountID, shipmentID)
}
