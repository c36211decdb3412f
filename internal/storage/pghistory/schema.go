package pghistory

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shipment_events (
  id BIGSERIAL PRIMARY KEY,
  account_id TEXT NOT NULL,
  account_name TEXT NOT NULL DEFAULT '',
  shipment_id BIGINT NOT NULL,
  kind TEXT NOT NULL,
  state TEXT NOT NULL DEFAULT '',
  office_id BIGINT NOT NULL DEFAULT 0,
  max_boxes INT NOT NULL DEFAULT 0,
  max_items INT NOT NULL DEFAULT 0,
  scanned_boxes INT NOT NULL DEFAULT 0,
  scanned_items INT NOT NULL DEFAULT 0,
  remaining_items INT NOT NULL DEFAULT 0,
  box_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
  item_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
  occurred_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_events_acct_shipment ON shipment_events(account_id, shipment_id, occurred_at DESC)`,
		// Повторная доставка из Kafka (at-least-once) не должна плодить строки.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_shipment_events_dedup ON shipment_events(account_id, shipment_id, kind, occurred_at)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
