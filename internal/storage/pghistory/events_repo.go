package pghistory

import (
	"context"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipWatch/internal/broker/messages"
)

// InsertEvent пишет событие в журнал. Дубликат (та же поставка, вид
// и момент) молча игнорируется.
func (s *Storage) InsertEvent(ctx context.Context, ev *messages.ShipmentEvent) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO shipment_events (
  account_id, account_name, shipment_id, kind, state, office_id,
  max_boxes, max_items, scanned_boxes, scanned_items, remaining_items,
  box_percent, item_percent, occurred_at, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, now())
ON CONFLICT (account_id, shipment_id, kind, occurred_at) DO NOTHING
`,
		ev.AccountID, ev.AccountName, ev.ShipmentID, ev.Kind, ev.State, ev.OfficeID,
		ev.MaxBoxes, ev.MaxItems, ev.ScannedBoxes, ev.ScannedItems, ev.RemainingItems,
		ev.BoxPercent, ev.ItemPercent, ev.OccurredAt.UTC())
	if err != nil {
		return errors.Wrap(err, "insert shipment event")
	}
	return nil
}

// ListEvents — хронология поставки, свежие сверху.
func (s *Storage) ListEvents(ctx context.Context, accountID string, shipmentID uint64, limit, offset int) ([]*messages.ShipmentEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT
  account_id, account_name, shipment_id, kind, state, office_id,
  max_boxes, max_items, scanned_boxes, scanned_items, remaining_items,
  box_percent, item_percent, occurred_at
FROM shipment_events
WHERE account_id = $1 AND shipment_id = $2
ORDER BY occurred_at DESC
LIMIT $3 OFFSET $4
`, accountID, shipmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*messages.ShipmentEvent
	for rows.Next() {
		var ev messages.ShipmentEvent
		if err := rows.Scan(
			&ev.AccountID, &ev.AccountName, &ev.ShipmentID, &ev.Kind, &ev.State, &ev.OfficeID,
			&ev.MaxBoxes, &ev.MaxItems, &ev.ScannedBoxes, &ev.ScannedItems, &ev.RemainingItems,
			&ev.BoxPercent, &ev.ItemPercent, &ev.OccurredAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &ev)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// LatestEvent возвращает последнее событие поставки или nil, если журнал пуст.
func (s *Storage) LatestEvent(ctx context.Context, accountID string, shipmentID uint64) (*messages.ShipmentEvent, error) {
	evs, err := s.ListEvents(ctx, accountID, shipmentID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, nil
	}
	return evs[0], nil
}
