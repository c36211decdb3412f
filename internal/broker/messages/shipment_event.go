package messages

import "time"

// Виды событий жизненного цикла поставки.
const (
	EventDiscovered = "discovered"
	EventUpdated    = "updated"
	EventCompleted  = "completed"
	EventEvicted    = "evicted"
)

// ShipmentEvent публикуется монитором на каждое событие жизненного цикла
// поставки. Потребитель (ship-history) складывает их в журнал.
type ShipmentEvent struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name,omitempty"`
	ShipmentID  uint64 `json:"shipment_id"`
	Kind        string `json:"kind"`

	State    string `json:"state,omitempty"`
	OfficeID int64  `json:"office_id,omitempty"`

	MaxBoxes       int `json:"max_boxes"`
	MaxItems       int `json:"max_items"`
	ScannedBoxes   int `json:"scanned_boxes"`
	ScannedItems   int `json:"scanned_items"`
	RemainingItems int `json:"remaining_items"`

	BoxPercent  float64 `json:"box_percent"`
	ItemPercent float64 `json:"item_percent"`

	OccurredAt time.Time `json:"occurred_at"`
}
