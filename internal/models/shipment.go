package models

import "time"

// Терминальные статусы поставки: после них WB состояние уже не меняет.
const (
	ShipmentStateClosed     = "closed"
	ShipmentStateTerminated = "terminated"
	ShipmentStateCanceled   = "canceled"
)

func IsTerminalState(state string) bool {
	switch state {
	case ShipmentStateClosed, ShipmentStateTerminated, ShipmentStateCanceled:
		return true
	default:
		return false
	}
}

type Shipment struct {
	ID          uint64
	State       string
	Vehicle     string
	Responsible string
	OfficeID    int64
	CreatedAt   *time.Time
	ClosedAt    *time.Time
	Transfers   []Transfer
	Tares       []Tare
}

type Transfer struct {
	ID          uint64
	BoxCount    int
	ItemCount   int
	BoxScanned  int
	ItemScanned int
	RemainCount int
}

// Tare — складская коробка; в подсчётах всегда ровно одна коробка.
type Tare struct {
	ItemCount int
	IsScanned bool
}
