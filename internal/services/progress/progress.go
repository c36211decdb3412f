package progress

import (
	"math"
	"time"

	"github.com/BearBump/ShipWatch/internal/models"
)

// Snapshot — производное состояние поставки на момент одного опроса.
// Пересчитывается из сырого ответа API при каждом обновлении.
type Snapshot struct {
	ShipmentID  uint64
	State       string
	Vehicle     string
	Responsible string

	CreatedAt *time.Time
	ClosedAt  *time.Time
	Duration  *time.Duration

	MaxBoxes       int
	MaxItems       int
	ScannedBoxes   int
	ScannedItems   int
	RemainingItems int

	BoxPercent  float64
	ItemPercent float64
}

// Calculate считает прогресс сканирования по transfers и tares.
// Чистая функция: без побочных эффектов, безопасно звать повторно.
func Calculate(s *models.Shipment) Snapshot {
	snap := Snapshot{
		ShipmentID:  s.ID,
		State:       s.State,
		Vehicle:     s.Vehicle,
		Responsible: s.Responsible,
		CreatedAt:   s.CreatedAt,
		ClosedAt:    s.ClosedAt,
	}

	for _, tr := range s.Transfers {
		snap.MaxBoxes += tr.BoxCount
		snap.MaxItems += tr.ItemCount
		snap.ScannedBoxes += tr.BoxScanned
		snap.ScannedItems += tr.ItemScanned
		snap.RemainingItems += tr.RemainCount
	}

	for _, t := range s.Tares {
		snap.MaxBoxes++
		snap.MaxItems += t.ItemCount
		if t.IsScanned {
			snap.ScannedBoxes++
			snap.ScannedItems += t.ItemCount
		}
	}

	snap.BoxPercent = percent(snap.ScannedBoxes, snap.MaxBoxes)
	snap.ItemPercent = percent(snap.ScannedItems, snap.MaxItems)

	if snap.CreatedAt != nil && snap.ClosedAt != nil {
		d := snap.ClosedAt.Sub(*snap.CreatedAt)
		snap.Duration = &d
	}

	return snap
}

// percent округляет до одного знака; при нулевом максимуме возвращает 0.
func percent(scanned, max int) float64 {
	if max <= 0 {
		return 0
	}
	return math.Round(float64(scanned)/float64(max)*1000) / 10
}
