package monitor

import "github.com/BearBump/ShipWatch/internal/services/progress"

// Changed сравнивает только state и счётчики сканирования. Остальные поля
// (пересериализованные таймстемпы и т.п.) гуляют без оперативного смысла
// и плодили бы шторм уведомлений.
func Changed(cur, last progress.Snapshot) bool {
	return cur.State != last.State ||
		cur.ScannedBoxes != last.ScannedBoxes ||
		cur.ScannedItems != last.ScannedItems
}
