package monitor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BearBump/ShipWatch/internal/services/progress"
)

const progressBlocks = 10

func progressBar(percent float64) string {
	filled := int(math.Round(percent / 10))
	if filled < 0 {
		filled = 0
	}
	if filled > progressBlocks {
		filled = progressBlocks
	}
	return strings.Repeat("🟩", filled) + strings.Repeat("⬜", progressBlocks-filled)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format("02.01.2006 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%d ч %d мин", h, m)
}

// FormatActive — текст live-сообщения активной поставки.
func FormatActive(accountName string, snap progress.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🟢 [%s] Отгрузка #%d - Активная\n\n", accountName, snap.ShipmentID)
	fmt.Fprintf(&b, "Статус: %s\n", orNA(snap.State))
	fmt.Fprintf(&b, "Ответственный: %s\n", orNA(snap.Responsible))
	fmt.Fprintf(&b, "Транспорт: %s\n", orNA(snap.Vehicle))
	fmt.Fprintf(&b, "Создана: %s\n\n", formatTime(snap.CreatedAt))
	b.WriteString("📦 ДАННЫЕ ОТГРУЗКИ:\n")
	fmt.Fprintf(&b, "Всего товаров: %d шт.\n", snap.MaxItems)
	fmt.Fprintf(&b, "Всего коробок: %d шт.\n", snap.MaxBoxes)
	fmt.Fprintf(&b, "Отсканировано товаров: %d/%d\n", snap.ScannedItems, snap.MaxItems)
	fmt.Fprintf(&b, "Отсканировано коробок: %d/%d (%.1f%%)\n", snap.ScannedBoxes, snap.MaxBoxes, snap.BoxPercent)
	fmt.Fprintf(&b, "Прогресс: %s", progressBar(snap.BoxPercent))
	return b.String()
}

// FormatCompleted — текст архивного сообщения завершённой поставки.
func FormatCompleted(accountName string, snap progress.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ [%s] Отгрузка #%d - Завершена\n\n", accountName, snap.ShipmentID)
	fmt.Fprintf(&b, "Статус: %s\n", orNA(snap.State))
	fmt.Fprintf(&b, "Ответственный: %s\n", orNA(snap.Responsible))
	fmt.Fprintf(&b, "Транспорт: %s\n", orNA(snap.Vehicle))
	fmt.Fprintf(&b, "Создана: %s\n", formatTime(snap.CreatedAt))
	fmt.Fprintf(&b, "Закрыта: %s\n", formatTime(snap.ClosedAt))
	if snap.Duration != nil {
		fmt.Fprintf(&b, "Время отгрузки: %s\n", formatDuration(*snap.Duration))
	}
	b.WriteString("\n📦 ИТОГИ ОТГРУЗКИ:\n")
	fmt.Fprintf(&b, "Всего товаров: %d шт.\n", snap.MaxItems)
	fmt.Fprintf(&b, "Всего коробок: %d шт.\n", snap.MaxBoxes)
	fmt.Fprintf(&b, "Отсканировано товаров: %d/%d\n", snap.ScannedItems, snap.MaxItems)
	fmt.Fprintf(&b, "Отсканировано коробок: %d/%d (%.1f%%)\n", snap.ScannedBoxes, snap.MaxBoxes, snap.BoxPercent)
	fmt.Fprintf(&b, "Оставшиеся товары: %d шт.\n", snap.RemainingItems)
	fmt.Fprintf(&b, "Прогресс: %s", progressBar(100))
	return b.String()
}
