package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ShipWatch/internal/services/progress"
)

func TestChanged(t *testing.T) {
	base := progress.Snapshot{State: "assembling", ScannedBoxes: 3, ScannedItems: 30}

	require.False(t, Changed(base, base))

	st := base
	st.State = "closed"
	require.True(t, Changed(st, base))

	boxes := base
	boxes.ScannedBoxes++
	require.True(t, Changed(boxes, base))

	items := base
	items.ScannedItems++
	require.True(t, Changed(items, base))
}

func TestChanged_IgnoresCosmeticFields(t *testing.T) {
	base := progress.Snapshot{State: "assembling", ScannedBoxes: 3, ScannedItems: 30}

	// Перетасованные таймстемпы и производные поля не считаются изменением.
	cur := base
	now := time.Now()
	cur.CreatedAt = &now
	cur.Vehicle = "А123БВ"
	cur.MaxBoxes = 99
	cur.BoxPercent = 3.0
	require.False(t, Changed(cur, base))
}
