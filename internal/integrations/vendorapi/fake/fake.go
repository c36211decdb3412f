package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi"
	"github.com/BearBump/ShipWatch/internal/models"
)

// FakeClient — локальная заглушка WB API для демо и ручных прогонов.
// На каждый склад отдаёт одну поставку, прогресс которой детерминированно
// растёт со временем и в конце концов закрывается.
type FakeClient struct {
	step time.Duration

	mu      sync.Mutex
	created map[int64]time.Time
}

func New() *FakeClient {
	return &FakeClient{
		step:    20 * time.Second,
		created: make(map[int64]time.Time),
	}
}

func (f *FakeClient) VerifyToken(ctx context.Context, token string) error {
	return nil
}

func (f *FakeClient) ActiveShipments(ctx context.Context, token string, q vendor.ShipmentsQuery) ([]*models.Shipment, error) {
	out := make([]*models.Shipment, 0, len(q.OfficeIDs))
	for _, officeID := range q.OfficeIDs {
		sh := f.build(officeID)
		sh.OfficeID = officeID
		out = append(out, sh)
	}
	return out, nil
}

func (f *FakeClient) ShipmentDetails(ctx context.Context, token string, shipmentID uint64) (*models.Shipment, error) {
	if shipmentID < fakeIDBase {
		return nil, fmt.Errorf("fake vendor: unknown shipment %d", shipmentID)
	}
	return f.build(int64(shipmentID - fakeIDBase)), nil
}

const fakeIDBase = 9_000_000

const fakeBoxes = 5

func (f *FakeClient) build(officeID int64) *models.Shipment {
	createdAt := f.createdAt(officeID)
	elapsed := time.Since(createdAt)

	scanned := int(elapsed / f.step)
	if scanned > fakeBoxes {
		scanned = fakeBoxes
	}

	sh := &models.Shipment{
		ID:          fakeIDBase + uint64(officeID),
		State:       "in_progress",
		Vehicle:     fmt.Sprintf("A%03dAA", officeID%1000),
		Responsible: "demo",
		CreatedAt:   &createdAt,
		Transfers: []models.Transfer{
			{
				ID:          uint64(officeID),
				BoxCount:    fakeBoxes,
				ItemCount:   fakeBoxes * 10,
				BoxScanned:  scanned,
				ItemScanned: scanned * 10,
				RemainCount: (fakeBoxes - scanned) * 10,
			},
		},
		Tares: []models.Tare{
			{ItemCount: 4, IsScanned: scanned >= fakeBoxes},
		},
	}

	if scanned >= fakeBoxes {
		closedAt := createdAt.Add(time.Duration(fakeBoxes) * f.step)
		sh.State = models.ShipmentStateClosed
		sh.ClosedAt = &closedAt
	}
	return sh
}

// createdAt фиксируется при первом обращении, чтобы поставка считалась
// созданной уже после старта мониторинга.
func (f *FakeClient) createdAt(officeID int64) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.created[officeID]; ok {
		return t
	}
	t := time.Now().UTC()
	f.created[officeID] = t
	return t
}
