package vendor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipWatch/internal/models"
)

// ErrUnauthorized возвращается на 401/403: токен протух,
// повторять тот же запрос бессмысленно.
var ErrUnauthorized = errors.New("vendor: unauthorized")

type ShipmentsQuery struct {
	SupplierID int64
	OfficeIDs  []int64
	Lookback   time.Duration // окно выборки назад от "сейчас"; по умолчанию 3 суток
	PageSize   int           // по умолчанию 50
}

type Client interface {
	// VerifyToken проверяет токен лёгким запросом к статусному эндпоинту.
	// Сам логин не выполняется: токен выдаётся снаружи.
	VerifyToken(ctx context.Context, token string) error
	ActiveShipments(ctx context.Context, token string, q ShipmentsQuery) ([]*models.Shipment, error)
	ShipmentDetails(ctx context.Context, token string, shipmentID uint64) (*models.Shipment, error)
}
