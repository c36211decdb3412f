package wblogistics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi"
	"github.com/BearBump/ShipWatch/internal/models"
)

const (
	defaultBaseURL = "https://logistics.wb.ru"

	statusProbePath = "/news-feed-api/public/v2/feed/status"
	shipmentsPath   = "/shipments-service/api/v1/shipments"
)

type Client struct {
	baseURL string
	httpc   *http.Client
	retry   RetryPolicy
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: DefaultRetryPolicy(),
	}
}

func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.retry = p
	return c
}

func (c *Client) VerifyToken(ctx context.Context, token string) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return errors.Wrap(err, "parse base url")
	}
	u.Path = statusProbePath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	setHeaders(req, token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return vendor.ErrUnauthorized
	default:
		return fmt.Errorf("wb api probe http %d", resp.StatusCode)
	}
}

func (c *Client) ActiveShipments(ctx context.Context, token string, q vendor.ShipmentsQuery) ([]*models.Shipment, error) {
	lookback := q.Lookback
	if lookback <= 0 {
		lookback = 3 * 24 * time.Hour
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	now := time.Now()

	all := make([]*models.Shipment, 0)
	for _, officeID := range q.OfficeIDs {
		vals := url.Values{}
		vals.Set("dt_start", now.Add(-lookback).Format("2006-01-02"))
		vals.Set("dt_end", now.Format("2006-01-02"))
		vals.Set("src_office_id", strconv.FormatInt(officeID, 10))
		vals.Set("page_index", "0")
		vals.Set("limit", strconv.Itoa(pageSize))
		vals.Set("supplier_id", strconv.FormatInt(q.SupplierID, 10))
		vals.Set("show_only_open", "true")
		vals.Set("direction", "-1")
		vals.Set("sorter", "updated_at")

		body, err := c.getJSON(ctx, token, shipmentsPath, vals)
		if err != nil {
			if errors.Is(err, vendor.ErrUnauthorized) {
				return nil, err
			}
			// Один недоступный склад не должен ронять весь опрос.
			slog.Warn("fetch shipments failed", "office_id", officeID, "error", err.Error())
			continue
		}

		payloads, err := decodeShipmentList(body)
		if err != nil {
			slog.Warn("decode shipments failed", "office_id", officeID, "error", err.Error())
			continue
		}

		for _, p := range payloads {
			sh := p.toModel()
			sh.OfficeID = officeID
			all = append(all, sh)
		}
	}
	return all, nil
}

func (c *Client) ShipmentDetails(ctx context.Context, token string, shipmentID uint64) (*models.Shipment, error) {
	body, err := c.getJSON(ctx, token, fmt.Sprintf("%s/%d", shipmentsPath, shipmentID), nil)
	if err != nil {
		return nil, err
	}

	var p shipmentPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Wrap(err, "decode shipment")
	}
	sh := p.toModel()
	if sh.ID == 0 {
		sh.ID = shipmentID
	}
	return sh, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, q url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var body []byte
	err = c.retry.Do(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return false, errors.Wrap(err, "new request")
		}
		setHeaders(req, token)

		resp, err := c.httpc.Do(req)
		if err != nil {
			return true, errors.Wrap(err, "do request")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return true, errors.Wrap(err, "read body")
			}
			body = b
			return false, nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			// Не повторяем: это не сбой сети, а протухший токен.
			return false, vendor.ErrUnauthorized
		default:
			return true, fmt.Errorf("wb api http %d", resp.StatusCode)
		}
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
}

type shipmentPayload struct {
	ID          *uint64 `json:"id"`
	LegacyID    *uint64 `json:"_id"`
	ShipmentID  *uint64 `json:"shipment_id"`
	State       string  `json:"state"`
	CarNumber   string  `json:"car_number"`
	Responsible string  `json:"responsible"`
	CreatedAt   string  `json:"created_at"`
	ClosedAt    string  `json:"closed_at"`

	Transfers []transferPayload `json:"transfers"`
	Tares     []tarePayload     `json:"tares"`
}

type transferPayload struct {
	ID          uint64 `json:"id"`
	BoxCount    int    `json:"box_count"`
	ItemCount   int    `json:"item_count"`
	BoxScanned  int    `json:"box_scanned"`
	ItemScanned int    `json:"item_scanned"`
	RemainCount int    `json:"remain_count"`
}

type tarePayload struct {
	ItemCount int  `json:"item_count"`
	IsScanned bool `json:"is_scanned"`
}

func (p *shipmentPayload) toModel() *models.Shipment {
	sh := &models.Shipment{
		State:       p.State,
		Vehicle:     p.CarNumber,
		Responsible: p.Responsible,
		CreatedAt:   parseTime(p.CreatedAt),
		ClosedAt:    parseTime(p.ClosedAt),
	}

	// Канонизируем ID: в ответах встречаются варианты id/_id/shipment_id.
	switch {
	case p.ID != nil:
		sh.ID = *p.ID
	case p.LegacyID != nil:
		sh.ID = *p.LegacyID
	case p.ShipmentID != nil:
		sh.ID = *p.ShipmentID
	}

	for _, tr := range p.Transfers {
		sh.Transfers = append(sh.Transfers, models.Transfer{
			ID:          tr.ID,
			BoxCount:    tr.BoxCount,
			ItemCount:   tr.ItemCount,
			BoxScanned:  tr.BoxScanned,
			ItemScanned: tr.ItemScanned,
			RemainCount: tr.RemainCount,
		})
	}
	for _, t := range p.Tares {
		sh.Tares = append(sh.Tares, models.Tare{
			ItemCount: t.ItemCount,
			IsScanned: t.IsScanned,
		})
	}
	return sh
}

// Список может приходить и как {"data":[...]}, и как голый массив.
func decodeShipmentList(body []byte) ([]*shipmentPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []*shipmentPayload
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, errors.Wrap(err, "decode list")
		}
		return list, nil
	}

	var env struct {
		Data []*shipmentPayload `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	return env.Data, nil
}

// parseTime терпит RFC3339 и варианты без зоны; на мусоре отдаёт nil.
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
