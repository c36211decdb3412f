package wblogistics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi"
)

func fastRetry() RetryPolicy {
	return DefaultRetryPolicy().WithSleep(func(ctx context.Context, d time.Duration) error { return nil })
}

func TestVerifyToken(t *testing.T) {
	var status atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, statusProbePath, r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := New(srv.URL)

	status.Store(http.StatusOK)
	require.NoError(t, c.VerifyToken(context.Background(), "tok"))

	status.Store(http.StatusUnauthorized)
	require.ErrorIs(t, c.VerifyToken(context.Background(), "tok"), vendor.ErrUnauthorized)

	status.Store(http.StatusForbidden)
	require.ErrorIs(t, c.VerifyToken(context.Background(), "tok"), vendor.ErrUnauthorized)

	status.Store(http.StatusInternalServerError)
	require.Error(t, c.VerifyToken(context.Background(), "tok"))
}

func TestActiveShipments_DecodesEnvelopeAndTagsOffice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, shipmentsPath, r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, "777", q.Get("supplier_id"))
		require.Equal(t, "true", q.Get("show_only_open"))

		switch q.Get("src_office_id") {
		case "1001":
			// Канонический конверт с разными вариантами поля ID.
			_, _ = w.Write([]byte(`{"data":[
				{"id":11,"state":"assembling","created_at":"2026-02-01T10:00:00Z"},
				{"_id":12,"state":"assembling"},
				{"shipment_id":13,"state":"assembling"}
			]}`))
		case "1002":
			// Некоторые ручки отдают голый массив.
			_, _ = w.Write([]byte(`[{"id":21,"state":"closed"}]`))
		default:
			t.Errorf("unexpected office %q", q.Get("src_office_id"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	got, err := c.ActiveShipments(context.Background(), "tok", vendor.ShipmentsQuery{
		SupplierID: 777,
		OfficeIDs:  []int64{1001, 1002},
	})
	require.NoError(t, err)
	require.Len(t, got, 4)

	require.Equal(t, uint64(11), got[0].ID)
	require.Equal(t, uint64(12), got[1].ID)
	require.Equal(t, uint64(13), got[2].ID)
	require.Equal(t, uint64(21), got[3].ID)

	require.Equal(t, int64(1001), got[0].OfficeID)
	require.Equal(t, int64(1002), got[3].OfficeID)

	require.NotNil(t, got[0].CreatedAt)
	require.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), *got[0].CreatedAt)
}

func TestActiveShipments_BrokenOfficeIsSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("src_office_id") == "1001" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":21,"state":"assembling"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL).WithRetryPolicy(fastRetry())
	got, err := c.ActiveShipments(context.Background(), "tok", vendor.ShipmentsQuery{
		OfficeIDs: []int64{1001, 1002},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, uint64(21), got[0].ID)
}

func TestActiveShipments_UnauthorizedAbortsWithoutRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL).WithRetryPolicy(fastRetry())
	_, err := c.ActiveShipments(context.Background(), "tok", vendor.ShipmentsQuery{
		OfficeIDs: []int64{1001, 1002},
	})
	require.ErrorIs(t, err, vendor.ErrUnauthorized)
	// Протухший токен не ретраится и обрывает опрос на первом же складе.
	require.Equal(t, int64(1), calls.Load())
}

func TestShipmentDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/55"))
		_, _ = w.Write([]byte(`{
			"id": 55,
			"state": "assembling",
			"car_number": "А123БВ",
			"responsible": "Иванов",
			"created_at": "2026-02-01 10:00:00",
			"transfers": [{"id":1,"box_count":5,"item_count":50,"box_scanned":3,"item_scanned":30,"remain_count":20}],
			"tares": [{"item_count":2,"is_scanned":true}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	sh, err := c.ShipmentDetails(context.Background(), "tok", 55)
	require.NoError(t, err)
	require.Equal(t, uint64(55), sh.ID)
	require.Equal(t, "А123БВ", sh.Vehicle)
	require.Equal(t, "Иванов", sh.Responsible)
	require.NotNil(t, sh.CreatedAt)
	require.Len(t, sh.Transfers, 1)
	require.Equal(t, 3, sh.Transfers[0].BoxScanned)
	require.Len(t, sh.Tares, 1)
	require.True(t, sh.Tares[0].IsScanned)
}

func TestShipmentDetails_FallsBackToRequestedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":"assembling"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	sh, err := c.ShipmentDetails(context.Background(), "tok", 66)
	require.NoError(t, err)
	require.Equal(t, uint64(66), sh.ID)
}

func TestShipmentDetails_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"state":"assembling"}`))
	}))
	defer srv.Close()

	c := New(srv.URL).WithRetryPolicy(fastRetry())
	sh, err := c.ShipmentDetails(context.Background(), "tok", 7)
	require.NoError(t, err)
	require.Equal(t, uint64(7), sh.ID)
	require.Equal(t, int64(3), calls.Load())
}

func TestParseTime_ToleratesFormatsAndGarbage(t *testing.T) {
	require.Nil(t, parseTime(""))
	require.Nil(t, parseTime("не дата"))

	for _, s := range []string{
		"2026-02-01T10:00:00Z",
		"2026-02-01T10:00:00.123456Z",
		"2026-02-01T10:00:00",
		"2026-02-01 10:00:00",
	} {
		got := parseTime(s)
		require.NotNil(t, got, s)
		require.Equal(t, 10, got.Hour(), s)
	}
}
