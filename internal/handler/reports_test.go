package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bartab-pos/api/internal/database"
	"github.com/bartab-pos/api/internal/handler"
	"github.com/bartab-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type mockReportStore struct {
	daily     []database.GetDailyRevenueRow
	lastRange database.DateRangeParams
}

func (m *mockReportStore) GetDailyRevenue(_ context.Context, arg database.DateRangeParams) ([]database.GetDailyRevenueRow, error) {
	m.lastRange = arg
	return m.daily, nil
}

func (m *mockReportStore) GetProductSales(_ context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error) {
	return nil, nil
}

func (m *mockReportStore) GetHourlyOrderCounts(_ context.Context, arg database.DateRangeParams) ([]database.GetHourlyOrderCountsRow, error) {
	return nil, nil
}

func (m *mockReportStore) GetCategoryRevenue(_ context.Context, arg database.DateRangeParams) ([]database.GetCategoryRevenueRow, error) {
	return nil, nil
}

func setupReportRouter(store *mockReportStore) *chi.Mux {
	h := handler.NewReportHandler(store, nil)
	r := chi.NewRouter()
	r.Route("/reports", h.RegisterRoutes)
	return r
}

func TestDailyRevenueReport(t *testing.T) {
	store := &mockReportStore{
		daily: []database.GetDailyRevenueRow{
			{
				SaleDate:     pgtype.Date{Time: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), Valid: true},
				OrderCount:   3,
				TotalRevenue: service.DecimalToNumeric(decimal.RequireFromString("57.00")),
			},
		},
	}
	router := setupReportRouter(store)

	rr := doRequest(t, router, "GET", "/reports/daily-revenue?start=2026-08-01&end=2026-08-07", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	resp := decodeList(t, rr)
	if len(resp) != 1 {
		t.Fatalf("got %d rows, want 1", len(resp))
	}
	if resp[0]["date"] != "2026-08-01" {
		t.Errorf("date = %v, want 2026-08-01", resp[0]["date"])
	}
	if resp[0]["revenue"] != "57.00" {
		t.Errorf("revenue = %v, want 57.00", resp[0]["revenue"])
	}

	// End date is inclusive in the query, exclusive in the store call.
	wantEnd := time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC)
	if !store.lastRange.EndDate.Equal(wantEnd) {
		t.Errorf("end date = %v, want %v", store.lastRange.EndDate, wantEnd)
	}
}

func TestDailyRevenueReportInvalidRange(t *testing.T) {
	router := setupReportRouter(&mockReportStore{})

	rr := doRequest(t, router, "GET", "/reports/daily-revenue?start=2026-08-07&end=2026-08-01", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	rr = doRequest(t, router, "GET", "/reports/daily-revenue?start=notadate", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
