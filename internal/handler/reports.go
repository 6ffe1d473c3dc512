package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bartab-pos/api/internal/cache"
	"github.com/bartab-pos/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportStore interface {
	GetDailyRevenue(ctx context.Context, arg database.DateRangeParams) ([]database.GetDailyRevenueRow, error)
	GetProductSales(ctx context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error)
	GetHourlyOrderCounts(ctx context.Context, arg database.DateRangeParams) ([]database.GetHourlyOrderCountsRow, error)
	GetCategoryRevenue(ctx context.Context, arg database.DateRangeParams) ([]database.GetCategoryRevenueRow, error)
}

// reportCacheTTL keeps report responses hot for a minute. Reports only
// cover finalized orders, so slightly stale data is acceptable.
const reportCacheTTL = 60 * time.Second

// ReportHandler handles sales reporting endpoints.
type ReportHandler struct {
	store ReportStore
	cache *cache.Cache
}

func NewReportHandler(store ReportStore, c *cache.Cache) *ReportHandler {
	return &ReportHandler{store: store, cache: c}
}

// RegisterRoutes registers report endpoints on the given Chi router.
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-revenue", h.DailyRevenue)
	r.Get("/product-sales", h.ProductSales)
	r.Get("/hourly-orders", h.HourlyOrders)
	r.Get("/category-revenue", h.CategoryRevenue)
}

// --- Response types ---

type dailyRevenueResponse struct {
	Date       string `json:"date"`
	OrderCount int64  `json:"order_count"`
	Revenue    string `json:"revenue"`
}

type productSalesResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	ProductSize  string    `json:"product_size"`
	ProductUnit  string    `json:"product_unit"`
	QuantitySold int64     `json:"quantity_sold"`
	Revenue      string    `json:"revenue"`
}

type hourlyOrdersResponse struct {
	Hour       int32 `json:"hour"`
	OrderCount int64 `json:"order_count"`
}

type categoryRevenueResponse struct {
	CategoryID   *string `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Revenue      string  `json:"revenue"`
}

// --- Handlers ---

func (h *ReportHandler) DailyRevenue(w http.ResponseWriter, r *http.Request) {
	dateRange, err := parseDateRange(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("daily-revenue:%s:%s",
		dateRange.StartDate.Format(time.DateOnly), dateRange.EndDate.Format(time.DateOnly))
	if h.serveCached(w, r, cacheKey) {
		return
	}

	rows, err := h.store.GetDailyRevenue(r.Context(), dateRange)
	if err != nil {
		log.Printf("ERROR: daily revenue report: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]dailyRevenueResponse, len(rows))
	for i, row := range rows {
		resp[i] = dailyRevenueResponse{
			Date:       row.SaleDate.Time.Format(time.DateOnly),
			OrderCount: row.OrderCount,
			Revenue:    moneyString(row.TotalRevenue),
		}
	}
	h.writeAndCache(w, r, cacheKey, resp)
}

func (h *ReportHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	dateRange, err := parseDateRange(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := int32(20)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 1 || n > 100 {
			errorJSON(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = int32(n)
	}

	cacheKey := fmt.Sprintf("product-sales:%s:%s:%d",
		dateRange.StartDate.Format(time.DateOnly), dateRange.EndDate.Format(time.DateOnly), limit)
	if h.serveCached(w, r, cacheKey) {
		return
	}

	rows, err := h.store.GetProductSales(r.Context(), database.GetProductSalesParams{
		StartDate: dateRange.StartDate,
		EndDate:   dateRange.EndDate,
		Limit:     limit,
	})
	if err != nil {
		log.Printf("ERROR: product sales report: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]productSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = productSalesResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			ProductSize:  row.ProductSize,
			ProductUnit:  row.ProductUnit,
			QuantitySold: row.QuantitySold,
			Revenue:      moneyString(row.TotalRevenue),
		}
	}
	h.writeAndCache(w, r, cacheKey, resp)
}

func (h *ReportHandler) HourlyOrders(w http.ResponseWriter, r *http.Request) {
	dateRange, err := parseDateRange(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("hourly-orders:%s:%s",
		dateRange.StartDate.Format(time.DateOnly), dateRange.EndDate.Format(time.DateOnly))
	if h.serveCached(w, r, cacheKey) {
		return
	}

	rows, err := h.store.GetHourlyOrderCounts(r.Context(), dateRange)
	if err != nil {
		log.Printf("ERROR: hourly orders report: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]hourlyOrdersResponse, len(rows))
	for i, row := range rows {
		resp[i] = hourlyOrdersResponse{Hour: row.Hour, OrderCount: row.OrderCount}
	}
	h.writeAndCache(w, r, cacheKey, resp)
}

func (h *ReportHandler) CategoryRevenue(w http.ResponseWriter, r *http.Request) {
	dateRange, err := parseDateRange(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := fmt.Sprintf("category-revenue:%s:%s",
		dateRange.StartDate.Format(time.DateOnly), dateRange.EndDate.Format(time.DateOnly))
	if h.serveCached(w, r, cacheKey) {
		return
	}

	rows, err := h.store.GetCategoryRevenue(r.Context(), dateRange)
	if err != nil {
		log.Printf("ERROR: category revenue report: %v", err)
		errorJSON(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]categoryRevenueResponse, len(rows))
	for i, row := range rows {
		resp[i] = categoryRevenueResponse{
			CategoryID:   uuidPtr(row.CategoryID),
			CategoryName: row.CategoryName,
			Revenue:      moneyString(row.TotalRevenue),
		}
	}
	h.writeAndCache(w, r, cacheKey, resp)
}

// --- Helpers ---

// parseDateRange reads ?start= and ?end= (both YYYY-MM-DD, end inclusive)
// and returns a half-open [start, end+1d) range. Defaults to the last 30
// days.
func parseDateRange(r *http.Request) (database.DateRangeParams, error) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	start := now.AddDate(0, 0, -30)
	end := now

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return database.DateRangeParams{}, fmt.Errorf("invalid start date: %s", v)
		}
		start = t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return database.DateRangeParams{}, fmt.Errorf("invalid end date: %s", v)
		}
		end = t
	}
	if end.Before(start) {
		return database.DateRangeParams{}, fmt.Errorf("end date before start date")
	}

	return database.DateRangeParams{
		StartDate: start,
		EndDate:   end.AddDate(0, 0, 1),
	}, nil
}

// serveCached writes the cached report body if present. A cache failure
// falls through to the database.
func (h *ReportHandler) serveCached(w http.ResponseWriter, r *http.Request, key string) bool {
	if h.cache == nil {
		return false
	}
	body, ok, err := h.cache.Get(r.Context(), key)
	if err != nil {
		log.Printf("ERROR: report cache get: %v", err)
		return false
	}
	if !ok {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Printf("ERROR: write cached report: %v", err)
	}
	return true
}

func (h *ReportHandler) writeAndCache(w http.ResponseWriter, r *http.Request, key string, v interface{}) {
	if h.cache != nil {
		if body, err := json.Marshal(v); err == nil {
			if err := h.cache.Set(r.Context(), key, body, reportCacheTTL); err != nil {
				log.Printf("ERROR: report cache set: %v", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, v)
}
