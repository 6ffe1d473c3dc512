package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/bartab-pos/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCatalogError maps catalog service errors to HTTP statuses.
// Returns false when the error is not a known catalog error.
func writeCatalogError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrMenuItemNotExists):
		errorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrDuplicateProduct),
		errors.Is(err, service.ErrDuplicateCategory),
		errors.Is(err, service.ErrMenuItemExists):
		errorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidUnit),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidImageType),
		errors.Is(err, service.ErrImageTooLarge):
		errorJSON(w, http.StatusBadRequest, err.Error())
	default:
		return false
	}
	return true
}

// writeOrderError maps order service errors to HTTP statuses.
// Returns false when the error is not a known order error.
func writeOrderError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrOrderItemNotFound),
		errors.Is(err, service.ErrMenuItemNotFound):
		errorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTableInUse),
		errors.Is(err, service.ErrOrderFinalized),
		errors.Is(err, service.ErrOrderNotFinished),
		errors.Is(err, service.ErrSameTable):
		errorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidQuantity):
		errorJSON(w, http.StatusBadRequest, err.Error())
	default:
		return false
	}
	return true
}

// moneyString renders a numeric as a fixed two-decimal string so JSON
// clients never see float artifacts.
func moneyString(n pgtype.Numeric) string {
	return service.NumericToDecimal(n).StringFixed(2)
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}
