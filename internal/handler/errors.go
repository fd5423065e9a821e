package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/sofra-app/api/internal/service"
)

// writeServiceError maps known service errors to HTTP status codes and
// hides everything else behind a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrNoDeliveryAddress),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrNoPromotionalOffer),
		errors.Is(err, service.ErrItemUnavailable),
		errors.Is(err, service.ErrAddonUnavailable),
		errors.Is(err, service.ErrNotTopLevelItem),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrNoPickupLocation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrCartNotFound),
		errors.Is(err, service.ErrCartItemNotFound),
		errors.Is(err, service.ErrRestaurantNotFound),
		errors.Is(err, service.ErrAddressNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotCartOwner),
		errors.Is(err, service.ErrNotOrderOwner),
		errors.Is(err, service.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrRestaurantClosed),
		errors.Is(err, service.ErrStatusConflict),
		errors.Is(err, service.ErrAlreadyAssigned),
		errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrNotCashOrder):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
