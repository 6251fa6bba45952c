package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

type checkoutService interface {
	Checkout(ctx context.Context, userID uuid.UUID) (*domain.Order, error)
}

type CheckoutHandler struct {
	service checkoutService
}

func NewCheckoutHandler(service checkoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// POST /api/v1/checkout
//
// No request body: the cart is the input. On success the response is the
// persisted order and the cart is gone.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	order, err := h.service.Checkout(r.Context(), identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}
