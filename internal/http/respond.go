package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/PrasangJhawar/storefront/internal/repository"
	"github.com/PrasangJhawar/storefront/internal/service"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondServiceError maps domain errors onto HTTP statuses. Conflicts that
// exhausted their retries surface as 409 so the client knows a manual retry
// may still succeed.
func respondServiceError(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrCartLineNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, repository.ErrInsufficientStock):
		status = http.StatusConflict
		code = "insufficient_stock"
	case errors.Is(err, repository.ErrEmptyCart):
		status = http.StatusConflict
		code = "empty_cart"
	case errors.Is(err, repository.ErrProductVanished):
		status = http.StatusConflict
		code = "product_vanished"
	case errors.Is(err, repository.ErrProductInUse):
		status = http.StatusConflict
		code = "product_in_use"
	case errors.Is(err, repository.ErrEmailTaken):
		status = http.StatusConflict
		code = "email_taken"
	case errors.Is(err, repository.ErrTxConflict):
		status = http.StatusConflict
		code = "conflict"
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidInput):
		status = http.StatusBadRequest
		code = "invalid_input"
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		code = "invalid_credentials"
	default:
		log.Printf("unexpected error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
