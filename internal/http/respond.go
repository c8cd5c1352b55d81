package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// maxBodySize caps every JSON request body.
const maxBodySize = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return false
	}
	return true
}

var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
	{domain.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},
	{domain.ErrAlreadyPaid, http.StatusBadRequest, "already_paid"},
	{domain.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{domain.ErrSignatureMismatch, http.StatusBadRequest, "signature_mismatch"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrGateway, http.StatusBadGateway, "gateway_error"},
}

// handleServiceError writes operational errors with their own message.
// Anything else is logged in full and answered with a generic 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var opErr *domain.Error
	if errors.As(err, &opErr) {
		for _, k := range errorKinds {
			if errors.Is(opErr.Kind, k.kind) {
				respondError(w, k.status, k.code, opErr.Message)
				return
			}
		}
	}

	log.ErrorContext(r.Context(), "request failed",
		"method", r.Method, "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
