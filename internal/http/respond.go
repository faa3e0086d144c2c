// Package http exposes the storefront over a chi router.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/cicadacove/storefront/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details []string `json:"details,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the client is gone if this fails
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string, details ...string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// respondInternal forwards the upstream message; callers rely on it to
// diagnose database and payment failures.
func respondInternal(w http.ResponseWriter, err error) {
	respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

// respondValidation writes a 400 listing the offending fields and reports
// whether err was a validation failure.
func respondValidation(w http.ResponseWriter, err error) bool {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	respondError(w, http.StatusBadRequest, "validation_failed", "validation failed", verr.Fields...)
	return true
}

// decodeJSON reads a size-limited JSON body. Strict decoding rejects fields
// the target does not declare.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func respondBadBody(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
}
