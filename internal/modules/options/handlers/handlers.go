// Package handlers prices European options over HTTP.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/server/response"
	"github.com/aristath/allocator/pkg/formulas"
)

// Handler handles option pricing requests
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new option pricing handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{log: log.With().Str("handler", "options").Logger()}
}

// PriceResponse echoes the input with its Black-Scholes price.
type PriceResponse struct {
	formulas.OptionInput
	Price float64 `json:"price"`
}

// HandlePrice handles POST /api/options/price
func (h *Handler) HandlePrice(w http.ResponseWriter, r *http.Request) {
	var in formulas.OptionInput
	if err := response.Decode(w, r, &in); err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	price, err := formulas.RiskNeutralPrice(in)
	if errors.Is(err, formulas.ErrInvalidOptionInput) {
		err = fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if err != nil {
		response.Error(w, r, err, h.log)
		return
	}

	response.Data(w, r, PriceResponse{OptionInput: in, Price: price}, h.log)
}
