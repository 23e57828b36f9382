package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/pkg/formulas"
)

func price(t *testing.T, in formulas.OptionInput) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(zerolog.Nop()).RegisterRoutes(r)

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/options/price", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlePrice(t *testing.T) {
	tests := []struct {
		typ  formulas.OptionType
		want float64
	}{
		{formulas.Call, 10.4506},
		{formulas.Put, 5.5735},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			w := price(t, formulas.OptionInput{
				Spot: 100, Strike: 100, Maturity: 1, RiskFree: 0.05, Volatility: 0.2, Type: tt.typ,
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var body struct {
				Data PriceResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.InDelta(t, tt.want, body.Data.Price, 1e-4)
			assert.Equal(t, 100.0, body.Data.Strike)
		})
	}
}

func TestHandlePrice_InvalidInput(t *testing.T) {
	w := price(t, formulas.OptionInput{Spot: 100, Strike: 100, Maturity: 0, RiskFree: 0.05, Volatility: 0.2, Type: formulas.Call})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = price(t, formulas.OptionInput{Spot: 100, Strike: 100, Maturity: 1, RiskFree: 0.05, Volatility: 0.2, Type: "straddle"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
