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

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/internal/modules/optimization"
)

func threeAssets() *domain.Snapshot {
	return &domain.Snapshot{
		Assets:          []string{"Bonds", "Stocks", "Gold"},
		ExpectedReturns: []float64{0.04, 0.10, 0.06},
		Volatilities:    []float64{0.05, 0.20, 0.15},
		Correlation: [][]float64{
			{1.0, 0.2, 0.1},
			{0.2, 1.0, 0.3},
			{0.1, 0.3, 1.0},
		},
	}
}

func setupRouter() *chi.Mux {
	log := zerolog.Nop()
	optimizer := optimization.NewMVOptimizer(log)
	handler := NewHandler(optimizer, optimization.NewFrontierSweeper(optimizer, log), log)
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func post(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleRun_RiskTolerance(t *testing.T) {
	w := post(t, setupRouter(), "/optimizer/run", OptimizeRequest{
		StatisticsInput: marketdata.StatisticsInput{Snapshot: threeAssets()},
		RiskTolerance:   7,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data OptimizeResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, optimization.ModeRiskTolerance, body.Data.Mode)
	assert.InDelta(t, 1.0, body.Data.Weights.Sum(), 1e-6)
	assert.Len(t, body.Data.Allocation, 3)
	assert.InDelta(t, body.Data.ExpectedReturn*100, body.Data.ReturnPct, 1e-9)
}

func TestHandleRun_TargetReturn(t *testing.T) {
	target := 0.07
	w := post(t, setupRouter(), "/optimizer/run", OptimizeRequest{
		StatisticsInput: marketdata.StatisticsInput{Snapshot: threeAssets()},
		TargetReturn:    &target,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data OptimizeResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, optimization.ModeTargetReturn, body.Data.Mode)
	assert.InDelta(t, target, body.Data.ExpectedReturn, 1e-2)
}

func TestHandleRun_FromHistory(t *testing.T) {
	prices := make([][]float64, 10)
	for i := range prices {
		prices[i] = []float64{100 + 2*float64(i), 50 + 2*float64(i)}
	}
	w := post(t, setupRouter(), "/optimizer/run", OptimizeRequest{
		StatisticsInput: marketdata.StatisticsInput{History: &marketdata.PriceHistory{
			Assets: []string{"Asset1", "Asset2"},
			Prices: prices,
		}},
		RiskTolerance: 5,
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandleRun_Errors(t *testing.T) {
	tooHigh := 0.5
	tests := []struct {
		name string
		req  OptimizeRequest
		want int
	}{
		{"missing statistics", OptimizeRequest{RiskTolerance: 5}, http.StatusBadRequest},
		{"risk level out of range", OptimizeRequest{
			StatisticsInput: marketdata.StatisticsInput{Snapshot: threeAssets()},
			RiskTolerance:   12,
		}, http.StatusBadRequest},
		{"infeasible target", OptimizeRequest{
			StatisticsInput: marketdata.StatisticsInput{Snapshot: threeAssets()},
			TargetReturn:    &tooHigh,
		}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, setupRouter(), "/optimizer/run", tt.req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHandleFrontier(t *testing.T) {
	w := post(t, setupRouter(), "/optimizer/frontier", OptimizeRequest{
		StatisticsInput: marketdata.StatisticsInput{Snapshot: threeAssets()},
		RiskTolerance:   5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data FrontierResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Data.Points, optimization.FrontierPoints)
	assert.Len(t, body.Data.Volatilities, optimization.FrontierPoints)
	assert.InDelta(t, 0.04, body.Data.Points[0].TargetReturn, 1e-12)
	assert.InDelta(t, 0.10, body.Data.Points[optimization.FrontierPoints-1].TargetReturn, 1e-12)
	assert.Greater(t, body.Data.Converged, 0)
}

func TestHandleFrontier_InvalidSnapshot(t *testing.T) {
	w := post(t, setupRouter(), "/optimizer/frontier", OptimizeRequest{
		StatisticsInput: marketdata.StatisticsInput{Snapshot: &domain.Snapshot{}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
