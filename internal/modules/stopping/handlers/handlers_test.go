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
)

func detect(t *testing.T, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(zerolog.Nop()).RegisterRoutes(r)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/stopping/detect", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) DetectResponse {
	t.Helper()
	var body struct {
		Data DetectResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Data
}

func TestHandleDetect_Prices(t *testing.T) {
	w := detect(t, DetectRequest{Prices: []float64{100, 105, 110, 115, 135}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, 0.1, resp.Threshold)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 4, resp.DecisionPoints[0].Step)
	assert.Equal(t, []float64{135}, resp.DecisionPoints[0].Prices)
}

func TestHandleDetect_NoTrigger(t *testing.T) {
	w := detect(t, DetectRequest{Prices: []float64{100, 102, 104, 106, 108}})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.DecisionPoints)
	assert.Empty(t, resp.DecisionPoints)
}

func TestHandleDetect_Paths(t *testing.T) {
	threshold := 0.05
	w := detect(t, DetectRequest{
		Threshold: &threshold,
		Paths: [][][]float64{
			{{100, 50}, {101, 50}, {102, 56}},
			{{100, 50}, {100, 50}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, 0, resp.DecisionPoints[0].Path)
	assert.Equal(t, 2, resp.DecisionPoints[0].Step)
}

func TestHandleDetect_Invalid(t *testing.T) {
	negative := -0.1
	tests := []struct {
		name string
		req  DetectRequest
	}{
		{"negative threshold", DetectRequest{Prices: []float64{1, 2}, Threshold: &negative}},
		{"both inputs", DetectRequest{Prices: []float64{1}, Paths: [][][]float64{{{1}}}}},
		{"ragged path", DetectRequest{Paths: [][][]float64{{{1, 2}, {1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, detect(t, tt.req).Code)
		})
	}
}
