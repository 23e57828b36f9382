package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
)

func writeHistory(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,Stocks,Bonds,Gold\n")
	for i := 0; i < 120; i++ {
		x := float64(i)
		fmt.Fprintf(&b, "d%03d,%.6f,%.6f,%.6f\n", i,
			100*math.Exp(0.0008*x+0.02*math.Sin(x/5)),
			50*math.Exp(0.0003*x+0.005*math.Sin(x/3)),
			20*math.Exp(0.0005*x+0.01*math.Cos(x/4)),
		)
	}
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestOptimize(t *testing.T) {
	out, err := run(t, "optimize", "--history", writeHistory(t), "--risk", "5")
	require.NoError(t, err)

	var resp struct {
		Assets     []string           `json:"assets"`
		Weights    []float64          `json:"weights"`
		Allocation map[string]float64 `json:"allocation"`
		Mode       string             `json:"mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"Stocks", "Bonds", "Gold"}, resp.Assets)
	require.Len(t, resp.Weights, 3)
	sum := 0.0
	for _, w := range resp.Weights {
		assert.GreaterOrEqual(t, w, -1e-9)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.Len(t, resp.Allocation, 3)
}

func TestOptimize_AssetSubset(t *testing.T) {
	out, err := run(t, "optimize", "--history", writeHistory(t), "--assets", "Gold,Stocks")
	require.NoError(t, err)

	var resp struct {
		Assets []string `json:"assets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"Gold", "Stocks"}, resp.Assets)
}

func TestOptimize_Errors(t *testing.T) {
	_, err := run(t, "optimize")
	assert.ErrorContains(t, err, "no price history")

	_, err = run(t, "optimize", "--history", writeHistory(t), "--risk", "11")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = run(t, "optimize", "--history", writeHistory(t), "--target", "5")
	assert.ErrorIs(t, err, domain.ErrInfeasibleTarget)
}

func TestFrontier(t *testing.T) {
	out, err := run(t, "frontier", "--history", writeHistory(t))
	require.NoError(t, err)

	var resp struct {
		Points       []domain.FrontierPoint `json:"points"`
		Volatilities []float64              `json:"volatilities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Points, optimization.FrontierPoints)
	assert.Len(t, resp.Volatilities, optimization.FrontierPoints)
}

func TestSimulate(t *testing.T) {
	out, err := run(t, "simulate", "--history", writeHistory(t),
		"--simulations", "25", "--steps", "20", "--paths", "4", "--stopping-threshold", "0.05")
	require.NoError(t, err)

	var resp struct {
		Simulations int         `json:"simulations"`
		Steps       int         `json:"steps"`
		ValuePaths  [][]float64 `json:"value_paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 25, resp.Simulations)
	assert.Equal(t, 20, resp.Steps)
	require.Len(t, resp.ValuePaths, 4)
	assert.InDelta(t, 1.0, resp.ValuePaths[0][0], 1e-12)
}

func TestSimulate_Deterministic(t *testing.T) {
	path := writeHistory(t)
	args := []string{"simulate", "--history", path, "--simulations", "10", "--steps", "5", "--seed", "7"}
	a, err := run(t, args...)
	require.NoError(t, err)
	b, err := run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRebalance_PrintsOneLinePerPeriod(t *testing.T) {
	out, err := run(t, "rebalance", "--history", writeHistory(t), "--frequency", "quarterly")
	require.NoError(t, err)

	var ends []int
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var e domain.RebalanceEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		ends = append(ends, e.WindowEnd)
	}
	assert.Equal(t, []int{63, 120}, ends)
}

func TestRebalance_InvalidFrequency(t *testing.T) {
	_, err := run(t, "rebalance", "--history", writeHistory(t), "--frequency", "monthly")
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	out, err := run(t, "report", "--history", writeHistory(t), "--simulations", "20", "--steps", "10")
	require.NoError(t, err)

	var resp struct {
		Assets     []string `json:"assets"`
		Simulation struct {
			ValuePaths [][]float64 `json:"value_paths"`
		} `json:"simulation"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Assets, 3)
	assert.NotEmpty(t, resp.Simulation.ValuePaths)
}

func TestPrice(t *testing.T) {
	args := []string{"price", "--spot", "100", "--strike", "100", "--maturity", "1", "--rate", "0.05", "--volatility", "0.2"}

	out, err := run(t, args...)
	require.NoError(t, err)
	var resp struct {
		Price float64 `json:"price"`
		Type  string  `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "call", resp.Type)
	assert.InDelta(t, 10.4506, resp.Price, 1e-4)

	out, err = run(t, append(args, "--type", "PUT")...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 5.5735, resp.Price, 1e-4)

	_, err = run(t, "price", "--spot", "100")
	assert.Error(t, err)
}
