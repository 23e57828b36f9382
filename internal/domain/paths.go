package domain

// PathTensor holds simulated prices indexed [simulation][step][asset].
// Every trajectory starts at the initial prices and stays strictly positive.
type PathTensor struct {
	Simulations int           `json:"simulations"`
	Steps       int           `json:"steps"`
	Assets      int           `json:"assets"`
	Paths       [][][]float64 `json:"paths"`
}

// NewPathTensor allocates a tensor backed by one contiguous slice.
func NewPathTensor(simulations, steps, assets int) *PathTensor {
	backing := make([]float64, simulations*steps*assets)
	paths := make([][][]float64, simulations)
	for k := range paths {
		paths[k] = make([][]float64, steps)
		for t := range paths[k] {
			off := (k*steps + t) * assets
			paths[k][t] = backing[off : off+assets : off+assets]
		}
	}
	return &PathTensor{
		Simulations: simulations,
		Steps:       steps,
		Assets:      assets,
		Paths:       paths,
	}
}

// Path returns trajectory k as steps × assets.
func (p *PathTensor) Path(k int) [][]float64 {
	return p.Paths[k]
}

// Terminal returns the last-step prices of trajectory k.
func (p *PathTensor) Terminal(k int) []float64 {
	return p.Paths[k][p.Steps-1]
}

// DecisionPoint marks the first step at which a path moved more than the
// stopping threshold.
type DecisionPoint struct {
	Path   int       `json:"path"`
	Step   int       `json:"step"`
	Prices []float64 `json:"prices"`
	Change float64   `json:"change"`
}
