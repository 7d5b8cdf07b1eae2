package cycle

import (
	"math"

	"github.com/jt05610/lathe/units"
	"gonum.org/v1/gonum/floats"
)

const (
	maxPasses = 1000
	epsilon   = 1e-9
)

// infeed plans the threading passes: each cut is the previous one times mult,
// never below minCut, with the last trimmed to land on the full depth.
func infeed(depth, first, mult, minCut float64) []float64 {
	depth = math.Abs(depth)
	if depth < epsilon || first <= 0 || minCut <= 0 {
		return nil
	}
	cuts := make([]float64, 0, 16)
	cut := first
	for total := 0.0; total < depth-epsilon && len(cuts) < maxPasses; {
		c := math.Max(cut, minCut)
		if total+c > depth {
			c = depth - total
		}
		cuts = append(cuts, units.Round(c))
		total += c
		cut *= mult
	}
	return cuts
}

// Scheduled is a record whose cut depths are planned before it runs.
type Scheduled interface {
	Depths() []float64
	TotalDepth() float64
}

var _ Scheduled = (*ThreadingParams)(nil)

// Depths returns the cumulative infeed depth after each cutting pass.
func (p *ThreadingParams) Depths() []float64 {
	if len(p.Infeed) == 0 {
		return nil
	}
	ret := floats.CumSum(make([]float64, len(p.Infeed)), p.Infeed)
	for i := range ret {
		ret[i] = units.Round(ret[i])
	}
	return ret
}

// TotalDepth is the depth reached by the cutting passes.
func (p *ThreadingParams) TotalDepth() float64 {
	return units.Round(floats.Sum(p.Infeed))
}

// roughing counts the roughing passes needed to leave finalStepDown of stock
// for the finishing pass.
func roughing(stock, target, stepDown, finalStepDown float64) (int, int) {
	material := math.Abs(stock - target)
	if material < epsilon {
		return 0, 0
	}
	rough := material - finalStepDown
	if rough <= epsilon || stepDown <= 0 {
		return 0, 1
	}
	return int(math.Ceil(rough/stepDown - epsilon)), 1
}
