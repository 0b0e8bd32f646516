// Package generator builds synthetic decay histograms.
package generator

import (
	"math/rand"
	"time"

	"github.com/verte-zerg/tuifit/internal/model"
)

// Histogram parameters for dummy data.
const (
	MinTau  = 200
	MaxTau  = 500
	Samples = 10000
	Bins    = 200
	RangeLo = 0.0
	RangeHi = 1000.0
)

// Dummy is a generated histogram and the time constant it was drawn with.
type Dummy struct {
	Series model.Series
	Tau    float64
}

// Generator produces exponential histograms.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate draws an integer tau from [MinTau, MaxTau) and histograms
// Samples exponential variates with it.
func (g *Generator) Generate() Dummy {
	tau := float64(MinTau + g.rnd.Intn(MaxTau-MinTau))
	return g.GenerateTau(tau)
}

// GenerateTau histograms Samples exponential variates with mean tau into
// Bins equal bins over [RangeLo, RangeHi]. X holds the left bin edges.
func (g *Generator) GenerateTau(tau float64) Dummy {
	width := (RangeHi - RangeLo) / Bins
	x := make([]float64, Bins)
	y := make([]float64, Bins)
	for i := range x {
		x[i] = RangeLo + float64(i)*width
	}
	for i := 0; i < Samples; i++ {
		v := g.rnd.ExpFloat64() * tau
		if idx, ok := binIndex(v, width); ok {
			y[idx]++
		}
	}
	series, _ := model.NewSeries(x, y, "", "", "")
	return Dummy{Series: series, Tau: tau}
}

// binIndex places v in a bin. The last bin includes RangeHi.
func binIndex(v, width float64) (int, bool) {
	if v < RangeLo || v > RangeHi {
		return 0, false
	}
	idx := int((v - RangeLo) / width)
	if idx >= Bins {
		idx = Bins - 1
	}
	return idx, true
}
