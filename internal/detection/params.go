package detection

import (
	"errors"
	"fmt"
)

// ErrInvalidRadius is returned when a search is requested around a radius
// smaller than one pixel.
var ErrInvalidRadius = errors.New("average radius must be at least 1 pixel")

// Params is one concrete Hough circle search.
type Params struct {
	DP         float64 `json:"dp"`
	MinDist    float64 `json:"min_dist"`
	Param1     float64 `json:"param1"`
	Param2     float64 `json:"param2"`
	MinRadius  int     `json:"min_radius"`
	MaxRadius  int     `json:"max_radius"`
	BlurKernel int     `json:"blur_kernel"`
}

// Tuning holds the constants Params are derived from.
type Tuning struct {
	DP              float64
	MinDistFactor   float64
	Param1          float64
	Param2          float64
	MinRadiusFactor float64
	MaxRadiusFactor float64
	BlurKernel      int
}

// DefaultTuning returns the values billet photos were tuned with.
func DefaultTuning() Tuning {
	return Tuning{
		DP:              1.2,
		MinDistFactor:   1.5,
		Param1:          50,
		Param2:          30,
		MinRadiusFactor: 0.8,
		MaxRadiusFactor: 1.2,
		BlurKernel:      11,
	}
}

// ParamsFor derives the search for an average reference radius.
func (t Tuning) ParamsFor(avgRadius int) (Params, error) {
	if avgRadius < 1 {
		return Params{}, fmt.Errorf("%w: got %d", ErrInvalidRadius, avgRadius)
	}
	if t.BlurKernel < 1 || t.BlurKernel%2 == 0 {
		return Params{}, fmt.Errorf("blur kernel must be a positive odd number, got %d", t.BlurKernel)
	}

	r := float64(avgRadius)
	return Params{
		DP:         t.DP,
		MinDist:    r * t.MinDistFactor,
		Param1:     t.Param1,
		Param2:     t.Param2,
		MinRadius:  int(r * t.MinRadiusFactor),
		MaxRadius:  int(r * t.MaxRadiusFactor),
		BlurKernel: t.BlurKernel,
	}, nil
}
