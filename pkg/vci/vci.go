// Package vci computes the Vegetation Condition Index: the current NDVI of a
// region placed on the 0-100 scale spanned by the lowest and highest NDVI
// that region has shown over the years, and the drought class of that value.
package vci

import (
	"errors"
	"fmt"
	"math"
)

type State int

const (
	Normal State = iota
	LightDrought
	Drought
	SevereDrought
	ExtremeDrought
)

func (s State) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case LightDrought:
		return "LIGHT_DROUGHT"
	case Drought:
		return "DROUGHT"
	case SevereDrought:
		return "SEVERE_DROUGHT"
	case ExtremeDrought:
		return "EXTREME_DROUGHT"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type band struct {
	low   float64
	high  float64
	state State
}

// inclusive on both ends
var bands = []band{
	{40, 100, Normal},
	{30, 39, LightDrought},
	{20, 29, Drought},
	{10, 19, SevereDrought},
	{0, 9, ExtremeDrought},
}

// RangeError reports a VCI outside [0,100].
type RangeError struct {
	Region string
	Value  float64
}

func (e *RangeError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("vci must be between 0 and 100, got %v", e.Value)
	}
	return fmt.Sprintf("vci of %s must be between 0 and 100, got %v", e.Region, e.Value)
}

// DegenerateRangeError reports a history whose minimum equals its maximum.
type DegenerateRangeError struct {
	Region string
	Value  float64
}

func (e *DegenerateRangeError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("ndvi history has zero width (min = max = %v)", e.Value)
	}
	return fmt.Sprintf("ndvi history of %s has zero width (min = max = %v)", e.Region, e.Value)
}

// Calculate places v on the [lo, hi] range, scaled to 0-100.
func Calculate(v, lo, hi float64) (float64, error) {
	if hi == lo {
		return 0, &DegenerateRangeError{Value: lo}
	}
	return (v - lo) / (hi - lo) * 100, nil
}

// Classify maps a VCI onto its drought class. Bands are matched on the
// integer part of v, so 39.5 is LIGHT_DROUGHT.
func Classify(v float64) (State, error) {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return 0, &RangeError{Value: v}
	}

	iv := math.Floor(v)
	for _, b := range bands {
		if iv >= b.low && iv <= b.high {
			return b.state, nil
		}
	}

	// unreachable while the bands cover 0..100
	return 0, &RangeError{Value: v}
}

// Result is the VCI of one region.
type Result struct {
	Region  string
	Current float64
	History []float64
	VCI     float64
	State   State
}

// Evaluate computes the VCI of the last value of hist against the range of
// the whole of hist.
func Evaluate(region string, hist []float64) (Result, error) {
	if len(hist) == 0 {
		return Result{}, fmt.Errorf("empty ndvi history for %s", region)
	}

	lo, hi := hist[0], hist[0]
	for _, v := range hist[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	cur := hist[len(hist)-1]

	v, err := Calculate(cur, lo, hi)
	if err != nil {
		var de *DegenerateRangeError
		if errors.As(err, &de) {
			de.Region = region
		}
		return Result{}, err
	}

	s, err := Classify(v)
	if err != nil {
		var re *RangeError
		if errors.As(err, &re) {
			re.Region = region
		}
		return Result{}, err
	}

	return Result{
		Region:  region,
		Current: cur,
		History: hist,
		VCI:     v,
		State:   s,
	}, nil
}
