package calibration

import (
	"errors"
	"fmt"
	"math"
)

// MinReferenceGrams is the lightest reference accepted. Below it the load
// cell noise dominates and the computed factor is unreliable.
const MinReferenceGrams = 200.0

var (
	// ErrInvalidInput means an input is not a positive finite number.
	ErrInvalidInput = errors.New("calibration inputs must be positive finite numbers")
	// ErrReferenceTooLight means the reference is below MinReferenceGrams.
	ErrReferenceTooLight = fmt.Errorf("reference weight must be at least %.0f g", MinReferenceGrams)
	// ErrInvalidResult means the computed factor is not positive.
	ErrInvalidResult = errors.New("computed calibration factor is not positive")
)

// ComputeNewFactor rescales the current factor so that the raw reading that
// currently shows displayed grams will show reference grams instead:
// current * displayed / reference.
func ComputeNewFactor(current, displayed, reference float64) (float64, error) {
	if !positiveFinite(current) || !positiveFinite(displayed) || !positiveFinite(reference) {
		return 0, ErrInvalidInput
	}
	if reference < MinReferenceGrams {
		return 0, ErrReferenceTooLight
	}

	factor := current * (displayed / reference)
	if !positiveFinite(factor) {
		return 0, ErrInvalidResult
	}
	return factor, nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
