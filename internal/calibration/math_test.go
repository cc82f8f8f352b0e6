package calibration

import (
	"errors"
	"math"
	"testing"
)

func TestComputeNewFactor(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		displayed float64
		reference float64
		want      float64
		wantErr   error
	}{
		{name: "slightly light", current: 1.0, displayed: 209, reference: 210, want: 209.0 / 210.0},
		{name: "heavy reading", current: 400, displayed: 250, reference: 239, want: 400 * (250.0 / 239.0)},
		{name: "exact", current: 412.5, displayed: 215, reference: 215, want: 412.5},
		{name: "floor is inclusive", current: 2, displayed: 100, reference: 200, want: 1},
		{name: "zero factor", current: 0, displayed: 209, reference: 210, wantErr: ErrInvalidInput},
		{name: "negative weight", current: 1, displayed: -5, reference: 210, wantErr: ErrInvalidInput},
		{name: "zero reference", current: 1, displayed: 209, reference: 0, wantErr: ErrInvalidInput},
		{name: "nan", current: math.NaN(), displayed: 209, reference: 210, wantErr: ErrInvalidInput},
		{name: "inf", current: 1, displayed: math.Inf(1), reference: 210, wantErr: ErrInvalidInput},
		{name: "too light", current: 1, displayed: 150, reference: 150, wantErr: ErrReferenceTooLight},
		{name: "underflow", current: 1e-300, displayed: 1e-300, reference: 1e300, wantErr: ErrInvalidResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeNewFactor(tt.current, tt.displayed, tt.reference)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9*math.Abs(tt.want) {
				t.Errorf("ComputeNewFactor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeNewFactor_Roundtrip(t *testing.T) {
	// With the new factor, the same raw signal reads exactly the reference.
	const raw = 84000.0
	current := 400.0
	displayed := raw / current
	reference := 215.0

	factor, err := ComputeNewFactor(current, displayed, reference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := raw / factor; math.Abs(got-reference) > 1e-9 {
		t.Errorf("reading after calibration = %v, want %v", got, reference)
	}
}
