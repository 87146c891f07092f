package residual

import "fmt"

// MinMaxScaler rescales each column to [0,1] using the min and max observed
// at fit time. Fit once on the training distribution for a run; at inference
// it is only ever forward-applied, never refit.
type MinMaxScaler struct {
	min   []float64
	scale []float64 // max - min, 1 where the column is constant
}

// FitScaler computes per-column bounds from row-major training data.
func FitScaler(rows [][]float64) (*MinMaxScaler, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty data")
	}
	cols := len(rows[0])
	s := &MinMaxScaler{
		min:   make([]float64, cols),
		scale: make([]float64, cols),
	}
	max := make([]float64, cols)
	copy(s.min, rows[0])
	copy(max, rows[0])
	for _, row := range rows[1:] {
		for j, v := range row {
			if v < s.min[j] {
				s.min[j] = v
			}
			if v > max[j] {
				max[j] = v
			}
		}
	}
	for j := range s.scale {
		s.scale[j] = max[j] - s.min[j]
		if s.scale[j] == 0 {
			s.scale[j] = 1
		}
	}
	return s, nil
}

// FitScalarScaler fits a one-column scaler over a value slice.
func FitScalarScaler(vals []float64) (*MinMaxScaler, error) {
	rows := make([][]float64, len(vals))
	for i, v := range vals {
		rows[i] = []float64{v}
	}
	return FitScaler(rows)
}

// TransformRow scales a single row in place-safe copy.
func (s *MinMaxScaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.min[j]) / s.scale[j]
	}
	return out
}

// Transform scales row-major data.
func (s *MinMaxScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformScalar scales a single value with a one-column scaler.
func (s *MinMaxScaler) TransformScalar(v float64) float64 {
	return (v - s.min[0]) / s.scale[0]
}

// InverseScalar maps a scaled value back to original units.
func (s *MinMaxScaler) InverseScalar(v float64) float64 {
	return v*s.scale[0] + s.min[0]
}
