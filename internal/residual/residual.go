package residual

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

// Config holds the corrector hyperparameters.
type Config struct {
	Window       int
	Hidden1      int
	Hidden2      int
	Dense        int
	Dropout      float64
	BatchSize    int
	MaxEpochs    int
	Patience     int
	ValSplit     float64
	LearningRate float64
	MinSequences int
	Seed         uint64
}

// DefaultConfig returns the production corrector configuration: two stacked
// recurrent layers 128 and 64 with dropout 0.2 between them, a 32-unit
// rectified dense head and a linear output, trained on 60-step windows.
func DefaultConfig() Config {
	return Config{
		Window:       60,
		Hidden1:      128,
		Hidden2:      64,
		Dense:        32,
		Dropout:      0.2,
		BatchSize:    32,
		MaxEpochs:    50,
		Patience:     5,
		ValSplit:     0.10,
		LearningRate: 0.001,
		MinSequences: 70,
		Seed:         1,
	}
}

// Model is a trained corrector bundle: the network plus the feature and
// target scalers fit on this run's training distribution. Never reused
// across tickers or runs.
type Model struct {
	cfg          Config
	lstm1, lstm2 *lstmLayer
	dense1       *denseLayer
	dense2       *denseLayer
	featScaler   *MinMaxScaler
	targetScaler *MinMaxScaler
}

// Train fits a corrector on engineered feature rows and the aligned baseline
// residuals. When fewer than cfg.MinSequences windows exist it returns
// (nil, nil): a recognized degraded mode, not an error.
func Train(log *logger.Logger, cfg Config, features [][]float64, residuals []float64) (*Model, error) {
	if len(features) != len(residuals) {
		return nil, fmt.Errorf("features and residuals misaligned: %d vs %d",
			len(features), len(residuals))
	}
	numSeq := len(features) - cfg.Window
	if numSeq < cfg.MinSequences {
		log.Info("too few sequences for residual training, falling back to baseline only",
			logger.Int("sequences", max(numSeq, 0)),
			logger.Int("required", cfg.MinSequences))
		return nil, nil
	}

	featScaler, err := FitScaler(features)
	if err != nil {
		return nil, err
	}
	targetScaler, err := FitScalarScaler(residuals)
	if err != nil {
		return nil, err
	}
	scaled := featScaler.Transform(features)

	// Overlapping windows advancing one step, each paired with the residual
	// immediately after the window.
	seqs := make([][][]float64, numSeq)
	targets := make([]float64, numSeq)
	for i := 0; i < numSeq; i++ {
		seqs[i] = scaled[i : i+cfg.Window]
		targets[i] = targetScaler.TransformScalar(residuals[i+cfg.Window])
	}

	// Validation split comes from the end of the sequence so the holdout is
	// always the most recent regime.
	valN := int(float64(numSeq) * cfg.ValSplit)
	if valN < 1 {
		valN = 1
	}
	trainSeqs, trainTargets := seqs[:numSeq-valN], targets[:numSeq-valN]
	valSeqs, valTargets := seqs[numSeq-valN:], targets[numSeq-valN:]

	rng := rand.New(rand.NewSource(cfg.Seed))
	inputDim := len(features[0])
	m := &Model{
		cfg:          cfg,
		lstm1:        newLSTMLayer(inputDim, cfg.Hidden1, rng),
		lstm2:        newLSTMLayer(cfg.Hidden1, cfg.Hidden2, rng),
		dense1:       newDenseLayer(cfg.Hidden2, cfg.Dense, rng),
		dense2:       newDenseLayer(cfg.Dense, 1, rng),
		featScaler:   featScaler,
		targetScaler: targetScaler,
	}

	bestVal := math.Inf(1)
	var best []*tensor
	sinceBest := 0
	adamStep := 0
	order := make([]int, len(trainSeqs))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= cfg.MaxEpochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		trainLoss := 0.0
		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			for _, t := range m.tensors() {
				t.zeroGrad()
			}
			for _, idx := range batch {
				st := &fwdState{}
				yhat := m.forward(trainSeqs[idx], st, rng)
				diff := yhat - trainTargets[idx]
				trainLoss += diff * diff
				m.backward(st, 2*diff/float64(len(batch)))
			}
			adamStep++
			for _, t := range m.tensors() {
				t.adamStep(cfg.LearningRate, 0.9, 0.999, 1e-8, adamStep)
			}
		}
		trainLoss /= float64(len(trainSeqs))

		valMSE, valMAE := m.evaluate(valSeqs, valTargets)
		log.Debug("residual training epoch",
			logger.Int("epoch", epoch),
			logger.Float64("train_mse", trainLoss),
			logger.Float64("val_mse", valMSE),
			logger.Float64("val_mae", valMAE))

		if valMSE < bestVal {
			bestVal = valMSE
			sinceBest = 0
			best = best[:0]
			for _, t := range m.tensors() {
				best = append(best, t.clone())
			}
		} else {
			sinceBest++
			if sinceBest >= cfg.Patience {
				break
			}
		}
	}

	if best != nil {
		for i, t := range m.tensors() {
			t.restore(best[i])
		}
	}
	log.Info("residual model trained",
		logger.Int("sequences", numSeq),
		logger.Float64("best_val_mse", bestVal))
	return m, nil
}

// PredictNext scales the most recent feature window, runs one forward pass
// and inverse-scales the output back to residual units.
func (m *Model) PredictNext(window [][]float64) (float64, error) {
	if len(window) != m.cfg.Window {
		return 0, fmt.Errorf("window must have %d rows, got %d", m.cfg.Window, len(window))
	}
	scaled := m.featScaler.Transform(window)
	yhat := m.forward(scaled, nil, nil)
	return m.targetScaler.InverseScalar(yhat), nil
}

// Window returns the sequence length the model expects.
func (m *Model) Window() int { return m.cfg.Window }

type fwdState struct {
	seq  [][]float64
	c1   lstmCache
	c2   lstmCache
	mask [][]float64 // inverted dropout masks, nil at inference
	h2   []float64
	z1   []float64
	a1   []float64
}

func (m *Model) tensors() []*tensor {
	out := append(m.lstm1.tensors(), m.lstm2.tensors()...)
	out = append(out, m.dense1.tensors()...)
	return append(out, m.dense2.tensors()...)
}

// forward runs the full network. A non-nil state enables training mode:
// activations are cached and dropout is applied between the recurrent layers.
func (m *Model) forward(seq [][]float64, st *fwdState, rng *rand.Rand) float64 {
	var c1, c2 *lstmCache
	if st != nil {
		st.seq = seq
		c1, c2 = &st.c1, &st.c2
	}

	hs1 := m.lstm1.forward(seq, c1)
	if st != nil && m.cfg.Dropout > 0 {
		keep := 1 - m.cfg.Dropout
		st.mask = make([][]float64, len(hs1))
		dropped := make([][]float64, len(hs1))
		for t, h := range hs1 {
			mask := make([]float64, len(h))
			out := make([]float64, len(h))
			for j := range h {
				if rng.Float64() < keep {
					mask[j] = 1 / keep
					out[j] = h[j] * mask[j]
				}
			}
			st.mask[t] = mask
			dropped[t] = out
		}
		hs1 = dropped
	}

	hs2 := m.lstm2.forward(hs1, c2)
	h2 := hs2[len(hs2)-1]
	z1 := m.dense1.forward(h2)
	a1 := relu(z1)
	y := m.dense2.forward(a1)[0]

	if st != nil {
		st.h2, st.z1, st.a1 = h2, z1, a1
	}
	return y
}

// backward propagates the scalar output gradient through the cached forward
// pass, accumulating parameter gradients.
func (m *Model) backward(st *fwdState, dy float64) {
	dA1 := m.dense2.backward(st.a1, []float64{dy})
	dZ1 := make([]float64, len(dA1))
	for j := range dA1 {
		if st.z1[j] > 0 {
			dZ1[j] = dA1[j]
		}
	}
	dH2Last := m.dense1.backward(st.h2, dZ1)

	T := len(st.seq)
	dH2 := make([][]float64, T)
	dH2[T-1] = dH2Last
	dIn2 := m.lstm2.backward(&st.c2, dH2)

	if st.mask != nil {
		for t := range dIn2 {
			for j := range dIn2[t] {
				dIn2[t][j] *= st.mask[t][j]
			}
		}
	}
	m.lstm1.backward(&st.c1, dIn2)
}

// evaluate computes MSE and the MAE diagnostic over a holdout set, dropout
// disabled.
func (m *Model) evaluate(seqs [][][]float64, targets []float64) (mse, mae float64) {
	for i, seq := range seqs {
		diff := m.forward(seq, nil, nil) - targets[i]
		mse += diff * diff
		mae += math.Abs(diff)
	}
	n := float64(len(seqs))
	return mse / n, mae / n
}
