package core

import (
	"gonum.org/v1/gonum/stat"
)

// Predictor keeps the last K prediction errors (pred - real) of one node in a
// ring buffer and nudges new predictions against their mean.
type Predictor struct {
	buf          []float64
	head         int // index of the oldest error
	size         int
	learningRate float64
}

// NewPredictor returns a predictor with window k (at least 1).
func NewPredictor(k int, learningRate float64) *Predictor {
	if k < 1 {
		k = 1
	}
	return &Predictor{buf: make([]float64, k), learningRate: learningRate}
}

// RecordError appends diff, evicting the oldest error once the window is full.
func (p *Predictor) RecordError(diff float64) {
	k := len(p.buf)
	if p.size < k {
		p.buf[(p.head+p.size)%k] = diff
		p.size++
		return
	}
	p.buf[p.head] = diff
	p.head = (p.head + 1) % k
}

// AdjustPrediction returns max(0, pred - lr*mean(window)), or pred unchanged
// when no error has been recorded yet.
func (p *Predictor) AdjustPrediction(pred float64) float64 {
	if p.size == 0 {
		return pred
	}
	adjusted := pred - p.learningRate*stat.Mean(p.Window(), nil)
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// Window returns the recorded errors, oldest first.
func (p *Predictor) Window() []float64 {
	out := make([]float64, p.size)
	for i := range out {
		out[i] = p.buf[(p.head+i)%len(p.buf)]
	}
	return out
}

// Len returns how many errors are in the window.
func (p *Predictor) Len() int { return p.size }

// PredictorBank holds one Predictor per node, created on first use.
type PredictorBank struct {
	k            int
	learningRate float64
	units        map[int]*Predictor
}

// NewPredictorBank returns an empty bank whose predictors use window k.
func NewPredictorBank(k int, learningRate float64) *PredictorBank {
	return &PredictorBank{k: k, learningRate: learningRate, units: make(map[int]*Predictor)}
}

// For returns the predictor of a node.
func (b *PredictorBank) For(nodeID int) *Predictor {
	p, ok := b.units[nodeID]
	if !ok {
		p = NewPredictor(b.k, b.learningRate)
		b.units[nodeID] = p
	}
	return p
}

// RecordError feeds diff to the node's predictor.
func (b *PredictorBank) RecordError(nodeID int, diff float64) {
	b.For(nodeID).RecordError(diff)
}

// AdjustPrediction corrects pred with the node's error history.
func (b *PredictorBank) AdjustPrediction(nodeID int, pred float64) float64 {
	return b.For(nodeID).AdjustPrediction(pred)
}
