// Package classifier runs the gesture model on PCEN feature tensors.
package classifier

import (
	"math"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/features"
	"github.com/sawring/sawring/internal/logger"
)

// Prediction is the arg-max label of one inference tick.
type Prediction struct {
	Label         string    `json:"label"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float32 `json:"probabilities,omitempty"`
}

// Classifier maps a feature tensor to a prediction.
type Classifier interface {
	Predict(t features.Tensor) (Prediction, error)
	Labels() Labels
	Available() bool
	Close() error
}

// New loads the label set and the model. When no model is configured, or it
// fails to load, a NullClassifier is returned so ingestion and display keep
// running; the load error is returned alongside it.
func New(settings conf.ClassifierSettings, inputShape []int) (Classifier, error) {
	labels, err := LoadLabels(settings.LabelPath)
	if err != nil {
		return &NullClassifier{labels: DefaultLabels(), reason: err}, err
	}

	if settings.ModelPath == "" {
		reason := errors.Newf("no model configured").
			Component("classifier").
			Category(errors.CategoryClassifierUnavailable).
			Build()
		GetLogger().Warn("running without classifier, predictions disabled")
		return &NullClassifier{labels: labels, reason: reason}, nil
	}

	model, err := NewTFLite(settings, labels, inputShape)
	if err != nil {
		GetLogger().Error("classifier unavailable, predictions disabled",
			logger.String("model_path", settings.ModelPath),
			logger.Error(err))
		return &NullClassifier{labels: labels, reason: err}, err
	}
	return model, nil
}

// NullClassifier stands in when no model could be loaded. Every Predict
// returns a ClassifierUnavailable error.
type NullClassifier struct {
	labels Labels
	reason error
}

// NewNullClassifier returns a classifier that never predicts.
func NewNullClassifier(labels Labels) *NullClassifier {
	return &NullClassifier{labels: labels}
}

func (n *NullClassifier) Predict(features.Tensor) (Prediction, error) {
	b := errors.Newf("classifier unavailable").
		Component("classifier").
		Category(errors.CategoryClassifierUnavailable)
	if n.reason != nil {
		b = b.Context("reason", n.reason.Error())
	}
	return Prediction{}, b.Build()
}

func (n *NullClassifier) Labels() Labels { return n.labels }
func (n *NullClassifier) Available() bool { return false }
func (n *NullClassifier) Close() error   { return nil }

// Decide converts a raw output vector into a prediction. Vectors that are
// not already a probability distribution are passed through softmax.
func Decide(labels Labels, output []float32) (Prediction, error) {
	if len(output) != len(labels.Classes) {
		return Prediction{}, errors.Newf("model output has %d classes, label set has %d", len(output), len(labels.Classes)).
			Component("classifier").
			Category(errors.CategoryValidation).
			Build()
	}

	probs := output
	if !isDistribution(output) {
		probs = Softmax(output)
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return Prediction{
		Label:         labels.Classes[best].Name,
		Confidence:    float64(probs[best]),
		Probabilities: probs,
	}, nil
}

func isDistribution(v []float32) bool {
	var sum float64
	for _, p := range v {
		if p < 0 || p > 1 || math.IsNaN(float64(p)) {
			return false
		}
		sum += float64(p)
	}
	return math.Abs(sum-1) < 1e-3
}

// Softmax returns a numerically stable softmax of logits.
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}
	peak := logits[0]
	for _, v := range logits {
		peak = max(peak, v)
	}
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - peak))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
