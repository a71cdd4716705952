// Package ml adapts loaded text classifiers to the dashboards.
// It defines the capability interface every loaded model must satisfy,
// maps raw model outputs to profile labels, runs single and batch
// predictions fail-soft, and tracks whether a usable model is installed.
package ml

// PredictorInterface is the only capability required from a loaded model.
// Any value with this method can be served, whatever its concrete type.
type PredictorInterface interface {
	// Predict returns one raw label per input text, in input order.
	Predict(texts []string) ([]any, error)
}
