package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/richxcame/threatwatch/pkg/config"
	"github.com/richxcame/threatwatch/pkg/httpclient"
	"github.com/richxcame/threatwatch/pkg/logger"
	"github.com/richxcame/threatwatch/pkg/resilience"
	"go.uber.org/zap"
)

// Classifier maps a feature vector to one score per output category
type Classifier interface {
	Classify(ctx context.Context, input []float64) ([]float64, error)
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(ctx context.Context, input []float64) ([]float64, error)

// Classify calls f(ctx, input)
func (f ClassifierFunc) Classify(ctx context.Context, input []float64) ([]float64, error) {
	return f(ctx, input)
}

// Models holds the three classifiers. A nil classifier is unavailable.
type Models struct {
	Threat   Classifier
	Scam     Classifier
	Behavior Classifier
}

// Output activations understood by LinearModel
const (
	ActivationSoftmax  = "softmax"
	ActivationSigmoid  = "sigmoid"
	ActivationIdentity = "identity"
)

// LinearModel is a single dense layer loaded from JSON. Weights has one row
// per output and one column per input.
type LinearModel struct {
	Name       string      `json:"name"`
	Activation string      `json:"activation"`
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
}

// ArtifactOpener opens a model artifact by location
type ArtifactOpener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// LoadLinearModel reads and validates a JSON model file
func LoadLinearModel(path string) (*LinearModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	defer f.Close()
	return ReadLinearModel(f, path)
}

// ReadLinearModel decodes and validates a JSON model. name labels errors.
func ReadLinearModel(r io.Reader, name string) (*LinearModel, error) {
	var m LinearModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", name, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", name, err)
	}

	return &m, nil
}

// Validate checks the model shape
func (m *LinearModel) Validate() error {
	if len(m.Weights) == 0 || len(m.Weights[0]) == 0 {
		return errors.New("weights are empty")
	}
	cols := len(m.Weights[0])
	for i, row := range m.Weights {
		if len(row) != cols {
			return fmt.Errorf("weight row %d has %d columns, want %d", i, len(row), cols)
		}
	}
	if len(m.Bias) != 0 && len(m.Bias) != len(m.Weights) {
		return fmt.Errorf("bias has %d entries, want %d", len(m.Bias), len(m.Weights))
	}
	switch m.Activation {
	case "", ActivationSoftmax, ActivationSigmoid, ActivationIdentity:
	default:
		return fmt.Errorf("unknown activation %q", m.Activation)
	}
	return nil
}

// InputSize returns the expected feature vector length
func (m *LinearModel) InputSize() int {
	if len(m.Weights) == 0 {
		return 0
	}
	return len(m.Weights[0])
}

// OutputSize returns the number of output categories
func (m *LinearModel) OutputSize() int {
	return len(m.Weights)
}

// Classify computes activation(W·x + b)
func (m *LinearModel) Classify(ctx context.Context, input []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input) != m.InputSize() {
		return nil, fmt.Errorf("model %s expects %d inputs, got %d", m.Name, m.InputSize(), len(input))
	}

	out := make([]float64, len(m.Weights))
	for i, row := range m.Weights {
		var z float64
		for j, w := range row {
			z += w * input[j]
		}
		if len(m.Bias) > 0 {
			z += m.Bias[i]
		}
		out[i] = z
	}

	switch m.Activation {
	case ActivationSigmoid:
		for i, z := range out {
			out[i] = 1 / (1 + math.Exp(-z))
		}
	case ActivationIdentity:
	default:
		softmax(out)
	}
	return out, nil
}

func softmax(v []float64) {
	top := math.Inf(-1)
	for _, x := range v {
		if x > top {
			top = x
		}
	}
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - top)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// RemoteClassifier calls a model server speaking the TensorFlow Serving REST
// predict API. Calls are retried and guarded by a circuit breaker.
type RemoteClassifier struct {
	model   string
	baseURL string
	client  *httpclient.Client
	breaker *resilience.CircuitBreaker
}

// NewRemoteClassifier creates a classifier for model served at baseURL
func NewRemoteClassifier(baseURL, model string, timeout time.Duration) *RemoteClassifier {
	name := "model-" + model
	return &RemoteClassifier{
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpclient.NewClient(baseURL, timeout).Apply(httpclient.WithDefaultRetry()),
		breaker: resilience.NewCircuitBreaker(resilience.BuildSettings(name, 60, 30, 5, 1), resilience.GracefulDegradation(name)),
	}
}

// Classify posts one instance and returns its prediction
func (c *RemoteClassifier) Classify(ctx context.Context, input []float64) ([]float64, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		var resp predictResponse
		path := fmt.Sprintf("/v1/models/%s:predict", c.model)
		if err := c.client.PostJSON(ctx, path, predictRequest{Instances: [][]float64{input}}, &resp); err != nil {
			return nil, err
		}
		if len(resp.Predictions) == 0 {
			return nil, fmt.Errorf("model %s returned no predictions", c.model)
		}
		return resp.Predictions[0], nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float64), nil
}

// StatusURL is the model server's status endpoint for this model
func (c *RemoteClassifier) StatusURL() string {
	return fmt.Sprintf("%s/v1/models/%s", c.baseURL, c.model)
}

// Remote returns the classifiers served by a remote model server, keyed by
// model name
func (m Models) Remote() map[string]*RemoteClassifier {
	remote := make(map[string]*RemoteClassifier)
	for name, c := range map[string]Classifier{"threat": m.Threat, "scam": m.Scam, "behavior": m.Behavior} {
		if rc, ok := c.(*RemoteClassifier); ok {
			remote[name] = rc
		}
	}
	return remote
}

// LoadModels builds the classifiers named by cfg. A configured path takes
// precedence over the remote server; a model with neither stays nil. Paths
// are opened through artifacts, or read from the local filesystem when
// artifacts is nil.
func LoadModels(ctx context.Context, cfg config.ModelsConfig, artifacts ArtifactOpener) (Models, error) {
	var models Models
	specs := []struct {
		name   string
		path   string
		target *Classifier
	}{
		{"threat", cfg.ThreatPath, &models.Threat},
		{"scam", cfg.ScamPath, &models.Scam},
		{"behavior", cfg.BehaviorPath, &models.Behavior},
	}

	for _, s := range specs {
		switch {
		case strings.TrimSpace(s.path) != "":
			m, err := loadModel(ctx, artifacts, s.path)
			if err != nil {
				return Models{}, err
			}
			*s.target = m
			logger.Info("Loaded model",
				zap.String("model", s.name),
				zap.String("location", s.path),
				zap.Int("inputs", m.InputSize()),
				zap.Int("outputs", m.OutputSize()),
			)
		case cfg.RemoteURL != "":
			*s.target = NewRemoteClassifier(cfg.RemoteURL, s.name, cfg.Timeout)
			logger.Info("Using remote model", zap.String("model", s.name), zap.String("url", cfg.RemoteURL))
		default:
			logger.Warn("Model not configured, predictions degraded", zap.String("model", s.name))
		}
	}

	return models, nil
}

func loadModel(ctx context.Context, artifacts ArtifactOpener, location string) (*LinearModel, error) {
	if artifacts == nil {
		return LoadLinearModel(location)
	}
	rc, err := artifacts.Open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to open model %s: %w", location, err)
	}
	defer rc.Close()
	return ReadLinearModel(rc, location)
}
