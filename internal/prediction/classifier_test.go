package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/richxcame/threatwatch/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearModel_Classify(t *testing.T) {
	tests := []struct {
		name  string
		model LinearModel
		input []float64
		want  []float64
	}{
		{
			name:  "identity",
			model: LinearModel{Activation: ActivationIdentity, Weights: [][]float64{{1, 2}, {0, -1}}, Bias: []float64{0.5, 1}},
			input: []float64{1, 1},
			want:  []float64{3.5, 0},
		},
		{
			name:  "sigmoid of zero",
			model: LinearModel{Activation: ActivationSigmoid, Weights: [][]float64{{0, 0}, {0, 0}}},
			input: []float64{3, 4},
			want:  []float64{0.5, 0.5},
		},
		{
			name:  "softmax of equal logits",
			model: LinearModel{Weights: [][]float64{{1}, {1}, {1}, {1}}},
			input: []float64{2},
			want:  []float64{0.25, 0.25, 0.25, 0.25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.model.Validate())

			got, err := tt.model.Classify(context.Background(), tt.input)

			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestLinearModel_SoftmaxSumsToOne(t *testing.T) {
	m := LinearModel{Activation: ActivationSoftmax, Weights: [][]float64{{1, 0}, {0, 3}, {2, 2}}}

	got, err := m.Classify(context.Background(), []float64{0.4, 0.9})

	require.NoError(t, err)
	var sum float64
	for _, p := range got {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, got[1], got[0])
}

func TestLinearModel_InputSizeMismatch(t *testing.T) {
	m := LinearModel{Name: "threat", Weights: [][]float64{{1, 2, 3}}}

	_, err := m.Classify(context.Background(), []float64{1})

	assert.ErrorContains(t, err, "expects 3 inputs")
}

func TestLinearModel_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&LinearModel{Weights: [][]float64{{1}}}).Classify(ctx, []float64{1})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinearModel_Validate(t *testing.T) {
	tests := []struct {
		name    string
		model   LinearModel
		wantErr string
	}{
		{"empty weights", LinearModel{}, "weights are empty"},
		{"empty row", LinearModel{Weights: [][]float64{{}}}, "weights are empty"},
		{"ragged", LinearModel{Weights: [][]float64{{1, 2}, {1}}}, "row 1"},
		{"bias length", LinearModel{Weights: [][]float64{{1}, {2}}, Bias: []float64{1}}, "bias"},
		{"activation", LinearModel{Weights: [][]float64{{1}}, Activation: "relu"}, "activation"},
		{"valid", LinearModel{Weights: [][]float64{{1}, {2}}, Bias: []float64{0, 0}, Activation: ActivationSigmoid}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func writeModel(t *testing.T, m LinearModel) string {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestLoadLinearModel(t *testing.T) {
	path := writeModel(t, LinearModel{Name: "scam", Activation: ActivationSigmoid, Weights: [][]float64{{1, 1}, {0, 1}}})

	m, err := LoadLinearModel(path)

	require.NoError(t, err)
	assert.Equal(t, "scam", m.Name)
	assert.Equal(t, 2, m.InputSize())
	assert.Equal(t, 2, m.OutputSize())
}

func TestLoadLinearModel_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte("{not json"), 0o600))
	invalid := writeModel(t, LinearModel{Weights: [][]float64{{1}}, Activation: "tanh"})

	_, err := LoadLinearModel(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read")

	_, err = LoadLinearModel(garbage)
	assert.ErrorContains(t, err, "failed to parse")

	_, err = LoadLinearModel(invalid)
	assert.ErrorContains(t, err, "invalid model")
}

func TestRemoteClassifier_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models/threat:predict", r.URL.Path)
		var req predictRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, [][]float64{{0.5, 0.25}}, req.Instances)
		_, _ = w.Write([]byte(`{"predictions":[[0.1,0.9]]}`))
	}))
	defer server.Close()

	c := NewRemoteClassifier(server.URL, "threat", time.Second)

	out, err := c.Classify(context.Background(), []float64{0.5, 0.25})

	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.9}, out)
}

func TestRemoteClassifier_StatusURL(t *testing.T) {
	c := NewRemoteClassifier("http://models.local:8501/", "threat", time.Second)

	assert.Equal(t, "http://models.local:8501/v1/models/threat", c.StatusURL())
}

func TestRemoteClassifier_EmptyPredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions":[]}`))
	}))
	defer server.Close()

	_, err := NewRemoteClassifier(server.URL, "scam", time.Second).Classify(context.Background(), []float64{1})

	assert.ErrorContains(t, err, "no predictions")
}

func TestRemoteClassifier_ClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewRemoteClassifier(server.URL, "behavior", time.Second).Classify(context.Background(), []float64{1})

	assert.ErrorContains(t, err, "HTTP 400")
}

func TestLoadModels(t *testing.T) {
	path := writeModel(t, LinearModel{Weights: [][]float64{{1}}})

	models, err := LoadModels(context.Background(), config.ModelsConfig{
		ThreatPath: path,
		RemoteURL:  "http://models.local:8501",
		Timeout:    time.Second,
	}, nil)

	require.NoError(t, err)
	assert.IsType(t, &LinearModel{}, models.Threat)
	assert.IsType(t, &RemoteClassifier{}, models.Scam)
	assert.IsType(t, &RemoteClassifier{}, models.Behavior)

	remote := models.Remote()
	require.Len(t, remote, 2)
	assert.Equal(t, "http://models.local:8501/v1/models/scam", remote["scam"].StatusURL())
	assert.Equal(t, "http://models.local:8501/v1/models/behavior", remote["behavior"].StatusURL())
}

func TestLoadModels_NothingConfigured(t *testing.T) {
	models, err := LoadModels(context.Background(), config.ModelsConfig{}, nil)

	require.NoError(t, err)
	assert.Empty(t, models.Remote())
	assert.Nil(t, models.Threat)
	assert.Nil(t, models.Scam)
	assert.Nil(t, models.Behavior)
}

func TestLoadModels_BadPath(t *testing.T) {
	_, err := LoadModels(context.Background(), config.ModelsConfig{ScamPath: filepath.Join(t.TempDir(), "nope.json")}, nil)

	assert.Error(t, err)
}

type fakeOpener map[string]string

func (f fakeOpener) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	body, ok := f[location]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func TestLoadModels_FromArtifacts(t *testing.T) {
	opener := fakeOpener{
		"s3://models/threat.json": `{"name":"threat","activation":"sigmoid","weights":[[1,2]],"bias":[0]}`,
		"s3://models/broken.json": `{"weights":[]}`,
	}

	models, err := LoadModels(context.Background(), config.ModelsConfig{ThreatPath: "s3://models/threat.json"}, opener)
	require.NoError(t, err)
	require.IsType(t, &LinearModel{}, models.Threat)
	assert.Equal(t, 2, models.Threat.(*LinearModel).InputSize())
	assert.Nil(t, models.Scam)

	_, err = LoadModels(context.Background(), config.ModelsConfig{ScamPath: "s3://models/broken.json"}, opener)
	assert.ErrorContains(t, err, "invalid model s3://models/broken.json")

	_, err = LoadModels(context.Background(), config.ModelsConfig{BehaviorPath: "s3://models/missing.json"}, opener)
	assert.ErrorContains(t, err, "failed to open model")
}
