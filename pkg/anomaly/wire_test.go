package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Result
		anomaly bool
	}{
		{"anomaly", `{"status": "ANOMALY", "score": 0.97}`, Result{"ANOMALY", 0.97}, true},
		{"normal", `{"status": "NORMAL", "score": 0.1}`, Result{"NORMAL", 0.1}, false},
		{"score as string", `{"status": "ANOMALY", "score": "0.85"}`, Result{"ANOMALY", 0.85}, true},
		{"missing score", `{"status": "ANOMALY"}`, Result{"ANOMALY", 0}, true},
		{"garbage score", `{"status": "NORMAL", "score": [1]}`, Result{"NORMAL", 0}, false},
		{"lowercase is not a trigger", `{"status": "anomaly", "score": 0.99}`, Result{"anomaly", 0.99}, false},
		{"extra fields", `{"status": "NORMAL", "score": 0.2, "model": "iforest"}`, Result{"NORMAL", 0.2}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.anomaly, got.IsAnomaly())
		})
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sentinel bool
	}{
		{"missing status", `{"score": 0.97}`, true},
		{"null status", `{"status": null, "score": 0.97}`, true},
		{"numeric status", `{"status": 1, "score": 0.97}`, true},
		{"empty status", `{"status": "", "score": 0.97}`, true},
		{"not json", `<html>502 Bad Gateway</html>`, false},
		{"array body", `[1, 2, 3]`, false},
		{"empty body", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse([]byte(tt.input))
			require.Error(t, err)
			assert.False(t, got.IsAnomaly())
			if tt.sentinel {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			}
		})
	}
}

func TestSuspiciousFeatures(t *testing.T) {
	features := SuspiciousFeatures(DefaultFeatureCount, DefaultFeatureValue)
	require.Len(t, features, 78)
	for _, f := range features {
		assert.Equal(t, 100000.0, f)
	}
}
