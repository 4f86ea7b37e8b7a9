// Package anomaly polls an external classifier and turns a positive signal
// into a selected attack event.
package anomaly

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

const (
	// StatusAnomaly is the only status that triggers an event.
	StatusAnomaly = "ANOMALY"

	DefaultFeatureCount = 78
	DefaultFeatureValue = 100000
)

// ErrMalformedResponse is returned when the classifier body has no usable
// status field.
var ErrMalformedResponse = errors.New("malformed classifier response")

// Request is the body sent to the classifier.
type Request struct {
	Features []float64 `json:"features"`
}

// Response is the body the classifier answers with.
type Response struct {
	Status string  `json:"status"`
	Score  float64 `json:"score"`
}

// Result is a parsed classifier verdict.
type Result struct {
	Status string
	Score  float64
}

// IsAnomaly reports whether the verdict should trigger an event.
func (r Result) IsAnomaly() bool {
	return r.Status == StatusAnomaly
}

// wireResponse accepts the loosely typed bodies seen in practice.
type wireResponse struct {
	Status json.RawMessage `json:"status"`
	Score  json.RawMessage `json:"score"` // Can be string or number
}

// SuspiciousFeatures returns a feature vector of n copies of value.
func SuspiciousFeatures(n int, value float64) []float64 {
	features := make([]float64, n)
	for i := range features {
		features[i] = value
	}
	return features
}

// ParseResponse decodes a classifier body. A missing or non-string status
// is ErrMalformedResponse; an unparseable score reads as 0.
func ParseResponse(data []byte) (Result, error) {
	var raw wireResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, fmt.Errorf("unmarshal response: %w", err)
	}

	var status string
	if len(raw.Status) == 0 || json.Unmarshal(raw.Status, &status) != nil || status == "" {
		return Result{}, ErrMalformedResponse
	}

	return Result{Status: status, Score: parseScore(raw.Score)}, nil
}

// parseScore parses a score that can be either a number or a numeric string.
func parseScore(data json.RawMessage) float64 {
	if len(data) == 0 {
		return 0
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		return num
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		val, _ := strconv.ParseFloat(str, 64)
		return val
	}

	return 0
}
