package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tomato-demo/internal/domain/valueobjects"
)

var (
	ErrNoPredictions     = errors.New("response contains no predictions")
	ErrMissingClassName  = errors.New("prediction is missing class_name")
	ErrProbabilityRange  = errors.New("probability outside [0,1]")
	ErrPrimaryNotMaximum = errors.New("first prediction is not the most probable")
)

type ClassPrediction struct {
	ClassName   string
	Probability valueobjects.Probability
}

type DiseaseDetails struct {
	Name        string
	Description string
	Treatment   string
}

// PredictionResult is a classifier response that passed boundary validation.
// Index 0 of Predictions is the primary diagnosis and is never less probable than any other entry.
type PredictionResult struct {
	predictions []ClassPrediction
	details     DiseaseDetails
	imagePath   string
	receivedAt  time.Time
}

func NewPredictionResult(predictions []ClassPrediction, details DiseaseDetails, imagePath string) (*PredictionResult, error) {
	if len(predictions) == 0 {
		return nil, ErrNoPredictions
	}

	for i, p := range predictions {
		if strings.TrimSpace(p.ClassName) == "" {
			return nil, fmt.Errorf("prediction %d: %w", i, ErrMissingClassName)
		}
		if !p.Probability.Valid() {
			return nil, fmt.Errorf("prediction %d (%s=%v): %w", i, p.ClassName, float64(p.Probability), ErrProbabilityRange)
		}
		if i > 0 && p.Probability > predictions[0].Probability {
			return nil, fmt.Errorf("prediction %d (%s) outranks %s: %w", i, p.ClassName, predictions[0].ClassName, ErrPrimaryNotMaximum)
		}
	}

	return &PredictionResult{
		predictions: append([]ClassPrediction(nil), predictions...),
		details:     details,
		imagePath:   imagePath,
		receivedAt:  time.Now(),
	}, nil
}

func (r *PredictionResult) Primary() ClassPrediction {
	return r.predictions[0]
}

// Predictions returns a copy in response order.
func (r *PredictionResult) Predictions() []ClassPrediction {
	return append([]ClassPrediction(nil), r.predictions...)
}

func (r *PredictionResult) Details() DiseaseDetails {
	return r.details
}

func (r *PredictionResult) ImagePath() string {
	return r.imagePath
}

func (r *PredictionResult) ReceivedAt() time.Time {
	return r.receivedAt
}
