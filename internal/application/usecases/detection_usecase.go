package usecases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tomato-demo/internal/domain/entities"
	"tomato-demo/internal/domain/repositories"
	"tomato-demo/internal/domain/services"
)

var ErrNoResult = errors.New("no prediction result to chart")

// SessionRepository stores one ViewController per browser session.
type SessionRepository interface {
	Save(ctx context.Context, id string, controller *services.ViewController) error
	FindByID(ctx context.Context, id string) (*services.ViewController, error)
	Delete(ctx context.Context, id string) error
	Sweep(ctx context.Context, maxIdle time.Duration) []*services.ViewController
}

type ChartRenderer interface {
	RenderPNG(w io.Writer, data []services.ChartDatum) error
}

type DetectionUseCase struct {
	sessions  SessionRepository
	predictor repositories.PredictionService
	previewer repositories.PreviewService
	catalog   repositories.DiseaseCatalogService
	charts    ChartRenderer
	options   []services.Option
}

func NewDetectionUseCase(
	sessions SessionRepository,
	predictor repositories.PredictionService,
	previewer repositories.PreviewService,
	catalog repositories.DiseaseCatalogService,
	charts ChartRenderer,
	options ...services.Option,
) *DetectionUseCase {
	return &DetectionUseCase{
		sessions:  sessions,
		predictor: predictor,
		previewer: previewer,
		catalog:   catalog,
		charts:    charts,
		options:   options,
	}
}

// StateOutput is a snapshot plus its formatted result, when there is one.
type StateOutput struct {
	SessionID string
	Snapshot  services.Snapshot
	View      *services.ResultView
}

// Session returns the controller for id, creating a fresh session when id is unknown.
func (uc *DetectionUseCase) Session(ctx context.Context, id string) (string, *services.ViewController, error) {
	if id != "" {
		if controller, err := uc.sessions.FindByID(ctx, id); err == nil {
			return id, controller, nil
		}
	}

	id = uuid.NewString()
	controller := services.NewViewController(uc.predictor, uc.previewer, uc.options...)
	if err := uc.sessions.Save(ctx, id, controller); err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Debug().Str("session", id).Msg("session created")

	return id, controller, nil
}

func (uc *DetectionUseCase) SelectFile(ctx context.Context, sessionID string, input services.FileInput) (*StateOutput, error) {
	id, controller, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// 検証エラーでも現在の状態は返す
	snap, err := controller.SelectFile(ctx, input)
	return newStateOutput(id, snap), err
}

// Detect starts a submission; started is false when the controller ignored the request.
func (uc *DetectionUseCase) Detect(ctx context.Context, sessionID string) (out *StateOutput, started bool, err error) {
	id, controller, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	_, started = controller.Detect(ctx)
	return newStateOutput(id, controller.Snapshot()), started, nil
}

func (uc *DetectionUseCase) Reset(ctx context.Context, sessionID string) (*StateOutput, error) {
	id, controller, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return newStateOutput(id, controller.Reset()), nil
}

func (uc *DetectionUseCase) State(ctx context.Context, sessionID string) (*StateOutput, error) {
	id, controller, err := uc.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return newStateOutput(id, controller.Snapshot()), nil
}

// RenderChart writes the pie chart of the session's current result.
func (uc *DetectionUseCase) RenderChart(ctx context.Context, sessionID string, w io.Writer) error {
	out, err := uc.State(ctx, sessionID)
	if err != nil {
		return err
	}
	if out.View == nil {
		return ErrNoResult
	}
	return uc.charts.RenderPNG(w, out.View.Chart)
}

func (uc *DetectionUseCase) Diseases(ctx context.Context) (map[string]entities.DiseaseDetails, error) {
	catalog, err := uc.catalog.Diseases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch disease catalog: %w", err)
	}
	return catalog, nil
}

func (uc *DetectionUseCase) Health(ctx context.Context) error {
	return uc.catalog.Health(ctx)
}

// SweepIdle drops sessions idle longer than maxIdle and returns how many were removed.
func (uc *DetectionUseCase) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	removed := uc.sessions.Sweep(ctx, maxIdle)
	for _, controller := range removed {
		// A request that fetched this controller just before the sweep may still
		// apply transitions to it; it is orphaned and the next request gets a new session.
		controller.Reset()
	}
	if len(removed) > 0 {
		log.Info().Int("sessions", len(removed)).Msg("idle sessions evicted")
	}
	return len(removed)
}

func newStateOutput(sessionID string, snap services.Snapshot) *StateOutput {
	out := &StateOutput{SessionID: sessionID, Snapshot: snap}
	if snap.Result != nil {
		view := services.FormatResult(snap.Result)
		out.View = &view
	}
	return out
}
