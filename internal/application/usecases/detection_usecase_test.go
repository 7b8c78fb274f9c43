package usecases

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomato-demo/internal/domain/entities"
	"tomato-demo/internal/domain/services"
	"tomato-demo/internal/domain/valueobjects"
	"tomato-demo/internal/infrastructure/repositories"
)

type stubPredictor struct {
	result *entities.PredictionResult
	err    error
}

func (s *stubPredictor) Submit(ctx context.Context, candidate *entities.UploadCandidate) (*entities.PredictionResult, error) {
	return s.result, s.err
}

type stubPreviewer struct{}

func (stubPreviewer) Generate(ctx context.Context, image *valueobjects.ImageData) (string, error) {
	return image.ToDataURI(), nil
}

type stubCatalog struct {
	diseases  map[string]entities.DiseaseDetails
	healthErr error
}

func (s *stubCatalog) Health(ctx context.Context) error {
	return s.healthErr
}

func (s *stubCatalog) Diseases(ctx context.Context) (map[string]entities.DiseaseDetails, error) {
	if s.diseases == nil {
		return nil, errors.New("backend unavailable")
	}
	return s.diseases, nil
}

type stubCharts struct {
	data []services.ChartDatum
}

func (s *stubCharts) RenderPNG(w io.Writer, data []services.ChartDatum) error {
	s.data = data
	_, err := w.Write([]byte("png"))
	return err
}

func sampleResult(t *testing.T) *entities.PredictionResult {
	t.Helper()
	result, err := entities.NewPredictionResult(
		[]entities.ClassPrediction{
			{ClassName: "Tomato_Late_blight", Probability: 0.8},
			{ClassName: "Tomato_healthy", Probability: 0.2},
		},
		entities.DiseaseDetails{Name: "Late Blight", Description: "water-soaked lesions", Treatment: "copper fungicide"},
		"",
	)
	require.NoError(t, err)
	return result
}

func newUseCase(t *testing.T, predictor *stubPredictor) (*DetectionUseCase, *stubCharts) {
	t.Helper()
	charts := &stubCharts{}
	uc := NewDetectionUseCase(
		repositories.NewMemorySessionRepository[*services.ViewController](),
		predictor,
		stubPreviewer{},
		&stubCatalog{diseases: map[string]entities.DiseaseDetails{"Tomato_healthy": {Name: "Healthy"}}},
		charts,
	)
	return uc, charts
}

func waitSettled(t *testing.T, uc *DetectionUseCase, sessionID string) *StateOutput {
	t.Helper()
	_, controller, err := uc.Session(context.Background(), sessionID)
	require.NoError(t, err)
	controller.Wait()
	out, err := uc.State(context.Background(), sessionID)
	require.NoError(t, err)
	return out
}

func TestDetectionUseCase_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUseCase(t, &stubPredictor{})

	id, first, err := uc.Session(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sameID, same, err := uc.Session(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, sameID)
	assert.Same(t, first, same)

	otherID, _, err := uc.Session(ctx, "unknown-session")
	require.NoError(t, err)
	assert.NotEqual(t, "unknown-session", otherID)
}

func TestDetectionUseCase_DetectFlow(t *testing.T) {
	ctx := context.Background()
	uc, charts := newUseCase(t, &stubPredictor{result: sampleResult(t)})

	out, err := uc.SelectFile(ctx, "", services.FileInput{Name: "leaf.jpg", MimeType: "image/jpeg", Data: []byte("jpeg")})
	require.NoError(t, err)
	sessionID := out.SessionID
	require.NotNil(t, out.Snapshot.Candidate)
	assert.True(t, out.Snapshot.CanDetect)

	var buf bytes.Buffer
	assert.ErrorIs(t, uc.RenderChart(ctx, sessionID, &buf), ErrNoResult)

	_, started, err := uc.Detect(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, started)

	settled := waitSettled(t, uc, sessionID)
	assert.Equal(t, entities.PhaseSuccess, settled.Snapshot.Phase)
	require.NotNil(t, settled.View)
	assert.Equal(t, "Late Blight", settled.View.Primary.Name)
	assert.Equal(t, "80.00%", settled.View.Primary.ConfidenceText)

	require.NoError(t, uc.RenderChart(ctx, sessionID, &buf))
	assert.Equal(t, "png", buf.String())
	require.Len(t, charts.data, 2)
	assert.Equal(t, "Late_blight", charts.data[0].Label)

	reset, err := uc.Reset(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, entities.PhaseIdle, reset.Snapshot.Phase)
	assert.Nil(t, reset.Snapshot.Candidate)
	assert.Nil(t, reset.View)
}

func TestDetectionUseCase_ValidationError(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUseCase(t, &stubPredictor{})

	out, err := uc.SelectFile(ctx, "", services.FileInput{Name: "leaf.gif", MimeType: "image/gif", Data: []byte("gif")})
	require.Error(t, err)
	assert.Equal(t, services.KindValidation, services.KindOf(err))
	assert.Equal(t, valueobjects.ReasonUnsupportedType, services.UserMessage(err))
	require.NotNil(t, out)
	assert.NotEmpty(t, out.SessionID)
	assert.Equal(t, entities.PhaseIdle, out.Snapshot.Phase)
	assert.Nil(t, out.Snapshot.Candidate)
}

func TestDetectionUseCase_DetectWithoutCandidate(t *testing.T) {
	uc, _ := newUseCase(t, &stubPredictor{})

	out, started, err := uc.Detect(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, entities.PhaseIdle, out.Snapshot.Phase)
}

func TestDetectionUseCase_FailureSurfacesMessage(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUseCase(t, &stubPredictor{err: services.NewServerReportedError(400, "unsupported file type")})

	out, err := uc.SelectFile(ctx, "", services.FileInput{Name: "leaf.png", MimeType: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	_, _, err = uc.Detect(ctx, out.SessionID)
	require.NoError(t, err)

	settled := waitSettled(t, uc, out.SessionID)
	assert.Equal(t, entities.PhaseFailure, settled.Snapshot.Phase)
	assert.Equal(t, "unsupported file type", settled.Snapshot.Error)
	assert.Nil(t, settled.View)
}

func TestDetectionUseCase_CatalogAndHealth(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUseCase(t, &stubPredictor{})

	catalog, err := uc.Diseases(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Healthy", catalog["Tomato_healthy"].Name)
	assert.NoError(t, uc.Health(ctx))

	broken := NewDetectionUseCase(
		repositories.NewMemorySessionRepository[*services.ViewController](),
		&stubPredictor{}, stubPreviewer{},
		&stubCatalog{healthErr: errors.New("down")},
		&stubCharts{},
	)
	_, err = broken.Diseases(ctx)
	assert.Error(t, err)
	assert.Error(t, broken.Health(ctx))
}

func TestDetectionUseCase_SweepIdle(t *testing.T) {
	ctx := context.Background()
	uc, _ := newUseCase(t, &stubPredictor{})

	id, _, err := uc.Session(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 0, uc.SweepIdle(ctx, time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, uc.SweepIdle(ctx, time.Millisecond))

	newID, _, err := uc.Session(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)
}
