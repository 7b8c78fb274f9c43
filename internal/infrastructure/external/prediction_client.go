package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tomato-demo/internal/domain/entities"
	"tomato-demo/internal/domain/repositories"
	"tomato-demo/internal/domain/services"
	"tomato-demo/internal/domain/valueobjects"
	"tomato-demo/model"
)

const (
	PredictPath  = "/api/predict"
	HealthPath   = "/api/health"
	DiseasesPath = "/api/diseases"

	// multipartのフィールド名
	ImageField = "image"

	maxResponseBytes = 4 << 20
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// PredictionClient talks to the classification backend over HTTP.
type PredictionClient struct {
	baseURL string
	pool    repositories.HTTPClientPool
}

func NewPredictionClient(baseURL string, pool repositories.HTTPClientPool) (*PredictionClient, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: host is required", baseURL)
	}

	return &PredictionClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		pool:    pool,
	}, nil
}

func (c *PredictionClient) BaseURL() string {
	return c.baseURL
}

// Submit posts the candidate as a single multipart "image" part and returns exactly one outcome.
func (c *PredictionClient) Submit(ctx context.Context, candidate *entities.UploadCandidate) (*entities.PredictionResult, error) {
	body, contentType, err := encodeImageForm(candidate)
	if err != nil {
		return nil, services.NewTransportError(0, fmt.Errorf("failed to build multipart body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PredictPath, body)
	if err != nil {
		return nil, services.NewTransportError(0, fmt.Errorf("failed to create request: %w", err))
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	log.Debug().
		Str("requestId", requestID).
		Str("file", candidate.FileName()).
		Int64("size", candidate.Size()).
		Msg("submitting image for prediction")

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	if status < 200 || status > 299 {
		return nil, errorFromResponse(status, respBody)
	}

	result, err := parsePrediction(respBody)
	if err != nil {
		return nil, services.NewMalformedResponseError(status, err)
	}

	log.Info().
		Str("requestId", requestID).
		Str("class", result.Primary().ClassName).
		Str("confidence", result.Primary().Probability.ListPercent()).
		Msg("prediction received")

	return result, nil
}

// Health checks GET /api/health.
func (c *PredictionClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+HealthPath, nil)
	if err != nil {
		return services.NewTransportError(0, err)
	}

	status, respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return errorFromResponse(status, respBody)
	}

	var health model.HealthResponse
	if err := json.Unmarshal(respBody, &health); err != nil {
		return services.NewMalformedResponseError(status, err)
	}
	if health.Status != "ok" {
		return services.NewServerReportedError(status, fmt.Sprintf("backend status %q", health.Status))
	}
	return nil
}

// Diseases fetches the disease catalog from GET /api/diseases.
func (c *PredictionClient) Diseases(ctx context.Context) (map[string]entities.DiseaseDetails, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+DiseasesPath, nil)
	if err != nil {
		return nil, services.NewTransportError(0, err)
	}
	req.Header.Set("Accept", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, errorFromResponse(status, respBody)
	}

	var catalog model.DiseaseCatalog
	if err := json.Unmarshal(respBody, &catalog); err != nil {
		return nil, services.NewMalformedResponseError(status, err)
	}

	out := make(map[string]entities.DiseaseDetails, len(catalog))
	for className, d := range catalog {
		out[className] = entities.DiseaseDetails{
			Name:        d.Name,
			Description: d.Description,
			Treatment:   d.Treatment,
		}
	}
	return out, nil
}

func (c *PredictionClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.pool.Client().Do(req)
	if err != nil {
		return 0, nil, services.NewTransportError(0, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, services.NewTransportError(resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}
	return resp.StatusCode, respBody, nil
}

func encodeImageForm(candidate *entities.UploadCandidate) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, ImageField, quoteEscaper.Replace(candidate.FileName())))
	header.Set("Content-Type", string(candidate.MimeType()))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(candidate.Image().Data()); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}

// errorFromResponse prefers the structured "error" field and falls back to the generic retry message.
func errorFromResponse(status int, body []byte) error {
	var errResp model.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && strings.TrimSpace(errResp.Error) != "" {
		return services.NewServerReportedError(status, errResp.Error)
	}

	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return services.NewTransportError(status, fmt.Errorf("API request failed with status %d: %s", status, preview))
}

func parsePrediction(body []byte) (*entities.PredictionResult, error) {
	var wire model.PredictionResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}

	predictions := make([]entities.ClassPrediction, 0, len(wire.Predictions))
	for _, p := range wire.Predictions {
		predictions = append(predictions, entities.ClassPrediction{
			ClassName:   p.ClassName,
			Probability: valueobjects.Probability(p.Probability),
		})
	}

	return entities.NewPredictionResult(predictions, entities.DiseaseDetails{
		Name:        wire.Details.Name,
		Description: wire.Details.Description,
		Treatment:   wire.Details.Treatment,
	}, wire.ImagePath)
}
