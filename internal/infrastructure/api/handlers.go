package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	appservices "tomato-demo/internal/application/services"
	"tomato-demo/internal/application/usecases"
	"tomato-demo/internal/domain/entities"
	domainservices "tomato-demo/internal/domain/services"
	"tomato-demo/internal/domain/valueobjects"
)

const SessionCookieName = "tomato_session"

type DetectionHandler struct {
	detectionUseCase *usecases.DetectionUseCase
	uploadService    *appservices.UploadService
	sessionTTL       time.Duration
}

func NewDetectionHandler(
	detectionUseCase *usecases.DetectionUseCase,
	uploadService *appservices.UploadService,
	sessionTTL time.Duration,
) *DetectionHandler {
	return &DetectionHandler{
		detectionUseCase: detectionUseCase,
		uploadService:    uploadService,
		sessionTTL:       sessionTTL,
	}
}

// CandidateResponse is the selected file as the page sees it.
type CandidateResponse struct {
	FileName       string `json:"fileName"`
	MimeType       string `json:"mimeType"`
	Size           int64  `json:"size"`
	Preview        string `json:"preview,omitempty"`
	PreviewPending bool   `json:"previewPending"`
}

type PrimaryResponse struct {
	ClassName   string `json:"className"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Treatment   string `json:"treatment"`
	Confidence  string `json:"confidence"`
}

type ChartSliceResponse struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent string  `json:"percent"`
	Tooltip string  `json:"tooltip"`
	Color   string  `json:"color"`
}

type RankedResponse struct {
	Rank       int    `json:"rank"`
	Label      string `json:"label"`
	Confidence string `json:"confidence"`
	Text       string `json:"text"`
}

type ResultResponse struct {
	Primary PrimaryResponse      `json:"primary"`
	Chart   []ChartSliceResponse `json:"chart"`
	Ranked  []RankedResponse     `json:"ranked"`
}

// StateResponse is the body of GET /api/state and of JSON form posts.
type StateResponse struct {
	Version   uint64             `json:"version"`
	Phase     entities.Phase     `json:"phase"`
	CanDetect bool               `json:"canDetect"`
	CanSelect bool               `json:"canSelect"`
	Error     string             `json:"error,omitempty"`
	Notice    string             `json:"notice,omitempty"`
	Candidate *CandidateResponse `json:"candidate,omitempty"`
	Result    *ResultResponse    `json:"result,omitempty"`
}

func (h *DetectionHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r)

	input, err := h.uploadService.ParseFromRequest(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("upload could not be read")
		reason := "please choose an image to upload"
		if errors.Is(err, appservices.ErrBodyTooLarge) {
			reason = valueobjects.ReasonTooLarge
		}
		out, stateErr := h.detectionUseCase.State(r.Context(), sessionID)
		if stateErr != nil {
			h.sendError(w, domainservices.GenericFailureMessage, http.StatusInternalServerError)
			return
		}
		h.setSessionCookie(w, out.SessionID)
		h.respond(w, r, out, reason, http.StatusUnprocessableEntity)
		return
	}

	out, err := h.detectionUseCase.SelectFile(r.Context(), sessionID, input)
	if out == nil {
		log.Error().Err(err).Msg("select failed")
		h.sendError(w, domainservices.GenericFailureMessage, http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, out.SessionID)

	if err != nil {
		h.respond(w, r, out, domainservices.UserMessage(err), http.StatusUnprocessableEntity)
		return
	}
	h.respond(w, r, out, "", http.StatusOK)
}

func (h *DetectionHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	out, started, err := h.detectionUseCase.Detect(r.Context(), h.sessionID(r))
	if err != nil {
		log.Error().Err(err).Msg("detect failed")
		h.sendError(w, domainservices.GenericFailureMessage, http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, out.SessionID)

	status := http.StatusAccepted
	if !started {
		status = http.StatusConflict
	}
	h.respond(w, r, out, "", status)
}

func (h *DetectionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	out, err := h.detectionUseCase.Reset(r.Context(), h.sessionID(r))
	if err != nil {
		log.Error().Err(err).Msg("reset failed")
		h.sendError(w, domainservices.GenericFailureMessage, http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, out.SessionID)
	h.respond(w, r, out, "", http.StatusOK)
}

func (h *DetectionHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	out, err := h.detectionUseCase.State(r.Context(), h.sessionID(r))
	if err != nil {
		h.sendError(w, domainservices.GenericFailureMessage, http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, out.SessionID)
	h.sendJSON(w, newStateResponse(out, ""), http.StatusOK)
}

func (h *DetectionHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.detectionUseCase.RenderChart(r.Context(), h.sessionID(r), &buf); err != nil {
		if errors.Is(err, usecases.ErrNoResult) {
			h.sendError(w, "no result to chart yet", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Msg("chart rendering failed")
		h.sendError(w, "failed to render chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	_, _ = w.Write(buf.Bytes())
}

func (h *DetectionHandler) HandleDiseases(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.detectionUseCase.Diseases(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("disease catalog unavailable")
		// バックエンドが応答した場合は502、届かなかった場合は503
		status := http.StatusServiceUnavailable
		if domainservices.IsServerReported(err) {
			status = http.StatusBadGateway
		}
		h.sendError(w, domainservices.UserMessage(err), status)
		return
	}

	type disease struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Treatment   string `json:"treatment"`
	}
	body := make(map[string]disease, len(catalog))
	for className, d := range catalog {
		body[className] = disease{Name: d.Name, Description: d.Description, Treatment: d.Treatment}
	}
	h.sendJSON(w, body, http.StatusOK)
}

// HandleHealth reports our own liveness and the backend's.
func (h *DetectionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok", "backend": "ok"}
	if err := h.detectionUseCase.Health(r.Context()); err != nil {
		log.Warn().Err(err).Msg("backend health check failed")
		body["backend"] = "unavailable"
	}
	h.sendJSON(w, body, http.StatusOK)
}

func (h *DetectionHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	out, err := h.detectionUseCase.State(r.Context(), h.sessionID(r))
	if err != nil {
		h.sendError(w, domainservices.GenericFailureMessage, http.StatusInternalServerError)
		return
	}
	h.setSessionCookie(w, out.SessionID)
	h.renderPage(w, newStateResponse(out, ""), http.StatusOK)
}

// respond answers JSON clients with the state and browsers with the page (or a redirect to it).
func (h *DetectionHandler) respond(w http.ResponseWriter, r *http.Request, out *usecases.StateOutput, notice string, status int) {
	state := newStateResponse(out, notice)
	if wantsJSON(r) {
		h.sendJSON(w, state, status)
		return
	}
	if notice != "" {
		h.renderPage(w, state, status)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *DetectionHandler) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *DetectionHandler) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *DetectionHandler) sendJSON(w http.ResponseWriter, body any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (h *DetectionHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func newStateResponse(out *usecases.StateOutput, notice string) StateResponse {
	snap := out.Snapshot
	resp := StateResponse{
		Version:   snap.Version,
		Phase:     snap.Phase,
		CanDetect: snap.CanDetect,
		CanSelect: snap.CanSelect,
		Error:     snap.Error,
		Notice:    notice,
	}

	if c := snap.Candidate; c != nil {
		resp.Candidate = &CandidateResponse{
			FileName:       c.FileName,
			MimeType:       string(c.MimeType),
			Size:           c.Size,
			Preview:        c.PreviewDataURI,
			PreviewPending: c.PreviewPending,
		}
	}

	if v := out.View; v != nil {
		result := &ResultResponse{
			Primary: PrimaryResponse{
				ClassName:   v.Primary.ClassName,
				Name:        v.Primary.Name,
				Description: v.Primary.Description,
				Treatment:   v.Primary.Treatment,
				Confidence:  v.Primary.ConfidenceText,
			},
		}
		for _, d := range v.Chart {
			result.Chart = append(result.Chart, ChartSliceResponse{
				Label:   d.Label,
				Value:   d.Value,
				Percent: d.PercentText,
				Tooltip: d.TooltipText,
				Color:   d.Color,
			})
		}
		for _, e := range v.Ranked {
			result.Ranked = append(result.Ranked, RankedResponse{
				Rank:       e.Rank,
				Label:      e.Label,
				Confidence: e.ConfidenceText,
				Text:       e.String(),
			})
		}
		resp.Result = result
	}

	return resp
}
