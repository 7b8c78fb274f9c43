package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appservices "tomato-demo/internal/application/services"
	"tomato-demo/internal/application/usecases"
	"tomato-demo/internal/domain/entities"
	domainservices "tomato-demo/internal/domain/services"
	"tomato-demo/internal/infrastructure/external"
	"tomato-demo/internal/infrastructure/repositories"
	infraservices "tomato-demo/internal/infrastructure/services"
	fixtures "tomato-demo/test/http"
)

type backendReply struct {
	status int
	body   string
	// 0のときは病害カタログを正常に返す
	diseasesStatus int
	diseasesBody   string
}

func newTestApp(t *testing.T, reply backendReply) (*httptest.Server, *http.Client) {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case external.PredictPath:
			w.WriteHeader(reply.status)
			_, _ = w.Write([]byte(reply.body))
		case external.HealthPath:
			_, _ = w.Write([]byte(`{"status": "ok"}`))
		case external.DiseasesPath:
			if reply.diseasesStatus != 0 {
				w.WriteHeader(reply.diseasesStatus)
				_, _ = w.Write([]byte(reply.diseasesBody))
				return
			}
			_, _ = w.Write([]byte(fixtures.DiseasesResponse()))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(backend.Close)

	pool := infraservices.NewHTTPClientPool(infraservices.HTTPClientConfig{Timeout: 5 * time.Second})
	t.Cleanup(func() { _ = pool.Close() })
	client, err := external.NewPredictionClient(backend.URL, pool)
	require.NoError(t, err)

	uc := usecases.NewDetectionUseCase(
		repositories.NewMemorySessionRepository[*domainservices.ViewController](),
		client,
		external.NewPreviewGenerator(300),
		client,
		infraservices.NewChartRenderer(200, 200),
	)
	handler := NewDetectionHandler(uc, appservices.NewUploadService(0), time.Hour)

	app := httptest.NewServer(NewRouter(handler))
	t.Cleanup(app.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	browser := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return app, browser
}

func smallPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func postFile(t *testing.T, client *http.Client, url, fileName, contentType string, data []byte, asJSON bool) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if asJSON {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeState(t *testing.T, resp *http.Response) StateResponse {
	t.Helper()
	defer resp.Body.Close()
	var state StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

func waitForSettled(t *testing.T, client *http.Client, baseURL string) StateResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Get(baseURL + "/api/state")
		require.NoError(t, err)
		state := decodeState(t, resp)
		if state.Phase != entities.PhaseLoading {
			return state
		}
		if time.Now().After(deadline) {
			t.Fatal("detection did not settle")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandlers_DetectFlow(t *testing.T) {
	app, client := newTestApp(t, backendReply{status: http.StatusOK, body: fixtures.PredictionResponse()})

	resp, err := client.Get(app.URL + "/")
	require.NoError(t, err)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "Tomato Disease Detection")
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	state := decodeState(t, postFile(t, client, app.URL+"/select", "leaf.png", "image/png", smallPNG(t), true))
	require.NotNil(t, state.Candidate)
	assert.Equal(t, "leaf.png", state.Candidate.FileName)
	assert.True(t, state.CanDetect)

	resp = postJSON(t, client, app.URL+"/detect")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	settled := waitForSettled(t, client, app.URL)
	assert.Equal(t, entities.PhaseSuccess, settled.Phase)
	require.NotNil(t, settled.Result)
	assert.Equal(t, "Early Blight", settled.Result.Primary.Name)
	assert.Equal(t, "92.00%", settled.Result.Primary.Confidence)
	require.Len(t, settled.Result.Ranked, 3)
	assert.Equal(t, "1. Early blight — 92.00%", settled.Result.Ranked[0].Text)
	assert.Equal(t, "Early_blight", settled.Result.Chart[0].Label)
	assert.Empty(t, settled.Error)

	resp, err = client.Get(app.URL + "/chart.png")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_, err = png.DecodeConfig(resp.Body)
	resp.Body.Close()
	assert.NoError(t, err)

	reset := decodeState(t, postJSON(t, client, app.URL+"/reset"))
	assert.Equal(t, entities.PhaseIdle, reset.Phase)
	assert.Nil(t, reset.Candidate)
	assert.Nil(t, reset.Result)

	resp, err = client.Get(app.URL + "/chart.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlers_SelectRejected(t *testing.T) {
	app, client := newTestApp(t, backendReply{status: http.StatusOK, body: fixtures.PredictionResponse()})

	resp := postFile(t, client, app.URL+"/select", "leaf.gif", "image/gif", []byte("GIF89a"), true)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	state := decodeState(t, resp)
	assert.Equal(t, "please upload a JPG or PNG image", state.Notice)
	assert.Nil(t, state.Candidate)
	assert.False(t, state.CanDetect)

	// ブラウザからの送信はページを再描画する
	resp = postFile(t, client, app.URL+"/select", "leaf.gif", "image/gif", []byte("GIF89a"), false)
	page, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(page), "please upload a JPG or PNG image")
}

func TestHandlers_DetectWithoutFile(t *testing.T) {
	app, client := newTestApp(t, backendReply{status: http.StatusOK, body: fixtures.PredictionResponse()})

	resp := postJSON(t, client, app.URL+"/detect")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	state := decodeState(t, resp)
	assert.Equal(t, entities.PhaseIdle, state.Phase)
}

func TestHandlers_BackendFailure(t *testing.T) {
	tests := []struct {
		name    string
		reply   backendReply
		wantErr string
	}{
		{name: "500 without body", reply: backendReply{status: http.StatusInternalServerError}, wantErr: "upload failed, please retry"},
		{name: "structured error", reply: backendReply{status: http.StatusBadRequest, body: fixtures.ErrorResponse()}, wantErr: "unsupported file type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, client := newTestApp(t, tt.reply)

			resp := postFile(t, client, app.URL+"/select", "leaf.jpg", "image/jpeg", []byte("not really a jpeg"), true)
			state := decodeState(t, resp)
			require.NotNil(t, state.Candidate)

			resp = postJSON(t, client, app.URL+"/detect")
			resp.Body.Close()

			settled := waitForSettled(t, client, app.URL)
			assert.Equal(t, entities.PhaseFailure, settled.Phase)
			assert.Equal(t, tt.wantErr, settled.Error)
			assert.Nil(t, settled.Result)
			assert.True(t, settled.CanDetect, "retry stays possible")
		})
	}
}

func TestHandlers_BrowserFormRedirects(t *testing.T) {
	app, client := newTestApp(t, backendReply{status: http.StatusOK, body: fixtures.PredictionResponse()})

	resp, err := client.Post(app.URL+"/reset", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestHandlers_DiseasesAndHealth(t *testing.T) {
	app, client := newTestApp(t, backendReply{status: http.StatusOK, body: fixtures.PredictionResponse()})

	resp, err := client.Get(app.URL + "/api/diseases")
	require.NoError(t, err)
	var catalog map[string]map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&catalog))
	resp.Body.Close()
	assert.Equal(t, "Early Blight", catalog["Tomato_Early_blight"]["name"])

	resp, err = client.Get(app.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "ok", health["backend"])
}

func TestHandlers_DiseasesBackendFailure(t *testing.T) {
	tests := []struct {
		name       string
		reply      backendReply
		wantStatus int
		wantError  string
	}{
		{
			name:       "backend reported error",
			reply:      backendReply{diseasesStatus: http.StatusInternalServerError, diseasesBody: `{"error": "catalog not loaded"}`},
			wantStatus: http.StatusBadGateway,
			wantError:  "catalog not loaded",
		},
		{
			name:       "malformed catalog",
			reply:      backendReply{diseasesStatus: http.StatusOK, diseasesBody: `["not", "a", "map"]`},
			wantStatus: http.StatusBadGateway,
			wantError:  domainservices.MalformedResponseMessage,
		},
		{
			name:       "backend failed without body",
			reply:      backendReply{diseasesStatus: http.StatusServiceUnavailable},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  domainservices.GenericFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, client := newTestApp(t, tt.reply)

			resp, err := client.Get(app.URL + "/api/diseases")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}
