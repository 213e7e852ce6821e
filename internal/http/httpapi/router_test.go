package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"spritestudio/internal/domain"
	"spritestudio/internal/http/handlers"
	"spritestudio/internal/infra"
	"spritestudio/internal/infra/credentials"
	"spritestudio/internal/poller"
	"spritestudio/internal/studio"
)

type stubService struct {
	generateImage func(ctx context.Context, prompt, aspect string) (*domain.AssetResult, error)
	editImage     func(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error)
}

func (s *stubService) GenerateImage(ctx context.Context, prompt, aspect string) (*domain.AssetResult, error) {
	return s.generateImage(ctx, prompt, aspect)
}

func (s *stubService) EditImage(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error) {
	return s.editImage(ctx, img, prompt)
}

func (s *stubService) AnalyzeImage(ctx context.Context, img *domain.InputImage, prompt string) (string, error) {
	return "a purple cat", nil
}

func (s *stubService) GenerateSpriteFrames(ctx context.Context, ref *domain.InputImage, prompt string, n int) ([]domain.AssetResult, error) {
	return nil, errors.New("not used")
}

func (s *stubService) SubmitVideo(ctx context.Context, img *domain.InputImage, prompt, aspect string) (*domain.GenerationJob, error) {
	return &domain.GenerationJob{Handle: "operations/abc"}, nil
}

func (s *stubService) CheckVideoStatus(ctx context.Context, job *domain.GenerationJob) (*domain.GenerationJob, error) {
	return &domain.GenerationJob{Handle: job.Handle, Done: true, ResultLocator: "https://example.com/video.mp4"}, nil
}

func (s *stubService) SendChat(ctx context.Context, history []domain.ChatMessage, msg string, opts domain.ChatOptions) (*domain.ChatMessage, error) {
	return &domain.ChatMessage{Role: domain.ChatRoleModel, Text: "echo: " + msg}, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, locator string, kind domain.AssetKind) (*domain.AssetResult, error) {
	return &domain.AssetResult{Kind: kind, MIMEType: "video/mp4", Data: []byte("mp4"), Filename: "generated-video.mp4"}, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestRouter(t *testing.T, svc *stubService, store *credentials.Store) (http.Handler, *studio.Studio) {
	t.Helper()
	logger := *infra.DiscardLogger()
	st := studio.New(studio.Options{
		Service:     svc,
		Fetcher:     stubFetcher{},
		Credentials: store,
		Poller:      poller.New(svc, poller.Options{Interval: time.Millisecond, MaxAttempts: 10, Timeout: time.Minute}),
	})
	t.Cleanup(st.Close)
	cfg := &infra.Config{CORSAllowedOrigins: []string{"*"}, MaxUploadBytes: 1 << 20}
	app := handlers.NewApp(cfg, logger, st, store)
	return NewRouter(app), st
}

func keyedStore(t *testing.T) *credentials.Store {
	t.Helper()
	store := credentials.NewMemoryStore()
	if err := store.SetGeminiAPIKey("AIzaTestKey1234"); err != nil {
		t.Fatalf("SetGeminiAPIKey: %v", err)
	}
	return store
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, credentials.NewMemoryStore())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestGatedImageWithoutCredential(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, credentials.NewMemoryStore())
	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"prompt":"a cat"}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/images/generate", body))
	if rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	decodeBody(t, rr, &resp)
	if resp.Kind != string(domain.KindCredentialMissing) || resp.Error != studio.CredentialMissingMessage {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestCredentialRoundTripMasksKey(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, credentials.NewMemoryStore())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/v1/settings/credential", strings.NewReader(`{"api_key":"AIzaSecretValue9876"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "SecretValue") {
		t.Fatalf("credential response leaks the key: %s", rr.Body.String())
	}
	var state struct {
		Present bool   `json:"present"`
		Masked  string `json:"masked"`
	}
	decodeBody(t, rr, &state)
	if !state.Present || !strings.HasPrefix(state.Masked, "AIza") || !strings.HasSuffix(state.Masked, "9876") {
		t.Fatalf("unexpected credential state: %+v", state)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tabs", nil))
	var tabs struct {
		CredentialPresent bool `json:"credential_present"`
		Tabs              []struct {
			Locked bool `json:"locked"`
		} `json:"tabs"`
	}
	decodeBody(t, rr, &tabs)
	if !tabs.CredentialPresent {
		t.Fatalf("expected credential to be present")
	}
	for i, tab := range tabs.Tabs {
		if tab.Locked {
			t.Fatalf("tab %d still locked", i)
		}
	}
}

func TestCredentialRejectsEmptyKey(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, credentials.NewMemoryStore())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/v1/settings/credential", strings.NewReader(`{"api_key":"  "}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestImagesGenerateThenDownload(t *testing.T) {
	data := pngBytes(t, 8, 6)
	svc := &stubService{
		generateImage: func(ctx context.Context, prompt, aspect string) (*domain.AssetResult, error) {
			if prompt != "a lighthouse" || aspect != "16:9" {
				t.Fatalf("unexpected request %q %q", prompt, aspect)
			}
			return &domain.AssetResult{Kind: domain.AssetKindImage, MIMEType: "image/png", Data: data, Filename: "generated-image.jpg"}, nil
		},
	}
	router, _ := newTestRouter(t, svc, keyedStore(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/images/generate", strings.NewReader(`{"prompt":"a lighthouse","aspect_ratio":"16:9"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var asset struct {
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		Data        string `json:"data"`
		DownloadURL string `json:"download_url"`
	}
	decodeBody(t, rr, &asset)
	if asset.Width != 8 || asset.Height != 6 || asset.Data == "" {
		t.Fatalf("unexpected asset response: %+v", asset)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, asset.DownloadURL, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 download, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Disposition"); !strings.Contains(got, "generated-image.jpg") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !bytes.Equal(rr.Body.Bytes(), data) {
		t.Fatalf("download body mismatch")
	}
}

func TestImagesGenerateServiceFailure(t *testing.T) {
	svc := &stubService{
		generateImage: func(ctx context.Context, prompt, aspect string) (*domain.AssetResult, error) {
			return nil, domain.NewError(domain.KindService, "generate image", "quota exceeded", nil)
		},
	}
	router, _ := newTestRouter(t, svc, keyedStore(t))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/images/generate", strings.NewReader(`{"prompt":"x"}`)))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	var resp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	decodeBody(t, rr, &resp)
	if resp.Error != "Failed to generate image. Please try again." || !strings.Contains(resp.Detail, "quota exceeded") {
		t.Fatalf("unexpected error body: %+v", resp)
	}
}

func TestImagesEditMultipart(t *testing.T) {
	upload := pngBytes(t, 4, 4)
	svc := &stubService{
		editImage: func(ctx context.Context, img *domain.InputImage, prompt string) (*domain.AssetResult, error) {
			if !bytes.Equal(img.Data, upload) || img.MIMEType != "image/png" {
				t.Fatalf("unexpected upload %q %d bytes", img.MIMEType, len(img.Data))
			}
			if prompt != "add a retro filter" {
				t.Fatalf("unexpected prompt %q", prompt)
			}
			return &domain.AssetResult{Kind: domain.AssetKindEditedImage, MIMEType: "image/png", Data: upload, Filename: "edited-image.png"}, nil
		},
	}
	router, _ := newTestRouter(t, svc, keyedStore(t))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "cat.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(upload)
	_ = mw.WriteField("prompt", "add a retro filter")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/images/edit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestImagesEditRejectsNonImage(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, keyedStore(t))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "notes.txt")
	_, _ = part.Write([]byte("plain text, not pixels"))
	_ = mw.WriteField("prompt", "edit")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/images/edit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestChatSendAppendsReply(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, keyedStore(t))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/chat/messages", strings.NewReader(`{"text":"hello"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/chat", nil))
	var state struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	decodeBody(t, rr, &state)
	if len(state.Messages) != 3 {
		t.Fatalf("expected greeting, question and reply, got %d messages", len(state.Messages))
	}
	if last := state.Messages[2]; last.Role != domain.ChatRoleModel || last.Text != "echo: hello" {
		t.Fatalf("unexpected reply %+v", last)
	}
}

func TestVideoEventsStream(t *testing.T) {
	router, st := newTestRouter(t, &stubService{}, keyedStore(t))
	srv := httptest.NewServer(router)
	defer srv.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image", "start.png")
	_, _ = part.Write(pngBytes(t, 4, 4))
	_ = mw.WriteField("prompt", "the cat starts dancing")
	_ = mw.Close()

	resp, err := http.Post(srv.URL+"/v1/videos", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /v1/videos: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var run studio.VideoRun
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if resp.Header.Get("Location") != "/v1/videos/"+run.ID {
		t.Fatalf("unexpected location %q", resp.Header.Get("Location"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := st.Video.Wait(ctx, run.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/videos/" + run.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var ev studio.VideoEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if ev.RunID != run.ID || ev.State != domain.RunStateSucceeded {
		t.Fatalf("unexpected event %+v", ev)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}

	dl, err := http.Get(srv.URL + "/v1/videos/" + run.ID + "/download")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK || dl.Header.Get("Content-Type") != "video/mp4" {
		t.Fatalf("unexpected download response %d %q", dl.StatusCode, dl.Header.Get("Content-Type"))
	}
}

func TestUnknownVideoRun(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, keyedStore(t))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/videos/missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
