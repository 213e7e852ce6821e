package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"spritestudio/internal/domain"
	"spritestudio/internal/infra"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// CredentialSource yields the API key for each outbound call. The credential
// store satisfies it; tests pass a static value.
type CredentialSource interface {
	APIKey() string
}

// StaticKey is a CredentialSource over a fixed string.
type StaticKey string

func (k StaticKey) APIKey() string { return strings.TrimSpace(string(k)) }

// Options controls how the Gemini client is configured.
type Options struct {
	Credentials   CredentialSource
	BaseURL       string
	ImageModel    string
	EditModel     string
	TextModel     string
	ThinkingModel string
	VideoModel    string
	HTTPClient    *http.Client
	Logger        *infra.Logger
}

// Client is a stateless facade over the Gemini REST API. Every exported
// method issues exactly one outbound request and never retries.
type Client struct {
	creds         CredentialSource
	baseURL       string
	imageModel    string
	editModel     string
	textModel     string
	thinkingModel string
	videoModel    string
	httpClient    *http.Client
	logger        *infra.Logger
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	if opts.Credentials == nil {
		return nil, errors.New("genai: credential source is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	return &Client{
		creds:         opts.Credentials,
		baseURL:       baseURL,
		imageModel:    firstNonEmpty(opts.ImageModel, "imagen-4.0-generate-001"),
		editModel:     firstNonEmpty(opts.EditModel, "gemini-2.5-flash-image"),
		textModel:     firstNonEmpty(opts.TextModel, "gemini-2.5-flash"),
		thinkingModel: firstNonEmpty(opts.ThinkingModel, "gemini-2.5-pro"),
		videoModel:    firstNonEmpty(opts.VideoModel, "veo-3.0-fast-generate-001"),
		httpClient:    client,
		logger:        logger,
	}, nil
}

// VideoModel returns the configured Veo model identifier.
func (c *Client) VideoModel() string {
	return c.videoModel
}

func (c *Client) modelPath(model, method string) string {
	return fmt.Sprintf("/models/%s:%s", url.PathEscape(model), method)
}

// invoke performs one JSON request against path. A nil payload issues a GET.
// notFoundIsCredential marks operation lookups, where the service answers an
// unknown or foreign handle with NOT_FOUND when the key lost access to it.
func (c *Client) invoke(ctx context.Context, op, path string, payload, out any, notFoundIsCredential bool) error {
	key := c.creds.APIKey()
	if key == "" {
		return domain.NewError(domain.KindCredentialMissing, op, "API key is not configured", nil)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	method := http.MethodGet
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return domain.NewError(domain.KindService, op, "marshal request", err)
		}
		method = http.MethodPost
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return domain.NewError(domain.KindService, op, "create request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-goog-api-key", key)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.NewError(domain.KindCancelled, op, "request cancelled", ctxErr)
		}
		return domain.NewError(domain.KindService, op, "", fmt.Errorf("invoke gemini: %w", err))
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("genai: request finished")

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(op, resp, notFoundIsCredential)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewError(domain.KindService, op, "decode gemini response", err)
	}
	return nil
}

func decodeAPIError(op string, resp *http.Response, notFoundIsCredential bool) error {
	data, _ := io.ReadAll(resp.Body)
	var apiErr apiErrorResponse
	message := ""
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	} else if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
		message = trimmed
	} else {
		message = fmt.Sprintf("gemini status %d", resp.StatusCode)
	}
	kind := classify(resp.StatusCode, apiErr.Error, notFoundIsCredential)
	e := domain.NewError(kind, op, message, nil)
	e.Status = resp.StatusCode
	return e
}

// classify maps the HTTP status and the structured error body to a Kind.
func classify(status int, body apiErrorBody, notFoundIsCredential bool) domain.Kind {
	for _, d := range body.Details {
		if d.Reason == "API_KEY_INVALID" || d.Reason == "API_KEY_EXPIRED" {
			return domain.KindCredential
		}
	}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.KindCredential
	case body.Status == "PERMISSION_DENIED", body.Status == "UNAUTHENTICATED":
		return domain.KindCredential
	case notFoundIsCredential && (status == http.StatusNotFound || body.Status == "NOT_FOUND"):
		return domain.KindCredential
	case status == http.StatusBadRequest && strings.HasPrefix(body.Message, "API key not valid"):
		return domain.KindCredential
	default:
		return domain.KindService
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
