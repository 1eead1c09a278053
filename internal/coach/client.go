package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"talkcoach/internal/transcript"
)

const defaultTimeout = 30 * time.Second

// SessionContext is the immutable questionnaire context sent with every
// dialogue and analysis request.
type SessionContext struct {
	Conversation string   `json:"conversation"`
	Feeling      string   `json:"feeling"`
	Focus        []string `json:"focus"`
}

// Client talks to the coaching service. All four operations are independent
// request/response calls; none are retried here.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Transcribe uploads a recorded audio artifact and returns the recognized
// text. An empty result means nothing was understood and is not an error.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio artifact: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read audio artifact: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	body, err := c.post(ctx, "transcribe", "/transcribe", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: transcribe: %v", ErrMalformedResponse, err)
	}

	return strings.TrimSpace(result.Text), nil
}

// Synthesize converts text to speech and returns a playable audio locator,
// resolved against the service base URL when the service answers with a
// relative path.
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("tts text is empty")
	}

	body, err := c.postJSON(ctx, "tts", "/tts", map[string]string{"text": text})
	if err != nil {
		return "", err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: tts: %v", ErrMalformedResponse, err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("%w: tts: no audio url returned", ErrMalformedResponse)
	}

	return c.resolveURL(result.URL)
}

// Reply asks the service for the next coaching reply. The service is the
// sole authority on dialogue strategy; an answer without reply content is a
// valid empty result, not an error.
func (c *Client) Reply(ctx context.Context, userText string, sc SessionContext) (string, error) {
	payload := struct {
		UserText string `json:"user_text"`
		SessionContext
	}{UserText: userText, SessionContext: sc}

	body, err := c.postJSON(ctx, "chat", "/chat", payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Reply string `json:"reply"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: chat: %v", ErrMalformedResponse, err)
	}

	return strings.TrimSpace(result.Reply), nil
}

// Analyze submits the full ordered transcript and returns the report as an
// opaque JSON object, passed through unmodified.
func (c *Client) Analyze(ctx context.Context, sc SessionContext, turns []transcript.Turn) (json.RawMessage, error) {
	payload := struct {
		SessionContext
		Turns []transcript.Turn `json:"turns"`
	}{SessionContext: sc, Turns: turns}

	body, err := c.postJSON(ctx, "analyze", "/analyze", payload)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) || len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: analyze: body is not a JSON object", ErrMalformedResponse)
	}

	return json.RawMessage(trimmed), nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}
	return c.post(ctx, op, path, "application/json", bytes.NewReader(encoded))
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &RemoteError{Status: resp.StatusCode, Body: truncateBody(data)}
	}

	return data, nil
}

func (c *Client) resolveURL(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: tts: bad audio url %q", ErrMalformedResponse, raw)
	}
	if ref.IsAbs() {
		return raw, nil
	}

	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}
