package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jo-hoe/clipcast/internal/common"
	"github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/tts"
)

var _ tts.Synthesizer = (*Client)(nil)

const (
	headerAPIKey      = "xi-api-key" // #nosec G101 - header name constant, not a credential
	headerContentType = "Content-Type"

	defaultTimeout    = 5 * time.Minute
	errorSnippetLimit = 400
)

// Client implements tts.Synthesizer via the ElevenLabs text-to-speech API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	voiceID      string
	modelID      string
	outputFormat string
}

// New creates a new ElevenLabs synthesizer.
func New(cfg config.ElevenLabsSettings) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		voiceID:      cfg.VoiceID,
		modelID:      cfg.ModelID,
		outputFormat: cfg.OutputFormat,
	}
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize converts the script into MP3 audio. Duration is measured from
// the returned frames; when that fails the word count estimate is used so the
// caller always gets a usable value.
func (c *Client) Synthesize(ctx context.Context, scriptText string) (tts.Audio, error) {
	if strings.TrimSpace(scriptText) == "" {
		return tts.Audio{}, fmt.Errorf("script is empty")
	}

	endpoint, err := url.JoinPath(c.baseURL, "v1/text-to-speech", c.voiceID)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("join url: %w", err)
	}
	endpoint += "?output_format=" + url.QueryEscape(c.outputFormat)

	bodyBytes, err := json.Marshal(synthesisRequest{Text: scriptText, ModelID: c.modelID})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set(headerContentType, common.ContentTypeJSON)
	req.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return tts.Audio{}, ctx.Err()
		}
		return tts.Audio{}, fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetLimit))
		return tts.Audio{}, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, string(snippet))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return tts.Audio{}, fmt.Errorf("empty audio response")
	}

	duration, err := tts.MeasureDuration(audio)
	if err != nil {
		duration = tts.EstimateDuration(scriptText)
	}
	return tts.Audio{Data: audio, DurationSeconds: duration}, nil
}
