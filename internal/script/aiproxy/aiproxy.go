package aiproxy

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
	"github.com/jo-hoe/clipcast/internal/script"
)

var _ script.Writer = (*Client)(nil)

const (
	// Headers
	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"

	// Auth
	authSchemeBearer = "Bearer"

	// Endpoints
	endpointChatCompletions = "v1/chat/completions"

	// Timeouts and limits
	defaultTimeout    = 120 * time.Second
	errorSnippetLimit = 400

	systemPrompt = `You are an expert podcast script writer. Your job is to transform written content into engaging spoken-word scripts.

Key requirements:
- Write for EARS, not eyes - no bullet points, lists, or visual formatting
- Use a conversational, natural speaking style
- Be informative and credible - speak with authority
- Use smooth transitions between ideas
- Include natural pauses and breathing room in the narrative
- Make complex topics accessible without dumbing them down

Your scripts should sound like a knowledgeable friend explaining something interesting over coffee.`

	userPromptTemplate = `Create a podcast-style audio script based on the following content.

TARGET DURATION: %d minutes (approximately %d words)%s

CONTENT TO TRANSFORM:
%s

INSTRUCTIONS:
1. Craft a natural, conversational script that flows smoothly when read aloud
2. Target approximately %d words (for %d minutes of audio)
3. Open with a brief hook to engage the listener
4. Present information in a logical, easy-to-follow narrative
5. Use natural speech patterns - contractions, rhetorical questions, etc.
6. Close with a satisfying conclusion or key takeaway
7. NO bullet points, lists, or "wall of text" - just natural spoken narrative

Write ONLY the script - no meta-commentary, stage directions, or labels.`
)

// Role represents the sender role for a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Client implements script.Writer by calling an OpenAI-compatible AI Proxy.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature *float32
	maxTokens   *int
}

// New creates a new AI Proxy script writer.
func New(cfg config.AIProxySettings) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: optionalFloat32(cfg.Temperature),
		maxTokens:   optionalInt(cfg.MaxTokens),
	}
}

// Generate sends a chat completion request asking the model to turn the
// content into a spoken-word script of roughly the requested duration.
func (c *Client) Generate(ctx context.Context, req script.Request) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("content is empty")
	}

	reqBody := c.buildRequestBody(req)

	u, err := url.JoinPath(c.baseURL, endpointChatCompletions)
	if err != nil {
		return "", fmt.Errorf("join url: %w", err)
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set(headerContentType, common.ContentTypeJSON)
	if strings.TrimSpace(c.apiKey) != "" {
		httpReq.Header.Set(headerAuthorization, authSchemeBearer+" "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("http do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("aiproxy status %d: %s", resp.StatusCode, truncate(string(respBytes), errorSnippetLimit))
	}

	var comp chatCompletionResponse
	if err := json.Unmarshal(respBytes, &comp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(comp.Choices) == 0 || strings.TrimSpace(comp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(comp.Choices[0].Message.Content), nil
}

func (c *Client) buildRequestBody(req script.Request) chatCompletionRequest {
	targetWords := req.TargetMinutes * common.WordsPerMinute

	contextSection := ""
	if strings.TrimSpace(req.ContextInstruction) != "" {
		contextSection = "\nSPECIAL FOCUS: " + req.ContextInstruction
	}

	user := fmt.Sprintf(userPromptTemplate,
		req.TargetMinutes, targetWords, contextSection, req.Content, targetWords, req.TargetMinutes)

	out := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: user},
		},
		Stream: false,
	}
	if c.temperature != nil {
		out.Temperature = c.temperature
	}
	if c.maxTokens != nil {
		out.MaxTokens = c.maxTokens
	}
	return out
}

func optionalFloat32(v float32) *float32 {
	if v == 0 {
		return nil
	}
	return &v
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// OpenAI-compatible Chat Completions request/response types

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   *chatCompletionUsage   `json:"usage,omitempty"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      responseMsg `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type responseMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
