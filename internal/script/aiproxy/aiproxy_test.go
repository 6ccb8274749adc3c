package aiproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/script"
)

func TestGenerate_SendsPromptAndParsesScript(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "  Welcome to the show.  "}},
			},
		})
	}))
	defer srv.Close()

	c := New(config.AIProxySettings{
		BaseURL:     srv.URL,
		APIKey:      "k",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
	})

	out, err := c.Generate(context.Background(), script.Request{
		Content:            "the article text",
		ContextInstruction: "focus on costs",
		TargetMinutes:      5,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "Welcome to the show." {
		t.Fatalf("script = %q", out)
	}
	if gotAuth != "Bearer k" {
		t.Fatalf("auth = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(msgs))
	}
	user, _ := msgs[1].(map[string]any)
	content, _ := user["content"].(string)
	// 5 minutes at 150 wpm
	if !strings.Contains(content, "approximately 750 words") {
		t.Fatalf("word target missing from prompt: %q", content)
	}
	if !strings.Contains(content, "SPECIAL FOCUS: focus on costs") {
		t.Fatalf("context instruction missing from prompt: %q", content)
	}
	if !strings.Contains(content, "the article text") {
		t.Fatalf("content missing from prompt")
	}
}

func TestGenerate_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(config.AIProxySettings{BaseURL: srv.URL, Model: "m"})
	_, err := c.Generate(context.Background(), script.Request{Content: "x", TargetMinutes: 2})
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestGenerate_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := New(config.AIProxySettings{BaseURL: srv.URL, Model: "m"})
	_, err := c.Generate(context.Background(), script.Request{Content: "x", TargetMinutes: 2})
	if err == nil || !strings.Contains(err.Error(), "empty completion") {
		t.Fatalf("expected empty completion error, got %v", err)
	}
}

func TestGenerate_RejectsEmptyContent(t *testing.T) {
	c := New(config.AIProxySettings{BaseURL: "http://localhost:0", Model: "m"})
	if _, err := c.Generate(context.Background(), script.Request{Content: "  ", TargetMinutes: 2}); err == nil {
		t.Fatalf("expected error for empty content")
	}
}
