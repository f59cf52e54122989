package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/relevo-cloud/relevo/internal/domain"
)

// openaiChatResponse mirrors the OpenAI-compatible chat completion response.
type openaiChatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func writeChatResponse(w http.ResponseWriter, content string) {
	resp := openaiChatResponse{ID: "chatcmpl-1", Object: "chat.completion", Model: "test-model"}
	resp.Choices = append(resp.Choices, struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}{
		Index:        0,
		FinishReason: "stop",
	})
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = content
	resp.Usage.TotalTokens = 30

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestChatCompleter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected roles: %v", req.Messages)
		}

		writeChatResponse(w, "Try Terraform for this.")
	}))
	defer server.Close()

	c := NewChatCompleter(&ChatConfig{
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Model:    "test-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})

	reply, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "You recommend tools."},
		{Role: domain.RoleUser, Content: "What should I use for IaC?"},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "Try Terraform for this." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestChatCompleter_EmptyMessages(t *testing.T) {
	c := NewChatCompleter(&ChatConfig{
		APIKey:   "test-key",
		BaseURL:  "http://unused",
		Model:    "test-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})

	_, err := c.Complete(context.Background(), nil)
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
}

func TestChatCompleter_APIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "down"}}`))
	}))
	defer server.Close()

	c := NewChatCompleter(&ChatConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		Model:         "test-model",
		Provider:      "test",
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
		Logger:        zap.NewNop(),
	})

	_, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	})
	if !errors.Is(err, domain.ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
}

func TestChatCompleter_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(openaiChatResponse{ID: "chatcmpl-1", Object: "chat.completion"})
	}))
	defer server.Close()

	c := NewChatCompleter(&ChatConfig{
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Model:    "test-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})

	_, err := c.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	})
	if !errors.Is(err, domain.ErrCompletionFailed) {
		t.Fatalf("expected ErrCompletionFailed, got %v", err)
	}
}
