package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewGeminiClient("test-key", "test-model", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.baseURL = srv.URL
	return c
}

func TestGemini_GenerateText(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/test-model:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Role != "user" {
			t.Errorf("unexpected contents: %+v", req.Contents)
		}
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content: Content{Role: "model", Parts: []Part{{Text: "Nice easy week ahead."}}},
			}},
		})
	})

	resp, err := c.Generate(context.Background(), &GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: "plan my week"}}}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := resp.Text(); got != "Nice easy week ahead." {
		t.Errorf("text = %q", got)
	}
	if calls := resp.FunctionCalls(); len(calls) != 0 {
		t.Errorf("unexpected function calls: %v", calls)
	}
}

func TestGemini_GenerateFunctionCall(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || len(req.Tools[0].FunctionDeclarations) != 1 {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content: Content{Role: "model", Parts: []Part{{
					FunctionCall: &FunctionCall{
						Name: "create_workout",
						Args: map[string]any{"title": "Intervals"},
					},
				}}},
			}},
		})
	})

	resp, err := c.Generate(context.Background(), &GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: "add intervals tomorrow"}}}},
		Tools: []FunctionDeclaration{{
			Name:       "create_workout",
			Parameters: map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	calls := resp.FunctionCalls()
	if len(calls) != 1 || calls[0].Name != "create_workout" {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Args["title"] != "Intervals" {
		t.Errorf("args = %v", calls[0].Args)
	}
}

func TestGemini_EmptyCandidates(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	})

	resp, err := c.Generate(context.Background(), &GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: "hi"}}}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(resp.Parts) != 0 {
		t.Errorf("expected no parts, got %+v", resp.Parts)
	}
}

func TestGemini_APIError(t *testing.T) {
	c := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	})

	_, err := c.Generate(context.Background(), &GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: "hi"}}}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status in message", err)
	}
}
