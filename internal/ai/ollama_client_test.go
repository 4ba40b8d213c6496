package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestOllamaGenerateSuccess(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := ipv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"local answer"},"done":true}`)
	}))

	c := NewOllamaClient(srv.URL, 5*time.Second, 1, time.Millisecond, time.Millisecond)
	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model:       "llama3.2",
		Messages:    []Message{{Role: "user", Content: "hi"}},
		MaxTokens:   256,
		Temperature: 0.2,
		TopP:        0.9,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content() != "local answer" {
		t.Errorf("content = %q", resp.Content())
	}
	if gotReq.Stream {
		t.Error("stream should be false")
	}
	if gotReq.Options["num_predict"] != float64(256) {
		t.Errorf("num_predict = %v", gotReq.Options["num_predict"])
	}
	if gotReq.Options["top_p"] != 0.9 {
		t.Errorf("top_p = %v", gotReq.Options["top_p"])
	}
}

func TestOllamaGenerateUnreachable(t *testing.T) {
	c := NewOllamaClient("http://127.0.0.1:1", 500*time.Millisecond, 1, time.Millisecond, time.Millisecond)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	var unreach *UnreachableError
	if !errors.As(err, &unreach) {
		t.Fatalf("err = %T %v, want *UnreachableError", err, err)
	}
}

func TestOllamaGenerateModelMissing(t *testing.T) {
	srv := ipv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))

	c := NewOllamaClient(srv.URL, 5*time.Second, 1, time.Millisecond, time.Millisecond)
	_, err := c.Generate(context.Background(), GenerateRequest{Model: "nope", Messages: []Message{{Role: "user", Content: "x"}}})
	var nf *ModelNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %T %v, want *ModelNotFoundError", err, err)
	}
}

func TestNewRuntimeSelection(t *testing.T) {
	rt, err := NewRuntime(ProviderOllama, RuntimeOptions{OllamaHost: "http://127.0.0.1:11434"})
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if _, ok := rt.(*OllamaClient); !ok {
		t.Errorf("runtime = %T, want *OllamaClient", rt)
	}
	rt, err = NewRuntime("", RuntimeOptions{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewRuntime default: %v", err)
	}
	if _, ok := rt.(*Client); !ok {
		t.Errorf("runtime = %T, want *Client", rt)
	}
	if _, err := NewRuntime("mystery", RuntimeOptions{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
