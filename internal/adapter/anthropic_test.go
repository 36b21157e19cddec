package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// newMockAnthropicServer returns a server that records the last decoded
// request and answers every message call with the given text blocks.
func newMockAnthropicServer(t *testing.T, blocks []AnthropicContentBlock, lastReq *AnthropicRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key == "" {
			t.Error("x-api-key header missing")
		}
		if version := r.Header.Get("anthropic-version"); version == "" {
			t.Error("anthropic-version header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(lastReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		resp := AnthropicResponse{
			ID:         "msg-test",
			Type:       "message",
			Role:       "assistant",
			Model:      lastReq.Model,
			Content:    blocks,
			StopReason: "end_turn",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestAnthropicClient_BasicTurn(t *testing.T) {
	var lastReq AnthropicRequest
	srv := newMockAnthropicServer(t, []AnthropicContentBlock{{Type: "text", Text: "hey"}}, &lastReq)
	defer srv.Close()

	client := NewAnthropicClient("sk-ant-test", "claude-3-5-sonnet-latest", WithBaseURL(srv.URL))

	reply, err := client.GenerateResponse(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}
	if reply != "hey" {
		t.Errorf("reply = %q, want %q", reply, "hey")
	}

	history := client.Context()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1].Role != domain.RoleAssistant || history[1].Content != "hey" {
		t.Errorf("history[1] = %+v, want assistant reply", history[1])
	}

	if lastReq.MaxTokens != DefaultAnthropicMaxTokens {
		t.Errorf("max_tokens = %d, want default %d", lastReq.MaxTokens, DefaultAnthropicMaxTokens)
	}
}

func TestAnthropicClient_SystemArgumentNotTransmitted(t *testing.T) {
	var lastReq AnthropicRequest
	srv := newMockAnthropicServer(t, []AnthropicContentBlock{{Type: "text", Text: "ok"}}, &lastReq)
	defer srv.Close()

	client := NewAnthropicClient("sk-ant-test", "claude-3-5-sonnet-latest",
		WithBaseURL(srv.URL),
		WithLogger(slog.New(slog.NewTextHandler(&strings.Builder{}, nil))),
	)

	if _, err := client.GenerateResponse(context.Background(), "hi", "Be formal"); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}

	// The instruction never enters history.
	for _, m := range client.Context() {
		if m.Role == domain.RoleSystem {
			t.Errorf("system message recorded in history: %+v", m)
		}
		if strings.Contains(m.Content, "Be formal") {
			t.Errorf("system instruction folded into history: %+v", m)
		}
	}

	// And never reaches the wire.
	for _, m := range lastReq.Messages {
		if strings.Contains(m.Content, "Be formal") {
			t.Errorf("system instruction transmitted: %+v", m)
		}
	}
}

func TestAnthropicClient_SystemEntriesDroppedFromPayload(t *testing.T) {
	var lastReq AnthropicRequest
	srv := newMockAnthropicServer(t, []AnthropicContentBlock{{Type: "text", Text: "ok"}}, &lastReq)
	defer srv.Close()

	client := NewAnthropicClient("sk-ant-test", "claude-3-5-sonnet-latest", WithBaseURL(srv.URL))
	client.SetContext([]domain.Message{
		{Role: domain.RoleSystem, Content: "standing orders"},
		{Role: domain.RoleUser, Content: "question"},
		{Role: domain.RoleAssistant, Content: "answer"},
	})

	if _, err := client.GenerateResponse(context.Background(), "follow-up", ""); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}

	if len(lastReq.Messages) != 3 {
		t.Fatalf("payload messages = %d, want 3 (system dropped)", len(lastReq.Messages))
	}
	for _, m := range lastReq.Messages {
		if m.Content == "standing orders" {
			t.Errorf("system entry leaked into payload: %+v", m)
		}
	}
}

func TestAnthropicClient_PlaceholderForEmptyPayload(t *testing.T) {
	var lastReq AnthropicRequest
	srv := newMockAnthropicServer(t, []AnthropicContentBlock{{Type: "text", Text: "hi"}}, &lastReq)
	defer srv.Close()

	client := NewAnthropicClient("sk-ant-test", "claude-3-5-sonnet-latest", WithBaseURL(srv.URL))

	// History holds only a system message; after filtering the outbound
	// list would be empty, so the placeholder must be substituted.
	client.SetContext([]domain.Message{
		{Role: domain.RoleSystem, Content: "only standing orders"},
	})

	if _, err := client.GenerateResponse(context.Background(), "", ""); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}

	if len(lastReq.Messages) != 1 {
		t.Fatalf("payload messages = %d, want 1 placeholder", len(lastReq.Messages))
	}
	got := lastReq.Messages[0]
	if got.Role != "user" || got.Content != "Hello" {
		t.Errorf("placeholder = %+v, want {user Hello}", got)
	}
}

func TestAnthropicClient_RoleCoercion(t *testing.T) {
	var lastReq AnthropicRequest
	srv := newMockAnthropicServer(t, []AnthropicContentBlock{{Type: "text", Text: "ok"}}, &lastReq)
	defer srv.Close()

	client := NewAnthropicClient("sk-ant-test", "claude-3-5-sonnet-latest", WithBaseURL(srv.URL))

	// SetContext bypasses role validation, so a transferred transcript can
	// carry roles the history layer would reject. The payload coerces any
	// non-system, non-user role to assistant.
	client.SetContext([]domain.Message{
		{Role: domain.RoleUser, Content: "u"},
		{Role: domain.RoleAssistant, Content: "a"},
		{Role: domain.Role("tool"), Content: "t"},
	})

	if _, err := client.GenerateResponse(context.Background(), "", ""); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}

	wantRoles := []string{"user", "assistant", "assistant"}
	if len(lastReq.Messages) != len(wantRoles) {
		t.Fatalf("payload messages = %d, want %d", len(lastReq.Messages), len(wantRoles))
	}
	for i, want := range wantRoles {
		if lastReq.Messages[i].Role != want {
			t.Errorf("payload[%d].Role = %q, want %q", i, lastReq.Messages[i].Role, want)
		}
	}
}

func TestAnthropicClient_VendorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	client := NewAnthropicClient("sk-ant-bad", "claude-3-5-sonnet-latest", WithBaseURL(srv.URL))

	_, err := client.GenerateResponse(context.Background(), "hi", "")
	if err == nil {
		t.Fatal("GenerateResponse error = nil, want VendorError")
	}
	if !IsVendorError(err) {
		t.Errorf("error type = %T, want *VendorError", err)
	}
	if !strings.Contains(err.Error(), "invalid x-api-key") {
		t.Errorf("error = %q, want vendor detail", err.Error())
	}

	// The failed call records no assistant turn.
	for _, m := range client.Context() {
		if m.Role == domain.RoleAssistant {
			t.Errorf("assistant turn recorded for failed call: %+v", m)
		}
	}
}

func TestAnthropicResponse_TextConcatenatesBlocks(t *testing.T) {
	resp := AnthropicResponse{
		Content: []AnthropicContentBlock{
			{Type: "text", Text: "Hello, "},
			{Type: "tool_use"},
			{Type: "text", Text: "world"},
		},
	}
	if got := resp.Text(); got != "Hello, world" {
		t.Errorf("Text() = %q, want %q", got, "Hello, world")
	}
}
