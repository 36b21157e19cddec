package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// newMockOpenAIServer returns a server that records the last decoded request
// and answers every chat completion with the given reply text.
func newMockOpenAIServer(t *testing.T, reply string, lastReq *OpenAIRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
			t.Errorf("Authorization header = %q, want Bearer token", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(lastReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		resp := OpenAIResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  lastReq.Model,
			Choices: []OpenAIChoice{
				{Message: OpenAIMessage{Role: "assistant", Content: reply}, FinishReason: "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIClient_SystemCapableTurn(t *testing.T) {
	var lastReq OpenAIRequest
	srv := newMockOpenAIServer(t, "first reply", &lastReq)
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))

	reply, err := client.GenerateResponse(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}
	if reply != "first reply" {
		t.Errorf("reply = %q, want %q", reply, "first reply")
	}

	// History: [system:B, user:A, assistant:first reply]
	wantHistory := []domain.Message{
		{Role: domain.RoleSystem, Content: "B"},
		{Role: domain.RoleUser, Content: "A"},
		{Role: domain.RoleAssistant, Content: "first reply"},
	}
	gotHistory := client.Context()
	if len(gotHistory) != len(wantHistory) {
		t.Fatalf("history length = %d, want %d: %+v", len(gotHistory), len(wantHistory), gotHistory)
	}
	for i := range wantHistory {
		if gotHistory[i] != wantHistory[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, gotHistory[i], wantHistory[i])
		}
	}

	// Payload carried the full pre-reply transcript in order.
	if len(lastReq.Messages) != 2 {
		t.Fatalf("payload messages = %d, want 2", len(lastReq.Messages))
	}
	if lastReq.Messages[0].Role != "system" || lastReq.Messages[0].Content != "B" {
		t.Errorf("payload[0] = %+v, want system B", lastReq.Messages[0])
	}
	if lastReq.Messages[1].Role != "user" || lastReq.Messages[1].Content != "A" {
		t.Errorf("payload[1] = %+v, want user A", lastReq.Messages[1])
	}

	// Second turn without a system argument keeps the transcript growing.
	if _, err := client.GenerateResponse(context.Background(), "C", ""); err != nil {
		t.Fatalf("second GenerateResponse error: %v", err)
	}
	gotHistory = client.Context()
	if len(gotHistory) != 5 {
		t.Fatalf("history length after second turn = %d, want 5", len(gotHistory))
	}
	if gotHistory[3].Role != domain.RoleUser || gotHistory[3].Content != "C" {
		t.Errorf("history[3] = %+v, want user C", gotHistory[3])
	}
	if gotHistory[4].Role != domain.RoleAssistant {
		t.Errorf("history[4] = %+v, want assistant reply", gotHistory[4])
	}
}

func TestOpenAIClient_SystemUpsertIsIdempotentOnCount(t *testing.T) {
	var lastReq OpenAIRequest
	srv := newMockOpenAIServer(t, "ok", &lastReq)
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))

	if _, err := client.GenerateResponse(context.Background(), "first", "persona one"); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}
	if _, err := client.GenerateResponse(context.Background(), "second", "persona two"); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}

	systemCount := 0
	history := client.Context()
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Fatalf("system message count = %d, want 1", systemCount)
	}
	if history[0].Role != domain.RoleSystem || history[0].Content != "persona two" {
		t.Errorf("history[0] = %+v, want system with second content at position 0", history[0])
	}
}

func TestOpenAIClient_ModelWithoutSystemRole(t *testing.T) {
	var lastReq OpenAIRequest
	srv := newMockOpenAIServer(t, "terse", &lastReq)
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "o1-mini", WithBaseURL(srv.URL))

	if _, err := client.GenerateResponse(context.Background(), "Hi", "Be terse"); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}

	// No system-role entry ever enters history.
	for _, m := range client.Context() {
		if m.Role == domain.RoleSystem {
			t.Errorf("system message recorded in history for system-less model: %+v", m)
		}
	}

	// Outbound payload: a single user message carrying the folded template.
	if len(lastReq.Messages) != 1 {
		t.Fatalf("payload messages = %d, want 1", len(lastReq.Messages))
	}
	got := lastReq.Messages[0]
	if got.Role != "user" {
		t.Errorf("payload role = %q, want user", got.Role)
	}
	if !strings.HasPrefix(got.Content, "System instruction: Be terse") {
		t.Errorf("payload content = %q, want prefix %q", got.Content, "System instruction: Be terse")
	}
	if !strings.Contains(got.Content, "User query: Hi") {
		t.Errorf("payload content = %q, want folded user query", got.Content)
	}
}

func TestOpenAIClient_FiltersInjectedSystemMessages(t *testing.T) {
	var lastReq OpenAIRequest
	srv := newMockOpenAIServer(t, "ok", &lastReq)
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "o1-mini", WithBaseURL(srv.URL))

	// A transferred transcript may contain system entries; the payload for
	// a system-less model must exclude them no matter how they got there.
	client.SetContext([]domain.Message{
		{Role: domain.RoleSystem, Content: "smuggled"},
		{Role: domain.RoleUser, Content: "hi"},
	})

	if _, err := client.GenerateResponse(context.Background(), "again", ""); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}

	for _, m := range lastReq.Messages {
		if m.Role == "system" {
			t.Errorf("system entry leaked into payload: %+v", m)
		}
	}
}

func TestOpenAIClient_VendorFailure(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantSubstr string
	}{
		{
			name:       "structured error envelope",
			status:     http.StatusTooManyRequests,
			body:       `{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`,
			wantSubstr: "Rate limit reached",
		},
		{
			name:       "opaque error body",
			status:     http.StatusInternalServerError,
			body:       `upstream exploded`,
			wantSubstr: "upstream exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL))

			reply, err := client.GenerateResponse(context.Background(), "Hi", "Be nice")
			if err == nil {
				t.Fatal("GenerateResponse error = nil, want VendorError")
			}
			if !IsVendorError(err) {
				t.Errorf("error type = %T, want *VendorError", err)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tt.wantSubstr)
			}
			if reply != "" {
				t.Errorf("reply = %q, want empty on failure", reply)
			}

			// Input messages stay; no assistant turn is recorded.
			history := client.Context()
			for _, m := range history {
				if m.Role == domain.RoleAssistant {
					t.Errorf("assistant turn recorded for failed call: %+v", m)
				}
			}
			if len(history) != 2 {
				t.Errorf("history length = %d, want 2 (system + user input preserved)", len(history))
			}
		})
	}
}

func TestOpenAIClient_MaxTokensForwarded(t *testing.T) {
	var lastReq OpenAIRequest
	srv := newMockOpenAIServer(t, "ok", &lastReq)
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "gpt-4o", WithBaseURL(srv.URL), WithMaxTokens(256))

	if _, err := client.GenerateResponse(context.Background(), "hi", ""); err != nil {
		t.Fatalf("GenerateResponse error: %v", err)
	}
	if lastReq.MaxTokens == nil || *lastReq.MaxTokens != 256 {
		t.Errorf("max_tokens = %v, want 256", lastReq.MaxTokens)
	}
}

func TestOpenAIClient_SupportsSystemRole(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{model: "gpt-4o", want: true},
		{model: "gpt-4o-mini", want: true},
		{model: "o1-mini", want: false},
		{model: "o1-preview", want: false},
	}

	for _, tt := range tests {
		client := NewOpenAIClient("sk-test", tt.model)
		if got := client.SupportsSystemRole(); got != tt.want {
			t.Errorf("SupportsSystemRole(%s) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
