package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ctxbridge/ctxbridge/internal/adapter"
	"github.com/ctxbridge/ctxbridge/internal/config"
	"github.com/ctxbridge/ctxbridge/internal/domain"
)

type turnCall struct {
	prompt string
	system string
}

// scriptedClient records every turn and fails the first `failures` calls.
type scriptedClient struct {
	history  *domain.History
	calls    []turnCall
	failures int
}

var _ adapter.Client = (*scriptedClient)(nil)

func newScriptedClient(failures int) *scriptedClient {
	return &scriptedClient{history: domain.NewHistory(), failures: failures}
}

func (s *scriptedClient) AddMessage(role, content string) error { return s.history.Add(role, content) }
func (s *scriptedClient) Context() []domain.Message             { return s.history.Snapshot() }
func (s *scriptedClient) SetContext(messages []domain.Message)  { s.history.Replace(messages) }
func (s *scriptedClient) ClearContext()                         { s.history.Clear() }
func (s *scriptedClient) Provider() domain.ProviderType         { return domain.ProviderOpenAI }
func (s *scriptedClient) Model() string                         { return "gpt-4o" }

func (s *scriptedClient) GenerateResponse(_ context.Context, prompt, system string) (string, error) {
	s.calls = append(s.calls, turnCall{prompt: prompt, system: system})
	if s.failures > 0 {
		s.failures--
		return "", &adapter.VendorError{Provider: domain.ProviderOpenAI, Err: errors.New("rate limited")}
	}
	s.history.Append(domain.RoleUser, prompt)
	s.history.Append(domain.RoleAssistant, "ok")
	return "ok", nil
}

func TestReplLoop_SystemSurvivesFailedFirstTurn(t *testing.T) {
	oldSystem := flagSystem
	flagSystem = "be terse"
	defer func() { flagSystem = oldSystem }()

	client := newScriptedClient(1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	in := strings.NewReader("first\nsecond\nthird\n")

	if err := replLoop(context.Background(), &config.Configuration{}, client, logger, in); err != nil {
		t.Fatalf("replLoop error: %v", err)
	}

	if len(client.calls) != 3 {
		t.Fatalf("turns = %d, want 3", len(client.calls))
	}
	if client.calls[0].system != "be terse" {
		t.Errorf("first turn system = %q, want %q", client.calls[0].system, "be terse")
	}
	if client.calls[1].system != "be terse" {
		t.Errorf("system dropped after failed first turn: got %q, want it retried", client.calls[1].system)
	}
	if client.calls[2].system != "" {
		t.Errorf("system reapplied after a successful turn: %q", client.calls[2].system)
	}
}

func TestReplLoop_QuitCommand(t *testing.T) {
	oldSystem := flagSystem
	flagSystem = ""
	defer func() { flagSystem = oldSystem }()

	client := newScriptedClient(0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	in := strings.NewReader("hello\n/quit\nnever sent\n")

	if err := replLoop(context.Background(), &config.Configuration{}, client, logger, in); err != nil {
		t.Fatalf("replLoop error: %v", err)
	}

	if len(client.calls) != 1 {
		t.Errorf("turns = %d, want 1 (input after /quit must not be sent)", len(client.calls))
	}
}
