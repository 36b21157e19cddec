// Package handler provides HTTP handlers for the conversation gateway.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ctxbridge/ctxbridge/internal/adapter"
	"github.com/ctxbridge/ctxbridge/internal/config"
	"github.com/ctxbridge/ctxbridge/internal/domain"
)

// ChatHandler exposes conversation sessions over HTTP. Each session owns one
// adapter client (and thus one history); the handler only routes between
// sessions and never touches vendor payloads itself.
type ChatHandler struct {
	store  *SessionStore
	cfg    *config.Configuration
	logger *slog.Logger
}

// ChatHandlerOption is a functional option for configuring ChatHandler.
type ChatHandlerOption func(*ChatHandler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ChatHandlerOption {
	return func(h *ChatHandler) {
		h.logger = logger
	}
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(store *SessionStore, cfg *config.Configuration, opts ...ChatHandlerOption) *ChatHandler {
	h := &ChatHandler{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	// SessionID names the conversation; a new session is created on first use.
	SessionID string `json:"session_id" binding:"required"`

	// Prompt is the user message for this turn. Optional.
	Prompt string `json:"prompt"`

	// System is a standing instruction for the assistant. Optional.
	System string `json:"system"`

	// Provider selects the vendor for a NEW session; existing sessions keep
	// the provider they were created with. Optional (config default).
	Provider string `json:"provider"`
}

// ChatResponse is the body of a successful POST /v1/chat.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Reply     string `json:"reply"`
}

// ContextResponse carries a session transcript snapshot.
type ContextResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []domain.Message `json:"messages"`
}

// SetContextRequest is the body of PUT /v1/sessions/:id/context.
type SetContextRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// TransferRequest is the body of POST /v1/sessions/:id/transfer.
type TransferRequest struct {
	// TargetSessionID receives an independent copy of the source transcript.
	TargetSessionID string `json:"target_session_id" binding:"required"`

	// Provider selects the vendor when the target session is new. Optional.
	Provider string `json:"provider"`
}

// HandleChat handles POST /v1/chat: one conversation turn on a session.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" && req.System == "" {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "at least one of prompt or system is required")
		return
	}

	session, created, err := h.resolveSession(req.SessionID, req.Provider)
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	if !created && req.Provider != "" && string(session.Provider()) != req.Provider {
		h.sendError(c, http.StatusConflict, "session_conflict",
			"session already bound to provider "+string(session.Provider()))
		return
	}

	c.Set("session_id", session.ID)

	reply, err := session.Generate(c.Request.Context(), req.Prompt, req.System)
	if err != nil {
		var vendorErr *adapter.VendorError
		if errors.As(err, &vendorErr) {
			h.logger.Error("vendor call failed",
				slog.String("session_id", session.ID),
				slog.String("provider", string(vendorErr.Provider)),
				slog.String("error", err.Error()),
			)
			h.sendError(c, http.StatusBadGateway, "vendor_error", err.Error())
			return
		}
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	h.logger.Info("turn completed",
		slog.String("session_id", session.ID),
		slog.String("provider", string(session.Provider())),
		slog.String("model", session.Model()),
	)

	c.JSON(http.StatusOK, ChatResponse{
		SessionID: session.ID,
		Provider:  string(session.Provider()),
		Model:     session.Model(),
		Reply:     reply,
	})
}

// HandleGetContext handles GET /v1/sessions/:id/context.
func (h *ChatHandler) HandleGetContext(c *gin.Context) {
	session, ok := h.store.Get(c.Param("id"))
	if !ok {
		h.sendError(c, http.StatusNotFound, "session_not_found", "no such session")
		return
	}

	c.JSON(http.StatusOK, ContextResponse{
		SessionID: session.ID,
		Messages:  session.Context(),
	})
}

// HandleSetContext handles PUT /v1/sessions/:id/context. Roles are validated
// at the boundary so only well-formed transcripts enter a session.
func (h *ChatHandler) HandleSetContext(c *gin.Context) {
	var req SetContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request body: "+err.Error())
		return
	}

	messages := make([]domain.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role, err := domain.ParseRole(m.Role)
		if err != nil {
			h.sendError(c, http.StatusBadRequest, "invalid_role", err.Error())
			return
		}
		messages = append(messages, domain.Message{Role: role, Content: m.Content})
	}

	session, _, err := h.resolveSession(c.Param("id"), c.Query("provider"))
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	session.SetContext(messages)

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"messages":   len(messages),
	})
}

// HandleClearContext handles DELETE /v1/sessions/:id/context.
func (h *ChatHandler) HandleClearContext(c *gin.Context) {
	session, ok := h.store.Get(c.Param("id"))
	if !ok {
		h.sendError(c, http.StatusNotFound, "session_not_found", "no such session")
		return
	}
	session.Clear()
	c.Status(http.StatusNoContent)
}

// HandleDeleteSession handles DELETE /v1/sessions/:id.
func (h *ChatHandler) HandleDeleteSession(c *gin.Context) {
	if !h.store.Delete(c.Param("id")) {
		h.sendError(c, http.StatusNotFound, "session_not_found", "no such session")
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleTransfer handles POST /v1/sessions/:id/transfer: copies the source
// transcript into the target session by value. Later mutation of either
// session never affects the other.
func (h *ChatHandler) HandleTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request body: "+err.Error())
		return
	}

	source, ok := h.store.Get(c.Param("id"))
	if !ok {
		h.sendError(c, http.StatusNotFound, "session_not_found", "no such source session")
		return
	}

	target, _, err := h.resolveSession(req.TargetSessionID, req.Provider)
	if err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	snapshot := source.Context()
	target.SetContext(snapshot)

	h.logger.Info("context transferred",
		slog.String("source_session_id", source.ID),
		slog.String("target_session_id", target.ID),
		slog.Int("messages", len(snapshot)),
	)

	c.JSON(http.StatusOK, gin.H{
		"source_session_id": source.ID,
		"target_session_id": target.ID,
		"messages":          len(snapshot),
	})
}

// HandleProviders handles GET /v1/providers.
func (h *ChatHandler) HandleProviders(c *gin.Context) {
	providers := make([]gin.H, 0)
	for _, p := range h.cfg.EnabledProviders() {
		providers = append(providers, gin.H{
			"name":           p.Name,
			"type":           p.Type,
			"model":          p.Model,
			"credential_set": p.APIKey.IsSet(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": providers})
}

// HandleHealth handles GET /health.
func (h *ChatHandler) HandleHealth(c *gin.Context) {
	active, created, evicted := h.store.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"active_sessions":  active,
		"created_sessions": created,
		"evicted_sessions": evicted,
	})
}

// resolveSession finds or creates the named session, building a client for
// the requested provider (or the config default when empty).
func (h *ChatHandler) resolveSession(sessionID, providerName string) (*Session, bool, error) {
	return h.store.GetOrCreate(sessionID, func() (adapter.Client, error) {
		provider, err := h.pickProvider(providerName)
		if err != nil {
			return nil, err
		}

		opts := []adapter.Option{adapter.WithLogger(h.logger)}
		if h.cfg.Chat.MaxTokens > 0 {
			opts = append(opts, adapter.WithMaxTokens(h.cfg.Chat.MaxTokens))
		}
		if h.cfg.Chat.TimeoutSeconds > 0 {
			opts = append(opts, adapter.WithTimeout(time.Duration(h.cfg.Chat.TimeoutSeconds)*time.Second))
		}

		return adapter.New(provider, opts...)
	})
}

// pickProvider resolves a request's provider name against the configuration.
func (h *ChatHandler) pickProvider(name string) (domain.Provider, error) {
	if name == "" {
		return h.cfg.DefaultProvider()
	}

	pt, ok := domain.ParseProviderType(name)
	if !ok {
		return domain.Provider{}, errors.New("unknown provider " + name)
	}
	provider, ok := h.cfg.Provider(pt)
	if !ok {
		return domain.Provider{}, errors.New("provider not configured or not enabled: " + name)
	}
	return provider, nil
}

// sendError sends an error response in a uniform envelope, so clients can
// branch on the type field instead of parsing message text.
func (h *ChatHandler) sendError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    errType,
		},
	})
}
