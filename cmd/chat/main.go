// Package main is the interactive ctxbridge chat CLI.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ctxbridge/ctxbridge/internal/adapter"
	"github.com/ctxbridge/ctxbridge/internal/config"
	"github.com/ctxbridge/ctxbridge/internal/domain"
	"github.com/ctxbridge/ctxbridge/internal/security"
	"github.com/ctxbridge/ctxbridge/internal/ui"
)

var (
	flagProvider string
	flagModel    string
	flagSystem   string
	flagConfig   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ctxbridge-chat",
		Short: "Interactive chat with a provider-portable conversation context",
		Long: `ctxbridge-chat runs an interactive conversation against one vendor and
lets you carry the transcript to another mid-conversation with /switch.`,
		RunE: runChat,
	}

	rootCmd.Flags().StringVarP(&flagProvider, "provider", "p", "", "provider to chat with (openai, anthropic)")
	rootCmd.Flags().StringVarP(&flagModel, "model", "m", "", "model identifier override")
	rootCmd.Flags().StringVarP(&flagSystem, "system", "s", "", "standing system instruction for the assistant")
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "path to config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfiguration()
	if err != nil {
		return err
	}

	// CLI logs go to stderr so they never interleave with chat output.
	logger := slog.New(security.NewRedactedHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))
	slog.SetDefault(logger)

	provider, err := pickProvider(cfg, flagProvider)
	if err != nil {
		return err
	}
	if flagModel != "" {
		provider.Model = flagModel
	}

	client, err := newClient(cfg, provider, logger)
	if err != nil {
		return err
	}

	ui.PrintBanner()
	ui.PrintStartupInfo(provider.Type, provider.Model, provider.APIKey, flagSystem)

	return replLoop(cmd.Context(), cfg, client, logger, os.Stdin)
}

// replLoop reads prompts and slash commands until EOF or /quit.
func replLoop(ctx context.Context, cfg *config.Configuration, client adapter.Client, logger *slog.Logger, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	pendingSystem := flagSystem

	for {
		ui.PrintPrompt()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			var quit bool
			client, quit = runCommand(cfg, client, logger, line)
			if quit {
				break
			}
			continue
		}

		start := time.Now()
		reply, err := client.GenerateResponse(ctx, line, pendingSystem)
		if err != nil {
			// Keep the instruction pending so a failed first turn on a
			// fold-path model does not silently drop it.
			ui.PrintVendorError(err)
			continue
		}
		pendingSystem = "" // applied until the first successful turn
		ui.PrintReply(client.Provider(), client.Model(), reply, time.Since(start))
	}

	ui.PrintGoodbye()
	return scanner.Err()
}

// runCommand executes a slash command. It returns the (possibly replaced)
// client and whether the REPL should exit.
func runCommand(cfg *config.Configuration, client adapter.Client, logger *slog.Logger, line string) (adapter.Client, bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return client, true

	case "/context":
		ui.PrintTranscript(client.Context())

	case "/clear":
		client.ClearContext()
		ui.PrintNotice("context cleared")

	case "/switch":
		if len(fields) < 2 {
			ui.PrintWarning("usage: /switch <provider>")
			return client, false
		}
		next, err := switchProvider(cfg, client, logger, fields[1])
		if err != nil {
			ui.PrintWarning(err.Error())
			return client, false
		}
		return next, false

	default:
		ui.PrintWarning("unknown command " + fields[0])
	}
	return client, false
}

// switchProvider builds a client for the named provider and moves the
// current transcript into it by value. The old client is cleared and
// discarded; the transcripts never alias each other.
func switchProvider(cfg *config.Configuration, current adapter.Client, logger *slog.Logger, name string) (adapter.Client, error) {
	provider, err := pickProvider(cfg, name)
	if err != nil {
		return nil, err
	}
	if provider.Type == current.Provider() {
		return nil, fmt.Errorf("already chatting with %s", name)
	}

	next, err := newClient(cfg, provider, logger)
	if err != nil {
		return nil, err
	}

	snapshot := current.Context()
	next.SetContext(snapshot)
	current.ClearContext()

	ui.PrintSwitch(current.Provider(), next.Provider(), len(snapshot))
	return next, nil
}

// newClient constructs an adapter client with the configured chat defaults.
func newClient(cfg *config.Configuration, provider domain.Provider, logger *slog.Logger) (adapter.Client, error) {
	opts := []adapter.Option{adapter.WithLogger(logger)}
	if cfg.Chat.MaxTokens > 0 {
		opts = append(opts, adapter.WithMaxTokens(cfg.Chat.MaxTokens))
	}
	if cfg.Chat.TimeoutSeconds > 0 {
		opts = append(opts, adapter.WithTimeout(time.Duration(cfg.Chat.TimeoutSeconds)*time.Second))
	}
	return adapter.New(provider, opts...)
}

// pickProvider resolves a provider name (or the config default) to its entry.
func pickProvider(cfg *config.Configuration, name string) (domain.Provider, error) {
	if name == "" {
		return cfg.DefaultProvider()
	}
	pt, ok := domain.ParseProviderType(name)
	if !ok {
		return domain.Provider{}, fmt.Errorf("unknown provider %q", name)
	}
	provider, ok := cfg.Provider(pt)
	if !ok {
		return domain.Provider{}, fmt.Errorf("provider %q is not configured or not enabled", name)
	}
	return provider, nil
}

// loadConfiguration loads config from the flag path or the default search paths.
func loadConfiguration() (*config.Configuration, error) {
	if flagConfig != "" {
		return config.GetConfigWithPath(flagConfig)
	}
	return config.GetConfig()
}
