// Package ui provides styled console output for the ctxbridge chat CLI.
package ui

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/ctxbridge/ctxbridge/internal/domain"
)

var (
	// Role badges
	userBadge      = color.New(color.BgHiCyan, color.FgBlack, color.Bold)
	assistantBadge = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	systemBadge    = color.New(color.BgYellow, color.FgBlack, color.Bold)

	// Status badges
	errorBadge = color.New(color.BgRed, color.FgWhite, color.Bold)
	infoBadge  = color.New(color.FgCyan, color.Bold)
	warnBadge  = color.New(color.FgYellow, color.Bold)

	// Text colors
	assistantText = color.New(color.FgHiWhite)
	errorText     = color.New(color.FgRed)
	infoText      = color.New(color.FgCyan)
	mutedText     = color.New(color.FgHiBlack)
	accentText    = color.New(color.FgMagenta, color.Bold)
)

// PrintReply prints an assistant reply with provider attribution and latency.
func PrintReply(provider domain.ProviderType, model, reply string, latency time.Duration) {
	assistantBadge.Printf(" %s ", provider)
	fmt.Print(" ")
	mutedText.Printf("%s · %dms\n", model, latency.Milliseconds())
	assistantText.Println(reply)
	fmt.Println()
}

// PrintVendorError prints a failed vendor call. The reply slot stays empty;
// the failure is shown as a status line, never as assistant output.
func PrintVendorError(err error) {
	errorBadge.Print(" VENDOR ERROR ")
	fmt.Print(" ")
	errorText.Println(err.Error())
	fmt.Println()
}

// PrintNotice prints an informational status line.
func PrintNotice(msg string) {
	infoBadge.Print("[ctxbridge]")
	fmt.Print(" ")
	infoText.Println(msg)
}

// PrintWarning prints a warning status line.
func PrintWarning(msg string) {
	warnBadge.Print("[warning]")
	fmt.Print(" ")
	fmt.Println(msg)
}

// PrintSwitch announces a provider switch with the transferred message count.
func PrintSwitch(from, to domain.ProviderType, messages int) {
	infoBadge.Print("[switch]")
	fmt.Print(" ")
	mutedText.Print(string(from))
	accentText.Print(" → ")
	accentText.Print(string(to))
	mutedText.Printf("  (%d messages transferred)\n", messages)
}

// PrintTranscript prints the full conversation transcript with role badges.
func PrintTranscript(messages []domain.Message) {
	if len(messages) == 0 {
		mutedText.Println("  (empty context)")
		return
	}
	for i, m := range messages {
		mutedText.Printf("%3d ", i)
		printRoleBadge(m.Role)
		fmt.Printf(" %s\n", m.Content)
	}
	fmt.Println()
}

// printRoleBadge prints a role with its color.
func printRoleBadge(role domain.Role) {
	switch role {
	case domain.RoleUser:
		userBadge.Printf(" %-9s ", role)
	case domain.RoleAssistant:
		assistantBadge.Printf(" %-9s ", role)
	case domain.RoleSystem:
		systemBadge.Printf(" %-9s ", role)
	default:
		mutedText.Printf(" %-9s ", role)
	}
}

// PrintPrompt prints the input prompt marker.
func PrintPrompt() {
	userBadge.Print(" you ")
	fmt.Print(" ")
}

// PrintStartupInfo prints session parameters at CLI startup.
func PrintStartupInfo(provider domain.ProviderType, model string, credential domain.Credential, system string) {
	fmt.Println()
	infoBadge.Print("[ctxbridge]")
	fmt.Print(" Provider: ")
	accentText.Print(string(provider))
	fmt.Print(" | Model: ")
	accentText.Println(model)

	infoBadge.Print("[ctxbridge]")
	fmt.Print(" Credential: ")
	if credential.IsSet() {
		mutedText.Println(credential.Masked())
	} else {
		errorText.Println("not set")
	}

	if system != "" {
		systemBadge.Print(" system ")
		fmt.Printf(" %s\n", system)
	}

	mutedText.Println("  commands: /context /clear /switch <provider> /quit")
	fmt.Println()
}

// PrintGoodbye prints the exit message.
func PrintGoodbye() {
	mutedText.Println("bye.")
}
