// Package ui provides styled console output for the ctxbridge chat CLI.
package ui

import (
	"fmt"

	"github.com/fatih/color"
)

// PrintBanner displays the startup banner.
func PrintBanner() {
	cyan := color.New(color.FgCyan, color.Bold)
	magenta := color.New(color.FgMagenta, color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Println()
	cyan.Println("╔══════════════════════════════════════════╗")
	cyan.Print("║  ")
	magenta.Print("CTXBRIDGE")
	fmt.Print("  one context, many providers")
	cyan.Println("  ║")
	cyan.Println("╚══════════════════════════════════════════╝")
	dim.Println("  conversation-portable chat client")
	fmt.Println()
}
