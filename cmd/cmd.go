// Package cmd provides CLI commands for SupportIQ.
//
// Commands:
//   - serve: HTTP API server for the support chat frontend
//   - ingest: load a document into the knowledge base
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the SupportIQ CLI application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("SupportIQ - AI customer support with evidence-backed answers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  supportiq serve [addr]           Start HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  supportiq ingest <file> [flags]  Ingest a document into the knowledge base")
	fmt.Println("  supportiq --version              Show version information")
	fmt.Println("  supportiq --help                 Show this help")
	fmt.Println()
	fmt.Println("Ingest flags:")
	fmt.Println("  --id <document-id>     Document ID (default: file name without extension)")
	fmt.Println("  --title <title>        Source title shown in citations (default: file name)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_URL               Optional: PostgreSQL connection URL")
	fmt.Println("  SUPPORTIQ_OLLAMA_HOST      Optional: Ollama base URL (default http://localhost:11434)")
	fmt.Println("  DEBUG                      Optional: Enable debug logging")
}
