package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/novatech/supportiq/internal/ingest"
)

// ingestArgs holds the parsed ingest command arguments.
type ingestArgs struct {
	filePath   string
	documentID string
	title      string
}

// parseIngestArgs parses "supportiq ingest <file> [--id x] [--title y]".
// Document ID defaults to the file name without extension, title to the
// file name.
func parseIngestArgs(args []string) (ingestArgs, error) {
	flags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	id := flags.String("id", "", "Document ID")
	title := flags.String("title", "", "Source title shown in citations")

	var filePath string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		filePath = args[0]
		args = args[1:]
	}

	if err := flags.Parse(args); err != nil {
		return ingestArgs{}, fmt.Errorf("parsing ingest flags: %w", err)
	}

	if filePath == "" && flags.NArg() > 0 {
		filePath = flags.Arg(0)
	}
	if filePath == "" {
		return ingestArgs{}, fmt.Errorf("usage: supportiq ingest <file> [--id document-id] [--title title]")
	}

	base := filepath.Base(filePath)
	out := ingestArgs{
		filePath:   filePath,
		documentID: *id,
		title:      *title,
	}
	if out.documentID == "" {
		out.documentID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if out.title == "" {
		out.title = base
	}
	return out, nil
}

// runIngest loads a text or markdown document into the knowledge base.
// Pages are separated by form feed characters; a file without them is
// treated as a single page.
func runIngest() error {
	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	parsed, err := parseIngestArgs(args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	st, err := buildStack(ctx, logger)
	if err != nil {
		return err
	}
	defer st.cleanup()

	content, err := os.ReadFile(parsed.filePath)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	chunker := ingest.NewChunker(st.cfg.RAG.ChunkSize, st.cfg.RAG.ChunkOverlap)
	ingestor := ingest.New(chunker, st.embedder, st.index, logger.With("component", "ingestor"))

	pages := ingest.PagesFromText(string(content))
	result, err := ingestor.Ingest(ctx, parsed.documentID, parsed.title, pages)
	if err != nil {
		return fmt.Errorf("ingesting document: %w", err)
	}

	fmt.Printf("Ingested %q as document %q: %d pages, %d chunks\n",
		parsed.filePath, parsed.documentID, result.PageCount, result.ChunkCount)
	return nil
}
