package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fama-labs/searchcore/internal/store"
)

// ingestRecord is one line of an ingest JSONL file.
type ingestRecord struct {
	ID            string            `json:"id"`
	DocumentID    string            `json:"document_id"`
	SequenceIndex int               `json:"sequence_index"`
	RawText       string            `json:"raw_text"`
	Metadata      map[string]string `json:"metadata"`
	EmbeddingRef  string            `json:"embedding_ref"`
}

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: "Ingest chunks from a JSONL file",
		Long: `Ingest chunks from a JSON Lines file, one chunk object per line:

  {"id":"c1","document_id":"listing-9","sequence_index":0,
   "raw_text":"Casa com piscina...","metadata":{"bairro":"centro"}}

Each chunk's normalized text is derived and persisted atomically with
the raw text. A chunk that fails normalization is reported and skipped;
it never aborts the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, path string) error {
	app, cleanup, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open ingest file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ingested, failed, line int
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec ingestRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "line %d: invalid JSON: %v\n", line, err)
			continue
		}
		chunk := &store.Chunk{
			ID:            rec.ID,
			DocumentID:    rec.DocumentID,
			SequenceIndex: rec.SequenceIndex,
			RawText:       rec.RawText,
			Metadata:      rec.Metadata,
			EmbeddingRef:  rec.EmbeddingRef,
		}
		if err := app.synchronizer.OnChunkWritten(ctx, chunk); err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "line %d: chunk %s: %v\n", line, rec.ID, err)
			continue
		}
		ingested++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read ingest file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunks (%d failed)\n", ingested, failed)
	return nil
}
