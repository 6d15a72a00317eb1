package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flowstack-ai/flowstack/internal/ingestion"
	"github.com/flowstack-ai/flowstack/internal/retrieval"
)

var ingestDocID string

func init() {
	ingestCmd.Flags().StringVar(&ingestDocID, "id", "", "document id (defaults to a new uuid)")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Extract, chunk and index documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestDocID != "" && len(args) > 1 {
			return fmt.Errorf("--id only applies to a single file")
		}

		rt, err := buildRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		for _, path := range args {
			text, err := ingestion.ExtractText(path)
			if err != nil {
				return fmt.Errorf("extract %s: %w", path, err)
			}
			docID := ingestDocID
			if docID == "" {
				docID = uuid.New().String()
			}
			err = rt.retrieval.Ingest(cmd.Context(), retrieval.IngestRequest{
				DocumentID: docID,
				Filename:   filepath.Base(path),
				Text:       text,
			})
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			fmt.Printf("%s\t%s\n", docID, path)
		}
		return nil
	},
}
