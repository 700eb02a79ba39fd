package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docsage/internal/domain"
	dombatch "github.com/kailas-cloud/docsage/internal/domain/batch"
)

func newIngestCmd(opts *globalOpts) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Extract, segment, embed and store documents",
		Long: `Ingest PDF or plain-text files into the vector index.

Each file lands in its own namespace derived from the file name and, when
--user is set, the user id. Re-ingesting a file overwrites its vectors.

Examples:
  docsagectl ingest handbook.pdf notes.md
  docsagectl ingest --user ann@example.com report.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs := make([]domain.Document, 0, len(args))
			for _, path := range args {
				content, err := os.ReadFile(filepath.Clean(path))
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				docs = append(docs, domain.Document{
					Name:        filepath.Base(path),
					Content:     content,
					ContentType: mime.TypeByExtension(filepath.Ext(path)),
				})
			}

			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.EnsureIndex(ctx); err != nil {
				return err
			}
			sess, err := a.Sessions.Create(ctx, userID)
			if err != nil {
				return err
			}
			defer func() { _ = a.Sessions.Delete(ctx, sess.ID()) }()

			failed := 0
			for _, res := range a.Ingest.IngestBatch(ctx, sess, docs) {
				switch res.Status() {
				case dombatch.StatusOK:
					cmd.Printf("%s\tok\t%d chunks\t%s\n", res.Filename(), res.Chunks(), res.Namespace())
				case dombatch.StatusSkipped:
					cmd.Printf("%s\tskipped\t%s\n", res.Filename(), res.Namespace())
				default:
					failed++
					cmd.PrintErrf("%s\terror\t%v\n", res.Filename(), res.Err())
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(docs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (email); empty ingests anonymously")
	return cmd
}
