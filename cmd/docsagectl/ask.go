package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/docsage/internal/domain/namespace"
	askuc "github.com/kailas-cloud/docsage/internal/usecase/ask"
)

func newAskCmd(opts *globalOpts) *cobra.Command {
	var (
		userID     string
		namespaces []string
		files      []string
		topK       int
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from ingested documents",
		Long: `Retrieve the passages closest to the question and generate an answer.

Target documents either by namespace or by file name (combined with --user
to derive the namespace the way ingest does). Without targets the model
answers with an empty context.

Examples:
  docsagectl ask --file handbook.pdf "What is the vacation policy?"
  docsagectl ask --user ann@example.com --file report.pdf --top-k 5 "Summarize Q3"
  docsagectl ask --namespace 3f2a... "Who signed the contract?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// a fresh CLI session owns nothing; the operator addresses the index directly
			q := askuc.Question{Text: strings.Join(args, " "), TopK: topK, Unscoped: true}
			for _, ns := range namespaces {
				q.Namespaces = append(q.Namespaces, namespace.Namespace(ns))
			}
			for _, f := range files {
				q.Namespaces = append(q.Namespaces, namespace.For(f, userID))
			}

			ctx := cmd.Context()
			a, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.Sessions.Create(ctx, userID)
			if err != nil {
				return err
			}
			defer func() { _ = a.Sessions.Delete(ctx, sess.ID()) }()

			ans, err := a.Ask.Ask(ctx, sess, q)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			cmd.Println(ans.Text)
			if len(ans.Sources) > 0 {
				cmd.Printf("\nSources: %s\n", strings.Join(ans.Sources, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (email) the documents were ingested for")
	cmd.Flags().StringSliceVar(&namespaces, "namespace", nil, "namespace to search (repeatable)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "ingested file name to search (repeatable)")
	cmd.Flags().IntVar(&topK, "top-k", 3, "passages to retrieve per question")
	return cmd
}
