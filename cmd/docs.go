package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/skald-ai/skald/internal/app"
	"github.com/skald-ai/skald/internal/retrieval"
	"github.com/skald-ai/skald/internal/vectorstore"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the thread's indexed documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(runDocsList)
	},
}

var (
	searchSourceFlag string
	searchLimitFlag  int
)

var docsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the indexed excerpts that would ground an answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runDocsSearch(ctx, a, strings.Join(args, " "))
		})
	},
}

var docsRmCmd = &cobra.Command{
	Use:   "rm <file-name>",
	Short: "Remove a document and its searchable content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runDocsRm(ctx, a, args[0])
		})
	},
}

func init() {
	docsSearchCmd.Flags().StringVar(&searchSourceFlag, "source", "",
		"restrict matches to one content origin: document or link")
	docsSearchCmd.Flags().IntVar(&searchLimitFlag, "limit", 5,
		"maximum number of excerpts to show")
	docsCmd.AddCommand(docsListCmd, docsSearchCmd, docsRmCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsList(ctx context.Context, a *app.App) error {
	tid, err := threadID()
	if err != nil {
		return err
	}

	docs, err := a.System.Documents(ctx, tid)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("no documents indexed in this thread")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tTYPE\tSTATUS\tCHUNKS\tINDEXED")
	for _, d := range docs {
		chunks, err := a.Vectors.CountByFilter(ctx, map[string]string{
			vectorstore.PayloadThreadID:   tid.String(),
			vectorstore.PayloadDocumentID: d.ID.String(),
		})
		if err != nil {
			return fmt.Errorf("count chunks for %q: %w", d.FileName, err)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%s\n",
			d.FileName, d.FileSize, d.ContentType, d.Status, chunks,
			d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// contextProvider maps a --source value onto the closed provider set. An
// empty value means unrestricted retrieval.
func contextProvider(e *retrieval.Engine, source string) (retrieval.Provider, error) {
	switch source {
	case "document":
		return retrieval.NewDocumentProvider(e), nil
	case "link":
		return retrieval.NewLinkProvider(e), nil
	default:
		return nil, fmt.Errorf("unknown --source %q (want document or link)", source)
	}
}

func runDocsSearch(ctx context.Context, a *app.App, query string) error {
	tid, err := threadID()
	if err != nil {
		return err
	}

	var res *retrieval.Result
	if searchSourceFlag == "" {
		res, err = a.Engine.Retrieve(ctx, query, tid, retrieval.WithTopK(searchLimitFlag))
	} else {
		var p retrieval.Provider
		if p, err = contextProvider(a.Engine, searchSourceFlag); err != nil {
			return err
		}
		res, err = p.Context(ctx, query, tid, searchLimitFlag)
	}
	if err != nil {
		return err
	}
	if len(res.Hits) == 0 {
		fmt.Println("no indexed content matched")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIMILARITY\tEXCERPT")
	for _, h := range res.Hits {
		fmt.Fprintf(w, "%s\t%.3f\t%s\n", h.FileName, h.Score, excerpt(h.Text, 60))
	}
	return w.Flush()
}

// excerpt trims text to at most n runes on a single line.
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func runDocsRm(ctx context.Context, a *app.App, name string) error {
	tid, err := threadID()
	if err != nil {
		return err
	}

	res, err := a.System.DeleteDocumentsByFilename(ctx, tid, name)
	if err != nil {
		return err
	}
	if res.DocumentsDeleted == 0 && res.VectorsDeleted == 0 {
		fmt.Printf("no document named %q in this thread\n", name)
		return nil
	}
	fmt.Printf("removed %q (%d document(s), %d chunk(s))\n",
		name, res.DocumentsDeleted, res.VectorsDeleted)
	return nil
}
