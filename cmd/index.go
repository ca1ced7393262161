package cmd

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skald-ai/skald/internal/app"
	"github.com/skald-ai/skald/internal/ingest"
)

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index documents into the thread",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runIndex(ctx, a, args)
		})
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, a *app.App, paths []string) error {
	tid, err := threadID()
	if err != nil {
		return err
	}

	files := make([]ingest.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p) // #nosec G304 -- paths come from the invoking user
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, ingest.File{
			Name:        filepath.Base(p),
			ContentType: contentTypeFor(p),
			Data:        data,
		})
	}

	res, err := a.System.IndexDocuments(ctx, tid, files)
	if err != nil {
		return err
	}

	fmt.Printf("indexed %d document(s), %d chunk(s)\n", res.DocumentsIndexed, res.ChunksCreated)
	return nil
}

// textExtensions pins the types the pipeline handles natively; the system
// mime table varies across hosts and misses .md on several distros.
var textExtensions = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".html": "text/html",
	".htm":  "text/html",
}

// contentTypeFor resolves the content type from the extension, defaulting to
// plain text so extensionless notes still index.
func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := textExtensions[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "text/plain"
}
