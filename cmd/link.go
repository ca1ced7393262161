package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skald-ai/skald/internal/app"
)

var linkCmd = &cobra.Command{
	Use:   "link <url>",
	Short: "Fetch a web page and index its readable text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runLink(ctx, a, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(ctx context.Context, a *app.App, url string) error {
	tid, err := threadID()
	if err != nil {
		return err
	}

	res, err := a.System.IndexLink(ctx, tid, url)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %s (%d chunks)\n", url, res.ChunksCreated)
	return nil
}
