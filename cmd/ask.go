package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skald-ai/skald/internal/app"
	"github.com/skald-ai/skald/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question answered from the thread's documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return runAsk(ctx, a, strings.Join(args, " "))
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, a *app.App, question string) error {
	tid, err := threadID()
	if err != nil {
		return err
	}

	reply, err := a.System.GenerateResponse(ctx, tid, question)
	if err != nil {
		if errors.Is(err, chat.ErrGeneration) {
			fmt.Println(chat.Apology())
			return err
		}
		return err
	}

	fmt.Println(reply.Answer)
	if sources := reply.Sources(); len(sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(sources, ", "))
	}
	if !reply.Grounded {
		fmt.Println("\n(no indexed documents matched this question)")
	}
	return nil
}
