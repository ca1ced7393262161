// Package cmd implements the skald command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skald-ai/skald/internal/app"
	"github.com/skald-ai/skald/internal/config"
)

var threadFlag string

var rootCmd = &cobra.Command{
	Use:   "skald",
	Short: "skald - ask questions grounded in your own documents",
	Long: `skald indexes documents into per-thread searchable collections and
answers questions using the most relevant excerpts as grounding context.

Point it at an OpenAI-compatible gateway (OPENAI_API_KEY, SKALD_BASE_URL)
and a PostgreSQL database with the pgvector extension (DATABASE_URL).`,
	SilenceUsage: true,
}

// Execute runs the root command. It is the only entry point main calls.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&threadFlag, "thread", "",
		"thread id scoping documents and questions (default: the shared default thread)")
}

// threadID resolves the --thread flag. An empty flag maps to a stable
// default thread so single-user setups need no bookkeeping.
func threadID() (uuid.UUID, error) {
	if threadFlag == "" {
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte("skald/default-thread")), nil
	}
	id, err := uuid.Parse(threadFlag)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --thread %q: %w", threadFlag, err)
	}
	return id, nil
}

// withApp loads configuration, builds the application, runs fn, and tears
// everything down. Interrupts cancel the context so in-flight provider
// calls stop promptly.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown", "error", closeErr)
		}
	}()

	return fn(ctx, a)
}
