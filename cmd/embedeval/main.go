// Package main provides the CLI entry point for embedeval, a batch harness that
// compares text-embedding backends on a retrieval task over one document.
//
// # Basic Usage
//
// Run every stage:
//
//	embedeval run --config embedeval.yaml
//
// Or run the stages one at a time:
//
//	embedeval chunk
//	embedeval embed --backends openai,cohere
//	embedeval groundtruth
//	embedeval eval --report results/report.json
//	embedeval publish
//
// # Environment Variables
//
// Variables are also read from a .env file in the working directory:
//
//   - EMBEDEVAL_CONFIG: Path to configuration file (default: embedeval.yaml)
//   - OPENAI_API_KEY: OpenAI key for embeddings and labelling
//   - COHERE_API_KEY: Cohere key for embeddings
//   - GEMINI_API_KEY: Gemini key for embeddings
//   - ANTHROPIC_API_KEY: Anthropic key for labelling
//   - AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY: Bedrock and S3 access
//   - OLLAMA_HOST: Ollama server for local embeddings
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JS12540/evaluating-embedding-models/internal/config"
	"github.com/JS12540/evaluating-embedding-models/internal/document/docx"
	"github.com/JS12540/evaluating-embedding-models/internal/document/markdown"
)

// Build information - populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("failed to load .env", "error", err)
	}
	registerParsers()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func registerParsers() {
	docx.Register()
	markdown.Register()
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	var opts globalOptions
	rootCmd := &cobra.Command{
		Use:   "embedeval",
		Short: "Compare embedding backends on document retrieval",
		Long: `embedeval chunks a document, embeds the chunks with several backends,
labels questions with their relevant chunks using an LLM and scores each
backend with recall, precision, MRR and nDCG.

Supported embedding backends: OpenAI, Cohere, AWS Bedrock, Gemini, Ollama
Supported labelling providers: OpenAI, Anthropic
Supported indexes: SQLite, Postgres (pgvector), in-memory`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file (or set EMBEDEVAL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		buildChunkCmd(&opts),
		buildEmbedCmd(&opts),
		buildGroundTruthCmd(&opts),
		buildEvalCmd(&opts),
		buildPublishCmd(&opts),
		buildRunCmd(&opts),
		buildConfigCmd(&opts),
	)
	return rootCmd
}
