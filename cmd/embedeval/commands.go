package main

import (
	"github.com/spf13/cobra"
)

// =============================================================================
// Stage Commands
// =============================================================================

type chunkOptions struct {
	input  string
	output string
	mode   string
}

func buildChunkCmd(g *globalOptions) *cobra.Command {
	var opts chunkOptions
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Split the source document into chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "Document to chunk (.docx or .md; defaults to paths.document)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Chunk JSON file to write (defaults to paths.chunks)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Chunking mode: recursive or structured (defaults to chunking.mode)")
	return cmd
}

type embedOptions struct {
	backends []string
	chunks   string
}

func buildEmbedCmd(g *globalOptions) *cobra.Command {
	var opts embedOptions
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed the chunks and build one index per backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cmd, g, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.backends, "backends", nil, "Backends to build (defaults to all configured)")
	cmd.Flags().StringVar(&opts.chunks, "chunks", "", "Chunk JSON file (defaults to paths.chunks)")
	return cmd
}

type groundTruthOptions struct {
	chunks    string
	questions string
	output    string
	format    string
	provider  string
	model     string
}

func buildGroundTruthCmd(g *globalOptions) *cobra.Command {
	var opts groundTruthOptions
	cmd := &cobra.Command{
		Use:     "groundtruth",
		Aliases: []string{"gt"},
		Short:   "Label questions with their relevant chunks using an LLM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroundTruth(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.chunks, "chunks", "", "Chunk JSON file (defaults to paths.chunks)")
	cmd.Flags().StringVar(&opts.questions, "questions", "", "YAML list of questions (defaults to groundtruth.questions_path or the built-in set)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Ground truth file to write (defaults to paths.ground_truth)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: jsonl or csv (defaults to groundtruth.format)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Labelling provider: openai or anthropic")
	cmd.Flags().StringVar(&opts.model, "model", "", "Labelling model (defaults to the provider default)")
	return cmd
}

type evalOptions struct {
	backends    []string
	chunks      string
	groundTruth string
	resultsDir  string
	report      string
	topK        int
}

func buildEvalCmd(g *globalOptions) *cobra.Command {
	var opts evalOptions
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score every backend against the ground truth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, g, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.backends, "backends", nil, "Backends to evaluate (defaults to all configured)")
	cmd.Flags().StringVar(&opts.chunks, "chunks", "", "Chunk JSON file (defaults to paths.chunks)")
	cmd.Flags().StringVar(&opts.groundTruth, "ground-truth", "", "Ground truth file, .jsonl or .csv (defaults to paths.ground_truth)")
	cmd.Flags().StringVar(&opts.resultsDir, "results-dir", "", "Directory for the result CSVs (defaults to paths.results_dir)")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write the JSON report to file (defaults to paths.report)")
	cmd.Flags().IntVar(&opts.topK, "top-k", 0, "Hits retrieved per question (defaults to eval.top_k)")
	return cmd
}

type publishOptions struct {
	runID string
}

func buildPublishCmd(g *globalOptions) *cobra.Command {
	var opts publishOptions
	cmd := &cobra.Command{
		Use:   "publish [files...]",
		Short: "Upload run outputs to the artifact store",
		Long: `Upload run outputs to the configured artifact store.

Without arguments the chunk file, ground truth, result CSVs, JSON report and
metrics textfile are published when they exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, g, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Run id used as the key prefix (defaults to a new id)")
	return cmd
}

type runOptions struct {
	backends        []string
	skipGroundTruth bool
	publish         bool
	report          string
}

func buildRunCmd(g *globalOptions) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run chunk, embed, groundtruth and eval in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(cmd, g, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.backends, "backends", nil, "Backends to build and evaluate (defaults to all configured)")
	cmd.Flags().BoolVar(&opts.skipGroundTruth, "skip-groundtruth", false, "Reuse the existing ground truth file instead of labelling")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish outputs to the artifact store when done")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write the JSON report to file (defaults to paths.report)")
	return cmd
}

// =============================================================================
// Config Commands
// =============================================================================

func buildConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the configuration JSON schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSchema(cmd)
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigValidate(cmd, g)
			},
		},
	)
	return cmd
}
