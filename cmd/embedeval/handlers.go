package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JS12540/evaluating-embedding-models/internal/artifacts"
	"github.com/JS12540/evaluating-embedding-models/internal/backends"
	"github.com/JS12540/evaluating-embedding-models/internal/chunker"
	"github.com/JS12540/evaluating-embedding-models/internal/config"
	"github.com/JS12540/evaluating-embedding-models/internal/document"
	"github.com/JS12540/evaluating-embedding-models/internal/eval"
	"github.com/JS12540/evaluating-embedding-models/internal/groundtruth"
	"github.com/JS12540/evaluating-embedding-models/pkg/models"
)

// =============================================================================
// Stage Handlers
// =============================================================================

func runChunk(cmd *cobra.Command, g *globalOptions, opts chunkOptions) error {
	return withRuntime(cmd, g, func(ctx context.Context, rt *runtime) error {
		_, err := chunkDocument(ctx, rt, opts, cmd.OutOrStdout())
		return err
	})
}

func runEmbed(cmd *cobra.Command, g *globalOptions, opts embedOptions) error {
	return withRuntime(cmd, g, func(ctx context.Context, rt *runtime) error {
		chunks, err := models.LoadChunks(firstNonEmpty(opts.chunks, rt.cfg.Paths.Chunks))
		if err != nil {
			return err
		}
		all, err := openBackends(ctx, rt, opts.backends)
		if err != nil {
			return err
		}
		defer closeBackends(rt, all)
		return buildIndexes(ctx, rt, all, chunks, cmd.OutOrStdout())
	})
}

func runGroundTruth(cmd *cobra.Command, g *globalOptions, opts groundTruthOptions) error {
	return withRuntime(cmd, g, func(ctx context.Context, rt *runtime) error {
		chunks, err := models.LoadChunks(firstNonEmpty(opts.chunks, rt.cfg.Paths.Chunks))
		if err != nil {
			return err
		}
		_, err = labelGroundTruth(ctx, rt, chunks, opts, cmd.OutOrStdout())
		return err
	})
}

func runEval(cmd *cobra.Command, g *globalOptions, opts evalOptions) error {
	return withRuntime(cmd, g, func(ctx context.Context, rt *runtime) error {
		all, err := openBackends(ctx, rt, opts.backends)
		if err != nil {
			return err
		}
		defer closeBackends(rt, all)
		_, err = evaluate(ctx, rt, all, opts, cmd.OutOrStdout())
		return err
	})
}

func runPublish(cmd *cobra.Command, g *globalOptions, opts publishOptions, files []string) error {
	return withRuntime(cmd, g, func(ctx context.Context, rt *runtime) error {
		if opts.runID != "" {
			rt.runID = opts.runID
		}
		if len(files) == 0 {
			files = defaultPublishFiles(rt, rt.cfg.Paths.Report)
		}
		return publish(ctx, rt, files, cmd.OutOrStdout())
	})
}

// runAll executes every stage in one process so the in-memory index survives
// between embed and eval.
func runAll(cmd *cobra.Command, g *globalOptions, opts runOptions) error {
	return withRuntime(cmd, g, func(ctx context.Context, rt *runtime) error {
		out := cmd.OutOrStdout()
		chunks, err := chunkDocument(ctx, rt, chunkOptions{}, out)
		if err != nil {
			return err
		}

		all, err := openBackends(ctx, rt, opts.backends)
		if err != nil {
			return err
		}
		defer closeBackends(rt, all)
		if err := buildIndexes(ctx, rt, all, chunks, out); err != nil {
			return err
		}

		gtPath := rt.cfg.Paths.GroundTruth
		if opts.skipGroundTruth {
			rt.log.Info("reusing existing ground truth", "path", gtPath)
		} else if gtPath, err = labelGroundTruth(ctx, rt, chunks, groundTruthOptions{}, out); err != nil {
			return err
		}

		reportPath := firstNonEmpty(opts.report, rt.cfg.Paths.Report)
		if _, err := evaluate(ctx, rt, all, evalOptions{groundTruth: gtPath, report: reportPath}, out); err != nil {
			return err
		}

		if !opts.publish {
			return nil
		}
		files := defaultPublishFiles(rt, reportPath)
		if gtPath != rt.cfg.Paths.GroundTruth {
			files = append(files, gtPath)
		}
		return publish(ctx, rt, files, out)
	})
}

// =============================================================================
// Stages
// =============================================================================

func chunkDocument(ctx context.Context, rt *runtime, opts chunkOptions, out io.Writer) ([]models.Chunk, error) {
	input := firstNonEmpty(opts.input, rt.cfg.Paths.Document)
	output := firstNonEmpty(opts.output, rt.cfg.Paths.Chunks)

	doc, err := document.ParseFile(ctx, input)
	if err != nil {
		return nil, err
	}

	cc := rt.cfg.Chunking
	chunkCfg := chunker.Config{
		Mode:          firstNonEmpty(opts.mode, cc.Mode),
		ChunkSize:     cc.ChunkSize,
		ChunkOverlap:  cc.ChunkOverlap,
		TOCPath:       cc.TOCPath,
		StartPrefix:   cc.StartMarker.Prefix,
		StartContains: cc.StartMarker.Contains,
		IDPrefix:      cc.IDPrefix,
	}
	c, err := chunker.New(chunkCfg, rt.log)
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	if structured, ok := c.(*chunker.StructuredChunker); ok {
		result, err := structured.ChunkWithReport(ctx, doc)
		if err != nil {
			return nil, err
		}
		for _, target := range result.Missing {
			rt.log.Warn("section heading not found", "section", target.Number, "heading", target.Heading)
		}
		for _, target := range result.Empty {
			rt.log.Warn("section has no content", "section", target.Number, "heading", target.Heading)
		}
		chunks = result.Chunks
	} else if chunks, err = c.Chunk(ctx, doc); err != nil {
		return nil, err
	}

	if err := models.WriteChunks(output, chunks); err != nil {
		return nil, err
	}
	rt.metrics.ChunksEmitted(c.Name(), len(chunks))
	rt.log.Info("document chunked",
		"document", doc.Name,
		"mode", c.Name(),
		"paragraphs", len(doc.Paragraphs),
		"chunks", len(chunks),
		"output", output,
	)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHUNK\tSECTION\tWORDS\tPARENT\tHEADING")
	for _, ch := range chunks {
		parent := "-"
		if ch.Metadata.ParentSectionNumber != nil {
			parent = *ch.Metadata.ParentSectionNumber
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", ch.ID(), ch.Metadata.SectionNumber, ch.Metadata.WordCount, parent, ch.Metadata.Heading)
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Wrote %d chunks to %s\n", len(chunks), output)
	return chunks, nil
}

func openBackends(ctx context.Context, rt *runtime, names []string) ([]*backends.Backend, error) {
	selected, err := rt.cfg.SelectBackends(names)
	if err != nil {
		return nil, err
	}
	return backends.Open(ctx, rt.cfg, selected, rt.deps())
}

func closeBackends(rt *runtime, all []*backends.Backend) {
	if err := backends.CloseAll(all); err != nil {
		rt.log.Warn("failed to close indexes", "error", err)
	}
}

func buildIndexes(ctx context.Context, rt *runtime, all []*backends.Backend, chunks []models.Chunk, out io.Writer) error {
	stats, err := backends.BuildAll(ctx, all, chunks, rt.log)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tMODEL\tCHUNKS\tDIMENSION\tDURATION")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", s.Backend, s.Model, s.Chunks, s.Dimension, s.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}

func labelGroundTruth(ctx context.Context, rt *runtime, chunks []models.Chunk, opts groundTruthOptions, out io.Writer) (string, error) {
	gtCfg := groundTruthConfig(rt.cfg.GroundTruth, opts.provider, opts.model)

	questions := groundtruth.DefaultQuestions()
	if path := firstNonEmpty(opts.questions, gtCfg.QuestionsPath); path != "" {
		loaded, err := groundtruth.LoadQuestions(path)
		if err != nil {
			return "", err
		}
		questions = loaded
	}

	labeler, err := groundtruth.NewLabeler(gtCfg)
	if err != nil {
		return "", err
	}
	generator := groundtruth.NewGenerator(labeler, groundtruth.GeneratorOptions{
		Timeout:     gtCfg.Timeout,
		MaxAttempts: gtCfg.MaxAttempts,
		Metrics:     rt.metrics,
		Tracer:      rt.tracer,
		Logger:      rt.log,
	})
	result, err := generator.Generate(ctx, chunks, questions)
	if err != nil {
		return "", err
	}

	format := strings.ToLower(firstNonEmpty(opts.format, gtCfg.Format))
	output := opts.output
	if output == "" {
		output = rt.cfg.Paths.GroundTruth
		if groundtruth.FormatForPath(output) != format {
			output = strings.TrimSuffix(output, filepath.Ext(output)) + "." + format
		}
	}
	if err := groundtruth.Write(output, format, result.Records); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "Wrote %d ground truth records to %s (%s, %d attempt(s))\n",
		len(result.Records), output, labeler.Name(), result.Attempts)
	return output, nil
}

// groundTruthConfig applies flag overrides. Switching provider drops the
// model and key defaulted for the configured one.
func groundTruthConfig(cfg config.GroundTruthConfig, provider, model string) config.GroundTruthConfig {
	if provider != "" && provider != cfg.Provider {
		cfg.Provider = provider
		cfg.Model = ""
		switch provider {
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if model != "" {
		cfg.Model = model
	}
	return cfg
}

func evaluate(ctx context.Context, rt *runtime, all []*backends.Backend, opts evalOptions, out io.Writer) (*eval.Report, error) {
	chunks, err := models.LoadChunks(firstNonEmpty(opts.chunks, rt.cfg.Paths.Chunks))
	if err != nil {
		return nil, err
	}
	chunks = models.NonEmptyChunks(chunks)
	if err := backends.VerifyAll(ctx, all, models.ChunkIDs(chunks)); err != nil {
		return nil, fmt.Errorf("index does not match chunks, re-run embed: %w", err)
	}

	gtPath := firstNonEmpty(opts.groundTruth, rt.cfg.Paths.GroundTruth)
	records, skipped, err := groundtruth.Load(gtPath)
	if err != nil {
		return nil, err
	}
	rt.log.Info("ground truth loaded", "path", gtPath, "records", len(records), "skipped", len(skipped))

	targets := make([]eval.Backend, len(all))
	for i, b := range all {
		targets[i] = eval.Backend{Name: b.Name(), Embedder: b.Provider, Index: b.Index}
	}
	topK := rt.cfg.Eval.TopK
	if opts.topK > 0 {
		topK = opts.topK
	}
	evaluator := eval.NewEvaluator(targets, models.ChunkLookup(chunks), &eval.Options{
		TopK:        topK,
		Concurrency: rt.cfg.Eval.Concurrency,
		Metrics:     rt.metrics,
		Tracer:      rt.tracer,
		Logger:      rt.log,
	})
	report, err := evaluator.Evaluate(ctx, records, skipped)
	if err != nil {
		return nil, err
	}

	resultsDir := firstNonEmpty(opts.resultsDir, rt.cfg.Paths.ResultsDir)
	written, err := eval.WriteFiles(resultsDir, firstNonEmpty(opts.report, rt.cfg.Paths.Report), report)
	if err != nil {
		return nil, err
	}

	if err := eval.PrintSummary(out, report.Summaries); err != nil {
		return nil, err
	}
	for _, path := range written {
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return report, nil
}

func publish(ctx context.Context, rt *runtime, files []string, out io.Writer) error {
	if len(files) == 0 {
		return errors.New("nothing to publish")
	}
	store, err := artifacts.New(ctx, rt.cfg.Artifacts)
	if err != nil {
		return err
	}
	defer store.Close()

	published, err := artifacts.Publish(ctx, store, rt.runID, files)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tURI")
	for _, p := range published {
		fmt.Fprintf(w, "%s\t%s\n", p.Path, p.URI)
	}
	rt.log.Info("artifacts published", "run_id", rt.runID, "files", len(published), "backend", rt.cfg.Artifacts.Backend)
	return w.Flush()
}

// defaultPublishFiles lists the standard outputs that exist on disk.
func defaultPublishFiles(rt *runtime, reportPath string) []string {
	p := rt.cfg.Paths
	candidates := []string{
		p.Chunks,
		p.GroundTruth,
		filepath.Join(p.ResultsDir, eval.SummaryFile),
		filepath.Join(p.ResultsDir, eval.DetailedFile),
		reportPath,
		rt.cfg.Observability.MetricsPath,
	}
	var files []string
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			rt.log.Debug("skipping missing artifact", "path", path)
			continue
		}
		files = append(files, path)
	}
	return files
}

// =============================================================================
// Config Handlers
// =============================================================================

func runConfigSchema(cmd *cobra.Command) error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
	return err
}

func runConfigValidate(cmd *cobra.Command, g *globalOptions) error {
	cfg, path, err := config.Resolve(g.configPath)
	if err != nil {
		return err
	}
	if path == "" {
		path = "built-in defaults"
	}
	names := make([]string, len(cfg.Backends))
	for i, b := range cfg.Backends {
		names[i] = b.Name
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config OK: %s\n", path)
	fmt.Fprintf(out, "Backends: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(out, "Index: %s\n", cfg.Index.Type)
	fmt.Fprintf(out, "Ground truth: %s (%s)\n", cfg.GroundTruth.Provider, cfg.GroundTruth.Model)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
