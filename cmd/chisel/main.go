package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tlefevre/chisel/internal/chunker"
	"github.com/tlefevre/chisel/internal/config"
	"github.com/tlefevre/chisel/internal/llm"
	"github.com/tlefevre/chisel/internal/llm/openai"
	"github.com/tlefevre/chisel/internal/observability"
	"github.com/tlefevre/chisel/internal/pipeline"
	"github.com/tlefevre/chisel/internal/rerank"
	"github.com/tlefevre/chisel/internal/search"
	"github.com/tlefevre/chisel/internal/store"
	"github.com/tlefevre/chisel/internal/vector"
)

func main() {
	var (
		configPath string
		jsonReport bool
	)

	rootCmd := &cobra.Command{
		Use:   "chisel",
		Short: "Incremental document chunking and two-stage retrieval",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/chisel.yaml", "Config file path")

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one incremental chunking pass over the intake directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath, jsonReport)
		},
	}
	ingestCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the pass report as JSON")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector collection from the chunk store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(configPath, jsonReport)
		},
	}
	indexCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the index report as JSON")

	var (
		query     string
		topK      int
		finalK    int
		threshold float64
	)
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Retrieve and rerank chunks for a query",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(configPath, query, topK, finalK, threshold, jsonReport)
		},
	}
	searchCmd.Flags().StringVar(&query, "query", "", "Query text")
	searchCmd.Flags().IntVar(&topK, "top-k", 0, "Stage-1 candidate count (0 = config default)")
	searchCmd.Flags().IntVar(&finalK, "final-k", 0, "Stage-2 result count (0 = config default)")
	searchCmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum rerank score (NaN-free; overrides config when set)")
	searchCmd.Flags().BoolVar(&jsonReport, "json", false, "Output results as JSON")
	_ = searchCmd.MarkFlagRequired("query")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available LLM providers:")
			fmt.Println()
			for name, url := range llm.KnownProviders {
				fmt.Printf("  %-10s %s\n", name, url)
			}
			fmt.Println("  custom     (set base_url to any OpenAI-compatible endpoint)")
			fmt.Println()
			fmt.Println("Configure in chisel.yaml or via environment:")
			fmt.Println("  CHISEL_LLM_PROVIDER=ollama")
			fmt.Println("  CHISEL_LLM_MODEL=qwen2.5:7b")
			fmt.Println("  CHISEL_EMBEDDING_MODEL=bge-m3")
		},
	}

	rootCmd.AddCommand(ingestCmd, indexCmd, searchCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config, configures logging and tracing, and builds the LLM
// provider shared by all commands.
func setup(ctx context.Context, configPath string) (*config.Config, llm.Provider, *observability.TracerProvider, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = config.Default()
	}

	initLogging(cfg.Log)

	tracing := observability.DefaultTracingConfig()
	tracing.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	if cfg.Tracing.SampleRate > 0 {
		tracing.SampleRate = cfg.Tracing.SampleRate
	}
	tp, err := observability.InitTracing(ctx, tracing)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, provider, tp, nil
}

func buildProvider(cfg *config.Config) (llm.Provider, error) {
	factory := llm.NewFactory()
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.EmbedModel, c.BaseURL), nil
	})
	for name, url := range llm.KnownProviders {
		if name == "openai" {
			continue
		}
		url := url
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			base := c.BaseURL
			if base == "" {
				base = url
			}
			return openai.New(c.APIKey, c.Model, c.EmbedModel, base), nil
		})
	}
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		return openai.New(c.APIKey, c.Model, c.EmbedModel, c.BaseURL), nil
	})

	pc := llm.DefaultProviderConfig()
	pc.Provider = cfg.LLM.Provider
	pc.APIKey = cfg.LLM.APIKey
	pc.Model = cfg.LLM.Model
	pc.BaseURL = cfg.LLM.BaseURL
	pc.EmbedModel = cfg.Embedding.Model

	provider, err := factory.Create(pc)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return provider, nil
}

func initLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func runIngest(configPath string, jsonReport bool) error {
	ctx := context.Background()
	cfg, provider, tp, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer tp.Shutdown(ctx)

	delay := time.Duration(cfg.LLM.DelaySeconds * float64(time.Second))
	orch := pipeline.New(pipeline.Config{
		IntakeDir:      cfg.Intake.Dir,
		ArchiveDir:     cfg.Intake.ArchiveDir,
		RegistryPath:   cfg.Stores.Registry,
		ParagraphsPath: cfg.Stores.Paragraphs,
		ChunksPath:     cfg.Stores.Chunks,
		Workers:        cfg.Intake.Workers,
	}, chunker.New(provider, delay))

	report, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	if jsonReport {
		data, _ := report.JSON()
		fmt.Println(string(data))
	} else {
		report.PrintSummary(os.Stdout)
	}
	return nil
}

func runIndex(configPath string, jsonReport bool) error {
	ctx := context.Background()
	cfg, provider, tp, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer tp.Shutdown(ctx)

	chunks, err := store.LoadChunks(cfg.Stores.Chunks)
	if err != nil {
		return fmt.Errorf("load chunk store: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("chunk store %s is empty, run ingest first", cfg.Stores.Chunks)
	}

	repo, err := vector.NewQdrant(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
	if err != nil {
		return err
	}
	defer repo.Close()

	indexer := vector.NewIndexer(provider, repo, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
	report, err := indexer.Rebuild(ctx, chunks)
	if err != nil {
		return err
	}

	if jsonReport {
		data, _ := report.JSON()
		fmt.Println(string(data))
	} else {
		report.PrintSummary(os.Stdout)
	}
	return nil
}

func runSearch(configPath, query string, topK, finalK int, threshold float64, jsonReport bool) error {
	ctx := context.Background()
	cfg, provider, tp, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer tp.Shutdown(ctx)

	paragraphs, err := store.LoadParagraphs(cfg.Stores.Paragraphs)
	if err != nil {
		return fmt.Errorf("load paragraph store: %w", err)
	}

	repo, err := vector.NewQdrant(ctx, cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
	if err != nil {
		return err
	}
	defer repo.Close()

	opts := search.Options{
		TopK:      cfg.Search.TopK,
		FinalK:    cfg.Search.FinalK,
		Threshold: cfg.Search.Threshold,
	}
	if topK > 0 {
		opts.TopK = topK
	}
	if finalK > 0 {
		opts.FinalK = finalK
	}
	if threshold != 0 {
		opts.Threshold = threshold
	}

	reranker := rerank.NewClient(cfg.Rerank.BaseURL, cfg.Rerank.APIKey, cfg.Rerank.Model, 0)
	engine := search.New(provider, repo, reranker, store.ParentIndex(paragraphs))

	resp, err := engine.Query(ctx, query, opts)
	if err != nil {
		return err
	}

	if jsonReport {
		data, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Println("No sufficiently relevant passage found.")
		return nil
	}
	for _, r := range resp.Results {
		fmt.Printf("[%d] %.3f (similarity %.3f) %s p.%d\n", r.Rank, r.RerankScore, r.SimilarityScore, r.Document, r.Page)
		fmt.Printf("    %s\n", r.Chunk)
		if parent, ok := resp.Parents[r.ParentID]; ok {
			fmt.Printf("    parent %s: %s\n", r.ParentID, parent)
		}
	}
	return nil
}
