package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/jcamier/stock-rag/internal/ai"
	"github.com/jcamier/stock-rag/internal/chunker"
	"github.com/jcamier/stock-rag/internal/config"
	"github.com/jcamier/stock-rag/internal/filing"
	"github.com/jcamier/stock-rag/internal/pipeline"
	"github.com/jcamier/stock-rag/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("stockrag-ingest", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	if cfg.FilingURL == "" && cfg.FilingDir == "" {
		log.Fatal("either --filing-url or --filing-dir is required")
	}
	if cfg.Year <= 0 {
		log.Fatal("--year is required")
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	clientConfig, err := buildClientConfig(cfg, timeout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	embedder, err := ai.NewEmbedder(clientConfig)
	if err != nil {
		log.Fatal(err)
	}
	if embedder.Dim() == 0 {
		log.Fatal("embedding dimension must be set")
	}

	if err := st.Migrate(ctx, embedder.Dim()); err != nil {
		log.Fatal(err)
	}

	ch := chunker.New(cfg.ChunkTokens, cfg.ChunkOverlap)
	p := pipeline.New(embedder, st, ch, pipeline.NewGenerator(timeout), timeout)

	meta := pipeline.IngestMeta{
		Company:    cfg.Company,
		Year:       cfg.Year,
		FilingDate: time.Now(),
	}

	if cfg.FilingURL != "" {
		meta.URL = cfg.FilingURL
		if err := ingestURL(ctx, logger, p, cfg.FilingURL, meta, timeout); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := ingestDir(ctx, logger, p, cfg.FilingDir, meta); err != nil {
		log.Fatal(err)
	}
}

func ingestURL(ctx context.Context, logger zerolog.Logger, p *pipeline.Pipeline, url string, meta pipeline.IngestMeta, timeout time.Duration) error {
	logger.Info().Str("url", url).Str("company", meta.Company).Int("year", meta.Year).Msg("fetching filing")

	raw, err := filing.NewFetcher(timeout).Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch filing: %w", err)
	}

	return ingestText(ctx, logger, p, filing.ExtractText(raw), meta)
}

func ingestDir(ctx context.Context, logger zerolog.Logger, p *pipeline.Pipeline, dir string, meta pipeline.IngestMeta) error {
	return godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !isFilingFile(path) {
				return nil
			}

			b, err := os.ReadFile(path)
			if err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}

			m := meta
			m.URL = "file://" + path
			logger.Info().Str("path", path).Msg("ingesting filing")
			if err := ingestText(ctx, logger, p, filing.ExtractText(string(b)), m); err != nil {
				logger.Error().Err(err).Str("path", path).Msg("ingest failed")
			}
			return nil
		},
	})
}

func ingestText(ctx context.Context, logger zerolog.Logger, p *pipeline.Pipeline, text string, meta pipeline.IngestMeta) error {
	result, err := p.Ingest(ctx, text, meta)
	if err != nil {
		return err
	}
	logger.Info().
		Str("document_id", result.DocumentID).
		Int("chunks_written", result.ChunksWritten).
		Int("chunks_failed", result.ChunksFailed).
		Strs("sections", uniqueLabels(result.SectionLabels)).
		Msg("filing ingested")
	return nil
}

func isFilingFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".txt":
		return true
	}
	return false
}

func uniqueLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func buildClientConfig(cfg config.Specification, timeout time.Duration) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			GenModel:   cfg.GenModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
			Timeout:    timeout,
		}, nil
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			GenModel:   cfg.GenModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
			Timeout:    timeout,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
			Timeout:  timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
