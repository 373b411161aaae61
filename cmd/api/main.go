package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/jcamier/stock-rag/internal/ai"
	"github.com/jcamier/stock-rag/internal/chunker"
	"github.com/jcamier/stock-rag/internal/config"
	"github.com/jcamier/stock-rag/internal/pipeline"
	"github.com/jcamier/stock-rag/internal/store"
	"github.com/jcamier/stock-rag/pkg/models"
)

type queryResponse struct {
	Query            string          `json:"query"`
	Answer           string          `json:"answer"`
	Sources          []models.Source `json:"sources"`
	Confidence       float64         `json:"confidence"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	Year             int             `json:"year"`
}

func main() {
	fs := pflag.NewFlagSet("stockrag-api", pflag.ExitOnError)

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
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Msg("starting stockrag api")

	clientConfig, err := buildClientConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	embedder, err := ai.NewEmbedder(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}

	// Schema dimension is fixed at startup from the embedder
	dim := embedder.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", clientConfig.EmbedModel).Msg("embedding client initialized")

	if err := st.Migrate(ctx, dim); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	gen := pipeline.NewGenerator(clientConfig.Timeout, generationTiers(cfg, clientConfig, embedder)...)
	ch := chunker.New(cfg.ChunkTokens, cfg.ChunkOverlap)
	p := pipeline.New(embedder, st, ch, gen, clientConfig.Timeout)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status, database := "healthy", "connected"
		code := http.StatusOK
		if err := st.Ping(ctx); err != nil {
			status, database = "unhealthy", "disconnected"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"status":    status,
			"database":  database,
			"timestamp": time.Now().UTC(),
		})
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats, err := st.Stats(ctx)
		if err != nil {
			http.Error(w, "failed to collect stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"documents_processed":  stats.DocumentsProcessed,
			"total_chunks":         stats.TotalChunks,
			"total_queries":        stats.TotalQueries,
			"avg_response_time_ms": stats.AvgResponseTimeMs,
			"queries_this_session": p.QueriesServed(),
			"last_updated":         time.Now().UTC(),
		})
	})

	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		start := time.Now()

		var req models.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		result, err := p.Answer(r.Context(), req)
		if err != nil {
			var verr *pipeline.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusBadRequest)
				return
			}
			// never leak which collaborator failed
			hlog.FromRequest(r).Error().Err(err).Msg("query failed")
			http.Error(w, "query processing failed", http.StatusInternalServerError)
			return
		}

		elapsed := time.Since(start).Milliseconds()
		if err := st.RecordQuery(r.Context(), result.Query, result.Year, int(elapsed), result.Confidence, len(result.Sources)); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("failed to record query history")
		}

		confidence := result.Confidence
		if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
			confidence = 0
		}
		writeJSON(w, http.StatusOK, queryResponse{
			Query:            result.Query,
			Answer:           result.Answer,
			Sources:          result.Sources,
			Confidence:       confidence,
			ProcessingTimeMs: elapsed,
			Year:             result.Year,
		})

		hlog.FromRequest(r).Info().Str("path", "/query").Int("year", result.Year).Float64("confidence", confidence).Dur("dur", time.Since(start)).Msg("served")
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

// buildClientConfig maps the loaded specification onto an AI client
// configuration.
func buildClientConfig(cfg config.Specification) (*ai.ClientConfig, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
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

// generationTiers assembles the ordered answer-generation strategies:
// the local Ollama server when configured, then the remote provider if
// it can generate. The extractive fallback lives inside the generator.
func generationTiers(cfg config.Specification, cc *ai.ClientConfig, embedder ai.Embedder) []ai.Completer {
	var tiers []ai.Completer
	if cfg.OllamaURL != "" {
		tiers = append(tiers, ai.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cc.Timeout))
	}
	if c, ok := embedder.(ai.Completer); ok {
		tiers = append(tiers, c)
	}
	return tiers
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
