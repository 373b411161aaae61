package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// OllamaClient generates completions against a local Ollama server. It
// is generation-only; Ollama is never used for embeddings here.
type OllamaClient struct {
	baseURL string
	model   string
	http    *http.Client
}

func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	if model == "" {
		model = "llama3"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

// Complete sends a non-streaming generate request
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.baseURL == "" {
		return "", errors.New("ollama base URL unset")
	}

	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New("ollama generate non-200: " + resp.Status)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	answer := strings.TrimSpace(out.Response)
	if answer == "" {
		return "", errors.New("empty completion")
	}
	return answer, nil
}

func (c *OllamaClient) Name() string { return "ollama" }
