/**
 * Embedding Client for ReadingOrder Worker
 *
 * Generates VoyageAI voyage-3 embeddings (1024 dimensions) for segment
 * texts feeding the optional Qdrant similarity index.
 */

package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// EmbeddingClient handles VoyageAI embedding generation
type EmbeddingClient struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// VoyageEmbeddingRequest represents a batch request to the VoyageAI API
type VoyageEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// VoyageEmbeddingResponse represents the response from the VoyageAI API
type VoyageEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

const (
	voyageModel         = "voyage-3"
	voyageDimensions    = 1024
	voyageMaxBatchSize  = 100
	voyageMaxInputChars = 16000
)

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(apiKey string) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("VoyageAI API key is required")
	}

	return &EmbeddingClient{
		apiKey:  apiKey,
		baseURL: "https://api.voyageai.com/v1/embeddings",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// GenerateEmbeddings generates one 1024-dimensional embedding per input
// text, batching at the VoyageAI API limit of 100 texts per request.
// Result order matches input order.
func (e *EmbeddingClient) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += voyageMaxBatchSize {
		end := i + voyageMaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batchEmbeddings, err := e.generateBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings for texts %d-%d: %w", i, end-1, err)
		}
		allEmbeddings = append(allEmbeddings, batchEmbeddings...)
	}

	return allEmbeddings, nil
}

// generateBatch makes one API call for up to 100 texts.
func (e *EmbeddingClient) generateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	// Truncate over-long texts; VoyageAI enforces token limits.
	truncated := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > voyageMaxInputChars {
			log.Printf("Warning: Text %d too long (%d chars), truncating to %d chars", i, len(text), voyageMaxInputChars)
			truncated[i] = text[:voyageMaxInputChars]
		} else {
			truncated[i] = text
		}
	}

	reqBody := VoyageEmbeddingRequest{
		Input: truncated,
		Model: voyageModel,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	startTime := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VoyageAI API returned status %d: %s", resp.StatusCode, string(body))
	}

	var voyageResp VoyageEmbeddingResponse
	if err := json.Unmarshal(body, &voyageResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(voyageResp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(voyageResp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range voyageResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		if len(data.Embedding) != voyageDimensions {
			return nil, fmt.Errorf("unexpected embedding dimensions for text %d: got %d, expected %d",
				data.Index, len(data.Embedding), voyageDimensions)
		}
		embeddings[data.Index] = data.Embedding
	}

	log.Printf("VoyageAI embeddings generated: texts=%d, tokens=%d, duration=%v",
		len(texts), voyageResp.Usage.TotalTokens, time.Since(startTime))

	return embeddings, nil
}
