/**
 * Reorder Client for ReadingOrder Worker
 *
 * Optional LLM-backed refinement of the geometric reading order. The
 * worker sends the page's chunk payload and receives a refined segment id
 * sequence. The service is advisory: any failure leaves the geometric
 * order in place.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/adverant/nexus/readingorder-worker/internal/layout"
)

// ReorderClient handles communication with the reorder refinement service
type ReorderClient struct {
	baseURL    string
	httpClient *http.Client
}

// ReorderResponse represents the refined order returned by the service
type ReorderResponse struct {
	Success bool   `json:"success"`
	Order   []int  `json:"order,omitempty"` // segment ids in refined reading order
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewReorderClient creates a new reorder client
func NewReorderClient(baseURL string) *ReorderClient {
	return &ReorderClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// HealthCheck verifies the reorder service is available
func (c *ReorderClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reorder service health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reorder service health check returned status %d", resp.StatusCode)
	}

	return nil
}

// RefineOrder submits a page payload and returns the refined segment id
// order. Pages with fewer than two chunks have nothing to refine and
// return nil without a request.
func (c *ReorderClient) RefineOrder(ctx context.Context, payload layout.PagePayload) ([]int, error) {
	if len(payload.Chunks) < 2 {
		return nil, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reorder payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/reorder", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create reorder request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Printf("[Reorder] Refining page %d: %d chunks", payload.PageNumber, len(payload.Chunks))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("reorder request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read reorder response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("reorder service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ReorderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse reorder response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("reorder service rejected payload: %s", result.Error)
	}

	if err := validateOrder(result.Order, payload.Chunks); err != nil {
		return nil, err
	}

	log.Printf("[Reorder] Page %d refined: %v", payload.PageNumber, result.Order)
	return result.Order, nil
}

// validateOrder checks the returned sequence is a permutation of the
// page's segment ids. A malformed order must never reach the pipeline.
func validateOrder(order []int, chunks []layout.Chunk) error {
	if len(order) != len(chunks) {
		return fmt.Errorf("refined order has %d ids for %d segments", len(order), len(chunks))
	}

	expected := make(map[int]bool, len(chunks))
	for _, c := range chunks {
		expected[c.SegmentID] = true
	}

	seen := make(map[int]bool, len(order))
	for _, id := range order {
		if !expected[id] {
			return fmt.Errorf("refined order contains unknown segment id %d", id)
		}
		if seen[id] {
			return fmt.Errorf("refined order repeats segment id %d", id)
		}
		seen[id] = true
	}

	return nil
}
