// Package workflow is the HTTP adapter for the external generation
// collaborators: intent classification, schema generation, ERD→physical
// conversion, side-question answering, and per-task evaluation. Each call
// is a JSON POST to the workflow service; internals of those workflows are
// out of scope here.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vantor/schemacraft/internal/batch"
	"github.com/vantor/schemacraft/internal/conversation"
)

// DefaultTimeout bounds one workflow round-trip.
const DefaultTimeout = 120 * time.Second

// Client talks to the workflow service. It implements
// conversation.{Classifier,Generator,Converter,Responder} and
// batch.Evaluator.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for the workflow service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Classify implements conversation.Classifier.
func (c *Client) Classify(ctx context.Context, req conversation.ClassifyRequest) (*conversation.ClassifiedIntent, error) {
	var out conversation.ClassifiedIntent
	if err := c.post(ctx, "/classify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Generate implements conversation.Generator.
func (c *Client) Generate(ctx context.Context, req conversation.GenerateRequest) (*conversation.GenerateResult, error) {
	var out conversation.GenerateResult
	if err := c.post(ctx, "/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Convert implements conversation.Converter.
func (c *Client) Convert(ctx context.Context, req conversation.ConvertRequest) (*conversation.ConvertResult, error) {
	var out conversation.ConvertResult
	if err := c.post(ctx, "/convert", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Answer implements conversation.Responder.
func (c *Client) Answer(ctx context.Context, req conversation.AnswerRequest) (string, error) {
	var out struct {
		Reply string `json:"reply"`
	}
	if err := c.post(ctx, "/answer", req, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// Evaluate implements batch.Evaluator.
func (c *Client) Evaluate(ctx context.Context, req batch.EvalRequest) (*batch.EvalResult, error) {
	var out batch.EvalResult
	if err := c.post(ctx, "/evaluate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// post sends one JSON request and decodes the JSON reply into out.
func (c *Client) post(ctx context.Context, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("workflow: marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("workflow: build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("workflow: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("workflow: %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("workflow: decode %s response: %w", endpoint, err)
	}
	return nil
}
