package aiinsights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/invisifeed/invisifeed/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.openai.com/v1"

// Generator produces short AI-written texts. The application only depends
// on this interface; the HTTP client below is one implementation and tests
// use a canned fake.
type Generator interface {
	GenerateThankYouNote(ctx context.Context, businessName, customerName string) (string, error)
	SummarizeFeedback(ctx context.Context, comments []string) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	APIKey     string
	APIBaseURL string
	Model      string

	HTTPClient *http.Client
}

// NewClientFromEnv creates a generator from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("AI_API_KEY", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("AI_API_BASE_URL", defaultAPIBaseURL)),
		Model:      strings.TrimSpace(env.GetEnv("AI_MODEL", "gpt-4o-mini")),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateThankYouNote drafts a one-paragraph thank-you note for an
// invoice. Failures fall back to a static note at the call site.
func (c *Client) GenerateThankYouNote(ctx context.Context, businessName, customerName string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a warm, two-sentence thank-you note from %s to their customer %s for their business. Plain text, no subject line.",
		businessName, customerName,
	)
	return c.complete(ctx, prompt)
}

// SummarizeFeedback condenses customer comments into a short summary with
// actionable themes for the dashboard.
func (c *Client) SummarizeFeedback(ctx context.Context, comments []string) (string, error) {
	if len(comments) == 0 {
		return "", errors.New("no feedback comments to summarize")
	}
	prompt := "Summarize the recurring themes in the following customer feedback in at most four bullet points:\n- " +
		strings.Join(comments, "\n- ")
	return c.complete(ctx, prompt)
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("AI_API_KEY is not configured")
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(c.APIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ai completion failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("ai completion returned no content")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// StaticGenerator returns canned texts. Used when no AI key is configured
// and in tests.
type StaticGenerator struct{}

func (StaticGenerator) GenerateThankYouNote(ctx context.Context, businessName, customerName string) (string, error) {
	return fmt.Sprintf("Thank you for your business, %s! We appreciate you choosing %s.", customerName, businessName), nil
}

func (StaticGenerator) SummarizeFeedback(ctx context.Context, comments []string) (string, error) {
	return fmt.Sprintf("Collected %d feedback comments in this period.", len(comments)), nil
}

// NewGeneratorFromEnv picks the HTTP client when configured, otherwise the
// static fallback.
func NewGeneratorFromEnv() Generator {
	c := NewClientFromEnv()
	if c.APIKey == "" {
		return StaticGenerator{}
	}
	return c
}
