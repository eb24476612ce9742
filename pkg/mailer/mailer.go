package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
)

// Config defines configuration options for the transactional email client.
type Config struct {
	BaseURL string
	APIKey  string
	Logger  zerolog.Logger
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Message is one templated transactional email.
type Message struct {
	TemplateID string            `json:"template_id"`
	To         string            `json:"to"`
	Variables  map[string]string `json:"variables"`
}

// Client sends templated transactional emails over HTTP.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// New builds a transactional email client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mailer base url is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mailer api key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		http:      httpClient,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    cfg.Logger.With().Str("component", "mailer").Logger(),
	}, nil
}

// RenderFeedbackHTML converts markdown-formatted feedback into sanitized HTML
// suitable for an email body.
func (c *Client) RenderFeedbackHTML(feedbackMarkdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(feedbackMarkdown), &buf); err != nil {
		return "", fmt.Errorf("render feedback markdown: %w", err)
	}
	return c.sanitizer.Sanitize(buf.String()), nil
}

// SendEssayFeedback renders the feedback and dispatches the templated email.
func (c *Client) SendEssayFeedback(ctx context.Context, templateID, toEmail, studentName, essayTypeLabel, feedbackMarkdown string) error {
	html, err := c.RenderFeedbackHTML(feedbackMarkdown)
	if err != nil {
		return err
	}

	message := Message{
		TemplateID: templateID,
		To:         toEmail,
		Variables: map[string]string{
			"student_name":  studentName,
			"essay_type":    essayTypeLabel,
			"feedback_html": html,
		},
	}

	return c.send(ctx, message)
}

func (c *Client) send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email provider returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info().Str("template_id", message.TemplateID).Msg("transactional email dispatched")
	return nil
}
