package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/harrisonrobin/estima/pkg/llm"
	"github.com/harrisonrobin/estima/pkg/retry"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
)

// ErrEmptyReply is returned when the response carries no choice.
var ErrEmptyReply = eris.New("openai returned no choices")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai: status %d: %s", e.Status, e.Message)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client implements llm.Provider. The *http.Client is expected to carry the
// bearer credential (see auth.NewClient).
type Client struct {
	http    *http.Client
	baseURL string
	model   string
}

var _ llm.Provider = (*Client)(nil)

// NewClient creates a chat-completions client.
func NewClient(httpClient *http.Client, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

// Name returns the engine name.
func (c *Client) Name() string { return "gpt" }

// Complete sends p as one chat completion.
func (c *Client) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	in := chatRequest{Model: c.model, Temperature: p.Temperature, MaxTokens: p.MaxTokens}
	if p.System != "" {
		in.Messages = append(in.Messages, message{Role: "system", Content: p.System})
	}
	in.Messages = append(in.Messages, message{Role: "user", Content: p.User})

	body, err := json.Marshal(in)
	if err != nil {
		return "", eris.Wrap(err, "encoding chat request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "building chat request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "chat completion")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "reading chat response")
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			apiErr.Message = eb.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", retry.RateLimited(apiErr)
		}
		return "", apiErr
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", eris.Wrap(err, "decoding chat response")
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
