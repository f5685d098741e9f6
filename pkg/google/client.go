package google

import (
	"context"
	"net/http"
	"strings"

	generativelanguage "cloud.google.com/go/ai/generativelanguage/apiv1beta"
	"cloud.google.com/go/ai/generativelanguage/apiv1beta/generativelanguagepb"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/proto"

	"github.com/harrisonrobin/estima/pkg/llm"
	"github.com/harrisonrobin/estima/pkg/retry"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash-exp"

// ErrEmptyReply is returned when Gemini answers without any text part.
var ErrEmptyReply = eris.New("gemini returned no text")

// GeminiClient implements llm.Provider over the Generative Language REST API.
type GeminiClient struct {
	client *generativelanguage.GenerativeClient
	model  string
}

var _ llm.Provider = (*GeminiClient)(nil)

// NewClient creates a Gemini client. An empty apiKey leaves authentication
// to opts.
func NewClient(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*GeminiClient, error) {
	if model == "" {
		model = DefaultModel
	}
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}

	client, err := generativelanguage.NewGenerativeRESTClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "unable to create Gemini client")
	}
	// a single attempt per call, retries belong to retry.Policy
	client.CallOptions.GenerateContent = nil

	return &GeminiClient{client: client, model: model}, nil
}

// Name returns the engine name.
func (c *GeminiClient) Name() string { return "gemini" }

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Complete sends p as a single generateContent call.
func (c *GeminiClient) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	req := &generativelanguagepb.GenerateContentRequest{
		Model:    modelName(c.model),
		Contents: []*generativelanguagepb.Content{textContent("user", p.User)},
		GenerationConfig: &generativelanguagepb.GenerationConfig{
			Temperature:     proto.Float32(float32(p.Temperature)),
			MaxOutputTokens: proto.Int32(int32(p.MaxTokens)),
		},
	}
	if p.System != "" {
		req.SystemInstruction = textContent("", p.System)
	}

	resp, err := c.client.GenerateContent(ctx, req)
	if err != nil {
		if rateLimited(err) {
			return "", retry.RateLimited(err)
		}
		return "", eris.Wrap(err, "generateContent")
	}
	return replyText(resp)
}

func textContent(role, text string) *generativelanguagepb.Content {
	return &generativelanguagepb.Content{
		Role:  role,
		Parts: []*generativelanguagepb.Part{{Data: &generativelanguagepb.Part_Text{Text: text}}},
	}
}

// rateLimited reports a quota rejection, whichever transport produced it.
func rateLimited(err error) bool {
	ae, ok := apierror.FromError(err)
	if !ok {
		return false
	}
	if ae.HTTPCode() == http.StatusTooManyRequests {
		return true
	}
	return ae.GRPCStatus().Code() == codes.ResourceExhausted
}

func modelName(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

func replyText(resp *generativelanguagepb.GenerateContentResponse) (string, error) {
	for _, cand := range resp.GetCandidates() {
		var b strings.Builder
		for _, part := range cand.GetContent().GetParts() {
			b.WriteString(part.GetText())
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text, nil
		}
	}
	return "", ErrEmptyReply
}
