// Package notion is the record store adapter: it pages through database
// queries, decodes page properties into model values, flattens page content
// to plain text and applies property mutations.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harrisonrobin/estima/pkg/model"
	"github.com/harrisonrobin/estima/pkg/retry"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
	// PageSize is the largest page the API hands out.
	PageSize = 100
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("notion: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the Notion REST API. The *http.Client handed to NewClient
// carries authentication (see pkg/auth).
type Client struct {
	http    *http.Client
	baseURL string
	retry   *retry.Policy
	logger  *zap.Logger
}

// NewClient creates a new Notion client. policy may be nil for single-shot calls.
func NewClient(httpClient *http.Client, baseURL string, policy *retry.Policy, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = &retry.Policy{MaxAttempts: 1, Logger: logger}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   policy,
		logger:  logger,
	}
}

type listResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

type page struct {
	ID         string                     `json:"id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// Query returns every page of a database, following cursors until exhausted.
func (c *Client) Query(ctx context.Context, databaseID string, filter *model.Filter) ([]model.Record, error) {
	var records []model.Record
	var cursor string
	for {
		body := map[string]any{"page_size": PageSize}
		if f := filterJSON(filter); f != nil {
			body["filter"] = f
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", nil, body, &resp); err != nil {
			return nil, eris.Wrapf(err, "query database %s", databaseID)
		}
		for i, raw := range resp.Results {
			var p page
			if err := json.Unmarshal(raw, &p); err != nil {
				c.logger.Warn("undecodable page skipped",
					zap.String("database_id", databaseID),
					zap.Int("index", i),
					zap.Error(err),
				)
				continue
			}
			records = append(records, c.toRecord(p))
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return records, nil
		}
		cursor = *resp.NextCursor
	}
}

// Page fetches a single page by id.
func (c *Client) Page(ctx context.Context, pageID string) (model.Record, error) {
	var p page
	if err := c.do(ctx, http.MethodGet, "/pages/"+pageID, nil, nil, &p); err != nil {
		return model.Record{}, eris.Wrapf(err, "get page %s", pageID)
	}
	return c.toRecord(p), nil
}

// Update applies patch to a page in a single request.
func (c *Client) Update(ctx context.Context, pageID string, patch model.Patch) error {
	props := make(map[string]any, len(patch))
	for name, v := range patch {
		enc, err := encodeValue(v)
		if err != nil {
			return eris.Wrapf(err, "encode property %q", name)
		}
		props[name] = enc
	}
	body := map[string]any{"properties": props}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, nil, body, nil); err != nil {
		return eris.Wrapf(err, "update page %s", pageID)
	}
	return nil
}

// Schema returns the property kinds declared by a database, keyed by name.
func (c *Client) Schema(ctx context.Context, databaseID string) (map[string]string, error) {
	var db struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := c.do(ctx, http.MethodGet, "/databases/"+databaseID, nil, nil, &db); err != nil {
		return nil, eris.Wrapf(err, "get database %s", databaseID)
	}
	schema := make(map[string]string, len(db.Properties))
	for name, p := range db.Properties {
		schema[name] = p.Type
	}
	return schema, nil
}

// EnsureProperty adds a property to a database unless one with that name
// already exists.
func (c *Client) EnsureProperty(ctx context.Context, databaseID, name string, kind model.Kind) error {
	schema, err := c.Schema(ctx, databaseID)
	if err != nil {
		return err
	}
	if _, ok := schema[name]; ok {
		return nil
	}

	var config map[string]any
	switch kind {
	case model.KindText:
		config = map[string]any{"rich_text": map[string]any{}}
	case model.KindNumber:
		config = map[string]any{"number": map[string]any{}}
	default:
		return eris.Errorf("cannot create %s property %q", kind, name)
	}

	body := map[string]any{"properties": map[string]any{name: config}}
	if err := c.do(ctx, http.MethodPatch, "/databases/"+databaseID, nil, body, nil); err != nil {
		return eris.Wrapf(err, "add property %q to database %s", name, databaseID)
	}
	c.logger.Info("property added", zap.String("database_id", databaseID), zap.String("property", name))
	return nil
}

func (c *Client) toRecord(p page) model.Record {
	rec := model.Record{ID: p.ID, Properties: make(map[string]model.Value, len(p.Properties))}
	for name, raw := range p.Properties {
		v, err := DecodeProperty(raw)
		if err != nil {
			c.logger.Debug("property not decodable",
				zap.String("page_id", p.ID),
				zap.String("property", name),
				zap.Error(err),
			)
			v = model.Absent(model.KindUnknown)
		}
		rec.Properties[name] = v
	}
	return rec
}

func filterJSON(f *model.Filter) map[string]any {
	if f == nil || f.EmptyRelation == "" {
		return nil
	}
	return map[string]any{
		"property": f.EmptyRelation,
		"relation": map[string]any{"is_empty": true},
	}
}

// do sends one logical request under the client's retry policy. Errors
// returned from an attempt are left unwrapped so the policy can classify them.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return c.retry.Do(ctx, method+" "+path, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{Status: resp.StatusCode}
			if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
				apiErr.Message = string(data)
			}
			apiErr.Status = resp.StatusCode
			if resp.StatusCode == http.StatusTooManyRequests {
				return retry.RateLimited(apiErr)
			}
			return apiErr
		}

		if out == nil {
			return nil
		}
		return json.Unmarshal(data, out)
	})
}
