package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// blockPrefixes lists the block kinds read as content and the marker each
// line gets.
var blockPrefixes = map[string]string{
	"paragraph":          "",
	"heading_1":          "# ",
	"heading_2":          "## ",
	"heading_3":          "### ",
	"bulleted_list_item": "- ",
	"numbered_list_item": "- ",
	"to_do":              "[ ] ",
	"callout":            "",
	"quote":              "",
}

type blockText struct {
	RichText []richText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

// Blocks returns the raw top-level blocks of a page.
func (c *Client) Blocks(ctx context.Context, pageID string) ([]json.RawMessage, error) {
	var blocks []json.RawMessage
	var cursor string
	for {
		q := url.Values{"page_size": {strconv.Itoa(PageSize)}}
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}

		var resp listResponse
		if err := c.do(ctx, http.MethodGet, "/blocks/"+pageID+"/children", q, nil, &resp); err != nil {
			return nil, eris.Wrapf(err, "list blocks of %s", pageID)
		}
		blocks = append(blocks, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return blocks, nil
		}
		cursor = *resp.NextCursor
	}
}

// Content flattens the readable blocks of a page into plain text, one line
// per block, with light markdown-style markers.
func (c *Client) Content(ctx context.Context, pageID string) (string, error) {
	blocks, err := c.Blocks(ctx, pageID)
	if err != nil {
		return "", err
	}
	return RenderBlocks(blocks), nil
}

// RenderBlocks turns raw blocks into text. Blocks of other kinds, blocks
// that fail to decode and blocks without text are dropped.
func RenderBlocks(blocks []json.RawMessage) string {
	lines := make([]string, 0, len(blocks))
	for _, raw := range blocks {
		var head struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(raw, &head) != nil {
			continue
		}
		prefix, ok := blockPrefixes[head.Type]
		if !ok {
			continue
		}

		var body map[string]json.RawMessage
		if json.Unmarshal(raw, &body) != nil {
			continue
		}
		var bt blockText
		if json.Unmarshal(body[head.Type], &bt) != nil {
			continue
		}
		text := plain(bt.RichText)
		if text == "" {
			continue
		}
		if head.Type == "to_do" && bt.Checked {
			prefix = "[x] "
		}
		lines = append(lines, prefix+text)
	}
	return strings.Join(lines, "\n")
}
