package engine

import (
	"encoding/json"
	"fmt"

	"github.com/mcpframe/mcp-frame-go/mcp"
	"github.com/mcpframe/mcp-frame-go/registry"
)

// normalizeToolResult shapes a handler's return value into the MCP call
// result. Pre-formatted results (content plus structuredContent or _meta)
// pass through untouched apart from _meta.links augmentation, which lets
// view wrappers emit ready-made MCP Apps responses.
func normalizeToolResult(tool *registry.Tool, result any, links []mcp.ResourceLink) (any, error) {
	if pre, ok := preformattedResult(result); ok {
		return attachLinksToMap(pre, links), nil
	}

	if ctr, ok := result.(*mcp.CallToolResult); ok && ctr != nil {
		if len(links) > 0 {
			if ctr.Meta == nil {
				ctr.Meta = make(map[string]any)
			}
			ctr.Meta["links"] = links
		}
		return ctr, nil
	}

	out := &mcp.CallToolResult{
		Content: []mcp.ContentBlock{mcp.TextContent(serializeResult(result))},
	}
	if tool.OutputSchema != nil && result != nil {
		out.StructuredContent = result
	}
	if len(links) > 0 {
		out.Meta = map[string]any{"links": links}
	}
	return out, nil
}

// preformattedResult detects the passthrough shape: a dict with a content
// list plus structuredContent or _meta.
func preformattedResult(result any) (map[string]any, bool) {
	m, ok := result.(map[string]any)
	if !ok {
		return nil, false
	}
	content, ok := m["content"].([]any)
	if !ok || content == nil {
		return nil, false
	}
	if _, hasSC := m["structuredContent"]; hasSC {
		return m, true
	}
	if _, hasMeta := m["_meta"]; hasMeta {
		return m, true
	}
	return nil, false
}

func attachLinksToMap(m map[string]any, links []mcp.ResourceLink) map[string]any {
	if len(links) == 0 {
		return m
	}
	meta, _ := m["_meta"].(map[string]any)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["links"] = links
	m["_meta"] = meta
	return m
}

// serializeResult renders a handler return value as the text content payload.
// Strings pass through verbatim; everything else is JSON-encoded.
func serializeResult(result any) string {
	switch v := result.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case error:
		return v.Error()
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(b)
}
