package streaminghttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcpframe/mcp-frame-go/registry"
)

// handleHealth reports basic liveness and uptime.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "healthy",
		"uptime": time.Since(h.started).Seconds(),
	})
}

// handleHealthReady reports readiness: at least one registered tool.
func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	tools, _, _, _ := h.eng.Registry().Counts()
	w.Header().Set("Content-Type", jsonMediaType.String())
	if tools == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "not_ready", "reason": "no tools registered"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
}

// handleHealthDetailed reports session, handler, and in-flight counts.
func (h *Handler) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	tools, resources, templates, prompts := h.eng.Registry().Counts()
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "healthy",
		"uptime": time.Since(h.started).Seconds(),
		"sessions": map[string]any{
			"active": h.eng.Sessions().Len(),
		},
		"handlers": map[string]any{
			"tools":             tools,
			"resources":         resources,
			"resourceTemplates": templates,
			"prompts":           prompts,
		},
		"requests": map[string]any{
			"inFlight": h.eng.InFlight(),
		},
		"tasks": h.eng.Tasks().Len(),
	})
}

// handleOpenAPI synthesizes an OpenAPI 3.1 document from the cached tool
// schemas: one POST path per registered tool.
func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	reg := h.eng.Registry()

	paths := map[string]any{}
	for _, name := range reg.Names(registry.KindTool) {
		tool, err := reg.Tool(name)
		if err != nil {
			continue
		}
		wire := tool.ToWireDict()

		op := map[string]any{
			"operationId": name,
			"summary":     tool.Description,
			"requestBody": map[string]any{
				"required": true,
				"content": map[string]any{
					"application/json": map[string]any{
						"schema": wire["inputSchema"],
					},
				},
			},
			"responses": map[string]any{
				"200": map[string]any{
					"description": "Tool result",
				},
			},
		}
		if out, ok := wire["outputSchema"]; ok {
			op["responses"] = map[string]any{
				"200": map[string]any{
					"description": "Tool result",
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": out,
						},
					},
				},
			}
		}
		paths["/tools/"+name] = map[string]any{"post": op}
	}

	doc := map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "MCP tools",
			"version": "1.0.0",
		},
		"paths": paths,
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(doc)
}
