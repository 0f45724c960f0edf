package handlers

import (
	"encoding/json"
	"net/http"

	"gopkg.in/yaml.v3"
)

// openAPIDocument is a hand-maintained summary of the server-scoped admin
// API routes, one short description per method — not a full
// JSON-schema-per-field spec. It lists no auth requirements, and the auth,
// operator, health and docs routes are not included.
var openAPIDocument = map[string]any{
	"openapi": "3.0.3",
	"info": map[string]any{
		"title":   "Mochi-Link Admin API",
		"version": "1",
	},
	"paths": map[string]any{
		"/api/servers":                          map[string]any{"get": "list servers", "post": "register server"},
		"/api/servers/{serverId}":                map[string]any{"get": "get server", "patch": "update server", "delete": "delete server"},
		"/api/servers/{serverId}/status":         map[string]any{"get": "live status view"},
		"/api/servers/{serverId}/whitelist":      map[string]any{"get": "sync whitelist", "post": "add to whitelist"},
		"/api/servers/{serverId}/whitelist/{player}": map[string]any{"delete": "remove from whitelist"},
		"/api/servers/{serverId}/players":        map[string]any{"get": "list online players"},
		"/api/servers/{serverId}/players/{player}/kick": map[string]any{"post": "kick player"},
		"/api/players/{identifier}":              map[string]any{"get": "cross-server player lookup"},
		"/api/servers/{serverId}/commands":       map[string]any{"post": "execute console command"},
		"/api/servers/{serverId}/commands/batch": map[string]any{"post": "execute command batch"},
		"/api/servers/{serverId}/tokens":         map[string]any{"get": "list tokens", "post": "generate token"},
		"/api/servers/{serverId}/tokens/rotate":  map[string]any{"post": "rotate tokens"},
		"/api/tokens/{tokenId}":                  map[string]any{"delete": "revoke token"},
		"/api/bindings":                          map[string]any{"post": "create binding"},
		"/api/bindings/{bindingId}":              map[string]any{"get": "get binding", "delete": "delete binding"},
		"/api/bindings/{bindingId}/status":       map[string]any{"patch": "set binding status"},
		"/api/servers/{serverId}/bindings":       map[string]any{"get": "list bindings for server"},
		"/api/groups/{groupId}/bindings":         map[string]any{"get": "list bindings for group"},
		"/api/audit":                             map[string]any{"get": "list audit log"},
		"/api/servers/{serverId}/audit":          map[string]any{"get": "list audit log for server"},
		"/api/bot/command":                       map[string]any{"post": "dispatch a bot command surface (C12) string"},
	},
}

// OpenAPIHandler serves the generated API document in either JSON or YAML.
type OpenAPIHandler struct{}

// NewOpenAPIHandler constructs an OpenAPIHandler.
func NewOpenAPIHandler() *OpenAPIHandler {
	return &OpenAPIHandler{}
}

// JSON handles GET /api/docs/openapi.json.
func (h *OpenAPIHandler) JSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(openAPIDocument)
}

// YAML handles GET /api/docs/openapi.yaml.
func (h *OpenAPIHandler) YAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	_ = enc.Encode(openAPIDocument)
}

// docsPage is a minimal static viewer — no external JS dependency, just a
// pre-formatted dump of the document fetched client-side for easy reading.
const docsPage = `<!DOCTYPE html>
<html><head><title>Mochi-Link Admin API</title></head>
<body>
<h1>Mochi-Link Admin API</h1>
<p>See <a href="/api/docs/openapi.json">openapi.json</a> or <a href="/api/docs/openapi.yaml">openapi.yaml</a>.</p>
<pre id="doc"></pre>
<script>
fetch('/api/docs/openapi.json').then(r => r.json()).then(doc => {
  document.getElementById('doc').textContent = JSON.stringify(doc, null, 2);
});
</script>
</body></html>`

// Docs handles GET /api/docs: a bare interactive page, enough to browse the
// generated document without needing a separately hosted Swagger UI build.
func (h *OpenAPIHandler) Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(docsPage))
}
