package kernel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/transport"
)

type toolDescriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	InputSchema plugin.Schema `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []toolDescriptor `json:"tools"`
}

func (s *Server) handleToolsList(ctx context.Context, req transport.Request, reply transport.ReplyFunc) {
	tools := s.host.Tools()
	out := make([]toolDescriptor, 0, len(tools))
	for _, t := range tools {
		out = append(out, toolDescriptor{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	reply(ctx, jsonrpc.Result(req.ID, toolsListResult{Tools: out}))
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []contentBlock `json:"content"`
}

// handleToolsCall resolves the named tool, runs it through the middleware
// pipeline, and renders its result as a single text content block: string
// results pass through verbatim, everything else is JSON-rendered.
func (s *Server) handleToolsCall(ctx context.Context, req transport.Request, reply transport.ReplyFunc) {
	params, err := decodeParams[toolCallParams](req.Params)
	if err != nil {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error())))
		return
	}

	tool, ok := s.host.Tool(params.Name)
	if !ok {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeMethodNotFound, fmt.Sprintf("unknown tool %q", params.Name))))
		return
	}

	args := decodeArguments(params.Arguments)
	callCtx := s.host.NewCallContext(pluginIDFromKey(params.Name))

	result, err := s.pipeline.Run(ctx, params.Name, args, func(ctx context.Context, _ string, args map[string]any) (any, error) {
		return tool.Handler(ctx, args, callCtx)
	})
	if err != nil {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error())))
		return
	}

	reply(ctx, jsonrpc.Result(req.ID, toolCallResult{Content: []contentBlock{renderContent(result)}}))
}

func pluginIDFromKey(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// decodeArguments unmarshals raw into a map, matching the middleware
// Validation layer's "arguments must not be null and must not be a
// sequence" check: any non-object payload (array, scalar, absent) decodes
// to a nil map rather than failing outright, leaving the reject decision to
// the Validation middleware.
func decodeArguments(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func renderContent(result any) contentBlock {
	if s, ok := result.(string); ok {
		return contentBlock{Type: "text", Text: s}
	}
	bs, err := json.Marshal(result)
	if err != nil {
		return contentBlock{Type: "text", Text: fmt.Sprintf("%v", result)}
	}
	return contentBlock{Type: "text", Text: string(bs)}
}

type resourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType,omitempty"`
}

type resourcesListResult struct {
	Resources []resourceDescriptor `json:"resources"`
}

func (s *Server) handleResourcesList(ctx context.Context, req transport.Request, reply transport.ReplyFunc) {
	resources := s.host.Resources()
	out := make([]resourceDescriptor, 0, len(resources))
	for _, r := range resources {
		out = append(out, resourceDescriptor{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MimeType})
	}
	reply(ctx, jsonrpc.Result(req.ID, resourcesListResult{Resources: out}))
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

type resourcesReadResult struct {
	Contents []resourceContent `json:"contents"`
}

func (s *Server) handleResourcesRead(ctx context.Context, req transport.Request, reply transport.ReplyFunc) {
	params, err := decodeParams[resourceReadParams](req.Params)
	if err != nil {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error())))
		return
	}

	resource, ok := s.host.Resource(params.URI)
	if !ok {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, fmt.Sprintf("unknown resource uri %q", params.URI))))
		return
	}

	callCtx := s.host.NewCallContext(pluginIDForResource(resource))
	payload, err := resource.Handler(ctx, callCtx)
	if err != nil {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error())))
		return
	}

	reply(ctx, jsonrpc.Result(req.ID, resourcesReadResult{Contents: []resourceContent{{
		URI:      resource.URI,
		MimeType: payload.MimeType,
		Text:     payload.Text,
	}}}))
}

// pluginIDForResource has no namespace to recover a plugin id from (resources
// are keyed by bare uri, not "plugin:name"), so the resource's own owning
// plugin isn't retrievable from the registry key. Handlers that need
// plugin-scoped state should carry their id in the ResourcePayload or close
// over it at registration time instead of relying on CallContext's pluginID.
func pluginIDForResource(r plugin.Resource) string {
	return r.URI
}

type promptDescriptor struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Arguments   []plugin.PromptArgument `json:"arguments"`
}

type promptsListResult struct {
	Prompts []promptDescriptor `json:"prompts"`
}

func (s *Server) handlePromptsList(ctx context.Context, req transport.Request, reply transport.ReplyFunc) {
	prompts := s.host.Prompts()
	out := make([]promptDescriptor, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, promptDescriptor{Name: p.Name, Description: p.Description, Arguments: p.Arguments})
	}
	reply(ctx, jsonrpc.Result(req.ID, promptsListResult{Prompts: out}))
}

type promptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

type promptMessageView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type promptsGetResult struct {
	Description string              `json:"description"`
	Messages    []promptMessageView `json:"messages"`
}

func (s *Server) handlePromptsGet(ctx context.Context, req transport.Request, reply transport.ReplyFunc) {
	params, err := decodeParams[promptGetParams](req.Params)
	if err != nil {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error())))
		return
	}

	prompt, ok := s.host.Prompt(params.Name)
	if !ok {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidRequest, fmt.Sprintf("unknown prompt %q", params.Name))))
		return
	}

	callCtx := s.host.NewCallContext(pluginIDFromKey(params.Name))
	messages, err := prompt.Handler(ctx, params.Arguments, callCtx)
	if err != nil {
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error())))
		return
	}

	out := make([]promptMessageView, 0, len(messages))
	for _, m := range messages {
		out = append(out, promptMessageView{Role: m.Role, Content: m.Content})
	}
	reply(ctx, jsonrpc.Result(req.ID, promptsGetResult{Description: prompt.Description, Messages: out}))
}
