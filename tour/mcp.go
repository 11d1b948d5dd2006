package tour

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/kit"
)

// RegisterMCP registers the tour tools on an MCP server.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerStartTool(srv)
	s.registerMoveTools(srv)
	s.registerGoToTool(srv)
	s.registerHighlightTool(srv)
	s.registerStateTool(srv)
	s.registerGuideTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (s *Session) logged(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.cfg.Logger, name))(ep)
}

func (s *Session) withSession(ctx context.Context) context.Context {
	return kit.WithSessionID(ctx, s.cfg.SessionID)
}

// --- tour_start ---

type startRequest struct {
	Index *int `json:"index,omitempty"`
}

func (s *Session) registerStartTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tour_start",
		Description: "Start the guided tour. Without index, resumes the saved step or starts at the first one.",
		InputSchema: inputSchema(map[string]any{
			"index": map[string]any{"type": "integer", "description": "Step index to start at (out of range starts at 0)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*startRequest)
		return s.Start(ctx, r.Index)
	}

	kit.RegisterMCPTool(srv, tool, s.logged(tool.Name, endpoint), s.decode(kit.DecodeArgs[startRequest]))
}

// --- tour_next / tour_previous / tour_stop / tour_reset / tour_reposition ---

type emptyRequest struct{}

func (s *Session) registerMoveTools(srv *mcp.Server) {
	moves := []struct {
		name, desc string
		op         func(context.Context) (State, error)
	}{
		{"tour_next", "Advance to the next step. Passing the last step completes the tour.", s.Next},
		{"tour_previous", "Go back one step. Does nothing at the first step.", s.Previous},
		{"tour_stop", "Stop the tour and remove the popover. The saved step is kept.", s.Stop},
		{"tour_reset", "Stop the tour and forget the saved step.", s.Reset},
		{"tour_reposition", "Recompute the popover placement after a resize or scroll.", s.Reposition},
	}
	for _, m := range moves {
		op := m.op
		tool := &mcp.Tool{
			Name:        m.name,
			Description: m.desc,
			InputSchema: inputSchema(map[string]any{}, nil),
		}
		endpoint := func(ctx context.Context, _ any) (any, error) {
			return op(ctx)
		}
		kit.RegisterMCPTool(srv, tool, s.logged(tool.Name, endpoint), s.decode(kit.DecodeArgs[emptyRequest]))
	}
}

// --- tour_goto ---

type goToRequest struct {
	Index int `json:"index"`
}

func (s *Session) registerGoToTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tour_goto",
		Description: "Jump directly to a step. The index is clamped to the tour.",
		InputSchema: inputSchema(map[string]any{
			"index": map[string]any{"type": "integer", "description": "Step index"},
		}, []string{"index"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*goToRequest)
		return s.GoTo(ctx, r.Index)
	}

	kit.RegisterMCPTool(srv, tool, s.logged(tool.Name, endpoint), s.decode(kit.DecodeArgs[goToRequest]))
}

// --- tour_highlight ---

type highlightRequest struct {
	Step guide.Step `json:"step"`
}

func (s *Session) registerHighlightTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tour_highlight",
		Description: "Show a popover for a one-off step without moving the tour.",
		InputSchema: inputSchema(map[string]any{
			"step": map[string]any{
				"type":        "object",
				"description": "Step descriptor: target selector and popover {title, description, side, align}",
			},
		}, []string{"step"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*highlightRequest)
		return s.Highlight(ctx, r.Step)
	}

	kit.RegisterMCPTool(srv, tool, s.logged(tool.Name, endpoint), s.decode(kit.DecodeArgs[highlightRequest]))
}

// --- tour_state ---

func (s *Session) registerStateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tour_state",
		Description: "Current tour state: isActive, currentStepIndex, isFirstStep, isLastStep.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return s.State(), nil
	}

	kit.RegisterMCPTool(srv, tool, s.logged(tool.Name, endpoint), s.decode(kit.DecodeArgs[emptyRequest]))
}

// --- tour_guide ---

// GuideSummary describes the loaded guide.
type GuideSummary struct {
	Title string        `json:"title"`
	Steps []StepSummary `json:"steps"`
	State State         `json:"state"`
}

// StepSummary describes one step of the loaded guide.
type StepSummary struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Route string `json:"route,omitempty"`
	Text  string `json:"text,omitempty"`
}

func (s *Session) registerGuideTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tour_guide",
		Description: "List the steps of the loaded guide, with their text as markdown.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return s.Summary(), nil
	}

	kit.RegisterMCPTool(srv, tool, s.logged(tool.Name, endpoint), s.decode(kit.DecodeArgs[emptyRequest]))
}

// Summary lists the guide steps with their rendered text.
func (s *Session) Summary() GuideSummary {
	g := s.Guide()
	out := GuideSummary{Title: g.Title, State: s.State()}
	for i, st := range g.Steps {
		c := s.cfg.Renderer.Render(st, i, g.Len(), g.Config)
		out.Steps = append(out.Steps, StepSummary{
			Index: i,
			ID:    st.ID,
			Title: c.Title,
			Route: st.TargetPattern(),
			Text:  c.Text,
		})
	}
	return out
}

// decode tags the request context with the session ID.
func (s *Session) decode(fn func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := fn(req)
		if err != nil {
			return nil, err
		}
		res.EnrichCtx = s.withSession
		return res, nil
	}
}
