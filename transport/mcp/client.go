package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
	rules      *engine.Rules
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRules sets the rules used to describe grid symbols
func WithRules(rules *engine.Rules) ClientOption {
	return func(c *Client) {
		if rules != nil {
			c.rules = rules
		}
	}
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rules: engine.DefaultRules(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Parcel Run",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Parcel Run - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Drive from the start tile and visit every destination (D) before the fuel runs out.

AVAILABLE TOOLS:
- create_session, get_session, list_sessions: manage sessions
- game_state: current grid, fuel, battery and packages left
- move, bulk_move: drive (require an intent explanation)
- request_hint, confirm_hint: spend battery on a route to the best destination
- pause, resume, retry, next_level: session transitions
- choose: answer a dialog (resume, retry, next_level, exit, hint_yes, hint_no)
- move_history: past moves
- list_levels, get_progress: level catalog and unlocked levels
- describe_cell: details of one grid cell
- game_instructions: full rules

NOTE: The 'intent' parameter on move/bulk_move serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionOnlySchema() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Session ID",
			},
		},
		Required: []string{"session_id"},
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session, optionally on a specific level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level": map[string]interface{}{
					"type":        "integer",
					"description": "Level number to play (optional, defaults to 1)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: sessionOnlySchema(),
	}, c.handleGetSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current game state",
		InputSchema: sessionOnlySchema(),
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Move the courier one cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "Direction to move",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this move",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_move",
		Description: "Execute multiple moves in sequence, stopping at the first blocked move or when the level ends",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"moves": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"up", "down", "left", "right"},
					},
					"description": fmt.Sprintf("Array of moves (at most %d are executed)", engine.MaxBulkMoves),
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this sequence of moves",
				},
			},
			Required: []string{"session_id", "moves"},
		},
	}, c.handleBulkMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "request_hint",
		Description: "Ask for a route hint. The session waits for confirm_hint before spending battery",
		InputSchema: sessionOnlySchema(),
	}, c.handleRequestHint)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "confirm_hint",
		Description: "Accept or decline a pending hint",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "true spends battery and reveals the route",
				},
			},
			Required: []string{"session_id", "confirm"},
		},
	}, c.handleConfirmHint)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "pause",
		Description: "Pause the session",
		InputSchema: sessionOnlySchema(),
	}, c.sessionAction("pause"))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "resume",
		Description: "Resume a paused session",
		InputSchema: sessionOnlySchema(),
	}, c.sessionAction("resume"))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "retry",
		Description: "Restart the current level (after completion, game over, or while paused)",
		InputSchema: sessionOnlySchema(),
	}, c.sessionAction("retry"))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "next_level",
		Description: "Advance to the next level after completing the current one",
		InputSchema: sessionOnlySchema(),
	}, c.sessionAction("next"))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "choose",
		Description: "Answer the current dialog. exit closes the session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"choice": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"resume", "retry", "next_level", "exit", "hint_yes", "hint_no"},
					"description": "Dialog button to press",
				},
			},
			Required: []string{"session_id", "choice"},
		},
	}, c.handleChoose)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get paginated move history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (1-based)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Moves per page",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	// Levels and progress
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List available levels and whether they are unlocked",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_progress",
		Description: "Get the highest unlocked level",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGetProgress)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the game rules and tips",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe a single grid cell: symbol, tile kind, move cost and whether it is passable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID",
				},
				"row": map[string]interface{}{
					"type":        "integer",
					"description": "Row of the cell (0-based, top to bottom)",
				},
				"col": map[string]interface{}{
					"type":        "integer",
					"description": "Column of the cell (0-based, left to right)",
				},
			},
			Required: []string{"session_id", "row", "col"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	body := map[string]int{}
	if level, ok := intArg(args, "level"); ok {
		body["level"] = level
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nLevel: %d (%s)\n\n%s",
		session.ID, session.LevelID, session.LevelName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		state := "unknown"
		if s.GameState != nil {
			state = string(s.GameState.State)
		}
		fmt.Fprintf(&b, "- %s (Level %d, %s, Created: %s)\n",
			s.ID, s.LevelID, state, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")
	direction := request.GetString("direction", "")
	// intent is rubber duck debugging for the caller; the server never sees it

	var result service.MoveResult
	err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/move"), map[string]string{"direction": direction}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleBulkMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := request.GetString("session_id", "")
	movesRaw, _ := args["moves"].([]interface{})

	moves := make([]string, 0, len(movesRaw))
	for _, m := range movesRaw {
		if move, ok := m.(string); ok {
			moves = append(moves, move)
		}
	}

	var result service.BulkMoveResult
	err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/bulk-move"), map[string][]string{"moves": moves}, &result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkMoveResult(sessionID, &result)), nil
}

func (c *Client) handleRequestHint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.postAction(ctx, request.GetString("session_id", ""), "/hint", nil)
}

func (c *Client) handleConfirmHint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	confirm, ok := request.GetArguments()["confirm"].(bool)
	if !ok {
		return mcp.NewToolResultError("confirm must be true or false"), nil
	}
	return c.postAction(ctx, request.GetString("session_id", ""), "/hint/confirm", map[string]bool{"confirm": confirm})
}

func (c *Client) handleChoose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	choice := request.GetString("choice", "")
	if choice == "" {
		return mcp.NewToolResultError("choice is required"), nil
	}
	return c.postAction(ctx, request.GetString("session_id", ""), "/choice", map[string]string{"choice": choice})
}

// sessionAction builds a handler for a body-less session transition
func (c *Client) sessionAction(action string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return c.postAction(ctx, request.GetString("session_id", ""), "/"+action, nil)
	}
}

func (c *Client) postAction(ctx context.Context, sessionID, suffix string, body interface{}) (*mcp.CallToolResult, error) {
	var result service.ActionResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, suffix), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := request.GetString("session_id", "")

	query := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		query.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		query.Set("limit", fmt.Sprint(limit))
	}
	path := sessionPath(sessionID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := formatHistory(&history)

	// Also show the current segment from live state
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err == nil {
		result += "\n" + formatCurrentSegment(&state)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var levels []service.LevelInfo
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &levels); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Levels:\n\n")
	for _, l := range levels {
		lock := "🔒"
		if l.Unlocked {
			lock = "🔓"
		}
		fmt.Fprintf(&b, "%s %d. %s\n   Grid: %dx%d, Destinations: %d, Fuel: %d, Battery: %d\n",
			lock, l.ID, l.Name, l.Width, l.Height, l.Packages, l.InitialFuel, l.HintBattery)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetProgress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var progress service.ProgressInfo
	if err := c.apiCall(ctx, "GET", "/api/progress", nil, &progress); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Unlocked up to level %d of %d",
		progress.MaxUnlockedLevel, progress.TotalLevels)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r := c.rules
	instructions := fmt.Sprintf(`📦 Parcel Run - Instructions

GAME OBJECTIVE:
Drive the courier from the start tile and deliver to every destination before the fuel runs out.

GRID LEGEND:
• %c - Start tile (passable)
• %c - Wall (impassable)
• %c - Destination (passable, delivers on arrival)
• %c - Road (passable)
• 1-9 - Toll road (passable, costs that much fuel to enter)
• @ - Your courier (in game_state output)
• ✓ - Delivered destination
• * - Hint route

MOVEMENT:
• up, down, left, right move one cell
• Entering a cell costs %d fuel, or the digit printed on the cell
• Walls and the grid edge block the move; a blocked move costs nothing

WINNING AND LOSING:
• The level is complete as soon as every destination is visited, even if that move empties the tank
• Running out of fuel with destinations left ends the game

HINTS:
• request_hint then confirm_hint(true) spends %d battery and marks the shortest route to the best destination
• confirm_hint(false) declines without cost

PROGRESS:
• Completing a level unlocks the next one; use next_level to continue
• retry restarts the current level from its initial fuel and battery

TIPS:
• Check game_state for possible moves before planning
• Use bulk_move for straight runs; it stops at the first blocked move
• Toll roads are expensive to enter, route around them when fuel is tight`,
		r.Start, r.Wall, r.Destination, r.Road, r.DefaultMoveCost, r.HintCost)

	return mcp.NewToolResultText(instructions), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID := request.GetString("session_id", "")
	row, okRow := intArg(args, "row")
	col, okCol := intArg(args, "col")
	if !okRow || !okCol {
		return mcp.NewToolResultError("row and col are required integers"), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(describeCell(&state, engine.Position{Row: row, Col: col}, c.rules)), nil
}
