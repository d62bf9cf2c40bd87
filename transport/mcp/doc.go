// Package mcp exposes Parcel Run to AI agents over the Model Context Protocol.
//
// Client is a thin proxy: every tool call becomes a request against the REST
// API and the JSON response is rendered as text for the agent.
//
// MCP Tools:
//   - create_session, get_session, list_sessions
//   - game_state, move, bulk_move, move_history
//   - request_hint, confirm_hint
//   - pause, resume, retry, next_level
//   - list_levels, get_progress
//   - describe_cell, game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
//
// Grids are rendered with @ for the courier, ✓ for delivered destinations
// and * along a confirmed hint route.
package mcp
