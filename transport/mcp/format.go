package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/service"
)

const (
	playerMarker    = '@'
	deliveredMarker = "✓"
	hintMarker      = '*'
)

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nLevel: %d (%s)\nCreated: %s\nLast Accessed: %s\n\n%s",
		session.ID, session.LevelID, session.LevelName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		session.LastAccessedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state"
	}

	var b strings.Builder
	switch state.State {
	case engine.LevelComplete:
		b.WriteString("🎉 LEVEL COMPLETE!\n")
	case engine.GameOver:
		b.WriteString("💀 GAME OVER\n")
	case engine.Paused:
		b.WriteString("⏸ PAUSED\n")
	case engine.ConfirmingHint:
		b.WriteString("💡 HINT PENDING (confirm_hint)\n")
	case engine.Idle:
		return "No level loaded"
	}

	fmt.Fprintf(&b, "Level %d: %s\n", state.LevelID, state.LevelName)
	fmt.Fprintf(&b, "Position: (%d,%d)\n", state.PlayerPos.Row, state.PlayerPos.Col)
	fmt.Fprintf(&b, "Fuel: %d | Battery: %d | Packages: %d/%d left\n",
		state.Fuel, state.Battery, state.PackagesLeft, state.TotalPackages)
	if moves := state.PossibleMoves.List(); len(moves) > 0 {
		fmt.Fprintf(&b, "Possible moves: %s\n", joinDirections(moves))
	}
	if state.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", state.Message)
	}
	b.WriteString("\nGrid:\n")
	b.WriteString(renderGrid(state))
	return b.String()
}

// renderGrid draws the level with the courier, delivered destinations and hint route marked
func renderGrid(state *engine.GameState) string {
	delivered := make(map[engine.Position]bool)
	for _, d := range state.Destinations {
		if d.Delivered {
			delivered[d.Pos] = true
		}
	}
	// Route endpoints keep their own symbols
	hint := make(map[engine.Position]bool)
	for i := 1; i < len(state.HintPath)-1; i++ {
		hint[state.HintPath[i]] = true
	}

	var b strings.Builder
	for r, row := range state.Grid {
		for c := 0; c < len(row); c++ {
			p := engine.Position{Row: r, Col: c}
			switch {
			case p == state.PlayerPos:
				b.WriteByte(playerMarker)
			case delivered[p]:
				b.WriteString(deliveredMarker)
			case hint[p]:
				b.WriteByte(hintMarker)
			default:
				b.WriteByte(row[c])
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func joinDirections(dirs []engine.Direction) string {
	parts := make([]string, len(dirs))
	for i, d := range dirs {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

func formatMoveResult(result *service.MoveResult) string {
	var b strings.Builder
	if result.Success {
		b.WriteString("✓ Move successful\n")
	} else {
		b.WriteString("✗ Move failed\n")
	}

	if s := result.Step; s != nil {
		fmt.Fprintf(&b, "Step: %s (%d,%d)->(%d,%d) tile=%s fuel %d->%d\n",
			s.Dir, s.From.Row, s.From.Col, s.To.Row, s.To.Col, s.TileChar, s.FuelBefore, s.FuelAfter)
		if s.Delivered {
			b.WriteString("📦 Package delivered!\n")
		}
	}
	if a := result.AttemptedTo; a != nil {
		fmt.Fprintf(&b, "Blocked at (%d,%d): %s\n", a.Row, a.Col, a.TileType)
	}
	for _, e := range result.Events {
		if e.Type == "level_complete" || e.Type == "game_over" {
			fmt.Fprintf(&b, "Event: %s - %s\n", e.Type, e.Message)
		}
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatBulkMoveResult(sessionID string, result *service.BulkMoveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: executed %d of %d moves\n", sessionID, result.MovesExecuted, result.RequestedMoves)
	if result.Truncated {
		fmt.Fprintf(&b, "⚠ Request truncated to %d moves\n", result.Limit)
	}
	if result.StopReasonCode != "" {
		fmt.Fprintf(&b, "Stopped: %s", result.StopReasonCode)
		if result.StoppedOnMove > 0 {
			fmt.Fprintf(&b, " on move %d", result.StoppedOnMove)
		}
		if result.StoppedReason != "" {
			fmt.Fprintf(&b, " (%s)", result.StoppedReason)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Path: (%d,%d) -> (%d,%d), fuel %d -> %d, delivered %d\n",
		result.StartPos.Row, result.StartPos.Col, result.EndPos.Row, result.EndPos.Col,
		result.StartFuel, result.EndFuel, result.PackagesDelivered)

	for _, s := range result.Steps {
		mark := ""
		if s.Delivered {
			mark = " 📦"
		}
		fmt.Fprintf(&b, "  %d. %s -> (%d,%d) %s fuel=%d%s\n",
			s.Idx, s.Dir, s.To.Row, s.To.Col, s.TileChar, s.FuelAfter, mark)
	}
	if a := result.AttemptedTo; a != nil {
		fmt.Fprintf(&b, "Blocked at (%d,%d): %s\n", a.Row, a.Col, a.TileType)
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

func formatActionResult(result *service.ActionResult) string {
	status := "✓"
	if !result.Success {
		status = "✗ Not allowed now:"
	}
	msg := result.Message
	if msg == "" && len(result.Events) > 0 {
		msg = result.Events[0].Message
	}
	return fmt.Sprintf("%s %s\n\n%s", status, msg, formatGameState(result.GameState))
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (page %d/%d, %d total):\n", history.Page, history.TotalPages, history.TotalMoves)
	for _, m := range history.Moves {
		fmt.Fprintf(&b, "  #%d %s\n", m.MoveNumber, formatHistoryEntry(m))
	}
	return b.String()
}

func formatHistoryEntry(m engine.MoveHistoryEntry) string {
	status := "ok"
	if !m.Success {
		status = "blocked"
	}
	return fmt.Sprintf("%s (%d,%d)->(%d,%d) fuel=%d %s",
		m.Action, m.FromPosition.Row, m.FromPosition.Col, m.ToPosition.Row, m.ToPosition.Col, m.Fuel, status)
}

func formatCurrentSegment(state *engine.GameState) string {
	if state == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Current attempt (%d moves since last retry):\n", state.CurrentMovesCount)
	moves := state.CurrentMoves
	if len(moves) > 10 {
		moves = moves[len(moves)-10:]
	}
	for _, m := range moves {
		fmt.Fprintf(&b, "  #%d %s\n", m.MoveNumber, formatHistoryEntry(m))
	}
	return b.String()
}

func describeCell(state *engine.GameState, p engine.Position, rules *engine.Rules) string {
	grid := engine.Grid(state.Grid)
	if !grid.InBounds(p) {
		return fmt.Sprintf("(%d,%d) is out of bounds. Grid is %d rows x %d cols (rows 0-%d, cols 0-%d)",
			p.Row, p.Col, grid.Height(), grid.Width(), grid.Height()-1, grid.Width()-1)
	}

	sym := grid.At(p)
	kind := rules.Kind(sym)
	var b strings.Builder
	fmt.Fprintf(&b, "Cell (%d,%d): '%c'\n", p.Row, p.Col, sym)
	fmt.Fprintf(&b, "Kind: %s\n", kind)
	fmt.Fprintf(&b, "Passable: %t\n", rules.Traversable(sym))
	if rules.Traversable(sym) {
		fmt.Fprintf(&b, "Fuel to enter: %d\n", rules.MoveCost(sym))
	}
	if p == state.PlayerPos {
		b.WriteString("Your courier is here\n")
	}
	for _, d := range state.Destinations {
		if d.Pos == p {
			if d.Delivered {
				b.WriteString("Destination: delivered\n")
			} else {
				b.WriteString("Destination: waiting for a package\n")
			}
		}
	}
	fmt.Fprintf(&b, "Manhattan distance from courier: %d\n", engine.ManhattanDistance(state.PlayerPos, p))
	return b.String()
}
