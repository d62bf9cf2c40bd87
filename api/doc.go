// Package api provides the HTTP REST API for Parcel Run.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session, body {"level": 1} (optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/sessions/{id} - Get one session
//   - DELETE /api/sessions/{id} - Exit and remove a session
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/move - Body {"direction": "up|down|left|right"}
//   - POST /api/sessions/{id}/bulk-move - Body {"moves": ["up", "right"]}
//   - POST /api/sessions/{id}/hint - Open the hint confirmation
//   - POST /api/sessions/{id}/hint/confirm - Body {"confirm": true|false}
//   - POST /api/sessions/{id}/pause and /resume
//   - POST /api/sessions/{id}/retry and /next
//   - GET /api/sessions/{id}/history - Paginated move history (?page&limit&order)
//
// Levels and Progress:
//   - GET /api/levels and /api/levels/{id}
//   - GET /api/progress and DELETE /api/progress
//
// Live updates are served on GET /ws?session={id}.
//
// Error Handling:
//
// Errors are returned as {"error": "message"}. Unknown sessions and levels
// map to 404, invalid level files to 422, refused transitions to 409 and
// malformed requests to 400. A refused move, hint, pause or resume is not an
// error: the response is 200 with "success": false.
//
// Move (POST /api/sessions/{id}/move) responses carry a step with
// {idx, dir, from, to, tile_char, tile_type, fuel_before, fuel_after,
// delivered, complete} on success, or attempted_to with
// {row, col, tile_char, tile_type, passable} when blocked.
//
// Bulk move responses report requested_moves, moves_executed, the stop reason
// (stop_reason_code is one of invalid_direction, blocked_wall,
// blocked_boundary, out_of_fuel, level_complete, game_over, not_playing),
// per-step details and the final game_state.
package api
