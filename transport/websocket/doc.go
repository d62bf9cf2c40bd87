// Package websocket feeds live game state to watchers of a session.
//
// A central Hub owns every connection. Each client gets a read pump that
// keeps the connection alive and a write pump that delivers queued
// messages. Watchers are read-only; actions go through the REST API.
//
// Message Protocol:
//
// Every outgoing frame is one JSON Message:
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}}
//
// Usage:
//
//	hub := websocket.NewHub(websocket.WithLogger(logger))
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
//	hub.BroadcastToSession(sessionID, gameState)
//
// Broadcasts never block the caller. When the hub queue is full the update
// is dropped, and a client whose own buffer is full is disconnected.
package websocket
