// Package engine provides the core game logic for Parcel Run.
//
// The engine package implements the game mechanics including:
//   - Level parsing and validation against an immutable Rules value
//   - Movement legality computed fresh from the grid on every move
//   - Fuel accounting, package delivery and win/loss detection
//   - A* route hints toward undelivered destinations
//
// Core Types:
//
// The Engine interface defines the session state machine, implemented by
// GameEngine. Level is a validated, read-only level definition produced by
// NewLevel, and GameState is the snapshot handed to renderers and to
// session persistence.
//
// Usage:
//
//	gameEngine, err := engine.NewEngine(levels, progress)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := gameEngine.LoadLevel(1); err != nil {
//		log.Fatal(err)
//	}
//
//	moved := gameEngine.Move(engine.Right)
//	state := gameEngine.GetState()
//
// Game Rules:
//
// The player drives a courier across the grid from the start tile. Every
// move burns fuel, one unit by default or the digit printed on the tile.
// The level is won once every destination has been visited, even if that
// last move empties the tank, and lost when fuel runs out first. Battery
// buys route hints.
package engine
