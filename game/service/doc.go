// Package service provides the business logic layer for Parcel Run.
//
// The service package implements:
//   - Multi-session game management
//   - Move processing, bulk moves and per-step traces
//   - Hint, pause, retry and next-level actions with events
//   - Move history pagination
//   - Level listing and unlock progress
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// LevelCatalog resolves level ids and lists the level files.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the game engine. Each session owns its own engine; the service serializes
// every action so an engine never sees two at once.
//
// Usage:
//
//	levels, _ := config.NewManager("levels", engine.DefaultRules(), logger)
//	sessions := session.NewManager(factory)
//	gameService := service.NewGameService(sessions, levels, progressStore)
//
//	info, err := gameService.CreateSession(ctx, 1)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Move(ctx, info.ID, "right")
package service
