// Package session provides session management for Parcel Run.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Snapshot persistence with optional zstd compression
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager owns the live sessions, each with its own engine built by an
// EngineFactory. FilePersistence writes one snapshot per session and
// rebuilds engines from those snapshots on load.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs when the caller does not supply one.
// Lookups are case-insensitive.
//
// Usage:
//
//	factory := func() (*engine.GameEngine, error) {
//		return engine.NewEngine(levels, progress)
//	}
//	store, err := session.NewFilePersistence("sessions", factory, session.WithCompression(true))
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(factory, store)
//
//	sess, err := manager.Create("", 1)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Cleanup:
//
// CleanupExpiredSessions drops idle sessions from memory. Their snapshots
// stay on disk and Get reloads them on demand.
package session
