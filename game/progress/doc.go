// Package progress persists the highest level a player has unlocked.
//
// Three backends implement Store: a JSON file (the default), a SQLite
// database and an in-memory value for tests and throwaway servers. Every
// backend reports DefaultLevel until something is saved, and after a reset.
package progress
