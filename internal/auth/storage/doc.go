// Package storage defines persistence contracts for users and credentials.
//
// These interfaces exist so the ceremony orchestrator can depend on stable
// domain semantics without coupling to SQLite schema details.
package storage
