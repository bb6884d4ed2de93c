// Package store provides storage backends for LobbyPipe.
//
// This file implements an SQLite-backed store for flow sessions and visitor
// logs.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveFlowSession stores or updates a flow session.
func (s *SQLiteStore) SaveFlowSession(session models.FlowSession) error {
	employeeJSON, visitorJSON, err := encodeSessionBlobs(session)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowSession encode failed", "error", err, "session_id", session.ID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO flow_sessions
		(session_id, state, user_type, employee_json, visitor_data_json,
		 verification_attempts, code_attempts, notification_attempted, notification_delivered,
		 created_at, last_activity_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, session.ID, string(session.State), string(session.UserType),
		employeeJSON, visitorJSON, session.VerificationAttempts, session.CodeAttempts,
		session.NotificationAttempted, session.NotificationDelivered,
		session.CreatedAt, session.LastActivityAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFlowSession failed", "error", err, "session_id", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	slog.Debug("SQLiteStore SaveFlowSession succeeded", "session_id", session.ID, "state", session.State)
	return nil
}

// GetFlowSession retrieves a flow session, or (nil, nil) when absent.
func (s *SQLiteStore) GetFlowSession(sessionID string) (*models.FlowSession, error) {
	query := `SELECT session_id, state, user_type, employee_json, visitor_data_json,
			  verification_attempts, code_attempts, notification_attempted, notification_delivered,
			  created_at, last_activity_at
			  FROM flow_sessions WHERE session_id = ?`
	session, err := scanSession(s.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetFlowSession not found", "session_id", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFlowSession failed", "error", err, "session_id", sessionID)
		return nil, err
	}
	return session, nil
}

// DeleteFlowSession removes a flow session.
func (s *SQLiteStore) DeleteFlowSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteFlowSession failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore DeleteFlowSession succeeded", "session_id", sessionID)
	return nil
}

// ListFlowSessions returns all stored flow sessions.
func (s *SQLiteStore) ListFlowSessions() ([]models.FlowSession, error) {
	query := `SELECT session_id, state, user_type, employee_json, visitor_data_json,
			  verification_attempts, code_attempts, notification_attempted, notification_delivered,
			  created_at, last_activity_at
			  FROM flow_sessions ORDER BY session_id`
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("SQLiteStore ListFlowSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.FlowSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			slog.Error("SQLiteStore ListFlowSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListFlowSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListFlowSessions succeeded", "count", len(sessions))
	return sessions, nil
}

// AddVisitorLog stores a completed visitor intake record.
func (s *SQLiteStore) AddVisitorLog(l models.VisitorLog) error {
	query := `INSERT INTO visitor_logs (session_id, name, phone, purpose, host, photo_captured, host_notified, time)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, l.SessionID, l.Name, l.Phone, l.Purpose, l.Host, l.PhotoCaptured, l.HostNotified, l.Time)
	if err != nil {
		slog.Error("SQLiteStore AddVisitorLog failed", "error", err, "session_id", l.SessionID)
		return fmt.Errorf("failed to insert visitor log for %s: %w", l.SessionID, err)
	}
	slog.Debug("SQLiteStore AddVisitorLog succeeded", "session_id", l.SessionID)
	return nil
}

// GetVisitorLogs returns all visitor log records.
func (s *SQLiteStore) GetVisitorLogs() ([]models.VisitorLog, error) {
	rows, err := s.db.Query(`SELECT session_id, name, phone, purpose, host, photo_captured, host_notified, time FROM visitor_logs ORDER BY id`)
	if err != nil {
		slog.Error("SQLiteStore GetVisitorLogs query failed", "error", err)
		return nil, fmt.Errorf("failed to query visitor logs: %w", err)
	}
	defer rows.Close()

	var logs []models.VisitorLog
	for rows.Next() {
		var l models.VisitorLog
		if err := rows.Scan(&l.SessionID, &l.Name, &l.Phone, &l.Purpose, &l.Host, &l.PhotoCaptured, &l.HostNotified, &l.Time); err != nil {
			slog.Error("SQLiteStore GetVisitorLogs scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan visitor log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetVisitorLogs rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate visitor log rows: %w", err)
	}
	slog.Debug("SQLiteStore GetVisitorLogs succeeded", "count", len(logs))
	return logs, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
