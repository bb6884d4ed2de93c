// Package store provides storage backends for LobbyPipe.
//
// This file implements a PostgreSQL-backed store for flow sessions and
// visitor logs.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveFlowSession stores or updates a flow session.
func (s *PostgresStore) SaveFlowSession(session models.FlowSession) error {
	employeeJSON, visitorJSON, err := encodeSessionBlobs(session)
	if err != nil {
		slog.Error("PostgresStore SaveFlowSession encode failed", "error", err, "session_id", session.ID)
		return err
	}

	query := `
		INSERT INTO flow_sessions
		(session_id, state, user_type, employee_json, visitor_data_json,
		 verification_attempts, code_attempts, notification_attempted, notification_delivered,
		 created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO UPDATE SET
			state = EXCLUDED.state,
			user_type = EXCLUDED.user_type,
			employee_json = EXCLUDED.employee_json,
			visitor_data_json = EXCLUDED.visitor_data_json,
			verification_attempts = EXCLUDED.verification_attempts,
			code_attempts = EXCLUDED.code_attempts,
			notification_attempted = EXCLUDED.notification_attempted,
			notification_delivered = EXCLUDED.notification_delivered,
			last_activity_at = EXCLUDED.last_activity_at`
	_, err = s.db.Exec(query, session.ID, string(session.State), string(session.UserType),
		employeeJSON, visitorJSON, session.VerificationAttempts, session.CodeAttempts,
		session.NotificationAttempted, session.NotificationDelivered,
		session.CreatedAt, session.LastActivityAt)
	if err != nil {
		slog.Error("PostgresStore SaveFlowSession failed", "error", err, "session_id", session.ID)
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}
	slog.Debug("PostgresStore SaveFlowSession succeeded", "session_id", session.ID, "state", session.State)
	return nil
}

// GetFlowSession retrieves a flow session, or (nil, nil) when absent.
func (s *PostgresStore) GetFlowSession(sessionID string) (*models.FlowSession, error) {
	query := `SELECT session_id, state, user_type, employee_json, visitor_data_json,
			  verification_attempts, code_attempts, notification_attempted, notification_delivered,
			  created_at, last_activity_at
			  FROM flow_sessions WHERE session_id = $1`
	session, err := scanSession(s.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetFlowSession not found", "session_id", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFlowSession failed", "error", err, "session_id", sessionID)
		return nil, err
	}
	return session, nil
}

// DeleteFlowSession removes a flow session.
func (s *PostgresStore) DeleteFlowSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM flow_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteFlowSession failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore DeleteFlowSession succeeded", "session_id", sessionID)
	return nil
}

// ListFlowSessions returns all stored flow sessions.
func (s *PostgresStore) ListFlowSessions() ([]models.FlowSession, error) {
	query := `SELECT session_id, state, user_type, employee_json, visitor_data_json,
			  verification_attempts, code_attempts, notification_attempted, notification_delivered,
			  created_at, last_activity_at
			  FROM flow_sessions ORDER BY session_id`
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("PostgresStore ListFlowSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.FlowSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			slog.Error("PostgresStore ListFlowSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListFlowSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("PostgresStore ListFlowSessions succeeded", "count", len(sessions))
	return sessions, nil
}

// AddVisitorLog stores a completed visitor intake record.
func (s *PostgresStore) AddVisitorLog(l models.VisitorLog) error {
	query := `INSERT INTO visitor_logs (session_id, name, phone, purpose, host, photo_captured, host_notified, time)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.Exec(query, l.SessionID, l.Name, l.Phone, l.Purpose, l.Host, l.PhotoCaptured, l.HostNotified, l.Time)
	if err != nil {
		slog.Error("PostgresStore AddVisitorLog failed", "error", err, "session_id", l.SessionID)
		return fmt.Errorf("failed to insert visitor log for %s: %w", l.SessionID, err)
	}
	slog.Debug("PostgresStore AddVisitorLog succeeded", "session_id", l.SessionID)
	return nil
}

// GetVisitorLogs returns all visitor log records.
func (s *PostgresStore) GetVisitorLogs() ([]models.VisitorLog, error) {
	rows, err := s.db.Query(`SELECT session_id, name, phone, purpose, host, photo_captured, host_notified, time FROM visitor_logs ORDER BY id`)
	if err != nil {
		slog.Error("PostgresStore GetVisitorLogs query failed", "error", err)
		return nil, fmt.Errorf("failed to query visitor logs: %w", err)
	}
	defer rows.Close()

	var logs []models.VisitorLog
	for rows.Next() {
		var l models.VisitorLog
		if err := rows.Scan(&l.SessionID, &l.Name, &l.Phone, &l.Purpose, &l.Host, &l.PhotoCaptured, &l.HostNotified, &l.Time); err != nil {
			slog.Error("PostgresStore GetVisitorLogs scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan visitor log row: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetVisitorLogs rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate visitor log rows: %w", err)
	}
	slog.Debug("PostgresStore GetVisitorLogs succeeded", "count", len(logs))
	return logs, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
