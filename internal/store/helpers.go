// Package store provides storage backends for LobbyPipe.
//
// This file holds the row encoding shared by the SQLite and Postgres backends.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// encodeSessionBlobs serializes the employee record and visitor data to JSON
// columns. Empty values encode as NULL.
func encodeSessionBlobs(session models.FlowSession) (employeeJSON, visitorJSON sql.NullString, err error) {
	if session.Employee != nil {
		b, err := json.Marshal(session.Employee)
		if err != nil {
			return employeeJSON, visitorJSON, fmt.Errorf("failed to encode employee record: %w", err)
		}
		employeeJSON = sql.NullString{String: string(b), Valid: true}
	}
	if len(session.VisitorData) > 0 {
		b, err := json.Marshal(session.VisitorData)
		if err != nil {
			return employeeJSON, visitorJSON, fmt.Errorf("failed to encode visitor data: %w", err)
		}
		visitorJSON = sql.NullString{String: string(b), Valid: true}
	}
	return employeeJSON, visitorJSON, nil
}

// scanSession reads one flow session row.
func scanSession(row rowScanner) (*models.FlowSession, error) {
	var session models.FlowSession
	var state, userType string
	var employeeJSON, visitorJSON sql.NullString

	err := row.Scan(&session.ID, &state, &userType, &employeeJSON, &visitorJSON,
		&session.VerificationAttempts, &session.CodeAttempts,
		&session.NotificationAttempted, &session.NotificationDelivered,
		&session.CreatedAt, &session.LastActivityAt)
	if err != nil {
		return nil, err
	}
	session.State = models.FlowState(state)
	session.UserType = models.UserType(userType)

	if employeeJSON.Valid && employeeJSON.String != "" {
		session.Employee = &models.EmployeeRecord{}
		if err := json.Unmarshal([]byte(employeeJSON.String), session.Employee); err != nil {
			return nil, fmt.Errorf("failed to decode employee record: %w", err)
		}
	}
	if visitorJSON.Valid && visitorJSON.String != "" {
		session.VisitorData = make(map[models.VisitorField]string)
		if err := json.Unmarshal([]byte(visitorJSON.String), &session.VisitorData); err != nil {
			return nil, fmt.Errorf("failed to decode visitor data: %w", err)
		}
	}
	return &session, nil
}
