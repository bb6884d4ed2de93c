package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/openlobby/LobbyPipe/internal/models"
)

func sampleSession(id string) models.FlowSession {
	now := time.Now().UTC().Truncate(time.Second)
	return models.FlowSession{
		ID:       id,
		State:    models.StateVisitorInfoCollection,
		UserType: models.UserTypeVisitor,
		VisitorData: map[models.VisitorField]string{
			models.VisitorFieldName: "John Doe",
		},
		VerificationAttempts: 1,
		CreatedAt:            now,
		LastActivityAt:       now,
	}
}

// exerciseStore runs the session and visitor-log round trips against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	got, err := s.GetFlowSession("s_missing")
	if err != nil || got != nil {
		t.Fatalf("GetFlowSession missing = %v, %v; want nil, nil", got, err)
	}

	session := sampleSession("s_1")
	session.Employee = &models.EmployeeRecord{ID: "E100", Name: "Priya Raman"}
	if err := s.SaveFlowSession(session); err != nil {
		t.Fatalf("SaveFlowSession: %v", err)
	}

	got, err = s.GetFlowSession("s_1")
	if err != nil {
		t.Fatalf("GetFlowSession: %v", err)
	}
	if got.State != models.StateVisitorInfoCollection || got.UserType != models.UserTypeVisitor {
		t.Errorf("round trip state = %s/%s", got.State, got.UserType)
	}
	if got.Employee == nil || got.Employee.ID != "E100" {
		t.Errorf("round trip employee = %+v, want E100", got.Employee)
	}
	if got.VisitorData[models.VisitorFieldName] != "John Doe" {
		t.Errorf("round trip visitor data = %v", got.VisitorData)
	}
	if got.VerificationAttempts != 1 {
		t.Errorf("round trip attempts = %d, want 1", got.VerificationAttempts)
	}

	// Save again with a new state: must update, not duplicate.
	session.State = models.StateHostNotification
	if err := s.SaveFlowSession(session); err != nil {
		t.Fatalf("SaveFlowSession update: %v", err)
	}
	if err := s.SaveFlowSession(sampleSession("s_2")); err != nil {
		t.Fatalf("SaveFlowSession second: %v", err)
	}

	sessions, err := s.ListFlowSessions()
	if err != nil {
		t.Fatalf("ListFlowSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("ListFlowSessions count = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "s_1" || sessions[0].State != models.StateHostNotification {
		t.Errorf("ListFlowSessions[0] = %s/%s", sessions[0].ID, sessions[0].State)
	}

	if err := s.DeleteFlowSession("s_1"); err != nil {
		t.Fatalf("DeleteFlowSession: %v", err)
	}
	if got, _ := s.GetFlowSession("s_1"); got != nil {
		t.Error("session should be gone after delete")
	}

	log := models.VisitorLog{
		SessionID: "s_2", Name: "John Doe", Phone: "+15550199",
		Purpose: "meeting", Host: "Priya Raman",
		PhotoCaptured: true, HostNotified: true,
		Time: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.AddVisitorLog(log); err != nil {
		t.Fatalf("AddVisitorLog: %v", err)
	}
	logs, err := s.GetVisitorLogs()
	if err != nil {
		t.Fatalf("GetVisitorLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Name != "John Doe" || !logs[0].HostNotified {
		t.Errorf("GetVisitorLogs = %+v", logs)
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestInMemoryStoreCopies(t *testing.T) {
	s := NewInMemoryStore()
	session := sampleSession("s_1")
	if err := s.SaveFlowSession(session); err != nil {
		t.Fatal(err)
	}

	// Mutating the retrieved copy must not change the stored session.
	got, _ := s.GetFlowSession("s_1")
	got.VisitorData[models.VisitorFieldPhone] = "+10000000"
	again, _ := s.GetFlowSession("s_1")
	if again.VisitorData[models.VisitorFieldPhone] != "" {
		t.Error("stored session mutated through a returned copy")
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "lobbypipe.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestNewSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("missing DSN should be rejected")
	}
}

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want DSNType
	}{
		{"postgres://user:pw@localhost/db", DSNTypePostgres},
		{"postgresql://localhost/db", DSNTypePostgres},
		{"host=localhost dbname=lobbypipe sslmode=disable", DSNTypePostgres},
		{"/var/lib/lobbypipe/state.db", DSNTypeSQLite},
		{"lobbypipe.db", DSNTypeSQLite},
	}
	for _, tt := range tests {
		if got := DetectDSNType(tt.dsn); got != tt.want {
			t.Errorf("DetectDSNType(%q) = %s, want %s", tt.dsn, got, tt.want)
		}
	}
}
