// Package employee provides employee record stores for LobbyPipe.
//
// The coordination core resolves biometric identities and manual credentials
// against these records; the backing data lives outside the core (a CSV sheet
// for development, DynamoDB in production).
package employee

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/openlobby/LobbyPipe/internal/models"
)

// Store defines read access to employee records.
type Store interface {
	// GetByID returns the record for an employee ID, or models.ErrEmployeeNotFound.
	GetByID(ctx context.Context, id string) (*models.EmployeeRecord, error)
	// GetByEmail returns the record for an email address, or models.ErrEmployeeNotFound.
	GetByEmail(ctx context.Context, email string) (*models.EmployeeRecord, error)
	// GetByName returns the record for a spoken full name, or
	// models.ErrEmployeeNotFound. Matching is case-insensitive.
	GetByName(ctx context.Context, name string) (*models.EmployeeRecord, error)
}

// NormalizeID canonicalizes an employee ID: trims, uppercases, and strips
// everything but letters and digits (speech transcripts add stray punctuation).
func NormalizeID(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(id)) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// InMemoryStore is a map-backed employee store, seeded directly or from CSV.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]models.EmployeeRecord
	byEmail map[string]models.EmployeeRecord
	byName  map[string]models.EmployeeRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[string]models.EmployeeRecord),
		byEmail: make(map[string]models.EmployeeRecord),
		byName:  make(map[string]models.EmployeeRecord),
	}
}

// Add inserts or replaces a record.
func (s *InMemoryStore) Add(rec models.EmployeeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := NormalizeID(rec.ID)
	rec.ID = id
	s.byID[id] = rec
	if rec.Email != "" {
		s.byEmail[strings.ToLower(rec.Email)] = rec
	}
	if rec.Name != "" {
		s.byName[canonicalName(rec.Name)] = rec
	}
}

// canonicalName collapses case and whitespace for name matching.
func canonicalName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// GetByID returns the record for an employee ID.
func (s *InMemoryStore) GetByID(ctx context.Context, id string) (*models.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[NormalizeID(id)]
	if !ok {
		return nil, models.ErrEmployeeNotFound
	}
	return &rec, nil
}

// GetByEmail returns the record for an email address.
func (s *InMemoryStore) GetByEmail(ctx context.Context, email string) (*models.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, models.ErrEmployeeNotFound
	}
	return &rec, nil
}

// GetByName returns the record for a spoken full name.
func (s *InMemoryStore) GetByName(ctx context.Context, name string) (*models.EmployeeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byName[canonicalName(name)]
	if !ok {
		return nil, models.ErrEmployeeNotFound
	}
	return &rec, nil
}

// LoadCSV seeds the store from a CSV file with a header row containing at
// least EmployeeID and Name columns; Email and Phone are optional.
func (s *InMemoryStore) LoadCSV(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open employee CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("failed to read employee CSV header: %w", err)
	}

	col := make(map[string]int)
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	idIdx, ok := col["employeeid"]
	if !ok {
		return fmt.Errorf("employee CSV missing EmployeeID column")
	}
	nameIdx, ok := col["name"]
	if !ok {
		return fmt.Errorf("employee CSV missing Name column")
	}

	count := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read employee CSV row: %w", err)
		}
		rec := models.EmployeeRecord{
			ID:   row[idIdx],
			Name: strings.TrimSpace(row[nameIdx]),
		}
		if i, ok := col["email"]; ok && i < len(row) {
			rec.Email = strings.TrimSpace(row[i])
		}
		if i, ok := col["phone"]; ok && i < len(row) {
			rec.Phone = strings.TrimSpace(row[i])
		}
		if rec.ID == "" {
			continue
		}
		s.Add(rec)
		count++
	}
	slog.Info("InMemoryStore loaded employee CSV", "path", path, "records", count)
	return nil
}
