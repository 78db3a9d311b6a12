package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"postgres", Postgres, "postgres", false},
		{"unknown", DialectType("unknown"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantErr    bool
	}{
		{"sqlite", "sqlite", false},
		{"sqlite3", "sqlite", false},
		{"postgres", "postgres", false},
		{"postgresql", "postgres", false},
		{"mysql", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestSQLiteDialect_Rebind(t *testing.T) {
	d := &sqliteDialect{}
	query := "SELECT body FROM bootcamps WHERE id = ?"
	if got := d.Rebind(query); got != query {
		t.Errorf("Rebind() = %v, want %v", got, query)
	}
}

func TestPostgresDialect_Rebind(t *testing.T) {
	d := &postgresDialect{}
	tests := []struct {
		query string
		want  string
	}{
		{"SELECT body FROM bootcamps WHERE id = ?", "SELECT body FROM bootcamps WHERE id = $1"},
		{"UPDATE courses SET body = ?, updated_at = ? WHERE id = ?", "UPDATE courses SET body = $1, updated_at = $2 WHERE id = $3"},
		{"SELECT COUNT(*) FROM reviews", "SELECT COUNT(*) FROM reviews"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := d.Rebind(tt.query); got != tt.want {
				t.Errorf("Rebind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	sqlite := &sqliteDialect{}
	postgres := &postgresDialect{}

	if !sqlite.IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: bootcamps.id (1555)")) {
		t.Error("sqlite: expected unique violation")
	}
	if sqlite.IsUniqueViolation(errors.New("no such table")) {
		t.Error("sqlite: unexpected unique violation")
	}
	if sqlite.IsUniqueViolation(nil) {
		t.Error("sqlite: nil is not a violation")
	}

	wrapped := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	if !postgres.IsUniqueViolation(wrapped) {
		t.Error("postgres: expected unique violation")
	}
	if postgres.IsUniqueViolation(&pq.Error{Code: "42P01"}) {
		t.Error("postgres: undefined_table is not a unique violation")
	}
}

func TestDialect_Types(t *testing.T) {
	sqlite := &sqliteDialect{}
	postgres := &postgresDialect{}

	if sqlite.TimestampType() != "TIMESTAMP" {
		t.Errorf("sqlite TimestampType() = %v", sqlite.TimestampType())
	}
	if postgres.TimestampType() != "TIMESTAMP WITH TIME ZONE" {
		t.Errorf("postgres TimestampType() = %v", postgres.TimestampType())
	}
	if len(sqlite.PragmaStatements()) == 0 {
		t.Error("sqlite should have pragma statements")
	}
	if postgres.PragmaStatements() != nil {
		t.Error("postgres should not have pragma statements")
	}
}
