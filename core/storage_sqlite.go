package core

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage persists metrics and incidents in a single SQLite database
type SQLiteStorage struct {
	db         *sql.DB
	dataDir    string
	config     StorageConfig
	sqlitePath string
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dataDir string, config StorageConfig) *SQLiteStorage {
	sqlitePath := config.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(dataDir, "healthwatch.db")
	}

	return &SQLiteStorage{
		dataDir:    dataDir,
		config:     config,
		sqlitePath: sqlitePath,
	}
}

// Initialize opens the database and creates the schema
func (s *SQLiteStorage) Initialize() error {
	// Expand environment variables and ~ in the path
	expandedPath := os.ExpandEnv(s.sqlitePath)
	if strings.HasPrefix(expandedPath, "~/") {
		home := os.Getenv("HOME")
		if home != "" {
			expandedPath = filepath.Join(home, expandedPath[2:])
		}
	}
	s.sqlitePath = expandedPath

	dir := filepath.Dir(s.sqlitePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.sqlitePath)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	s.db = db

	if err := s.configureSQLite(); err != nil {
		return fmt.Errorf("failed to configure sqlite: %w", err)
	}

	if err := s.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := s.createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// configureSQLite applies connection pragmas
func (s *SQLiteStorage) configureSQLite() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// WAL keeps concurrent scheduled jobs from blocking each other on writes
	if s.config.SQLiteWAL {
		if _, err := s.db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			return err
		}
	}

	if s.config.SQLiteCacheSize > 0 {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA cache_size = %d", s.config.SQLiteCacheSize)); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		return err
	}

	return nil
}

// createTables creates the metrics and incidents tables
func (s *SQLiteStorage) createTables() error {
	createMetricsSQL := `
	CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		check_name TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		error_message TEXT,
		metadata TEXT,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := s.db.Exec(createMetricsSQL); err != nil {
		return fmt.Errorf("failed to create metrics table: %w", err)
	}

	createIncidentsSQL := `
	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		check_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		first_seen DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		failure_count INTEGER NOT NULL,
		acknowledged_at DATETIME,
		acknowledged_by TEXT,
		resolved_at DATETIME
	);`

	if _, err := s.db.Exec(createIncidentsSQL); err != nil {
		return fmt.Errorf("failed to create incidents table: %w", err)
	}

	return nil
}

// createIndexes creates query indexes
func (s *SQLiteStorage) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_metrics_check_timestamp ON metrics(check_name, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON metrics(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_incidents_check_status ON incidents(check_name, status)",
		"CREATE INDEX IF NOT EXISTS idx_incidents_first_seen ON incidents(first_seen)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// SaveMetric durably appends one check outcome
func (s *SQLiteStorage) SaveMetric(result CheckResult) error {
	if s.db == nil {
		return fmt.Errorf("sqlite database not initialized")
	}

	var metadata []byte
	if len(result.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(result.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO metrics (check_name, status, duration_ms, error_message, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		result.CheckName,
		string(result.Status),
		result.DurationMS,
		result.ErrorMessage,
		string(metadata),
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}

	return nil
}

// scanMetrics reads metric rows into a slice
func scanMetrics(rows *sql.Rows) ([]Metric, error) {
	var metrics []Metric
	for rows.Next() {
		var m Metric
		var status, errMsg, metadata sql.NullString
		err := rows.Scan(&m.ID, &m.CheckName, &status, &m.DurationMS, &errMsg, &metadata, &m.Timestamp, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		m.Status = CheckStatus(status.String)
		m.ErrorMessage = errMsg.String
		if metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				log.Printf("Warning: failed to decode metric metadata (id=%d): %v", m.ID, err)
			}
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// RecentOutcomes returns the last n outcomes for a check, newest first
func (s *SQLiteStorage) RecentOutcomes(checkName string, n int) ([]Metric, error) {
	rows, err := s.db.Query(`
		SELECT id, check_name, status, duration_ms, error_message, metadata, timestamp, created_at
		FROM metrics
		WHERE check_name = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, checkName, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent outcomes: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// MetricsByTimeRange returns metrics for a check within [start, end], oldest first
func (s *SQLiteStorage) MetricsByTimeRange(checkName string, start, end time.Time) ([]Metric, error) {
	rows, err := s.db.Query(`
		SELECT id, check_name, status, duration_ms, error_message, metadata, timestamp, created_at
		FROM metrics
		WHERE check_name = ? AND timestamp BETWEEN ? AND ?
		ORDER BY timestamp ASC, id ASC`, checkName, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics by time range: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// Uptime returns the fraction of pass outcomes over the trailing window
func (s *SQLiteStorage) Uptime(checkName string, window time.Duration) (float64, error) {
	cutoff := time.Now().Add(-window)

	var total, passed int
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'pass' THEN 1 ELSE 0 END), 0)
		FROM metrics
		WHERE check_name = ? AND timestamp >= ?`, checkName, cutoff).Scan(&total, &passed)
	if err != nil {
		return 0, fmt.Errorf("failed to query uptime: %w", err)
	}

	if total == 0 {
		return 1.0, nil
	}
	return float64(passed) / float64(total), nil
}

// LatestMetricTime returns the newest metric timestamp of any check
func (s *SQLiteStorage) LatestMetricTime() (time.Time, error) {
	var ts sql.NullTime
	err := s.db.QueryRow("SELECT MAX(timestamp) FROM metrics").Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest metric time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// CleanOldData deletes metrics beyond retention. Incidents live in their
// own table and are never purged here.
func (s *SQLiteStorage) CleanOldData(keepDays int) error {
	cutoff := time.Now().AddDate(0, 0, -keepDays)

	result, err := s.db.Exec("DELETE FROM metrics WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete old metrics: %w", err)
	}

	deletedRows, _ := result.RowsAffected()
	if deletedRows > 0 {
		log.Printf("Cleaned up %d old metrics (older than %d days)", deletedRows, keepDays)
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		log.Printf("Warning: failed to vacuum database: %v", err)
	}

	return nil
}

// CreateIncident inserts a new incident row
func (s *SQLiteStorage) CreateIncident(incident *Incident) error {
	_, err := s.db.Exec(`
		INSERT INTO incidents (id, check_name, severity, status, first_seen, last_seen, failure_count, acknowledged_at, acknowledged_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		incident.ID,
		incident.CheckName,
		string(incident.Severity),
		string(incident.Status),
		incident.FirstSeen,
		incident.LastSeen,
		incident.FailureCount,
		incident.AcknowledgedAt,
		incident.AcknowledgedBy,
		incident.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// UpdateIncident persists mutations to an existing incident
func (s *SQLiteStorage) UpdateIncident(incident *Incident) error {
	result, err := s.db.Exec(`
		UPDATE incidents
		SET severity = ?, status = ?, last_seen = ?, failure_count = ?, acknowledged_at = ?, acknowledged_by = ?, resolved_at = ?
		WHERE id = ?`,
		string(incident.Severity),
		string(incident.Status),
		incident.LastSeen,
		incident.FailureCount,
		incident.AcknowledgedAt,
		incident.AcknowledgedBy,
		incident.ResolvedAt,
		incident.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("incident not found: %s", incident.ID)
	}
	return nil
}

// scanIncident reads one incident row
func scanIncident(row interface{ Scan(...interface{}) error }) (*Incident, error) {
	var inc Incident
	var severity, status string
	var ackAt, resolvedAt sql.NullTime
	var ackBy sql.NullString
	err := row.Scan(&inc.ID, &inc.CheckName, &severity, &status, &inc.FirstSeen, &inc.LastSeen, &inc.FailureCount, &ackAt, &ackBy, &resolvedAt)
	if err != nil {
		return nil, err
	}
	inc.Severity = Severity(severity)
	inc.Status = IncidentStatus(status)
	if ackAt.Valid {
		t := ackAt.Time
		inc.AcknowledgedAt = &t
	}
	inc.AcknowledgedBy = ackBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		inc.ResolvedAt = &t
	}
	return &inc, nil
}

const incidentColumns = "id, check_name, severity, status, first_seen, last_seen, failure_count, acknowledged_at, acknowledged_by, resolved_at"

// GetIncident fetches one incident by id, nil when not found
func (s *SQLiteStorage) GetIncident(id string) (*Incident, error) {
	row := s.db.QueryRow("SELECT "+incidentColumns+" FROM incidents WHERE id = ?", id)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return inc, nil
}

// FindOpenIncident returns the active or acknowledged incident for a check
func (s *SQLiteStorage) FindOpenIncident(checkName string) (*Incident, error) {
	row := s.db.QueryRow(
		"SELECT "+incidentColumns+" FROM incidents WHERE check_name = ? AND status IN ('active', 'acknowledged') ORDER BY first_seen DESC LIMIT 1",
		checkName)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open incident: %w", err)
	}
	return inc, nil
}

// ListIncidents returns incidents newest first, optionally filtered by status
func (s *SQLiteStorage) ListIncidents(status IncidentStatus, limit int) ([]Incident, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.Query("SELECT "+incidentColumns+" FROM incidents ORDER BY first_seen DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT "+incidentColumns+" FROM incidents WHERE status = ? ORDER BY first_seen DESC LIMIT ?", string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		incidents = append(incidents, *inc)
	}
	return incidents, rows.Err()
}

// GetStorageInfo returns storage statistics
func (s *SQLiteStorage) GetStorageInfo() StorageInfo {
	info := StorageInfo{
		Type:     "sqlite",
		FilePath: s.sqlitePath,
	}

	s.db.QueryRow("SELECT COUNT(*) FROM metrics").Scan(&info.TotalMetrics)
	s.db.QueryRow("SELECT COUNT(*) FROM incidents WHERE status IN ('active', 'acknowledged')").Scan(&info.OpenIncidents)

	var oldest, newest sql.NullTime
	s.db.QueryRow("SELECT MIN(timestamp) FROM metrics").Scan(&oldest)
	s.db.QueryRow("SELECT MAX(timestamp) FROM metrics").Scan(&newest)
	if oldest.Valid {
		info.OldestMetric = oldest.Time
	}
	if newest.Valid {
		info.NewestMetric = newest.Time
	}

	if stat, err := os.Stat(s.sqlitePath); err == nil {
		info.TotalSize = stat.Size()
		info.LastModified = stat.ModTime()
	}

	return info
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
