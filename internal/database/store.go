// Package database provides the storage layer for Pulse.
//
// It implements the Store interface using SQLite with WAL mode and an
// embedded schema. The DBService struct is the primary entry point for
// the sample client dataset and the persisted theme preference.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store defines the interface for dashboard data persistence.
// This abstraction allows for fakes in tests.
type Store interface {
	// InsertClient upserts a single client account.
	InsertClient(client *Client) error
	// BatchInsertClients upserts many clients in a single transaction.
	BatchInsertClients(clients []*Client) error

	// QueryClients returns clients matching the filter, ordered by name.
	QueryClients(filter ClientFilter) ([]*Client, error)
	// CountClients returns the number of stored clients.
	CountClients() (int, error)
	// GetDashboardStats returns portfolio-wide totals.
	GetDashboardStats() (*DashboardStats, error)

	// Get returns a stored preference value and whether it exists.
	Get(key string) (string, bool, error)
	// Set stores a preference value.
	Set(key, value string) error

	// Close gracefully shuts down the database connection.
	Close() error
}

// ============================================================
// Domain Models
// ============================================================

// Client is one account in the portfolio.
type Client struct {
	ClientID  string   `json:"client_id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Industry  string   `json:"industry" yaml:"industry"`
	Manager   string   `json:"manager" yaml:"manager"`
	Health    float64  `json:"health" yaml:"health"`
	Revenue   float64  `json:"revenue" yaml:"revenue"`
	Region    string   `json:"region,omitempty" yaml:"region"`
	Lat       *float64 `json:"lat,omitempty" yaml:"lat"`
	Lng       *float64 `json:"lng,omitempty" yaml:"lng"`
	UpdatedAt int64    `json:"updated_at" yaml:"-"`
}

// ClientFilter defines query parameters for client listing.
type ClientFilter struct {
	Manager   *string  `json:"manager,omitempty"`
	Industry  *string  `json:"industry,omitempty"`
	Region    *string  `json:"region,omitempty"`
	MinHealth *float64 `json:"min_health,omitempty"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// DashboardStats holds portfolio-wide totals.
type DashboardStats struct {
	Clients      int     `json:"clients"`
	Managers     int     `json:"managers"`
	Industries   int     `json:"industries"`
	TotalRevenue float64 `json:"total_revenue"`
	AvgHealth    float64 `json:"avg_health"`
	AtRisk       int     `json:"at_risk"`
	LastUpdated  int64   `json:"last_updated"`
}

// AtRiskThreshold is the health score below which a client counts as at risk.
const AtRiskThreshold = 50

// ============================================================
// DBService Implementation
// ============================================================

// DBService implements the Store interface using SQLite.
// It manages the connection pool and prepared statements, and
// serializes writers through a read-write mutex.
type DBService struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	stmtUpsertClient *sql.Stmt
	stmtGetPref      *sql.Stmt
	stmtSetPref      *sql.Stmt
}

// NewDBService opens the database, initializes the schema and prepares
// frequently-used statements.
//
// Use ":memory:" for in-memory databases (useful for testing).
func NewDBService(path string) (*DBService, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", path, err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	svc := &DBService{
		db:   db,
		path: path,
	}

	if err := svc.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	if err := svc.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}

	return svc, nil
}

func (s *DBService) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}

	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

func (s *DBService) prepareStatements() error {
	var err error

	s.stmtUpsertClient, err = s.db.Prepare(`
		INSERT INTO clients (client_id, name, industry, manager, health, revenue, region, lat, lng, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			name = excluded.name,
			industry = excluded.industry,
			manager = excluded.manager,
			health = excluded.health,
			revenue = excluded.revenue,
			region = excluded.region,
			lat = COALESCE(excluded.lat, clients.lat),
			lng = COALESCE(excluded.lng, clients.lng),
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing UpsertClient: %w", err)
	}

	s.stmtGetPref, err = s.db.Prepare(`SELECT value FROM preferences WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("preparing GetPreference: %w", err)
	}

	s.stmtSetPref, err = s.db.Prepare(`
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing SetPreference: %w", err)
	}

	return nil
}

func (s *DBService) execUpsert(stmt *sql.Stmt, c *Client) error {
	updated := c.UpdatedAt
	if updated == 0 {
		updated = time.Now().UnixNano()
	}
	_, err := stmt.Exec(
		c.ClientID, c.Name, c.Industry, c.Manager, c.Health, c.Revenue,
		c.Region, c.Lat, c.Lng, updated,
	)
	return err
}

// InsertClient upserts a client record.
func (s *DBService) InsertClient(client *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.execUpsert(s.stmtUpsertClient, client); err != nil {
		return fmt.Errorf("inserting client %s: %w", client.ClientID, err)
	}
	return nil
}

// BatchInsertClients upserts multiple clients within a single transaction.
func (s *DBService) BatchInsertClients(clients []*Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch client transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt := tx.Stmt(s.stmtUpsertClient)
	for _, c := range clients {
		if err := s.execUpsert(stmt, c); err != nil {
			return fmt.Errorf("batch inserting client %s: %w", c.ClientID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch client transaction: %w", err)
	}
	return nil
}

// QueryClients returns clients matching the given filter, ordered by name.
func (s *DBService) QueryClients(filter ClientFilter) ([]*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT client_id, name, industry, manager, health, revenue, region, lat, lng, updated_at
		FROM clients WHERE 1=1`
	args := make([]interface{}, 0)

	if filter.Manager != nil {
		query += ` AND manager = ?`
		args = append(args, *filter.Manager)
	}
	if filter.Industry != nil {
		query += ` AND industry = ?`
		args = append(args, *filter.Industry)
	}
	if filter.Region != nil {
		query += ` AND region = ?`
		args = append(args, *filter.Region)
	}
	if filter.MinHealth != nil {
		query += ` AND health >= ?`
		args = append(args, *filter.MinHealth)
	}

	query += ` ORDER BY name ASC, client_id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else {
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer rows.Close()

	return scanClients(rows)
}

// CountClients returns the number of stored clients.
func (s *DBService) CountClients() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM clients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting clients: %w", err)
	}
	return n, nil
}

// GetDashboardStats returns portfolio-wide totals for the header KPIs.
func (s *DBService) GetDashboardStats() (*DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &DashboardStats{}
	err := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(DISTINCT manager),
			COUNT(DISTINCT industry),
			COALESCE(SUM(revenue), 0),
			COALESCE(AVG(health), 0),
			COALESCE(SUM(CASE WHEN health < ? THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(updated_at), 0)
		FROM clients
	`, AtRiskThreshold).Scan(
		&stats.Clients, &stats.Managers, &stats.Industries,
		&stats.TotalRevenue, &stats.AvgHealth, &stats.AtRisk, &stats.LastUpdated,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dashboard stats: %w", err)
	}
	return stats, nil
}

// Get returns the preference stored under key.
func (s *DBService) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.stmtGetPref.QueryRow(key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading preference %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *DBService) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stmtSetPref.Exec(key, value, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}

// Close closes all prepared statements and the underlying connection pool.
func (s *DBService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []*sql.Stmt{s.stmtUpsertClient, s.stmtGetPref, s.stmtSetPref}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}

// ============================================================
// Scan Helpers
// ============================================================

func scanClients(rows *sql.Rows) ([]*Client, error) {
	var clients []*Client
	for rows.Next() {
		c := &Client{}
		if err := rows.Scan(
			&c.ClientID, &c.Name, &c.Industry, &c.Manager, &c.Health, &c.Revenue,
			&c.Region, &c.Lat, &c.Lng, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning client row: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
