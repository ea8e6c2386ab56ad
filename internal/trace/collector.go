// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package trace provides durable per-request classification traces. Every
// processed message leaves one trace row for audit and tuning; configured
// entity types are redacted before the row is written.
package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/tenantry/triage/internal/util"
)

const redactedValue = "[REDACTED]"

// Record is one classification trace entry.
type Record struct {
	ID               int64               `json:"id"`
	Timestamp        time.Time           `json:"timestamp"`
	EnquiryID        string              `json:"enquiry_id"`
	TenantID         string              `json:"tenant_id"`
	Domain           string              `json:"domain"`
	Intent           string              `json:"intent"`
	Priority         string              `json:"priority"`
	Sentiment        string              `json:"sentiment"`
	Method           string              `json:"method"`
	Confidence       float64             `json:"confidence"`
	Handler          string              `json:"handler"`
	Escalated        bool                `json:"escalated"`
	EscalationReason string              `json:"escalation_reason,omitempty"`
	Fallback         bool                `json:"fallback"`
	LatencyMs        int64               `json:"latency_ms"`
	Entities         map[string][]string `json:"entities,omitempty"`

	// Conversation metadata, passed through untouched by the core. The phone
	// number is masked before persistence.
	CustomerPhone string `json:"customer_phone,omitempty"`
	PriorTurns    int    `json:"prior_turns"`
}

// maskPhone keeps only the last four characters of a phone number.
func maskPhone(phone string) string {
	if phone == "" {
		return ""
	}
	if len(phone) <= 4 {
		return redactedValue
	}
	return "****" + phone[len(phone)-4:]
}

// Collector persists trace records to SQLite.
type Collector struct {
	db            *sql.DB
	dbPath        string
	retentionDays int
	redactTypes   []string
	enabled       bool
	mu            sync.RWMutex
}

// NewCollector creates a trace collector. Relative dbPath values are resolved
// under the writable data directory. redactTypes lists entity type names
// whose values are masked before persistence.
func NewCollector(dbPath string, retentionDays int, redactTypes []string) (*Collector, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Collector{
		dbPath:        dbPath,
		retentionDays: retentionDays,
		redactTypes:   redactTypes,
	}, nil
}

// Initialize opens the database and creates the schema.
func (c *Collector) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !filepath.IsAbs(c.dbPath) {
		c.dbPath = filepath.Join(util.WritablePath(), c.dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(c.dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", c.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		enquiry_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		domain TEXT NOT NULL,
		intent TEXT NOT NULL,
		priority TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		method TEXT NOT NULL,
		confidence REAL NOT NULL,
		handler TEXT NOT NULL,
		escalated INTEGER NOT NULL DEFAULT 0,
		escalation_reason TEXT,
		fallback INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL,
		entities TEXT,
		customer_phone TEXT,
		prior_turns INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_traces_enquiry ON traces(enquiry_id);
	CREATE INDEX IF NOT EXISTS idx_traces_tenant ON traces(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_traces_domain ON traces(domain);
	CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Infof("Trace collector initialized (db: %s, retention: %d days)", c.dbPath, c.retentionDays)

	c.db = db
	c.enabled = true

	go c.cleanupOldRecords(context.Background())

	return nil
}

// IsEnabled reports whether the collector accepts records.
func (c *Collector) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Record stores one trace row. Entity values for configured redaction types
// never reach the database.
func (c *Collector) Record(ctx context.Context, record *Record) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.enabled {
		return fmt.Errorf("trace collector not enabled")
	}
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	entitiesJSON, err := c.redactedEntitiesJSON(record.Entities)
	if err != nil {
		log.Warnf("Failed to serialize trace entities: %v", err)
		entitiesJSON = "{}"
	}

	query := `
	INSERT INTO traces (
		timestamp, enquiry_id, tenant_id, domain, intent, priority,
		sentiment, method, confidence, handler, escalated,
		escalation_reason, fallback, latency_ms, entities,
		customer_phone, prior_turns
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := c.db.ExecContext(ctx, query,
		record.Timestamp,
		record.EnquiryID,
		record.TenantID,
		record.Domain,
		record.Intent,
		record.Priority,
		record.Sentiment,
		record.Method,
		record.Confidence,
		record.Handler,
		boolToInt(record.Escalated),
		record.EscalationReason,
		boolToInt(record.Fallback),
		record.LatencyMs,
		entitiesJSON,
		maskPhone(record.CustomerPhone),
		record.PriorTurns,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// redactedEntitiesJSON serializes the entity map, masking every value of the
// configured redaction types in place so the stored shape still shows how
// many values were extracted.
func (c *Collector) redactedEntitiesJSON(entities map[string][]string) (string, error) {
	raw, err := json.Marshal(entities)
	if err != nil {
		return "", err
	}
	if entities == nil {
		return "{}", nil
	}

	out := string(raw)
	for _, typeName := range c.redactTypes {
		values := gjson.Get(out, typeName)
		if !values.Exists() || !values.IsArray() {
			continue
		}
		for i := range values.Array() {
			out, err = sjson.Set(out, fmt.Sprintf("%s.%d", typeName, i), redactedValue)
			if err != nil {
				return "", err
			}
		}
	}
	return out, nil
}

// GetRecent retrieves the most recent traces for a tenant. An empty tenantID
// returns traces across all tenants.
func (c *Collector) GetRecent(ctx context.Context, tenantID string, limit int) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.enabled {
		return nil, fmt.Errorf("trace collector not enabled")
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
	SELECT id, timestamp, enquiry_id, tenant_id, domain, intent, priority,
	       sentiment, method, confidence, handler, escalated,
	       escalation_reason, fallback, latency_ms, entities,
	       customer_phone, prior_turns
	FROM traces
	WHERE (? = '' OR tenant_id = ?)
	ORDER BY timestamp DESC
	LIMIT ?
	`
	rows, err := c.db.QueryContext(ctx, query, tenantID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			log.Warnf("Failed to scan trace record: %v", err)
			continue
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (c *Collector) cleanupOldRecords(ctx context.Context) {
	if !c.IsEnabled() {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -c.retentionDays)
	result, err := c.db.ExecContext(ctx, "DELETE FROM traces WHERE created_at < ?", cutoff)
	if err != nil {
		log.Warnf("Failed to cleanup old traces: %v", err)
		return
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		log.Infof("Cleaned up %d traces older than %d days", affected, c.retentionDays)
	}
}

// Shutdown runs a final retention sweep and closes the database.
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.IsEnabled() {
		c.cleanupOldRecords(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return nil
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	c.enabled = false
	return nil
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var record Record
	var escalatedInt, fallbackInt int
	var reason, entitiesJSON, phone sql.NullString

	err := rows.Scan(
		&record.ID,
		&record.Timestamp,
		&record.EnquiryID,
		&record.TenantID,
		&record.Domain,
		&record.Intent,
		&record.Priority,
		&record.Sentiment,
		&record.Method,
		&record.Confidence,
		&record.Handler,
		&escalatedInt,
		&reason,
		&fallbackInt,
		&record.LatencyMs,
		&entitiesJSON,
		&phone,
		&record.PriorTurns,
	)
	if err != nil {
		return nil, err
	}

	record.Escalated = escalatedInt != 0
	record.Fallback = fallbackInt != 0
	record.EscalationReason = reason.String
	record.CustomerPhone = phone.String
	if entitiesJSON.Valid && entitiesJSON.String != "" && entitiesJSON.String != "{}" {
		if err := json.Unmarshal([]byte(entitiesJSON.String), &record.Entities); err != nil {
			log.Warnf("Failed to unmarshal trace entities: %v", err)
		}
	}
	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
