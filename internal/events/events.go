// Package events is the append-only journal shared by every subsystem.
// Rows are never updated or deleted; event_id is a UUIDv7 so id order is
// insertion order.
package events

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

// DBName is the logical database name.
const DBName = "events"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS events (
  event_id TEXT PRIMARY KEY,           -- uuid7
  source TEXT NOT NULL,                -- owning subsystem (bridge, memory, cli, ...)
  event_type TEXT NOT NULL,            -- free-form dotted type
  agent_id TEXT,                       -- null for system-level events
  data TEXT,                           -- opaque payload, usually JSON
  timestamp INTEGER NOT NULL           -- unix seconds
);

CREATE INDEX IF NOT EXISTS idx_events_source ON events(source);
CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

func init() {
	store.Register(store.Definition{
		Name:   DBName,
		File:   "events.db",
		Schema: schemaSQL,
	})
}

const eventColumns = "event_id, source, event_type, agent_id, data, timestamp"

// Journal wraps the events database handle.
type Journal struct {
	db *sql.DB
}

// NewJournal wraps an open events database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Emit appends one event. agentID and data may be empty.
func (j *Journal) Emit(source, eventType, agentID, data string) (types.Event, error) {
	id, err := core.NewID()
	if err != nil {
		return types.Event{}, err
	}

	event := types.Event{
		EventID:   id,
		Source:    source,
		EventType: eventType,
		Timestamp: time.Now().Unix(),
	}
	var agentValue, dataValue any
	if agentID != "" {
		agentValue = agentID
		event.AgentID = &agentID
	}
	if data != "" {
		dataValue = data
		event.Data = &data
	}

	_, err = j.db.Exec(
		"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		event.EventID, source, eventType, agentValue, dataValue, event.Timestamp,
	)
	if err != nil {
		return types.Event{}, fmt.Errorf("%w: emit event: %v", core.ErrStorage, err)
	}
	return event, nil
}

// Filter narrows a journal query. Zero values mean no constraint.
type Filter struct {
	Source  string
	AgentID string
	Type    string
	Limit   int
}

// Query returns events newest first.
func (j *Journal) Query(filter Filter) ([]types.Event, error) {
	var conditions []string
	var params []any

	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		params = append(params, filter.Source)
	}
	if filter.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		params = append(params, filter.AgentID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "event_type = ?")
		params = append(params, filter.Type)
	}

	query := "SELECT " + eventColumns + " FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY event_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, filter.Limit)
	}

	rows, err := j.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountByType counts events of one type for an agent. Used by lifecycle
// for sleep and spawn counters.
func (j *Journal) CountByType(agentID, eventType string) (int64, error) {
	var count int64
	err := j.db.QueryRow(
		"SELECT COUNT(*) FROM events WHERE agent_id = ? AND event_type = ?",
		agentID, eventType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count events: %v", core.ErrStorage, err)
	}
	return count, nil
}

// DistinctAgents returns every agent_id referenced in the journal.
func (j *Journal) DistinctAgents() ([]string, error) {
	rows, err := j.db.Query("SELECT DISTINCT agent_id FROM events WHERE agent_id IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("%w: distinct agents: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var agents []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		agents = append(agents, id)
	}
	return agents, rows.Err()
}

// DB exposes the underlying handle for cross-store aggregation.
func (j *Journal) DB() *sql.DB {
	return j.db
}

func scanEvents(rows *sql.Rows) ([]types.Event, error) {
	var events []types.Event
	for rows.Next() {
		var event types.Event
		var agentID, data sql.NullString
		if err := rows.Scan(&event.EventID, &event.Source, &event.EventType, &agentID, &data, &event.Timestamp); err != nil {
			return nil, err
		}
		if agentID.Valid {
			event.AgentID = &agentID.String
		}
		if data.Valid {
			event.Data = &data.String
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
