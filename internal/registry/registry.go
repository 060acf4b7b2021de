// Package registry tracks agent identities and their content-addressed
// constitutions. Agents are created lazily on first reference by name;
// aliases and canonical pointers merge identities without rewriting
// history.
package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

// DBName is the logical database name.
const DBName = "registry"

// Source is the journal source for registry mutations.
const Source = "identity"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS agents (
  agent_id TEXT PRIMARY KEY,           -- uuid7
  name TEXT,                           -- display name, not unique
  self_description TEXT,               -- mutable self-model text
  canonical_id TEXT,                   -- merge pointer to another agent_id
  created_at INTEGER NOT NULL,
  archived_at INTEGER                  -- soft archive
);

CREATE INDEX IF NOT EXISTS idx_agents_name ON agents(name);

CREATE TABLE IF NOT EXISTS agent_aliases (
  alias TEXT PRIMARY KEY,
  agent_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_aliases_agent ON agent_aliases(agent_id);

CREATE TABLE IF NOT EXISTS constitutions (
  hash TEXT PRIMARY KEY,               -- sha256 of content
  content TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

func init() {
	store.Register(store.Definition{
		Name:   DBName,
		File:   "registry.db",
		Schema: schemaSQL,
	})
}

const agentColumns = "agent_id, name, self_description, canonical_id, created_at, archived_at"

// EnsureAgent returns the agent_id for a name, creating the agent (and an
// alias row) if absent. Idempotent.
func EnsureAgent(db *sql.DB, journal *events.Journal, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: agent name required", core.ErrValidation)
	}

	if id, err := GetAgentID(db, name); err != nil {
		return "", err
	} else if id != "" {
		return id, nil
	}

	id, err := core.NewID()
	if err != nil {
		return "", err
	}
	now := time.Now().Unix()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("%w: begin ensure agent: %v", core.ErrStorage, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO agents (agent_id, name, created_at) VALUES (?, ?, ?)",
		id, name, now,
	); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("%w: insert agent: %v", core.ErrStorage, err)
	}
	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO agent_aliases (alias, agent_id) VALUES (?, ?)",
		name, id,
	); err != nil {
		_ = tx.Rollback()
		return "", fmt.Errorf("%w: insert alias: %v", core.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("%w: commit ensure agent: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "agent.create", id, name)
	}
	return id, nil
}

// GetAgentID resolves a name or alias to an agent_id, following canonical
// pointers to the root. Returns "" when unknown.
func GetAgentID(db *sql.DB, nameOrAlias string) (string, error) {
	var id string
	err := db.QueryRow(
		"SELECT agent_id FROM agents WHERE name = ? ORDER BY created_at LIMIT 1",
		nameOrAlias,
	).Scan(&id)
	if err == sql.ErrNoRows {
		err = db.QueryRow(
			"SELECT agent_id FROM agent_aliases WHERE alias = ?",
			nameOrAlias,
		).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: look up agent: %v", core.ErrStorage, err)
	}
	return resolveCanonical(db, id)
}

// resolveCanonical walks canonical_id pointers to the root of the forest.
func resolveCanonical(db *sql.DB, id string) (string, error) {
	visited := map[string]struct{}{}
	current := id
	for {
		if _, seen := visited[current]; seen {
			return current, nil
		}
		visited[current] = struct{}{}

		var canonical sql.NullString
		err := db.QueryRow(
			"SELECT canonical_id FROM agents WHERE agent_id = ?", current,
		).Scan(&canonical)
		if err == sql.ErrNoRows {
			return current, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: resolve canonical: %v", core.ErrStorage, err)
		}
		if !canonical.Valid || canonical.String == "" {
			return current, nil
		}
		current = canonical.String
	}
}

// GetAgentName returns the display name for an agent_id, or nil.
func GetAgentName(db *sql.DB, agentID string) (*string, error) {
	var name sql.NullString
	err := db.QueryRow("SELECT name FROM agents WHERE agent_id = ?", agentID).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get agent name: %v", core.ErrStorage, err)
	}
	if !name.Valid {
		return nil, nil
	}
	return &name.String, nil
}

// GetAgent returns the full agent row.
func GetAgent(db *sql.DB, agentID string) (*types.Agent, error) {
	row := db.QueryRow("SELECT "+agentColumns+" FROM agents WHERE agent_id = ?", agentID)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get agent: %v", core.ErrStorage, err)
	}
	return &agent, nil
}

// RenameAgent changes an agent's display name. Fails with Conflict when
// the new name is already taken by an agent or alias.
func RenameAgent(db *sql.DB, journal *events.Journal, old, new string) error {
	existing, err := GetAgentID(db, new)
	if err != nil {
		return err
	}
	if existing != "" {
		return &core.ConflictError{Kind: "agent", Name: new}
	}

	id, err := GetAgentID(db, old)
	if err != nil {
		return err
	}
	if id == "" {
		return &core.NotFoundError{Kind: "agent", Ref: old}
	}

	if _, err := db.Exec("UPDATE agents SET name = ? WHERE agent_id = ?", new, id); err != nil {
		return fmt.Errorf("%w: rename agent: %v", core.ErrStorage, err)
	}
	if _, err := db.Exec(
		"INSERT OR IGNORE INTO agent_aliases (alias, agent_id) VALUES (?, ?)", new, id,
	); err != nil {
		return fmt.Errorf("%w: alias new name: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "agent.rename", id, fmt.Sprintf("%s -> %s", old, new))
	}
	return nil
}

// SetSelfDescription upserts an agent's self-model text, creating the
// agent if needed.
func SetSelfDescription(db *sql.DB, journal *events.Journal, name, text string) error {
	id, err := EnsureAgent(db, journal, name)
	if err != nil {
		return err
	}
	if _, err := db.Exec("UPDATE agents SET self_description = ? WHERE agent_id = ?", text, id); err != nil {
		return fmt.Errorf("%w: set self description: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "agent.describe", id, "")
	}
	return nil
}

// GetSelfDescription returns an agent's self-model text, or nil.
func GetSelfDescription(db *sql.DB, name string) (*string, error) {
	id, err := GetAgentID(db, name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	var text sql.NullString
	err = db.QueryRow("SELECT self_description FROM agents WHERE agent_id = ?", id).Scan(&text)
	if err == sql.ErrNoRows || !text.Valid {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get self description: %v", core.ErrStorage, err)
	}
	return &text.String, nil
}

// AddAlias maps an extra name onto an agent_id.
func AddAlias(db *sql.DB, journal *events.Journal, agentID, alias string) error {
	if _, err := db.Exec(
		"INSERT OR IGNORE INTO agent_aliases (alias, agent_id) VALUES (?, ?)",
		alias, agentID,
	); err != nil {
		return fmt.Errorf("%w: add alias: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "agent.alias", agentID, alias)
	}
	return nil
}

// SetCanonical points an agent at its canonical identity.
func SetCanonical(db *sql.DB, journal *events.Journal, agentID, canonicalID string) error {
	if agentID == canonicalID {
		return fmt.Errorf("%w: agent cannot be its own canonical", core.ErrValidation)
	}
	if _, err := db.Exec("UPDATE agents SET canonical_id = ? WHERE agent_id = ?", canonicalID, agentID); err != nil {
		return fmt.Errorf("%w: set canonical: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "agent.merge", agentID, canonicalID)
	}
	return nil
}

// ArchiveAgent soft-archives an agent.
func ArchiveAgent(db *sql.DB, journal *events.Journal, agentID string) error {
	result, err := db.Exec(
		"UPDATE agents SET archived_at = ? WHERE agent_id = ? AND archived_at IS NULL",
		time.Now().Unix(), agentID,
	)
	if err != nil {
		return fmt.Errorf("%w: archive agent: %v", core.ErrStorage, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "agent", Ref: agentID}
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "agent.archive", agentID, "")
	}
	return nil
}

// ListAgents returns agents, optionally including archived ones.
func ListAgents(db *sql.DB, includeArchived bool) ([]types.Agent, error) {
	query := "SELECT " + agentColumns + " FROM agents"
	if !includeArchived {
		query += " WHERE archived_at IS NULL"
	}
	query += " ORDER BY created_at"

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: list agents: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var agents []types.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

func scanAgent(scanner interface{ Scan(dest ...any) error }) (types.Agent, error) {
	var agent types.Agent
	var name, selfDescription, canonicalID sql.NullString
	var archivedAt sql.NullInt64
	if err := scanner.Scan(&agent.AgentID, &name, &selfDescription, &canonicalID, &agent.CreatedAt, &archivedAt); err != nil {
		return types.Agent{}, err
	}
	if name.Valid {
		agent.Name = &name.String
	}
	if selfDescription.Valid {
		agent.SelfDescription = &selfDescription.String
	}
	if canonicalID.Valid {
		agent.CanonicalID = &canonicalID.String
	}
	if archivedAt.Valid {
		agent.ArchivedAt = &archivedAt.Int64
	}
	return agent, nil
}
