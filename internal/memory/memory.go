// Package memory is the per-agent entry store. Entries are append-only
// in spirit: supersession replaces a set of entries with one successor
// while keeping the predecessors archived and linked, so an agent can
// always reconstruct how a memory evolved.
package memory

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

// DBName is the logical database name.
const DBName = "memory"

// Source is the journal source for memory mutations.
const Source = "memory"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS memories (
  memory_id TEXT PRIMARY KEY,          -- uuid7
  agent_id TEXT NOT NULL,
  topic TEXT NOT NULL,
  message TEXT NOT NULL,
  timestamp INTEGER NOT NULL,          -- content time; bumped by edits
  created_at INTEGER NOT NULL,
  archived_at INTEGER,                 -- set by archive or supersession
  core INTEGER NOT NULL DEFAULT 0,
  source TEXT NOT NULL DEFAULT 'manual',
  bridge_channel TEXT,                 -- channel a checkpoint came from
  code_anchors TEXT,                   -- uncommitted-change porcelain, paths
  synthesis_note TEXT,
  supersedes TEXT NOT NULL DEFAULT '', -- comma-joined predecessor ids
  superseded_by TEXT                   -- single successor id
);

CREATE INDEX IF NOT EXISTS idx_memories_agent ON memories(agent_id);
CREATE INDEX IF NOT EXISTS idx_memories_topic ON memories(topic);
CREATE INDEX IF NOT EXISTS idx_memories_source ON memories(source);
`

func init() {
	store.Register(store.Definition{
		Name:   DBName,
		File:   "memory.db",
		Schema: schemaSQL,
	})
}

const memoryColumns = "memory_id, agent_id, topic, message, timestamp, created_at, archived_at, core, source, bridge_channel, code_anchors, synthesis_note, supersedes, superseded_by"

// AddOptions describes a new entry. Zero Source means manual.
type AddOptions struct {
	AgentID       string
	Topic         string
	Message       string
	Core          bool
	Source        string
	BridgeChannel string
	CodeAnchors   string
}

// AddEntry inserts a new memory entry and returns it.
func AddEntry(db *sql.DB, journal *events.Journal, opts AddOptions) (*types.Memory, error) {
	if opts.AgentID == "" {
		return nil, fmt.Errorf("%w: identity required", core.ErrValidation)
	}
	if opts.Message == "" {
		return nil, fmt.Errorf("%w: memory message required", core.ErrValidation)
	}
	if opts.Source == "" {
		opts.Source = types.MemorySourceManual
	}

	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	entry := types.Memory{
		MemoryID:  id,
		AgentID:   opts.AgentID,
		Topic:     opts.Topic,
		Message:   opts.Message,
		Timestamp: now,
		CreatedAt: now,
		Core:      opts.Core,
		Source:    opts.Source,
	}
	if opts.BridgeChannel != "" {
		entry.BridgeChannel = &opts.BridgeChannel
	}
	if opts.CodeAnchors != "" {
		entry.CodeAnchors = &opts.CodeAnchors
	}

	if err := insertEntry(db, entry); err != nil {
		return nil, err
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "memory.add", opts.AgentID, core.ShortID(id))
	}
	return &entry, nil
}

func insertEntry(db *sql.DB, entry types.Memory) error {
	return insertEntryExec(db.Exec, entry)
}

func insertEntryExec(exec func(string, ...any) (sql.Result, error), entry types.Memory) error {
	coreFlag := 0
	if entry.Core {
		coreFlag = 1
	}
	_, err := exec(
		"INSERT INTO memories ("+memoryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		entry.MemoryID, entry.AgentID, entry.Topic, entry.Message,
		entry.Timestamp, entry.CreatedAt, nullableInt(entry.ArchivedAt), coreFlag,
		entry.Source, nullableString(entry.BridgeChannel), nullableString(entry.CodeAnchors),
		nullableString(entry.SynthesisNote), entry.Supersedes, nullableString(entry.SupersededBy),
	)
	if err != nil {
		return fmt.Errorf("%w: insert memory: %v", core.ErrStorage, err)
	}
	return nil
}

// ResolveID expands a short memory id to the full id.
func ResolveID(db *sql.DB, ref string) (string, error) {
	return store.ResolveShort(db, "memories", "memory_id", "memory", ref)
}

// GetByID returns one entry by full or short id.
func GetByID(db *sql.DB, ref string) (*types.Memory, error) {
	id, err := ResolveID(db, ref)
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+memoryColumns+" FROM memories WHERE memory_id = ?", id)
	entry, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Kind: "memory", Ref: ref}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get memory: %v", core.ErrStorage, err)
	}
	return &entry, nil
}

// GetMemories returns an agent's entries newest first, optionally scoped
// to one topic.
func GetMemories(db *sql.DB, agentID, topic string, includeArchived bool, limit int) ([]types.Memory, error) {
	query := "SELECT " + memoryColumns + " FROM memories WHERE agent_id = ?"
	params := []any{agentID}
	if topic != "" {
		query += " AND topic = ?"
		params = append(params, topic)
	}
	if !includeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY memory_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}
	return queryMemories(db, query, params...)
}

// GetCoreEntries returns the agent's active core-flagged entries.
func GetCoreEntries(db *sql.DB, agentID string) ([]types.Memory, error) {
	return queryMemories(db,
		"SELECT "+memoryColumns+" FROM memories WHERE agent_id = ? AND core = 1 AND archived_at IS NULL ORDER BY memory_id DESC",
		agentID)
}

// GetRecentEntries returns active entries from the last n days.
func GetRecentEntries(db *sql.DB, agentID string, days, limit int) ([]types.Memory, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	query := "SELECT " + memoryColumns + " FROM memories WHERE agent_id = ? AND archived_at IS NULL AND created_at >= ? ORDER BY memory_id DESC"
	params := []any{agentID, cutoff}
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}
	return queryMemories(db, query, params...)
}

// SearchEntries matches keyword against topic and message.
func SearchEntries(db *sql.DB, agentID, keyword string, includeArchived bool) ([]types.Memory, error) {
	query := "SELECT " + memoryColumns + " FROM memories WHERE agent_id = ? AND (topic LIKE ? OR message LIKE ?)"
	needle := "%" + keyword + "%"
	params := []any{agentID, needle, needle}
	if !includeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY memory_id DESC"
	return queryMemories(db, query, params...)
}

// EditEntry rewrites an entry's message and bumps its timestamp.
func EditEntry(db *sql.DB, journal *events.Journal, ref, newMessage string) (*types.Memory, error) {
	if newMessage == "" {
		return nil, fmt.Errorf("%w: memory message required", core.ErrValidation)
	}
	id, err := ResolveID(db, ref)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(
		"UPDATE memories SET message = ?, timestamp = ? WHERE memory_id = ?",
		newMessage, time.Now().Unix(), id,
	); err != nil {
		return nil, fmt.Errorf("%w: edit memory: %v", core.ErrStorage, err)
	}

	entry, err := GetByID(db, id)
	if err != nil {
		return nil, err
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "memory.edit", entry.AgentID, core.ShortID(id))
	}
	return entry, nil
}

// DeleteEntry hard-deletes an entry.
func DeleteEntry(db *sql.DB, journal *events.Journal, ref string) error {
	entry, err := GetByID(db, ref)
	if err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM memories WHERE memory_id = ?", entry.MemoryID); err != nil {
		return fmt.Errorf("%w: delete memory: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "memory.delete", entry.AgentID, core.ShortID(entry.MemoryID))
	}
	return nil
}

// ArchiveEntry soft-archives an entry.
func ArchiveEntry(db *sql.DB, journal *events.Journal, ref string) error {
	entry, err := GetByID(db, ref)
	if err != nil {
		return err
	}
	if _, err := db.Exec(
		"UPDATE memories SET archived_at = ? WHERE memory_id = ?",
		time.Now().Unix(), entry.MemoryID,
	); err != nil {
		return fmt.Errorf("%w: archive memory: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "memory.archive", entry.AgentID, core.ShortID(entry.MemoryID))
	}
	return nil
}

// RestoreEntry clears an explicit archive. Entries archived by
// supersession stay archived; the chain is the way back to them.
func RestoreEntry(db *sql.DB, journal *events.Journal, ref string) error {
	entry, err := GetByID(db, ref)
	if err != nil {
		return err
	}
	if entry.SupersededBy != nil {
		return fmt.Errorf("%w: memory %s was superseded by %s; traverse the chain instead of restoring",
			core.ErrValidation, core.ShortID(entry.MemoryID), core.ShortID(*entry.SupersededBy))
	}
	if _, err := db.Exec(
		"UPDATE memories SET archived_at = NULL WHERE memory_id = ?", entry.MemoryID,
	); err != nil {
		return fmt.Errorf("%w: restore memory: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "memory.restore", entry.AgentID, core.ShortID(entry.MemoryID))
	}
	return nil
}

// MarkCore sets or clears the core flag.
func MarkCore(db *sql.DB, journal *events.Journal, ref string, isCore bool) error {
	entry, err := GetByID(db, ref)
	if err != nil {
		return err
	}
	flag := 0
	eventType := "memory.uncore"
	if isCore {
		flag = 1
		eventType = "memory.core"
	}
	if _, err := db.Exec(
		"UPDATE memories SET core = ? WHERE memory_id = ?", flag, entry.MemoryID,
	); err != nil {
		return fmt.Errorf("%w: mark core: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, eventType, entry.AgentID, core.ShortID(entry.MemoryID))
	}
	return nil
}

func queryMemories(db *sql.DB, query string, params ...any) ([]types.Memory, error) {
	rows, err := db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: query memories: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var entries []types.Memory
	for rows.Next() {
		entry, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanMemory(scanner interface{ Scan(dest ...any) error }) (types.Memory, error) {
	var entry types.Memory
	var archivedAt sql.NullInt64
	var coreFlag int
	var bridgeChannel, codeAnchors, synthesisNote, supersededBy sql.NullString
	err := scanner.Scan(
		&entry.MemoryID, &entry.AgentID, &entry.Topic, &entry.Message,
		&entry.Timestamp, &entry.CreatedAt, &archivedAt, &coreFlag,
		&entry.Source, &bridgeChannel, &codeAnchors, &synthesisNote,
		&entry.Supersedes, &supersededBy,
	)
	if err != nil {
		return types.Memory{}, err
	}
	entry.Core = coreFlag != 0
	if archivedAt.Valid {
		entry.ArchivedAt = &archivedAt.Int64
	}
	if bridgeChannel.Valid {
		entry.BridgeChannel = &bridgeChannel.String
	}
	if codeAnchors.Valid {
		entry.CodeAnchors = &codeAnchors.String
	}
	if synthesisNote.Valid {
		entry.SynthesisNote = &synthesisNote.String
	}
	if supersededBy.Valid {
		entry.SupersededBy = &supersededBy.String
	}
	return entry, nil
}

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func nullableInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

// splitSupersedes parses the comma-joined predecessor list.
func splitSupersedes(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
