// Package knowledge is the shared, domain-scoped corpus. Unlike memory
// it has no supersession: entries are edited in place or archived, and
// every entry keeps its contributing agent for attribution.
package knowledge

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

// DBName is the logical database name.
const DBName = "knowledge"

// Source is the journal source for knowledge mutations.
const Source = "knowledge"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS knowledge (
  knowledge_id TEXT PRIMARY KEY,       -- uuid7
  domain TEXT NOT NULL,
  agent_id TEXT NOT NULL,              -- contributor
  content TEXT NOT NULL,
  confidence REAL,                     -- [0,1] or null
  created_at INTEGER NOT NULL,
  archived_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_knowledge_domain ON knowledge(domain);
CREATE INDEX IF NOT EXISTS idx_knowledge_agent ON knowledge(agent_id);
`

func init() {
	store.Register(store.Definition{
		Name:   DBName,
		File:   "knowledge.db",
		Schema: schemaSQL,
	})
}

const knowledgeColumns = "knowledge_id, domain, agent_id, content, confidence, created_at, archived_at"

// WriteKnowledge inserts an entry. Confidence outside [0,1] is clamped.
func WriteKnowledge(db *sql.DB, journal *events.Journal, domain, agentID, content string, confidence *float64) (*types.Knowledge, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: domain required", core.ErrValidation)
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content required", core.ErrValidation)
	}

	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	entry := types.Knowledge{
		KnowledgeID: id,
		Domain:      domain,
		AgentID:     agentID,
		Content:     content,
		Confidence:  clamp(confidence),
		CreatedAt:   time.Now().Unix(),
	}

	var confidenceValue any
	if entry.Confidence != nil {
		confidenceValue = *entry.Confidence
	}
	if _, err := db.Exec(
		"INSERT INTO knowledge ("+knowledgeColumns+") VALUES (?, ?, ?, ?, ?, ?, NULL)",
		entry.KnowledgeID, entry.Domain, entry.AgentID, entry.Content, confidenceValue, entry.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("%w: write knowledge: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "knowledge.write", agentID, domain)
	}
	return &entry, nil
}

func clamp(confidence *float64) *float64 {
	if confidence == nil {
		return nil
	}
	value := *confidence
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return &value
}

// ResolveID expands a short knowledge id to the full id.
func ResolveID(db *sql.DB, ref string) (string, error) {
	return store.ResolveShort(db, "knowledge", "knowledge_id", "knowledge", ref)
}

// GetByID returns one entry by full or short id.
func GetByID(db *sql.DB, ref string) (*types.Knowledge, error) {
	id, err := ResolveID(db, ref)
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+knowledgeColumns+" FROM knowledge WHERE knowledge_id = ?", id)
	entry, err := scanKnowledge(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Kind: "knowledge", Ref: ref}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get knowledge: %v", core.ErrStorage, err)
	}
	return &entry, nil
}

// QueryByDomain returns a domain's entries newest first.
func QueryByDomain(db *sql.DB, domain string, includeArchived bool) ([]types.Knowledge, error) {
	query := "SELECT " + knowledgeColumns + " FROM knowledge WHERE domain = ?"
	if !includeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY knowledge_id DESC"
	return queryKnowledge(db, query, domain)
}

// QueryByAgent returns one contributor's entries newest first.
func QueryByAgent(db *sql.DB, agentID string, includeArchived bool) ([]types.Knowledge, error) {
	query := "SELECT " + knowledgeColumns + " FROM knowledge WHERE agent_id = ?"
	if !includeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY knowledge_id DESC"
	return queryKnowledge(db, query, agentID)
}

// ListAll returns every entry newest first.
func ListAll(db *sql.DB, includeArchived bool) ([]types.Knowledge, error) {
	query := "SELECT " + knowledgeColumns + " FROM knowledge"
	if !includeArchived {
		query += " WHERE archived_at IS NULL"
	}
	query += " ORDER BY knowledge_id DESC"
	return queryKnowledge(db, query)
}

// UpdateEntry edits content in place; confidence is replaced when given.
func UpdateEntry(db *sql.DB, journal *events.Journal, ref, content string, confidence *float64) (*types.Knowledge, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content required", core.ErrValidation)
	}
	entry, err := GetByID(db, ref)
	if err != nil {
		return nil, err
	}

	next := clamp(confidence)
	if next == nil {
		next = entry.Confidence
	}
	var confidenceValue any
	if next != nil {
		confidenceValue = *next
	}
	if _, err := db.Exec(
		"UPDATE knowledge SET content = ?, confidence = ? WHERE knowledge_id = ?",
		content, confidenceValue, entry.KnowledgeID,
	); err != nil {
		return nil, fmt.Errorf("%w: update knowledge: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "knowledge.update", entry.AgentID, core.ShortID(entry.KnowledgeID))
	}
	return GetByID(db, entry.KnowledgeID)
}

// ArchiveEntry soft-archives an entry.
func ArchiveEntry(db *sql.DB, journal *events.Journal, ref string) error {
	entry, err := GetByID(db, ref)
	if err != nil {
		return err
	}
	if _, err := db.Exec(
		"UPDATE knowledge SET archived_at = ? WHERE knowledge_id = ?",
		time.Now().Unix(), entry.KnowledgeID,
	); err != nil {
		return fmt.Errorf("%w: archive knowledge: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "knowledge.archive", entry.AgentID, core.ShortID(entry.KnowledgeID))
	}
	return nil
}

// RestoreEntry clears an archive.
func RestoreEntry(db *sql.DB, journal *events.Journal, ref string) error {
	entry, err := GetByID(db, ref)
	if err != nil {
		return err
	}
	if _, err := db.Exec(
		"UPDATE knowledge SET archived_at = NULL WHERE knowledge_id = ?", entry.KnowledgeID,
	); err != nil {
		return fmt.Errorf("%w: restore knowledge: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "knowledge.restore", entry.AgentID, core.ShortID(entry.KnowledgeID))
	}
	return nil
}

// Scored pairs a related entry with its overlap score.
type Scored struct {
	Knowledge types.Knowledge `json:"knowledge"`
	Score     int             `json:"score"`
}

// FindRelated scores other entries by keyword overlap over domain and
// content. Zero-overlap candidates drop; ties break by recency.
func FindRelated(db *sql.DB, entry *types.Knowledge, limit int, includeArchived bool) ([]Scored, error) {
	source := core.Keywords(entry.Domain + " " + entry.Content)
	if len(source) == 0 {
		return nil, nil
	}

	candidates, err := ListAll(db, includeArchived)
	if err != nil {
		return nil, err
	}

	var scored []Scored
	for _, candidate := range candidates {
		if candidate.KnowledgeID == entry.KnowledgeID {
			continue
		}
		score := core.OverlapScore(source, core.Keywords(candidate.Domain+" "+candidate.Content))
		if score == 0 {
			continue
		}
		scored = append(scored, Scored{Knowledge: candidate, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Knowledge.CreatedAt > scored[j].Knowledge.CreatedAt
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func queryKnowledge(db *sql.DB, query string, params ...any) ([]types.Knowledge, error) {
	rows, err := db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: query knowledge: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var entries []types.Knowledge
	for rows.Next() {
		entry, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanKnowledge(scanner interface{ Scan(dest ...any) error }) (types.Knowledge, error) {
	var entry types.Knowledge
	var confidence sql.NullFloat64
	var archivedAt sql.NullInt64
	err := scanner.Scan(
		&entry.KnowledgeID, &entry.Domain, &entry.AgentID, &entry.Content,
		&confidence, &entry.CreatedAt, &archivedAt,
	)
	if err != nil {
		return types.Knowledge{}, err
	}
	if confidence.Valid {
		entry.Confidence = &confidence.Float64
	}
	if archivedAt.Valid {
		entry.ArchivedAt = &archivedAt.Int64
	}
	return entry, nil
}
