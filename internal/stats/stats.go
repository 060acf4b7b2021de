// Package stats aggregates per-agent activity across every store and
// serves topic-scoped context retrieval.
package stats

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/registry"
)

// Stores bundles the databases stats reads. All access is read-only.
type Stores struct {
	Registry  *sql.DB
	Bridge    *sql.DB
	Memory    *sql.DB
	Knowledge *sql.DB
	Journal   *events.Journal
	Workspace core.Workspace
}

// AgentStats is one agent's activity counters.
type AgentStats struct {
	Identity string `json:"identity"`
	AgentID  string `json:"agent_id,omitempty"`
	Messages int64  `json:"msgs"`
	Memories int64  `json:"mems"`
	Know     int64  `json:"knows"`
	Events   int64  `json:"events"`
	Spawns   int64  `json:"spawns"`
}

// Collect builds per-agent counters. The discovery set is the union of
// registered active agents with every distinct agent reference in
// messages, memory, knowledge, and the journal, so an identity that only
// ever appears in logs still shows up.
func Collect(s Stores) ([]AgentStats, error) {
	identities := map[string]bool{}

	registered, err := registry.ListAgents(s.Registry, false)
	if err != nil {
		return nil, err
	}
	for _, agent := range registered {
		if agent.Name != nil {
			identities[*agent.Name] = true
		}
	}

	for _, probe := range []struct {
		db    *sql.DB
		query string
	}{
		{s.Bridge, "SELECT DISTINCT agent_id FROM messages"},
		{s.Memory, "SELECT DISTINCT agent_id FROM memories"},
		{s.Knowledge, "SELECT DISTINCT agent_id FROM knowledge"},
	} {
		refs, err := distinctStrings(probe.db, probe.query)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			identities[ref] = true
		}
	}

	// Journal rows reference registry uuids; fold them back to names
	// where possible, keeping raw ids for orphans.
	journalAgents, err := s.Journal.DistinctAgents()
	if err != nil {
		return nil, err
	}
	for _, id := range journalAgents {
		name, err := registry.GetAgentName(s.Registry, id)
		if err != nil {
			return nil, err
		}
		if name != nil {
			identities[*name] = true
		} else {
			identities[id] = true
		}
	}

	var stats []AgentStats
	for identity := range identities {
		entry, err := collectOne(s, identity)
		if err != nil {
			return nil, err
		}
		stats = append(stats, entry)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Identity < stats[j].Identity })
	return stats, nil
}

func collectOne(s Stores, identity string) (AgentStats, error) {
	entry := AgentStats{Identity: identity}

	agentID, err := registry.GetAgentID(s.Registry, identity)
	if err != nil {
		return entry, err
	}
	entry.AgentID = agentID

	if entry.Messages, err = countBy(s.Bridge, "SELECT COUNT(*) FROM messages WHERE agent_id = ?", identity); err != nil {
		return entry, err
	}
	if entry.Memories, err = countBy(s.Memory, "SELECT COUNT(*) FROM memories WHERE agent_id = ?", identity); err != nil {
		return entry, err
	}
	if entry.Know, err = countBy(s.Knowledge, "SELECT COUNT(*) FROM knowledge WHERE agent_id = ?", identity); err != nil {
		return entry, err
	}

	// Journal rows may carry either the registry uuid or the bare
	// identity, depending on the emitting subsystem.
	keys := []string{identity}
	if agentID != "" && agentID != identity {
		keys = append(keys, agentID)
	}
	for _, key := range keys {
		n, err := countBy(s.Journal.DB(), "SELECT COUNT(*) FROM events WHERE agent_id = ?", key)
		if err != nil {
			return entry, err
		}
		entry.Events += n
	}
	if agentID != "" {
		if entry.Spawns, err = s.Journal.CountByType(agentID, "session_start"); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

func countBy(db *sql.DB, query string, params ...any) (int64, error) {
	var count int64
	if err := db.QueryRow(query, params...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count: %v", core.ErrStorage, err)
	}
	return count, nil
}

func distinctStrings(db *sql.DB, query string) ([]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: distinct: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}
