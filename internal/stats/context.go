package stats

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/registry"
)

// TimelineItem is one topic hit placed on the context timeline.
type TimelineItem struct {
	Kind      string `json:"kind"` // event, memory, knowledge, message
	AgentID   string `json:"agent_id,omitempty"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// ContextResult is everything known about a topic right now.
type ContextResult struct {
	Topic        string            `json:"topic"`
	Timeline     []TimelineItem    `json:"timeline"`
	CurrentState []TimelineItem    `json:"current_state"`
	CanonDocs    map[string]string `json:"canon_docs"`
}

const timelineLimit = 10

// Context gathers topic-scoped retrieval across every store: a recent
// timeline (deduplicated by content), the current non-archived state,
// and any canon document mentioning the topic. identity narrows memory
// hits to one agent; empty means all.
func Context(s Stores, topic, identity string) (*ContextResult, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: topic required", core.ErrValidation)
	}
	needle := "%" + topic + "%"

	var hits []TimelineItem

	eventHits, err := collectItems(s.Journal.DB(), "event",
		"SELECT agent_id, event_type || ' ' || COALESCE(data, ''), timestamp FROM events WHERE data LIKE ? OR event_type LIKE ?",
		needle, needle)
	if err != nil {
		return nil, err
	}
	hits = append(hits, eventHits...)

	memoryQuery := "SELECT agent_id, topic || ': ' || message, timestamp FROM memories WHERE (topic LIKE ? OR message LIKE ?)"
	memoryParams := []any{needle, needle}
	if identity != "" {
		memoryQuery += " AND agent_id = ?"
		memoryParams = append(memoryParams, identity)
	}
	memoryHits, err := collectItems(s.Memory, "memory", memoryQuery, memoryParams...)
	if err != nil {
		return nil, err
	}
	hits = append(hits, memoryHits...)

	knowledgeHits, err := collectItems(s.Knowledge, "knowledge",
		"SELECT agent_id, domain || ': ' || content, created_at FROM knowledge WHERE domain LIKE ? OR content LIKE ?",
		needle, needle)
	if err != nil {
		return nil, err
	}
	hits = append(hits, knowledgeHits...)

	messageHits, err := collectItems(s.Bridge, "message",
		"SELECT agent_id, content, created_at FROM messages WHERE content LIKE ?",
		needle)
	if err != nil {
		return nil, err
	}
	hits = append(hits, messageHits...)

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Timestamp > hits[j].Timestamp })

	// Timeline keeps the most recent occurrence of each distinct content.
	seen := map[string]bool{}
	result := &ContextResult{Topic: topic}
	for _, hit := range hits {
		key := core.HashContent([]byte(hit.Content))
		if seen[key] {
			continue
		}
		seen[key] = true
		result.Timeline = append(result.Timeline, hit)
		if len(result.Timeline) == timelineLimit {
			break
		}
	}

	result.CurrentState, err = currentState(s, needle, identity)
	if err != nil {
		return nil, err
	}

	result.CanonDocs, err = registry.CanonDocs(s.Workspace, topic)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// currentState returns all live (non-archived) matches.
func currentState(s Stores, needle, identity string) ([]TimelineItem, error) {
	var state []TimelineItem

	memoryQuery := "SELECT agent_id, topic || ': ' || message, timestamp FROM memories WHERE archived_at IS NULL AND (topic LIKE ? OR message LIKE ?)"
	memoryParams := []any{needle, needle}
	if identity != "" {
		memoryQuery += " AND agent_id = ?"
		memoryParams = append(memoryParams, identity)
	}
	memoryHits, err := collectItems(s.Memory, "memory", memoryQuery, memoryParams...)
	if err != nil {
		return nil, err
	}
	state = append(state, memoryHits...)

	knowledgeHits, err := collectItems(s.Knowledge, "knowledge",
		"SELECT agent_id, domain || ': ' || content, created_at FROM knowledge WHERE archived_at IS NULL AND (domain LIKE ? OR content LIKE ?)",
		needle, needle)
	if err != nil {
		return nil, err
	}
	state = append(state, knowledgeHits...)

	messageHits, err := collectItems(s.Bridge, "message",
		"SELECT m.agent_id, m.content, m.created_at FROM messages m JOIN channels c ON c.channel_id = m.channel_id WHERE c.archived_at IS NULL AND m.content LIKE ?",
		needle)
	if err != nil {
		return nil, err
	}
	state = append(state, messageHits...)

	sort.SliceStable(state, func(i, j int) bool { return state[i].Timestamp > state[j].Timestamp })
	return state, nil
}

func collectItems(db *sql.DB, kind, query string, params ...any) ([]TimelineItem, error) {
	rows, err := db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: context query: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var items []TimelineItem
	for rows.Next() {
		item := TimelineItem{Kind: kind}
		var agentID sql.NullString
		if err := rows.Scan(&agentID, &item.Content, &item.Timestamp); err != nil {
			return nil, err
		}
		if agentID.Valid {
			item.AgentID = agentID.String
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
