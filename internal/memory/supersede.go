package memory

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/types"
)

// ReplaceEntry supersedes one or more entries with a single successor.
// The successor records its predecessors in supersedes; each predecessor
// is archived and pointed at the successor. Everything runs in one
// transaction so a crash never leaves a half-linked chain.
func ReplaceEntry(db *sql.DB, journal *events.Journal, oldRefs []string, agentID, topic, message, note string) (*types.Memory, error) {
	if len(oldRefs) == 0 {
		return nil, fmt.Errorf("%w: replace needs at least one predecessor", core.ErrValidation)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: memory message required", core.ErrValidation)
	}

	oldIDs := make([]string, 0, len(oldRefs))
	seen := map[string]bool{}
	for _, ref := range oldRefs {
		id, err := ResolveID(db, ref)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		oldIDs = append(oldIDs, id)
	}

	newID, err := core.NewID()
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	entry := types.Memory{
		MemoryID:   newID,
		AgentID:    agentID,
		Topic:      topic,
		Message:    message,
		Timestamp:  now,
		CreatedAt:  now,
		Source:     types.MemorySourceManual,
		Supersedes: strings.Join(oldIDs, ","),
	}
	if note != "" {
		entry.SynthesisNote = &note
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin replace: %v", core.ErrStorage, err)
	}
	defer tx.Rollback()

	if err := insertEntryExec(tx.Exec, entry); err != nil {
		return nil, err
	}
	for _, oldID := range oldIDs {
		result, err := tx.Exec(
			"UPDATE memories SET archived_at = ?, superseded_by = ? WHERE memory_id = ?",
			now, newID, oldID,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: supersede %s: %v", core.ErrStorage, core.ShortID(oldID), err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return nil, &core.NotFoundError{Kind: "memory", Ref: oldID}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit replace: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "memory.replace", agentID,
			fmt.Sprintf("%d -> %s", len(oldIDs), core.ShortID(newID)))
	}
	return &entry, nil
}

// Chain is the supersession neighbourhood of one entry.
type Chain struct {
	Start        types.Memory   `json:"start"`
	Predecessors []types.Memory `json:"predecessors"`
	Successors   []types.Memory `json:"successors"`
}

// GetChain walks the supersession links both ways from an entry:
// predecessors via supersedes lists, successors via superseded_by
// pointers. BFS with a visited set; the links form a DAG but a cycle in
// corrupted data still terminates.
func GetChain(db *sql.DB, ref string) (*Chain, error) {
	start, err := GetByID(db, ref)
	if err != nil {
		return nil, err
	}

	chain := &Chain{Start: *start}
	visited := map[string]bool{start.MemoryID: true}

	frontier := splitSupersedes(start.Supersedes)
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		entry, err := getExact(db, id)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		chain.Predecessors = append(chain.Predecessors, *entry)
		frontier = append(frontier, splitSupersedes(entry.Supersedes)...)
	}

	current := start
	for current.SupersededBy != nil {
		id := *current.SupersededBy
		if visited[id] {
			break
		}
		visited[id] = true

		entry, err := getExact(db, id)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		chain.Successors = append(chain.Successors, *entry)
		current = entry
	}

	sort.Slice(chain.Predecessors, func(i, j int) bool {
		return chain.Predecessors[i].MemoryID < chain.Predecessors[j].MemoryID
	})
	return chain, nil
}

// FindRelated scores the agent's other entries by keyword overlap with
// the source entry. Zero-overlap candidates are dropped; ties break by
// recency.
func FindRelated(db *sql.DB, entry *types.Memory, limit int, includeArchived bool) ([]Scored, error) {
	source := core.Keywords(entry.Topic + " " + entry.Message)
	if len(source) == 0 {
		return nil, nil
	}

	candidates, err := GetMemories(db, entry.AgentID, "", includeArchived, 0)
	if err != nil {
		return nil, err
	}

	var scored []Scored
	for _, candidate := range candidates {
		if candidate.MemoryID == entry.MemoryID {
			continue
		}
		score := core.OverlapScore(source, core.Keywords(candidate.Topic+" "+candidate.Message))
		if score == 0 {
			continue
		}
		scored = append(scored, Scored{Memory: candidate, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Memory.CreatedAt > scored[j].Memory.CreatedAt
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Scored pairs a related entry with its overlap score.
type Scored struct {
	Memory types.Memory `json:"memory"`
	Score  int          `json:"score"`
}

func getExact(db *sql.DB, id string) (*types.Memory, error) {
	row := db.QueryRow("SELECT "+memoryColumns+" FROM memories WHERE memory_id = ?", id)
	entry, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get memory: %v", core.ErrStorage, err)
	}
	return &entry, nil
}
