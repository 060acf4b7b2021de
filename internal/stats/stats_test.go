package stats

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/knowledge"
	"github.com/spacehq/space/internal/memory"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/store"
)

func openTest(t *testing.T) Stores {
	t.Helper()
	ws, err := core.InitWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}

	open := func(name string) *sql.DB {
		db, err := store.Open(ws, name)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return db
	}

	return Stores{
		Registry:  open(registry.DBName),
		Bridge:    open(bridge.DBName),
		Memory:    open(memory.DBName),
		Knowledge: open(knowledge.DBName),
		Journal:   events.NewJournal(open(events.DBName)),
		Workspace: ws,
	}
}

func findAgent(stats []AgentStats, identity string) *AgentStats {
	for i := range stats {
		if stats[i].Identity == identity {
			return &stats[i]
		}
	}
	return nil
}

func TestCollectCounters(t *testing.T) {
	s := openTest(t)

	if _, err := registry.EnsureAgent(s.Registry, s.Journal, "zealot-1"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "zealot-1", "one", "normal")
	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "zealot-1", "two", "normal")
	_, _ = memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{AgentID: "zealot-1", Topic: "t", Message: "m"})
	_, _ = knowledge.WriteKnowledge(s.Knowledge, s.Journal, "sqlite", "zealot-1", "fact", nil)

	agentID, _ := registry.GetAgentID(s.Registry, "zealot-1")
	_, _ = s.Journal.Emit("session", "session_start", agentID, "zealot-1")
	_, _ = s.Journal.Emit("session", "session_start", agentID, "zealot-1")

	stats, err := Collect(s)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	entry := findAgent(stats, "zealot-1")
	if entry == nil {
		t.Fatalf("zealot-1 missing: %+v", stats)
	}
	if entry.Messages != 2 || entry.Memories != 1 || entry.Know != 1 {
		t.Fatalf("counters: %+v", entry)
	}
	if entry.Spawns != 2 {
		t.Fatalf("spawns: %d", entry.Spawns)
	}
	if entry.Events == 0 {
		t.Fatal("events counter empty")
	}
}

func TestCollectDiscoversOrphans(t *testing.T) {
	s := openTest(t)

	// ghost-1 never touched the registry but shows up in the bridge.
	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "ghost-1", "hello", "normal")

	stats, err := Collect(s)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	entry := findAgent(stats, "ghost-1")
	if entry == nil {
		t.Fatalf("orphan missing: %+v", stats)
	}
	if entry.Messages != 1 || entry.AgentID != "" {
		t.Fatalf("orphan counters: %+v", entry)
	}
}

func TestContextTimelineAndState(t *testing.T) {
	s := openTest(t)

	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "zealot-1", "the parser bug is in tokenise", "normal")
	_, _ = memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "parser", Message: "tokeniser drops trailing newline",
	})
	archived, _ := memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "parser", Message: "stale parser theory",
	})
	_ = memory.ArchiveEntry(s.Memory, s.Journal, archived.MemoryID)
	_, _ = knowledge.WriteKnowledge(s.Knowledge, s.Journal, "parser", "oracle-1", "grammar is LL(1)", nil)
	_, _ = memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "lunch", Message: "unrelated",
	})

	result, err := Context(s, "parser", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}

	if len(result.Timeline) < 3 {
		t.Fatalf("timeline: %+v", result.Timeline)
	}
	for i := 1; i < len(result.Timeline); i++ {
		if result.Timeline[i-1].Timestamp < result.Timeline[i].Timestamp {
			t.Fatal("timeline not newest first")
		}
	}

	// Archived memories drop out of current state but stay on the timeline.
	for _, item := range result.CurrentState {
		if item.Content == "parser: stale parser theory" {
			t.Fatal("archived entry in current state")
		}
	}
	foundStale := false
	for _, item := range result.Timeline {
		if item.Content == "parser: stale parser theory" {
			foundStale = true
		}
	}
	if !foundStale {
		t.Fatal("timeline should keep archived matches")
	}
}

func TestContextDeduplicatesTimeline(t *testing.T) {
	s := openTest(t)

	// Same content twice; the timeline keeps one.
	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "zealot-1", "deploy checklist", "normal")
	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "dev", "zealot-1", "deploy checklist", "normal")

	result, err := Context(s, "deploy", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	count := 0
	for _, item := range result.Timeline {
		if item.Content == "deploy checklist" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("duplicate content on timeline: %d", count)
	}
}

func TestContextCanonDocs(t *testing.T) {
	s := openTest(t)

	canonDir := s.Workspace.CanonDir()
	if err := os.MkdirAll(canonDir, 0o755); err != nil {
		t.Fatalf("mkdir canon: %v", err)
	}
	_ = os.WriteFile(filepath.Join(canonDir, "parsing.md"), []byte("The Parser protocol.\n"), 0o644)
	_ = os.WriteFile(filepath.Join(canonDir, "other.md"), []byte("Nothing here.\n"), 0o644)

	result, err := Context(s, "parser", "")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(result.CanonDocs) != 1 {
		t.Fatalf("canon docs: %v", result.CanonDocs)
	}
	if _, ok := result.CanonDocs["parsing.md"]; !ok {
		t.Fatal("case-insensitive canon match missing")
	}
}

func TestContextIdentityScope(t *testing.T) {
	s := openTest(t)

	_, _ = memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "parser", Message: "mine",
	})
	_, _ = memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "oracle-1", Topic: "parser", Message: "theirs",
	})

	result, err := Context(s, "parser", "zealot-1")
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	for _, item := range result.CurrentState {
		if item.Kind == "memory" && item.AgentID != "zealot-1" {
			t.Fatalf("identity scope leaked: %+v", item)
		}
	}
}
