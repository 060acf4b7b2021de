package lifecycle

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/memory"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
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
		Journal:   events.NewJournal(open(events.DBName)),
		Workspace: ws,
	}
}

func writeConstitution(t *testing.T, ws core.Workspace, role, content string) {
	t.Helper()
	dir := filepath.Join(ws.Root, ConstitutionsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir constitutions: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, role+".md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write constitution: %v", err)
	}
}

func TestIdentifyMaterialisesConstitution(t *testing.T) {
	s := openTest(t)
	writeConstitution(t, s.Workspace, "zealot", "Ship small, ship often.")

	result, err := Identify(s, IdentifyOptions{
		Command:  "wake",
		Identity: "zealot-2",
		Model:    "opus",
	})
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if result.Role != "zealot" || result.File != "CLAUDE.md" {
		t.Fatalf("result: %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(s.Workspace.Root, "CLAUDE.md"))
	if err != nil {
		t.Fatalf("identity file: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "# ZEALOT CONSTITUTION\n") {
		t.Fatal("missing header")
	}
	if !strings.Contains(text, "Ship small, ship often.") {
		t.Fatal("missing base constitution")
	}
	if core.HashContent(data) != result.Hash {
		t.Fatal("hash does not cover written bytes")
	}

	stored, err := registry.GetConstitution(s.Registry, result.Hash)
	if err != nil || stored == nil || *stored != text {
		t.Fatal("constitution not stored under its hash")
	}

	agentID, _ := registry.GetAgentID(s.Registry, "zealot-2")
	identified, _ := s.Journal.CountByType(agentID, "wake")
	if identified != 1 {
		t.Fatalf("expected identity event, got %d", identified)
	}
}

func TestIdentifyBaseFamilies(t *testing.T) {
	s := openTest(t)
	writeConstitution(t, s.Workspace, "oracle", "Observe first.")

	result, err := Identify(s, IdentifyOptions{Identity: "oracle-1", Base: "gemini"})
	if err != nil || result.File != "GEMINI.md" {
		t.Fatalf("gemini family: %+v %v", result, err)
	}
	if _, err := os.Stat(filepath.Join(s.Workspace.Root, "GEMINI.md")); err != nil {
		t.Fatalf("identity file: %v", err)
	}
}

func TestIdentifyMissingConstitution(t *testing.T) {
	s := openTest(t)

	if _, err := Identify(s, IdentifyOptions{Identity: "ghost-1"}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWakeFirstBoot(t *testing.T) {
	s := openTest(t)

	orientation, err := Wake(s, "zealot-1")
	if err != nil {
		t.Fatalf("wake: %v", err)
	}
	if !orientation.FirstBoot {
		t.Fatal("first wake should flag first boot")
	}
	if orientation.SleepCount != 0 {
		t.Fatalf("sleep count: %d", orientation.SleepCount)
	}

	starts, _ := s.Journal.CountByType(orientation.AgentID, "session_start")
	if starts != 1 {
		t.Fatalf("expected one session_start, got %d", starts)
	}
}

func TestWakeAutoClosesStaleSession(t *testing.T) {
	s := openTest(t)

	first, _ := Wake(s, "zealot-1")
	// Second wake without an intervening sleep.
	second, err := Wake(s, "zealot-1")
	if err != nil {
		t.Fatalf("second wake: %v", err)
	}
	if second.FirstBoot {
		t.Fatal("second wake is not first boot")
	}

	ends, _ := s.Journal.CountByType(first.AgentID, "session_end")
	if ends != 1 {
		t.Fatalf("expected auto-closed session_end, got %d", ends)
	}
	closed, _ := s.Journal.Query(events.Filter{AgentID: first.AgentID, Type: "session_end"})
	if len(closed) != 1 || closed[0].Data == nil || *closed[0].Data != "auto_closed" {
		t.Fatalf("bad auto-close event: %+v", closed)
	}
}

func TestWakeOrientation(t *testing.T) {
	s := openTest(t)

	// Seed every store the orientation reads.
	if _, err := bridge.CreateMessage(s.Bridge, s.Journal, "ops", "oracle-1", "pending work", types.PriorityNormal); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if _, err := bridge.CreateMessage(s.Bridge, s.Journal, "dev", "zealot-1", "my own note", types.PriorityNormal); err != nil {
		t.Fatalf("seed own message: %v", err)
	}
	coreEntry, _ := memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "values", Message: "checkpoint before sleeping", Core: true,
	})
	_, _ = memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "build", Message: "recent finding",
	})
	checkpoint, _ := memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "checkpoint", Message: "left off at the parser",
		Source: types.MemorySourceCheckpoint,
	})

	orientation, err := Wake(s, "zealot-1")
	if err != nil {
		t.Fatalf("wake: %v", err)
	}

	if orientation.LastCheckpoint == nil || orientation.LastCheckpoint.MemoryID != checkpoint.MemoryID {
		t.Fatal("missing last checkpoint")
	}
	if len(orientation.CoreMemories) != 1 || orientation.CoreMemories[0].MemoryID != coreEntry.MemoryID {
		t.Fatalf("core memories: %+v", orientation.CoreMemories)
	}
	for _, entry := range orientation.RecentEntries {
		if entry.Core {
			t.Fatal("recent entries should exclude core")
		}
	}
	unreadNames := map[string]bool{}
	for _, view := range orientation.UnreadChannels {
		unreadNames[view.Name] = true
	}
	if !unreadNames["ops"] {
		t.Fatalf("unread channels missing ops: %v", unreadNames)
	}
	if len(orientation.LastSent) != 1 || orientation.LastSent[0].Content != "my own note" {
		t.Fatalf("last sent: %+v", orientation.LastSent)
	}
}

func TestSleepCheckpointsUnreadChannels(t *testing.T) {
	s := openTest(t)

	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "oracle-1", "unread one", types.PriorityNormal)
	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "oracle-1", "unread two", types.PriorityNormal)
	// Give the sleeper an existing memory so the gap checkpoint stays out
	// of the way.
	_, _ = memory.AddEntry(s.Memory, s.Journal, memory.AddOptions{
		AgentID: "zealot-1", Topic: "build", Message: "existing",
	})

	summary, err := Sleep(s, "zealot-1", false)
	if err != nil {
		t.Fatalf("sleep: %v", err)
	}
	if summary.MemoryGap {
		t.Fatal("gap flagged despite existing memory")
	}
	if len(summary.UnreadChannels) != 1 || summary.UnreadChannels[0] != "ops" {
		t.Fatalf("unread channels: %v", summary.UnreadChannels)
	}
	if len(summary.Checkpoints) != 1 {
		t.Fatalf("checkpoints: %d", len(summary.Checkpoints))
	}
	cp := summary.Checkpoints[0]
	if cp.Source != types.MemorySourceCheckpoint || cp.BridgeChannel == nil || *cp.BridgeChannel != "ops" {
		t.Fatalf("bad checkpoint: %+v", cp)
	}
	if !strings.Contains(cp.Message, "2 unread") {
		t.Fatalf("checkpoint message: %s", cp.Message)
	}

	stored, _ := memory.GetMemories(s.Memory, "zealot-1", "checkpoint", false, 0)
	if len(stored) != 1 {
		t.Fatalf("checkpoint not persisted: %d", len(stored))
	}

	agentID, _ := registry.GetAgentID(s.Registry, "zealot-1")
	sleeps, _ := s.Journal.CountByType(agentID, "sleep")
	if sleeps != 1 {
		t.Fatalf("expected sleep event, got %d", sleeps)
	}
}

func TestSleepMemoryGap(t *testing.T) {
	s := openTest(t)

	summary, err := Sleep(s, "zealot-1", false)
	if err != nil {
		t.Fatalf("sleep: %v", err)
	}
	if !summary.MemoryGap {
		t.Fatal("expected memory gap")
	}
	stored, _ := memory.GetMemories(s.Memory, "zealot-1", "", false, 0)
	if len(stored) != 1 || stored[0].Source != types.MemorySourceCheckpoint {
		t.Fatalf("gap checkpoint: %+v", stored)
	}
}

func TestSleepCheckModePersistsNothing(t *testing.T) {
	s := openTest(t)

	_, _ = bridge.CreateMessage(s.Bridge, s.Journal, "ops", "oracle-1", "unread", types.PriorityNormal)

	summary, err := Sleep(s, "zealot-1", true)
	if err != nil {
		t.Fatalf("sleep --check: %v", err)
	}
	if !summary.CheckOnly || len(summary.Checkpoints) == 0 {
		t.Fatalf("preview summary: %+v", summary)
	}

	stored, _ := memory.GetMemories(s.Memory, "zealot-1", "", true, 0)
	if len(stored) != 0 {
		t.Fatalf("check mode persisted %d entries", len(stored))
	}
	agentID, _ := registry.GetAgentID(s.Registry, "zealot-1")
	sleeps, _ := s.Journal.CountByType(agentID, "sleep")
	if sleeps != 0 {
		t.Fatal("check mode emitted sleep event")
	}

	// Sleep count only grows on real sleeps.
	if _, err := Sleep(s, "zealot-1", false); err != nil {
		t.Fatalf("real sleep: %v", err)
	}
	orientation, _ := Wake(s, "zealot-1")
	if orientation.SleepCount != 1 {
		t.Fatalf("sleep count: %d", orientation.SleepCount)
	}
}
